package maple

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/db/util"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

const (
	magicNum     = "MAPLETBL" // Snapshot format identifier
	mapleVersion = 1          // Snapshot format version
)

// --------------------------------------------------------------------------
// Core Maple table structure
// --------------------------------------------------------------------------

// mapleImpl is an in-memory table whose rows are spread over several shards.
//
// Batch writes take batchMu exclusively and reads take it shared, so a
// reader never observes half of a batch. Within a shard, xsync.MapOf keeps
// readers from blocking each other.
type mapleImpl struct {
	table     string
	seed      uint64
	numShards int // fixed at construction, Load keeps it
	shards    []*xsync.MapOf[string, []byte]
	batchMu   sync.RWMutex
	closed    atomic.Bool
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards int    // Number of shards (0 = number of CPUs)
	Table     string // Name reported in GetInfo
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards: runtime.NumCPU(),
		Table:     db.DefaultTableName,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new empty in-memory table with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.Table {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}
	if opts.Table == "" {
		opts.Table = db.DefaultTableName
	}

	maple := &mapleImpl{
		table:     opts.Table,
		seed:      util.GenerateSeed(),
		numShards: opts.NumShards,
	}
	maple.shards = newShards(opts.NumShards)
	return maple
}

func newShards(n int) []*xsync.MapOf[string, []byte] {
	shards := make([]*xsync.MapOf[string, []byte], n)
	for i := range shards {
		shards[i] = xsync.NewMapOf[string, []byte]()
	}
	return shards
}

// shard returns the shard responsible for key
func (maple *mapleImpl) shard(key string) *xsync.MapOf[string, []byte] {
	h := util.HashString(key, maple.seed)
	return maple.shards[(h>>7)%uint64(maple.numShards)]
}

// --------------------------------------------------------------------------
// Table Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Upsert stores copies of all values. The whole batch becomes visible to
// multi row readers at once.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Upsert(_ context.Context, rows []db.Row) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	// copy outside the lock
	copies := make([][]byte, len(rows))
	for i, row := range rows {
		copies[i] = append([]byte(nil), row.Value...)
	}

	maple.batchMu.Lock()
	defer maple.batchMu.Unlock()

	for i, row := range rows {
		maple.shard(row.Key).Store(row.Key, copies[i])
	}
	return nil
}

// Delete removes all given keys. Missing keys are ignored.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(_ context.Context, keys []string) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.batchMu.Lock()
	defer maple.batchMu.Unlock()

	for _, key := range keys {
		maple.shard(key).Delete(key)
	}
	return nil
}

// --------------------------------------------------------------------------
// Table Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Select returns a copy of the stored value, so callers may modify it.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Select(_ context.Context, key string) (json.RawMessage, bool, error) {
	if maple.closed.Load() {
		return nil, false, db.ErrClosed
	}

	maple.batchMu.RLock()
	value, ok := maple.shard(key).Load(key)
	maple.batchMu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return append(json.RawMessage(nil), value...), true, nil
}

// SelectIn returns one row per distinct existing key.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SelectIn(_ context.Context, keys []string) ([]db.Row, error) {
	if maple.closed.Load() {
		return nil, db.ErrClosed
	}

	maple.batchMu.RLock()
	defer maple.batchMu.RUnlock()

	seen := make(map[string]struct{}, len(keys))
	rows := make([]db.Row, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if value, ok := maple.shard(key).Load(key); ok {
			rows = append(rows, db.Row{Key: key, Value: append(json.RawMessage(nil), value...)})
		}
	}
	return rows, nil
}

// SelectPrefix scans every shard. The cost is linear in the number of rows.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SelectPrefix(_ context.Context, prefix string) ([]db.Row, error) {
	if maple.closed.Load() {
		return nil, db.ErrClosed
	}

	maple.batchMu.RLock()
	defer maple.batchMu.RUnlock()

	var rows []db.Row
	for _, shard := range maple.shards {
		shard.Range(func(key string, value []byte) bool {
			if strings.HasPrefix(key, prefix) {
				rows = append(rows, db.Row{Key: key, Value: append(json.RawMessage(nil), value...)})
			}
			return true
		})
	}
	return rows, nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save writes a consistent snapshot of all rows to w.
// Writes are blocked while the rows are collected, reads are not.
func (maple *mapleImpl) Save(w io.Writer) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	maple.batchMu.RLock()
	var rows []db.Row
	for _, shard := range maple.shards {
		shard.Range(func(key string, value []byte) bool {
			rows = append(rows, db.Row{Key: key, Value: value})
			return true
		})
	}
	maple.batchMu.RUnlock()

	bw := bufio.NewWriterSize(w, 1024*1024)

	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(rows))); err != nil {
		return err
	}

	for _, row := range rows {
		if err := writeChunk(bw, []byte(row.Key)); err != nil {
			return err
		}
		if err := writeChunk(bw, row.Value); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces all rows with the content of a snapshot created by Save.
// On error the table keeps its previous content.
func (maple *mapleImpl) Load(r io.Reader) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}

	br := bufio.NewReaderSize(r, 1024*1024)

	magic := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magic); err != nil {
		return err
	}
	if string(magic) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var count uint64
	if err := binary.Read(br, binary.LittleEndian, &count); err != nil {
		return err
	}

	// build the new shards first so a broken snapshot leaves the table untouched
	shards := newShards(maple.numShards)
	for i := uint64(0); i < count; i++ {
		key, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("reading key %d: %w", i, err)
		}
		value, err := readChunk(br)
		if err != nil {
			return fmt.Errorf("reading value %d: %w", i, err)
		}
		k := string(key)
		shards[(util.HashString(k, maple.seed)>>7)%uint64(maple.numShards)].Store(k, value)
	}

	maple.batchMu.Lock()
	maple.shards = shards
	maple.batchMu.Unlock()
	return nil
}

func writeChunk(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readChunk(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

// --------------------------------------------------------------------------
// Table Interface Implementation - Features and Metadata
// --------------------------------------------------------------------------

const features = db.FeatureCRUD | db.FeatureAtomicBatch | db.FeatureSnapshot

// GetInfo returns statistics about the table. Sizes are estimated from a
// sample of each shard.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	const samplesPerShard = 100

	maple.batchMu.RLock()
	shards := maple.shards
	maple.batchMu.RUnlock()

	histogram := util.NewSizeHistogram()
	shardSizes := make([]float64, len(shards))
	rowCount := 0

	for i, shard := range shards {
		sampled := 0
		shard.Range(func(key string, value []byte) bool {
			histogram.AddSample(len(key) + len(value))
			sampled++
			return sampled < samplesPerShard
		})
		size := shard.Size()
		shardSizes[i] = float64(size)
		rowCount += size
	}

	// weighted estimate (60% median, 40% average)
	perRow := (histogram.MedianEstimate()*60 + histogram.AverageSize()*40) / 100

	meta := &struct {
		ShardCount        int                    `json:"shard_count"`
		ShardDistribution util.DistributionStats `json:"shard_distribution"`
		Info              string                 `json:"info"`
	}{
		ShardCount:        len(shards),
		ShardDistribution: util.NewDistributionStats(shardSizes),
		Info:              "SizeBytes is an estimate based on sampled rows.",
	}

	return db.DatabaseInfo{
		SizeBytes:         perRow * rowCount,
		RowCount:          rowCount,
		DbType:            db.ImplMaple,
		Table:             maple.table,
		SupportedFeatures: features.Split(),
		Metadata:          meta,
	}
}

// SupportsFeature checks if the table supports the specified feature(s)
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

// Close drops all rows. Further calls return db.ErrClosed.
func (maple *mapleImpl) Close() error {
	if !maple.closed.CompareAndSwap(false, true) {
		return nil
	}
	maple.batchMu.Lock()
	defer maple.batchMu.Unlock()
	for _, shard := range maple.shards {
		shard.Clear()
	}
	return nil
}
