package level

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/kedaikopi/kopi/lib/db"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/storage"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// keySep separates the table name from the row key. Table names never contain it.
const keySep = 0x00

// levelImpl stores the rows of one table in a LevelDB database.
// Every physical key is "<table>\x00<key>", which keeps tables apart and
// lets a prefix scan map onto a LevelDB range.
type levelImpl struct {
	db     *leveldb.DB
	table  string
	path   string
	prefix []byte
	closed atomic.Bool
}

// DBOptions configures the level table
type DBOptions struct {
	Path  string // Database directory. Empty keeps everything in memory.
	Table string // Name of the table
	Sync  bool   // fsync every write batch
}

// NewLevelDB opens (or creates) the LevelDB database for the table.
func NewLevelDB(opts DBOptions) (db.Table, error) {
	if opts.Table == "" {
		opts.Table = db.DefaultTableName
	}

	var (
		handle *leveldb.DB
		err    error
	)
	if opts.Path == "" {
		handle, err = leveldb.Open(storage.NewMemStorage(), nil)
	} else {
		handle, err = leveldb.OpenFile(opts.Path, &opt.Options{NoSync: !opts.Sync})
	}
	if err != nil {
		return nil, fmt.Errorf("could not open leveldb at %q: %w", opts.Path, err)
	}

	return &levelImpl{
		db:     handle,
		table:  opts.Table,
		path:   opts.Path,
		prefix: append([]byte(opts.Table), keySep),
	}, nil
}

func (l *levelImpl) physical(key string) []byte {
	k := make([]byte, 0, len(l.prefix)+len(key))
	k = append(k, l.prefix...)
	return append(k, key...)
}

func (l *levelImpl) logical(k []byte) string {
	return string(k[len(l.prefix):])
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (l *levelImpl) Upsert(_ context.Context, rows []db.Row) error {
	if l.closed.Load() {
		return db.ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}

	batch := new(leveldb.Batch)
	for _, row := range rows {
		batch.Put(l.physical(row.Key), row.Value)
	}
	return l.db.Write(batch, nil)
}

func (l *levelImpl) Delete(_ context.Context, keys []string) error {
	if l.closed.Load() {
		return db.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}

	batch := new(leveldb.Batch)
	for _, key := range keys {
		batch.Delete(l.physical(key))
	}
	return l.db.Write(batch, nil)
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (l *levelImpl) Select(_ context.Context, key string) (json.RawMessage, bool, error) {
	if l.closed.Load() {
		return nil, false, db.ErrClosed
	}

	v, err := l.db.Get(l.physical(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return append(json.RawMessage(nil), v...), true, nil
}

// SelectIn reads all keys from one snapshot.
func (l *levelImpl) SelectIn(_ context.Context, keys []string) ([]db.Row, error) {
	if l.closed.Load() {
		return nil, db.ErrClosed
	}

	snap, err := l.db.GetSnapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Release()

	seen := make(map[string]struct{}, len(keys))
	rows := make([]db.Row, 0, len(keys))
	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		v, err := snap.Get(l.physical(key), nil)
		if errors.Is(err, leveldb.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		rows = append(rows, db.Row{Key: key, Value: append(json.RawMessage(nil), v...)})
	}
	return rows, nil
}

func (l *levelImpl) SelectPrefix(_ context.Context, prefix string) ([]db.Row, error) {
	if l.closed.Load() {
		return nil, db.ErrClosed
	}

	iter := l.db.NewIterator(util.BytesPrefix(l.physical(prefix)), nil)
	defer iter.Release()

	var rows []db.Row
	for iter.Next() {
		rows = append(rows, db.Row{
			Key:   l.logical(iter.Key()),
			Value: append(json.RawMessage(nil), iter.Value()...),
		})
	}
	return rows, iter.Error()
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

const features = db.FeatureCRUD | db.FeatureAtomicBatch | db.FeaturePersistent

func (l *levelImpl) SupportsFeature(feature db.Feature) bool {
	if feature&db.FeaturePersistent != 0 && l.path == "" {
		return false
	}
	return features&feature == feature
}

func (l *levelImpl) GetInfo() db.DatabaseInfo {
	supported := features
	if l.path == "" {
		supported &^= db.FeaturePersistent
	}
	info := db.DatabaseInfo{
		DbType:            db.ImplLevel,
		Table:             l.table,
		SupportedFeatures: supported.Split(),
	}
	if l.closed.Load() {
		return info
	}

	iter := l.db.NewIterator(util.BytesPrefix(l.prefix), nil)
	for iter.Next() {
		info.RowCount++
	}
	iter.Release()

	if sizes, err := l.db.SizeOf([]util.Range{*util.BytesPrefix(l.prefix)}); err == nil {
		info.SizeBytes = int(sizes.Sum())
	}

	meta := &struct {
		Path       string `json:"path"`
		InMemory   bool   `json:"in_memory"`
		Compaction string `json:"compaction"`
	}{Path: l.path, InMemory: l.path == ""}
	if stats, err := l.db.GetProperty("leveldb.stats"); err == nil {
		meta.Compaction = stats
	}
	info.Metadata = meta
	return info
}

func (l *levelImpl) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return nil
	}
	return l.db.Close()
}
