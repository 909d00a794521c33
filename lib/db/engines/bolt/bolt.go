package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/kedaikopi/kopi/lib/db"
	bolt "go.etcd.io/bbolt"
)

// --------------------------------------------------------------------------
// Core Bolt table structure
// --------------------------------------------------------------------------

// boltImpl keeps the table in a single bbolt bucket named after the table.
// bbolt allows one writer and many readers, every batch is one transaction.
type boltImpl struct {
	db     *bolt.DB
	table  string
	bucket []byte
	closed atomic.Bool
}

// DBOptions configures the bolt table
type DBOptions struct {
	Path    string        // Database file, created if missing
	Table   string        // Bucket name
	Timeout time.Duration // How long to wait for the file lock (0 = forever)
	NoSync  bool          // Skip fsync after each commit
}

// NewBoltDB opens (or creates) the database file and makes sure the table bucket exists.
func NewBoltDB(opts DBOptions) (db.Table, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("bolt: path is required")
	}
	if opts.Table == "" {
		opts.Table = db.DefaultTableName
	}

	handle, err := bolt.Open(opts.Path, 0o600, &bolt.Options{Timeout: opts.Timeout, NoSync: opts.NoSync})
	if err != nil {
		return nil, fmt.Errorf("could not open bolt database at %s: %w", opts.Path, err)
	}

	impl := &boltImpl{
		db:     handle,
		table:  opts.Table,
		bucket: []byte(opts.Table),
	}

	if err := handle.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(impl.bucket)
		return err
	}); err != nil {
		_ = handle.Close()
		return nil, fmt.Errorf("could not ensure bucket %s exists: %w", opts.Table, err)
	}

	return impl, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (b *boltImpl) Upsert(_ context.Context, rows []db.Row) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for _, row := range rows {
			if err := bucket.Put([]byte(row.Key), row.Value); err != nil {
				return fmt.Errorf("put %s: %w", row.Key, err)
			}
		}
		return nil
	})
}

func (b *boltImpl) Delete(_ context.Context, keys []string) error {
	if b.closed.Load() {
		return db.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}

	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		for _, key := range keys {
			if err := bucket.Delete([]byte(key)); err != nil {
				return fmt.Errorf("delete %s: %w", key, err)
			}
		}
		return nil
	})
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

// Values returned by bbolt are only valid inside the transaction, so every
// read copies them out.

func (b *boltImpl) Select(_ context.Context, key string) (value json.RawMessage, found bool, err error) {
	if b.closed.Load() {
		return nil, false, db.ErrClosed
	}

	err = b.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(b.bucket).Get([]byte(key)); v != nil {
			value = append(json.RawMessage(nil), v...)
			found = true
		}
		return nil
	})
	return value, found, err
}

func (b *boltImpl) SelectIn(_ context.Context, keys []string) ([]db.Row, error) {
	if b.closed.Load() {
		return nil, db.ErrClosed
	}

	rows := make([]db.Row, 0, len(keys))
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(b.bucket)
		seen := make(map[string]struct{}, len(keys))
		for _, key := range keys {
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			if v := bucket.Get([]byte(key)); v != nil {
				rows = append(rows, db.Row{Key: key, Value: append(json.RawMessage(nil), v...)})
			}
		}
		return nil
	})
	return rows, err
}

func (b *boltImpl) SelectPrefix(_ context.Context, prefix string) ([]db.Row, error) {
	if b.closed.Load() {
		return nil, db.ErrClosed
	}

	var rows []db.Row
	p := []byte(prefix)
	err := b.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(b.bucket).Cursor()
		for k, v := c.Seek(p); k != nil && bytes.HasPrefix(k, p); k, v = c.Next() {
			rows = append(rows, db.Row{Key: string(k), Value: append(json.RawMessage(nil), v...)})
		}
		return nil
	})
	return rows, err
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

const features = db.FeatureCRUD | db.FeatureAtomicBatch | db.FeaturePersistent

func (b *boltImpl) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

func (b *boltImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplBolt,
		Table:             b.table,
		SupportedFeatures: features.Split(),
	}
	if b.closed.Load() {
		return info
	}

	meta := &struct {
		Path      string `json:"path"`
		Depth     int    `json:"depth"`
		LeafPages int    `json:"leaf_pages"`
		FreePages int    `json:"free_pages"`
	}{Path: b.db.Path()}

	_ = b.db.View(func(tx *bolt.Tx) error {
		stats := tx.Bucket(b.bucket).Stats()
		info.RowCount = stats.KeyN
		info.SizeBytes = stats.LeafInuse + stats.BranchInuse
		meta.Depth = stats.Depth
		meta.LeafPages = stats.LeafPageN
		return nil
	})
	meta.FreePages = b.db.Stats().FreePageN
	if fi, err := os.Stat(b.db.Path()); err == nil && int(fi.Size()) > info.SizeBytes {
		info.SizeBytes = int(fi.Size())
	}

	info.Metadata = meta
	return info
}

func (b *boltImpl) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	return b.db.Close()
}
