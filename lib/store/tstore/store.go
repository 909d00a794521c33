package tstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/VictoriaMetrics/metrics"
	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/logger"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/cache"
)

var Logger = logger.GetLogger("store")

// Options configures a table store
type Options struct {
	Cache *cache.Cache // Optional read cache, nil disables caching
	Name  string       // Label for metrics and logs
}

type storeImpl struct {
	table db.Table
	cache *cache.Cache
	name  string

	// fillMu orders cache fills from backend reads against deletes. A read
	// only fills the cache if no delete completed since it started.
	fillMu  sync.RWMutex
	deletes uint64
}

// NewTableStore creates a store on top of the table returned by factory.
// The factory is called exactly once.
func NewTableStore(factory store.TableFactory, opts *Options) (store.IStore, error) {
	if opts == nil {
		opts = &Options{}
	}
	if opts.Name == "" {
		opts.Name = "default"
	}

	table, err := factory()
	if err != nil {
		return nil, store.WrapError(store.RetCBackendError, "could not create table", err)
	}

	Logger.Debugf("table store %s created (table=%s, engine=%s, cache=%v)",
		opts.Name, table.GetInfo().Table, table.GetInfo().DbType, opts.Cache != nil)

	return &storeImpl{
		table: table,
		cache: opts.Cache,
		name:  opts.Name,
	}, nil
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

func (s *storeImpl) require(feature db.Feature, op string) error {
	if !s.table.SupportsFeature(feature) {
		return store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("%s operation is not supported", op))
	}
	return nil
}

// backend runs one table call and records its latency and errors.
func (s *storeImpl) backend(op string, call func() error) error {
	start := time.Now()
	err := call()
	metrics.GetOrCreateHistogram(fmt.Sprintf(`kopi_backend_duration_seconds{store=%q,op=%q}`, s.name, op)).UpdateDuration(start)
	if err != nil {
		metrics.GetOrCreateCounter(fmt.Sprintf(`kopi_backend_errors_total{store=%q,op=%q}`, s.name, op)).Inc()
		Logger.Warnf("%s: backend %s failed: %v", s.name, op, err)
		return store.WrapError(store.RetCBackendError, fmt.Sprintf("backend %s failed", op), err)
	}
	return nil
}

func validateKey(key string) error {
	if key == "" {
		return store.NewError(store.RetCInvalidOperation, "key must not be empty")
	}
	return nil
}

func validateValue(key string, value json.RawMessage) error {
	if !json.Valid(value) {
		return store.NewError(store.RetCInvalidOperation, fmt.Sprintf("value for key %q is not valid JSON", key))
	}
	return nil
}

func (s *storeImpl) cacheSet(key string, value json.RawMessage) {
	if s.cache != nil {
		s.cache.Set(key, value)
	}
}

func (s *storeImpl) cacheDelete(keys ...string) {
	if s.cache != nil {
		s.cache.Delete(keys...)
	}
}

// readEpoch returns the number of completed deletes, taken before a backend read.
func (s *storeImpl) readEpoch() uint64 {
	s.fillMu.RLock()
	defer s.fillMu.RUnlock()
	return s.deletes
}

// fill evicts missing keys and caches rows after a backend read that started
// at epoch. Nothing is cached if a delete completed in between.
func (s *storeImpl) fill(epoch uint64, rows []db.Row, missing []string) {
	if s.cache == nil {
		return
	}
	s.cache.Delete(missing...)

	s.fillMu.RLock()
	defer s.fillMu.RUnlock()
	if s.deletes != epoch {
		return
	}
	for _, row := range rows {
		s.cache.Set(row.Key, row.Value)
	}
}

// evictDeleted runs after the backend delete. It evicts keys that a
// concurrent read may have cached again and invalidates reads in flight.
func (s *storeImpl) evictDeleted(keys ...string) {
	if s.cache == nil {
		return
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	s.deletes++
	s.cache.Delete(keys...)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Set(ctx context.Context, key string, value json.RawMessage) error {
	if err := s.require(db.FeatureUpsert, "Set"); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if err := validateValue(key, value); err != nil {
		return err
	}

	if err := s.backend("upsert", func() error {
		return s.table.Upsert(ctx, []db.Row{{Key: key, Value: value}})
	}); err != nil {
		return err
	}
	s.cacheSet(key, value)
	return nil
}

func (s *storeImpl) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if err := s.require(db.FeatureSelect, "Get"); err != nil {
		return nil, false, err
	}

	if s.cache != nil {
		if v, ok := s.cache.Get(key); ok {
			return v, true, nil
		}
	}

	var (
		value json.RawMessage
		found bool
	)
	epoch := s.readEpoch()
	if err := s.backend("select", func() (err error) {
		value, found, err = s.table.Select(ctx, key)
		return err
	}); err != nil {
		return nil, false, err
	}
	if !found {
		return nil, false, nil
	}
	s.fill(epoch, []db.Row{{Key: key, Value: value}}, nil)
	return value, true, nil
}

// Delete evicts the cache entry before and after the backend call. A failed
// delete never leaves a value behind that the backend may no longer have.
func (s *storeImpl) Delete(ctx context.Context, key string) error {
	if err := s.require(db.FeatureDelete, "Delete"); err != nil {
		return err
	}
	s.cacheDelete(key)
	err := s.backend("delete", func() error {
		return s.table.Delete(ctx, []string{key})
	})
	s.evictDeleted(key)
	return err
}

func (s *storeImpl) MSet(ctx context.Context, keys []string, values []json.RawMessage) error {
	if err := s.require(db.FeatureUpsert, "MSet"); err != nil {
		return err
	}
	if len(keys) != len(values) {
		return store.NewError(store.RetCInvalidOperation,
			fmt.Sprintf("MSet needs as many values as keys (got %d keys and %d values)", len(keys), len(values)))
	}
	if len(keys) == 0 {
		return nil
	}

	rows := make([]db.Row, len(keys))
	for i, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
		if err := validateValue(key, values[i]); err != nil {
			return err
		}
		rows[i] = db.Row{Key: key, Value: values[i]}
	}

	if err := s.backend("upsert", func() error {
		return s.table.Upsert(ctx, rows)
	}); err != nil {
		return err
	}
	for _, row := range rows {
		s.cacheSet(row.Key, row.Value)
	}
	return nil
}

// MGet answers from the cache only if every key is cached. Otherwise all keys
// are read in one backend request and the result is built from that alone.
func (s *storeImpl) MGet(ctx context.Context, keys []string) ([]json.RawMessage, []bool, error) {
	if err := s.require(db.FeatureSelectIn, "MGet"); err != nil {
		return nil, nil, err
	}

	values := make([]json.RawMessage, len(keys))
	found := make([]bool, len(keys))
	if len(keys) == 0 {
		return values, found, nil
	}

	if s.cache != nil {
		if cached, ok := s.cache.GetAll(keys); ok {
			for i := range found {
				found[i] = true
			}
			return cached, found, nil
		}
	}

	var rows []db.Row
	epoch := s.readEpoch()
	if err := s.backend("select_in", func() (err error) {
		rows, err = s.table.SelectIn(ctx, keys)
		return err
	}); err != nil {
		return nil, nil, err
	}

	byKey := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		byKey[row.Key] = row.Value
	}

	var missing []string
	for i, key := range keys {
		v, ok := byKey[key]
		if !ok {
			missing = append(missing, key)
			continue
		}
		// duplicate keys must not share one buffer
		values[i] = append(json.RawMessage(nil), v...)
		found[i] = true
	}
	s.fill(epoch, rows, missing)
	return values, found, nil
}

func (s *storeImpl) MDelete(ctx context.Context, keys []string) error {
	if err := s.require(db.FeatureDelete, "MDelete"); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	s.cacheDelete(keys...)
	err := s.backend("delete", func() error {
		return s.table.Delete(ctx, keys)
	})
	s.evictDeleted(keys...)
	return err
}

// GetByPrefix always reads the backend. The cache only learns from the result.
func (s *storeImpl) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	if err := s.require(db.FeatureSelectPrefix, "GetByPrefix"); err != nil {
		return nil, err
	}

	var rows []db.Row
	epoch := s.readEpoch()
	if err := s.backend("select_prefix", func() (err error) {
		rows, err = s.table.SelectPrefix(ctx, prefix)
		return err
	}); err != nil {
		return nil, err
	}

	values := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		values[i] = row.Value
	}
	s.fill(epoch, rows, nil)
	return values, nil
}

func (s *storeImpl) GetDBInfo(_ context.Context) (db.DatabaseInfo, error) {
	info := s.table.GetInfo()

	cacheSize := -1
	if s.cache != nil {
		cacheSize = s.cache.Len()
	}
	info.Metadata = &struct {
		Store        string      `json:"store"`
		CacheEntries int         `json:"cache_entries"`
		Table        interface{} `json:"table"`
	}{
		Store:        s.name,
		CacheEntries: cacheSize,
		Table:        info.Metadata,
	}
	return info, nil
}

// Close closes the underlying table.
func (s *storeImpl) Close() error {
	if s.cache != nil {
		s.cache.Clear()
	}
	return s.table.Close()
}
