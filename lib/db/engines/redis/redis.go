package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-redis/redis/v8"
	"github.com/kedaikopi/kopi/lib/db"
)

// scanCount is the HSCAN page size hint
const scanCount = 512

// redisImpl keeps the table in one redis hash: field = key, value = JSON.
// HSET and HDEL with many fields are single commands, so batches are atomic.
type redisImpl struct {
	client    *redis.Client
	ownClient bool
	table     string
	closed    atomic.Bool
}

// DBOptions configures the redis table
type DBOptions struct {
	Addr     string        // host:port of the redis server
	Password string        // optional
	DB       int           // redis database number
	Table    string        // Name of the hash holding the rows
	Client   *redis.Client // Optional. Used instead of Addr/Password/DB, not closed by Close.
}

// NewRedisDB connects to redis and checks the connection with PING.
func NewRedisDB(ctx context.Context, opts DBOptions) (db.Table, error) {
	if opts.Table == "" {
		opts.Table = db.DefaultTableName
	}

	impl := &redisImpl{
		client: opts.Client,
		table:  opts.Table,
	}
	if impl.client == nil {
		impl.client = redis.NewClient(&redis.Options{
			Addr:     opts.Addr,
			Password: opts.Password,
			DB:       opts.DB,
		})
		impl.ownClient = true
	}

	if err := impl.client.Ping(ctx).Err(); err != nil {
		if impl.ownClient {
			_ = impl.client.Close()
		}
		return nil, fmt.Errorf("could not reach redis at %s: %w", opts.Addr, err)
	}
	return impl, nil
}

// --------------------------------------------------------------------------
// Write Operations
// --------------------------------------------------------------------------

func (r *redisImpl) Upsert(ctx context.Context, rows []db.Row) error {
	if r.closed.Load() {
		return db.ErrClosed
	}
	if len(rows) == 0 {
		return nil
	}

	args := make([]interface{}, 0, 2*len(rows))
	for _, row := range rows {
		args = append(args, row.Key, []byte(row.Value))
	}
	return r.client.HSet(ctx, r.table, args...).Err()
}

func (r *redisImpl) Delete(ctx context.Context, keys []string) error {
	if r.closed.Load() {
		return db.ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.HDel(ctx, r.table, keys...).Err()
}

// --------------------------------------------------------------------------
// Read Operations
// --------------------------------------------------------------------------

func (r *redisImpl) Select(ctx context.Context, key string) (json.RawMessage, bool, error) {
	if r.closed.Load() {
		return nil, false, db.ErrClosed
	}

	v, err := r.client.HGet(ctx, r.table, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, true, nil
}

func (r *redisImpl) SelectIn(ctx context.Context, keys []string) ([]db.Row, error) {
	if r.closed.Load() {
		return nil, db.ErrClosed
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := r.client.HMGet(ctx, r.table, keys...).Result()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keys))
	rows := make([]db.Row, 0, len(keys))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		if _, dup := seen[keys[i]]; dup {
			continue
		}
		seen[keys[i]] = struct{}{}
		rows = append(rows, db.Row{Key: keys[i], Value: json.RawMessage(s)})
	}
	return rows, nil
}

// SelectPrefix walks the hash with HSCAN. HSCAN may report a field more than
// once, so results are deduplicated.
func (r *redisImpl) SelectPrefix(ctx context.Context, prefix string) ([]db.Row, error) {
	if r.closed.Load() {
		return nil, db.ErrClosed
	}

	match := escapeGlob(prefix) + "*"
	found := make(map[string]json.RawMessage)

	var cursor uint64
	for {
		page, next, err := r.client.HScan(ctx, r.table, cursor, match, scanCount).Result()
		if err != nil {
			return nil, err
		}
		for i := 0; i+1 < len(page); i += 2 {
			if strings.HasPrefix(page[i], prefix) {
				found[page[i]] = json.RawMessage(page[i+1])
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}

	rows := make([]db.Row, 0, len(found))
	for k, v := range found {
		rows = append(rows, db.Row{Key: k, Value: v})
	}
	return rows, nil
}

// escapeGlob escapes the characters redis treats specially in MATCH patterns.
func escapeGlob(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\', '^':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}

// --------------------------------------------------------------------------
// Features and Metadata
// --------------------------------------------------------------------------

const features = db.FeatureCRUD | db.FeatureAtomicBatch | db.FeaturePersistent

func (r *redisImpl) SupportsFeature(feature db.Feature) bool {
	return features&feature == feature
}

func (r *redisImpl) GetInfo() db.DatabaseInfo {
	info := db.DatabaseInfo{
		DbType:            db.ImplRedis,
		Table:             r.table,
		SupportedFeatures: features.Split(),
	}
	if r.closed.Load() {
		return info
	}

	ctx := context.Background()
	if n, err := r.client.HLen(ctx, r.table).Result(); err == nil {
		info.RowCount = int(n)
	}
	// MEMORY USAGE is not available everywhere
	if n, err := r.client.MemoryUsage(ctx, r.table).Result(); err == nil {
		info.SizeBytes = int(n)
	}

	opts := r.client.Options()
	info.Metadata = &struct {
		Addr string `json:"addr"`
		DB   int    `json:"db"`
		Hash string `json:"hash"`
	}{Addr: opts.Addr, DB: opts.DB, Hash: r.table}
	return info
}

func (r *redisImpl) Close() error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}
	if r.ownClient {
		return r.client.Close()
	}
	return nil
}
