package server

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/db/engines/bolt"
	"github.com/kedaikopi/kopi/lib/db/engines/level"
	"github.com/kedaikopi/kopi/lib/db/engines/maple"
	"github.com/kedaikopi/kopi/lib/db/engines/redis"
	"github.com/kedaikopi/kopi/lib/db/engines/s3"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/lib/store/cache"
	"github.com/kedaikopi/kopi/lib/store/tstore"
	"github.com/kedaikopi/kopi/rpc/common"
)

// serverShard is a struct that represents a shard in the RPC server
// It contains the store it encapsulates, the adapter that handles requests
// for the store and the table below the store
type serverShard struct {
	Config   common.ServerShard
	Store    store.IStore
	Adapter  IRPCServerAdapter
	table    db.Table
	snapshot string // maple snapshot file, empty if the shard is not snapshotted
}

// tableName returns the name of the shard's table, e.g. kv_store_100
func tableName(config common.ServerConfig, shardID uint64) string {
	name := config.Table
	if name == "" {
		name = db.DefaultTableName
	}
	return fmt.Sprintf("%s_%d", name, shardID)
}

// openShard opens the table of one shard and builds its store
func openShard(ctx context.Context, config common.ServerConfig, shardConfig common.ServerShard) (*serverShard, error) {
	name := tableName(config, shardConfig.ShardID)
	shard := &serverShard{
		Config:  shardConfig,
		Adapter: NewIStoreServerAdapter(),
	}

	table, err := openTable(ctx, config, shardConfig.Type, name)
	if err != nil {
		return nil, fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
	}
	shard.table = table

	// in-memory tables survive restarts through a snapshot in the data dir
	if config.DataDir != "" && table.SupportsFeature(db.FeatureSnapshot) {
		shard.snapshot = filepath.Join(config.DataDir, name+".maple")
		if err := shard.loadSnapshot(); err != nil {
			_ = table.Close()
			return nil, fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
		}
	}

	opts := &tstore.Options{Name: name}
	if shardConfig.Cache {
		opts.Cache = cache.New(name)
	}
	shard.Store, err = tstore.NewTableStore(func() (db.Table, error) { return table, nil }, opts)
	if err != nil {
		_ = table.Close()
		return nil, fmt.Errorf("shard %d: %w", shardConfig.ShardID, err)
	}

	return shard, nil
}

// openTable creates the table for the given engine
func openTable(ctx context.Context, config common.ServerConfig, engine common.ServerShardType, name string) (db.Table, error) {
	switch engine {
	case common.ShardTypeMaple:
		return maple.NewMapleDB(&maple.DBOptions{Table: name}), nil

	case common.ShardTypeBolt:
		if err := ensureDataDir(config.DataDir); err != nil {
			return nil, err
		}
		return bolt.NewBoltDB(bolt.DBOptions{
			Path:    filepath.Join(config.DataDir, name+".bolt"),
			Table:   name,
			Timeout: 5 * time.Second,
		})

	case common.ShardTypeLevel:
		if err := ensureDataDir(config.DataDir); err != nil {
			return nil, err
		}
		return level.NewLevelDB(level.DBOptions{
			Path:  filepath.Join(config.DataDir, name+".level"),
			Table: name,
		})

	case common.ShardTypeRedis:
		if config.Redis.Addr == "" {
			return nil, fmt.Errorf("redis engine needs a redis address")
		}
		return redis.NewRedisDB(ctx, redis.DBOptions{
			Addr:     config.Redis.Addr,
			Password: config.Redis.Password,
			DB:       config.Redis.DB,
			Table:    name,
		})

	case common.ShardTypeS3:
		if config.S3.Bucket == "" {
			return nil, fmt.Errorf("s3 engine needs a bucket")
		}
		return s3.NewS3DB(ctx, s3.DBOptions{
			Bucket:   config.S3.Bucket,
			Region:   config.S3.Region,
			Endpoint: config.S3.Endpoint,
			Table:    name,
		})

	default:
		return nil, fmt.Errorf("invalid shard type: %q", engine)
	}
}

func ensureDataDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("file based engines need a data directory")
	}
	return os.MkdirAll(dir, 0o755)
}

// --------------------------------------------------------------------------
// Snapshots
// --------------------------------------------------------------------------

func (shard *serverShard) loadSnapshot() error {
	snap, ok := shard.table.(db.Snapshotter)
	if !ok {
		return nil
	}

	f, err := os.Open(shard.snapshot)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	if err := snap.Load(f); err != nil {
		return fmt.Errorf("load snapshot %s: %w", shard.snapshot, err)
	}
	Logger.Infof("loaded snapshot %s for shard %d", shard.snapshot, shard.Config.ShardID)
	return nil
}

// saveSnapshot writes the table to a temporary file and renames it over the
// previous snapshot
func (shard *serverShard) saveSnapshot() error {
	snap, ok := shard.table.(db.Snapshotter)
	if !ok || shard.snapshot == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(shard.snapshot), 0o755); err != nil {
		return err
	}

	tmp := shard.snapshot + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := snap.Save(f); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, shard.snapshot)
}

// close saves the snapshot (if any) and closes the table
func (shard *serverShard) close() error {
	err := shard.saveSnapshot()
	if err != nil {
		Logger.Errorf("failed to save snapshot for shard %d: %v", shard.Config.ShardID, err)
	}
	return errors.Join(err, shard.table.Close())
}
