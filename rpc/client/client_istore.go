package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kedaikopi/kopi/lib/db"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/rpc/common"
	"github.com/kedaikopi/kopi/rpc/serializer"
	"github.com/kedaikopi/kopi/rpc/transport"
)

// RPCStore is a store.IStore whose operations run on a remote shard
type RPCStore interface {
	store.IStore
	// Close closes the transport
	Close() error
}

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a client config, a transport and a serializer as parameters
// It connects the transport and returns the store
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (RPCStore, error) {
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Set(ctx context.Context, key string, value json.RawMessage) error {
	_, err := i.invoke(ctx, common.NewSetRequest(key, value))
	return err
}

func (i *rpcStore) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	resp, err := i.invoke(ctx, common.NewGetRequest(key))
	if err != nil {
		return nil, false, err
	}
	if !resp.Ok {
		return nil, false, nil
	}
	return resp.Value, true, nil
}

func (i *rpcStore) Delete(ctx context.Context, key string) error {
	_, err := i.invoke(ctx, common.NewDeleteRequest(key))
	return err
}

func (i *rpcStore) MSet(ctx context.Context, keys []string, values []json.RawMessage) error {
	// a length mismatch cannot be expressed on the wire
	if len(keys) != len(values) {
		return store.NewError(store.RetCInvalidOperation,
			fmt.Sprintf("got %d keys but %d values", len(keys), len(values)))
	}

	raw := make([][]byte, len(values))
	for idx, v := range values {
		raw[idx] = v
	}
	_, err := i.invoke(ctx, common.NewMSetRequest(keys, raw))
	return err
}

func (i *rpcStore) MGet(ctx context.Context, keys []string) ([]json.RawMessage, []bool, error) {
	resp, err := i.invoke(ctx, common.NewMGetRequest(keys))
	if err != nil {
		return nil, nil, err
	}
	if len(resp.Found) != len(keys) || len(resp.Values) != len(keys) {
		return nil, nil, store.NewError(store.RetCBackendError,
			fmt.Sprintf("MGet response has %d values and %d flags for %d keys", len(resp.Values), len(resp.Found), len(keys)))
	}

	values := make([]json.RawMessage, len(keys))
	for idx, found := range resp.Found {
		if found {
			values[idx] = resp.Values[idx]
		}
	}
	return values, resp.Found, nil
}

func (i *rpcStore) MDelete(ctx context.Context, keys []string) error {
	_, err := i.invoke(ctx, common.NewMDeleteRequest(keys))
	return err
}

func (i *rpcStore) GetByPrefix(ctx context.Context, prefix string) ([]json.RawMessage, error) {
	resp, err := i.invoke(ctx, common.NewGetByPrefixRequest(prefix))
	if err != nil {
		return nil, err
	}

	values := make([]json.RawMessage, len(resp.Values))
	for idx, v := range resp.Values {
		values[idx] = v
	}
	return values, nil
}

func (i *rpcStore) GetDBInfo(ctx context.Context) (db.DatabaseInfo, error) {
	resp, err := i.invoke(ctx, common.NewInfoRequest())
	if err != nil {
		return db.DatabaseInfo{}, err
	}

	var info db.DatabaseInfo
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return db.DatabaseInfo{}, store.WrapError(store.RetCBackendError, "could not decode table info", err)
	}
	return info, nil
}

func (i *rpcStore) Close() error {
	return i.transport.Close()
}
