package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/rpc/common"
)

func NewIStoreServerAdapter() IRPCServerAdapter {
	return &iStoreServerAdapterImpl{}
}

type iStoreServerAdapterImpl struct{}

func (adapter *iStoreServerAdapterImpl) Handle(ctx context.Context, req *common.Message, s store.IStore) *common.Message {
	if s == nil {
		return common.NewErrorResponse("handler: store is nil")
	}

	switch req.MsgType {
	case common.MsgTKVSet:
		err := s.Set(ctx, req.Key, req.Value)
		return common.NewSetResponse(err)
	case common.MsgTKVGet:
		val, ok, err := s.Get(ctx, req.Key)
		return common.NewGetResponse(val, ok, err)
	case common.MsgTKVDelete:
		err := s.Delete(ctx, req.Key)
		return common.NewDeleteResponse(err)
	case common.MsgTKVMSet:
		err := s.MSet(ctx, req.Keys, toRaw(req.Values))
		return common.NewMSetResponse(err)
	case common.MsgTKVMGet:
		vals, found, err := s.MGet(ctx, req.Keys)
		return common.NewMGetResponse(fromRaw(vals), found, err)
	case common.MsgTKVMDelete:
		err := s.MDelete(ctx, req.Keys)
		return common.NewMDeleteResponse(err)
	case common.MsgTKVGetByPrefix:
		vals, err := s.GetByPrefix(ctx, req.Key)
		return common.NewGetByPrefixResponse(fromRaw(vals), err)
	case common.MsgTKVInfo:
		info, err := s.GetDBInfo(ctx)
		if err != nil {
			return common.NewInfoResponse(nil, err)
		}
		meta, err := json.Marshal(info)
		if err != nil {
			return common.NewInfoResponse(nil, store.WrapError(store.RetCInternalError, "could not encode table info", err))
		}
		return common.NewInfoResponse(meta, nil)
	default:
		return common.NewErrorResponse(
			fmt.Sprintf("RPC IStoreAdapter - Unsupported message type: %s", req.MsgType),
		)
	}
}

// toRaw and fromRaw convert between wire values and JSON documents.
// Both keep nil entries and share the underlying arrays.

func toRaw(values [][]byte) []json.RawMessage {
	if values == nil {
		return nil
	}
	out := make([]json.RawMessage, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func fromRaw(values []json.RawMessage) [][]byte {
	if values == nil {
		return nil
	}
	out := make([][]byte, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
