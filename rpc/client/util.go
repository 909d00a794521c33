package client

import (
	"context"
	"fmt"

	"github.com/kedaikopi/kopi/lib/logger"
	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/rpc/common"
	"github.com/kedaikopi/kopi/rpc/serializer"
	"github.com/kedaikopi/kopi/rpc/transport"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// invoke sends req to the adapter's shard, see invokeRPCRequest
func (a *rpcClientAdapter) invoke(ctx context.Context, req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(ctx, a.shardId, req, a.transport, a.serializer)
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type.
// All returned errors are *store.Error. Errors raised by the remote store keep their code,
// everything else is reported as store.RetCBackendError.
func invokeRPCRequest(ctx context.Context, shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, store.WrapError(store.RetCInternalError, "could not encode request", err)
	}

	respBytes, err := transport.Send(ctx, shardId, reqBytes)
	if err != nil {
		Logger.Debugf("%s request to shard %d failed: %v", req.MsgType, shardId, err)
		return nil, store.WrapError(store.RetCBackendError, fmt.Sprintf("rpc %s request failed", req.MsgType), err)
	}

	resp := &common.Message{}
	if err := serializer.Deserialize(respBytes, resp); err != nil {
		return nil, store.WrapError(store.RetCBackendError, "could not decode response", err)
	}

	// Check if the response is an error response
	if resp.MsgType == common.MsgTError || resp.Err != "" {
		code := store.RetCode(resp.Code)
		if code == store.RetCSuccess {
			code = store.RetCBackendError
		}
		return nil, store.NewError(code, resp.Err)
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, store.NewError(store.RetCBackendError,
			fmt.Sprintf("unexpected message type: %s, expected %s", resp.MsgType, req.MsgType))
	}

	return resp, nil
}
