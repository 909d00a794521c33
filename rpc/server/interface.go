package server

import (
	"context"

	"github.com/kedaikopi/kopi/lib/store"
	"github.com/kedaikopi/kopi/rpc/common"
)

// IRPCServerAdapter is the interface for all RPC server adapters
// It is responsible for handling requests and responses
type IRPCServerAdapter interface {
	// Handle handles a request against store and returns the response.
	// Errors are reported inside the response, never as a nil response.
	Handle(ctx context.Context, req *common.Message, store store.IStore) (resp *common.Message)
}
