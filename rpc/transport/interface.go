package transport

import (
	"context"

	"github.com/kedaikopi/kopi/rpc/common"
)

// --------------------------------------------------------------------------
// Server Transport
// --------------------------------------------------------------------------

// ServerHandleFunc is called by a server transport for every received request.
// It takes the shard the request is addressed to and the serialized request,
// and returns the serialized response. ctx ends when the request times out or
// the client goes away.
type ServerHandleFunc func(ctx context.Context, shardId uint64, req []byte) (resp []byte)

// IRPCServerTransport is the interface for the server side of the RPC transport layer
type IRPCServerTransport interface {
	// RegisterHandler registers the handler for incoming requests.
	// It must be called before Listen.
	RegisterHandler(handler ServerHandleFunc)
	// Listen starts the transport and blocks until Close is called or the
	// listener fails. After Close it returns nil.
	Listen(config common.ServerConfig) error
	// Close stops accepting requests and closes the listener
	Close() error
}

// --------------------------------------------------------------------------
// Client Transport
// --------------------------------------------------------------------------

// IRPCClientTransport is the interface for the RPC client transport
type IRPCClientTransport interface {
	// Connect initializes the transport with the given configuration
	Connect(config common.ClientConfig) error
	// Send sends a request to the server and returns the response.
	// Cancelling ctx aborts the request.
	Send(ctx context.Context, shardId uint64, req []byte) (resp []byte, err error)
	// Close closes the transport connection
	Close() error
}
