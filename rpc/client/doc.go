// Package client implements the RPC client of the key-value store.
// It provides an implementation of the store.IStore interface that sends
// every operation to one shard of a remote server.
//
// The package focuses on:
//   - Transparent RPC access to a remote store
//   - Integration with the transport and serialization layers
//   - Error handling and conversion between RPC and store errors
//
// Key Components:
//
//   - NewRPCStore: Factory function that connects a transport and returns an RPCStore.
//     The RPCStore implements store.IStore and forwards all operations to the
//     configured shard. Close releases the transport.
//
// Errors:
//
//	Every error returned by an RPCStore is a *store.Error. Errors raised by the
//	remote store keep their code, so errors.Is(err, store.ErrInvalidOperation)
//	works across the wire. Transport and decoding failures are reported as
//	store.RetCBackendError and wrap the underlying error.
//
// Usage Example:
//
//	config := common.ClientConfig{
//	  Endpoints:              []string{"localhost:8080"},
//	  TimeoutSecond:          5,
//	  RetryCount:             3,
//	  ConnectionsPerEndpoint: 1,
//	}
//
//	s, err := client.NewRPCStore(1, config, tcp.NewTCPClientTransport(), serializer.NewBinarySerializer())
//	if err != nil {
//	  panic(err)
//	}
//	defer s.Close()
//
//	// scope all keys of one user
//	alice := store.WithScope(s, "alice")
//	_ = alice.Set(ctx, "cart:coffee1", json.RawMessage(`{"quantity":2}`))
//	value, found, _ := alice.Get(ctx, "cart:coffee1")
//
// Performance Considerations:
//
//   - For applications that frequently send large payloads, increasing ConnectionsPerEndpoint
//     can improve throughput by allowing parallel requests.
//
//   - The choice of serializer significantly affects performance. The binary serializer
//     provides the best performance and smallest payload size.
//
// Thread Safety:
//
//	An RPCStore is safe for concurrent use by multiple goroutines.
package client
