// Package server implements the RPC server of the key value store.
// It hosts one store per shard and translates incoming messages into store
// calls through an adapter.
//
// The package focuses on:
//   - Server-side RPC request handling for all store operations
//   - Adapter pattern to decouple application logic from RPC mechanisms
//   - Building each shard's table engine and optional read cache from the configuration
//   - Request metrics and an optional Prometheus endpoint
//
// Key Components:
//
//   - IRPCServerAdapter: Interface defining the contract for all server adapters,
//     with the Handle method that processes incoming requests against a store.IStore.
//
//   - NewIStoreServerAdapter: Factory function creating an adapter for key-value
//     store operations, translating RPC requests to store.IStore method calls.
//     Table info is returned as JSON in the Meta field of the response.
//
//   - NewRPCServer: Factory function creating a configured server with the specified
//     transport and serializer mechanisms.
//
// Usage Example:
//
//	config := common.ServerConfig{
//	  Shards: []common.ServerShard{
//	    {ShardID: 100, Type: common.ShardTypeMaple, Cache: true},
//	    {ShardID: 200, Type: common.ShardTypeBolt},
//	  },
//	  Table: "kv_store",
//	  DataDir: "data",
//	  Endpoint: "0.0.0.0:8080",
//	  MetricsEndpoint: "0.0.0.0:9090",
//	  TimeoutSecond: 5,
//	  LogLevel: "info",
//	}
//
//	s := server.NewRPCServer(
//	  config,
//	  tcp.NewTCPDefaultServerTransport(),
//	  serializer.NewBinarySerializer(),
//	)
//
//	if err := s.Serve(); err != nil {
//	  log.Fatalf("Server error: %v", err)
//	}
//
// Shard engines:
//
//   - maple: in-memory table. With a data directory the table is loaded from
//     <table>_<id>.maple at startup and written back on Shutdown.
//
//   - bolt, level: embedded on-disk tables, one file (or directory) per shard
//     in the data directory.
//
//   - redis: one hash per shard on the configured redis server.
//
//   - s3: one object per row below <table>_<id>/ in the configured bucket.
//
// Every shard's table is named <table>_<id>, so several shards can share one
// redis server or bucket.
//
// Metrics:
//
//	kopi_rpc_requests_total{type}, kopi_rpc_errors_total{type} and
//	kopi_rpc_request_duration_seconds{type}, next to the store and cache
//	metrics. They are served on /metrics when MetricsEndpoint is set.
//
// Thread Safety:
//
//	The server implementation is thread-safe and can handle concurrent requests
//	across multiple connections. Each request is processed independently.
//	Serve should be called only once. Shutdown may be called from any goroutine.
package server
