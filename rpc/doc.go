// Package rpc exposes kopi stores over the network. It is the communication
// layer between clients and a server hosting one store per shard.
//
// The package is organized into several subpackages:
//
//   - common: Core data structures used across the RPC system,
//     including the Message protocol and the server and client configuration.
//
//   - transport: Network communication abstractions with pluggable implementations
//     (TCP, Unix sockets, HTTP).
//
//   - serializer: Message serialization with multiple format options (Binary, JSON, GOB)
//     for converting between Message objects and byte arrays.
//
//   - client: An RPC client implementing store.IStore, so that remote shards can be
//     used (and scoped) like local stores.
//
//   - server: The RPC server that opens the table of every shard, builds its store
//     and answers requests for it.
package rpc
