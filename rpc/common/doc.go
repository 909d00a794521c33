// Package common provides the data structures shared by the RPC client,
// server and transports.
//
// The package focuses on:
//   - Message protocol definition for client/server communication
//   - Configuration structures for client and server components
//   - Logger initialisation from the server configuration
//
// Key Components:
//
//   - Message: Core data structure for all RPC communication, with a
//     flexible structure that adapts to the different store operations.
//     Includes factory methods for every request and response. Store errors
//     travel as text plus their numeric return code.
//
//   - MessageType: Enumeration of all supported operations: the seven key
//     value operations, table info and control messages.
//
//   - ServerConfig: Shards (ID=ENGINE[+cache]), table name, data directory,
//     redis and S3 connection settings, endpoints and log level.
//
//   - ClientConfig: Connection parameters, timeouts and retry behavior of
//     clients.
package common
