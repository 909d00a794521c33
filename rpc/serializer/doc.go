// Package serializer converts common.Message values to bytes and back for the
// transports. All implementations satisfy IRPCSerializer and are stateless, so
// one instance can be shared by every connection.
//
// A Message carries the request or response of one store operation:
//
//   - MsgType selects the operation (Set, Get, MGet, GetByPrefix, Info, ...).
//   - Key and Keys hold the key or prefix and the key list of batch calls.
//   - Value and Values hold JSON documents as raw bytes. In MGet responses
//     Values is aligned with the requested keys and a missing key has a nil
//     entry, Found tells it apart from a stored value.
//   - Ok reports whether Get found the key.
//   - Err and Code carry a failed call. Code is the store.RetCode of the error,
//     so the client can rebuild an error that matches store.ErrInvalidOperation
//     and the other sentinels.
//   - Meta holds the JSON encoded db.DatabaseInfo of Info responses.
//
// Implementations:
//
//   - Binary (NewBinarySerializer): a two byte flag field lists the fields that
//     are present and only those are written. Nil and empty byte slices, and
//     nil entries of Values, survive the round trip. This is the default of
//     the CLI.
//
//   - JSON (NewJSONSerializer): readable on the wire, byte fields are base64
//     encoded and nil Values entries become null. Useful with the http
//     transport and curl.
//
//   - GOB (NewGOBSerializer): Go's gob encoding. Larger and slower than the
//     other two, kept for comparison in the benchmarks.
//
// Deserialize always resets the target message first, so a Message can be
// reused for the next request.
//
// Usage:
//
//	s := serializer.NewBinarySerializer()
//	data, err := s.Serialize(common.Message{MsgType: common.MsgTKVGet, Key: "coffees:1"})
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
