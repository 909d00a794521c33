// Package maple implements db.Table as a sharded in-memory table.
//
// Rows are spread over a number of shards (one xsync.MapOf each) using a
// seeded FNV-1a hash of the key. Single row operations only touch one shard,
// prefix scans visit all of them. A table wide read/write lock makes multi
// row writes atomic with respect to readers (FeatureAtomicBatch).
//
// Values are copied on the way in and on the way out, so neither callers nor
// the table can corrupt each other's buffers.
//
// The table is not persistent by itself. Save and Load (db.Snapshotter)
// write and read a compact binary snapshot with the following layout:
//  1. Magic number "MAPLETBL"
//  2. Version number (currently 1)
//  3. Number of rows (uint64)
//  4. For each row: key length (uint32), key, value length (uint32), value
//
// All integers are little endian. The server uses snapshots to keep the
// content of in-memory shards across restarts.
package maple
