// Package db defines the storage contract the key-value store is built upon.
// It models exactly one two-column table, key (text, primary key) and value
// (a JSON document), and the five primitives the store needs from it:
//
//   - Upsert: insert or replace a batch of rows
//   - Delete: remove the rows of a set of keys
//   - Select: read the row of one key
//   - SelectIn: read the rows of a set of keys
//   - SelectPrefix: read every row whose key starts with a prefix
//
// Key Components:
//
//   - Table Interface: The core interface that all storage engines must satisfy.
//     Every method takes a context.Context so that network backed engines can be
//     cancelled. Errors are returned unchanged to the caller, engines do not retry.
//
//   - Feature Flags: The Feature type defines capability flags that engines
//     advertise through SupportsFeature. Besides the CRUD flags there is
//     FeatureAtomicBatch (a batch is all-or-nothing) and FeaturePersistent.
//
//   - Database Information: DatabaseInfo reports the engine type, the table name,
//     the number of rows and an estimated size together with engine specific metadata.
//
// Engines:
//
// The engines subpackages provide the implementations:
//   - maple: sharded in-memory table with optional snapshots
//   - bolt: single file table based on bbolt
//   - level: LevelDB based table
//   - redis: one Redis hash per table
//   - s3: one object per row in an S3 compatible bucket
//
// The testing package (github.com/kedaikopi/kopi/lib/db/testing) provides
// a conformance suite (RunTableTests) and benchmarks (RunTableBenchmarks) that every
// engine runs against itself.
package db
