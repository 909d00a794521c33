// Package level provides a db.Table backed by LevelDB (goleveldb).
//
// Rows are stored under "<table>\x00<key>" so one database directory can hold
// several tables. Batches are written with a single leveldb.Batch and are
// atomic. SelectIn reads from one snapshot. With an empty path the database
// lives in memory, which is handy for tests.
package level
