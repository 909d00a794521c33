// Package bolt provides a persistent db.Table backed by a bbolt file.
//
// All rows live in one bucket named after the table, so several tables can
// share a file. Keys are kept in byte order by bbolt, which turns a prefix
// scan into a cursor seek followed by a short forward walk. Every Upsert and
// Delete batch is committed in a single read-write transaction and is
// therefore atomic.
package bolt
