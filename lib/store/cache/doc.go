// Package cache provides the optional read cache of the table store.
//
// A Cache belongs to the store it is passed to, there is no package level
// instance. It only ever holds values the backend confirmed, either by a
// successful write or by a read. Nothing invalidates it across processes: a
// second process writing to the same table is not observed until the entry is
// rewritten, deleted or refreshed by an MGet or GetByPrefix of this process.
//
// Hits and misses are counted in kopi_cache_hits_total and
// kopi_cache_misses_total, labelled with the cache name. GetAll counts one
// hit per key when every key is cached and a single miss otherwise.
package cache
