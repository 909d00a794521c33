// Package tstore implements store.IStore on top of a db.Table with an
// optional read cache.
//
// Every store operation becomes exactly one table call (or none, see below):
//
//	Set, MSet      -> Upsert
//	Delete, MDelete -> Delete
//	Get            -> Select
//	MGet           -> SelectIn
//	GetByPrefix    -> SelectPrefix
//
// Values are validated with json.Valid before they reach the table, and empty
// batches never reach it at all.
//
// Cache Policy:
//
//   - The cache only learns values the table confirmed. A write updates it
//     after the table accepted the write, a read after the table returned
//     the row.
//   - Delete and MDelete evict before and after calling the table, so a
//     failed delete leaves no cached value behind. A read from the table
//     that overlaps a completed delete does not fill the cache.
//   - Get answers from the cache when it can.
//   - MGet answers from the cache only if every requested key is cached.
//     Otherwise all keys are read in one SelectIn and the result is built
//     from the returned rows alone. Keys the table no longer has are evicted.
//   - GetByPrefix always asks the table and never matches against the cache.
//
// The cache is private to the process. Writes by other processes are not
// observed, so Get may serve a value another process has already changed or
// deleted. Callers that need fresh data must use a store without cache.
//
// Feature Detection:
//
//	Before each operation the store checks the table's SupportsFeature and
//	returns a RetCUnsupportedOperation error if the feature is missing.
//
// Metrics:
//
//	kopi_backend_duration_seconds{store,op} and kopi_backend_errors_total{store,op}
//	(VictoriaMetrics) record every table call.
//
// Usage Example:
//
//	factory := func() (db.Table, error) { return maple.NewMapleDB(nil), nil }
//	s, err := tstore.NewTableStore(factory, &tstore.Options{Cache: cache.New("main")})
//
//	err = s.Set(ctx, "coffees:c1", json.RawMessage(`{"name":"Espresso","price":25000}`))
//	values, err := s.GetByPrefix(ctx, "coffees:")
package tstore
