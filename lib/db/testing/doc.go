// Package testing provides standardised tests and benchmarks for
// table implementations that satisfy the db.Table interface.
//
// The package contains:
//   - RunTableTests: a conformance suite covering upsert semantics, batch
//     operations, prefix scans (including LIKE and glob metacharacters), JSON
//     value handling and concurrent access
//   - RunTableBenchmarks: throughput benchmarks for the common operations
//
// Example usage:
//
//	func Test(t *testing.T) {
//		dbtesting.RunTableTests(t, "MyTable", func(tb testing.TB) db.Table {
//			return NewMyTable(tb.TempDir())
//		})
//	}
package testing
