// Package testing provides standardised tests and benchmarks for
// database implementations that satisfy the db.RecordDB interface.
//
// The package contains:
//   - testing: A conformance suite for the RecordDB contract (record merge
//     semantics, user key retention, index lifecycle, inclusive range bounds,
//     index maintenance under writes, persistence)
//   - benchmark: Performance tests for common record and index operations
//
// Example usage:
//
//	// Creating a factory function for your implementation
//	factory := func() db.RecordDB {
//		return NewMyDatabase()
//	}
//
//	// Running the standard test suite
//	dbtesting.RunRecordDBTests(t, "MyDatabase", factory)
//
//	// Running performance benchmarks
//	dbtesting.RunRecordDBBenchmarks(b, "MyDatabase", factory)
package testing
