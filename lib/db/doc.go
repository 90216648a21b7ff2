// Package db provides a standardized interface for record database implementations
// with numeric secondary indexes. It defines the RecordDB interface that allows
// consistent interaction with various storage engines while abstracting
// implementation details.
//
// The package focuses on:
//   - A unified interface for record operations (Put, Get, Delete)
//   - Secondary index lifecycle (CreateIndex, IndexStatus, DropIndex)
//   - Range queries over a secondary index and full set scans
//   - Feature discovery through capability flags
//   - Standardized persistence operations
//
// Key Components:
//
//   - RecordDB Interface: The core interface that all database implementations must satisfy.
//
//   - Entry: A stored record. Records are addressed by namespace and Digest. The
//     Digest is derived from set and user key (see ComputeDigest); the user key
//     itself is only stored when the writer retains it.
//
//   - IndexDef / IndexState: A secondary index definition and its build
//     lifecycle (Building -> Ready | Failed). Index builds run in the background;
//     callers poll IndexStatus until the index is ready.
//
//   - Feature Flags: The Feature type defines capability flags that implementations
//     can advertise through the SupportsFeature method.
//
// Note on Time-Based Operations:
//   - All write operations take a write-index parameter that serves as a logical
//     timestamp. The write-index only increases monotonically; attempts to set a
//     lower write-index are ignored.
//
// Related Packages:
//
// The engines/maple package (github.com/ValentinKolb/ixKV/lib/db/engines/maple)
// provides a sharded in-memory implementation with btree backed secondary indexes.
//
// The testing package (github.com/ValentinKolb/ixKV/lib/db/testing) provides
// a standardized conformance suite for RecordDB implementations.
package db
