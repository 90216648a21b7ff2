// Package util provides utility functions for database implementations that
// satisfy the db.RecordDB interface.
//
// The package contains:
//   - functions: seed generation and the hash functions used for shard routing
//     and node identifiers
package util
