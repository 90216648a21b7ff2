// Package workflow implements the indexed-query workflow against a store.IStore:
//
//  1. create a numeric secondary index and wait for its build (IndexManager),
//  2. write numbered records, optionally retaining their user keys (RecordWriter),
//  3. query the index for an inclusive value range and classify every hit by
//     the state of its user key (RangeQueryExecutor),
//  4. drop the index again.
//
// Workflow sequences the stages. Index creation is idempotent: an existing
// index is reported as AlreadyExists and does not fail the run. Verification
// problems (wrong hit count, hits without user key) are reported on the
// Report and never returned as errors.
//
// The teardown policy decides whether the index is dropped after a failed
// stage. TeardownAlways (the default) always drops it; the drop error never
// replaces the error of the failed stage. TeardownOnSuccess leaves the index in
// place after a failure.
//
// All calls run on the calling goroutine and block; the package keeps no state
// between runs.
package workflow
