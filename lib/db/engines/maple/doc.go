// Package maple implements a sharded in-memory record database with numeric
// secondary indexes. It provides a complete implementation of the db.RecordDB
// interface with a focus on thread safety and predictable index behavior.
//
// The package focuses on:
//   - Concurrent access through sharding, each shard guarded by its own RWMutex
//   - Numeric secondary indexes backed by a btree (github.com/google/btree)
//   - Background index builds with an observable Building -> Ready lifecycle
//   - Persistent snapshots in a compact binary encoding
//
// Key Components:
//
//   - mapleImpl: The central database structure implementing db.RecordDB. It
//     manages shards and secondary indexes. Like the rest of the engines it does
//     not generate write indices itself; the caller (for example the raft state
//     machine) passes a logical timestamp with every write.
//
//   - Shard: A partition of the record space. Records are assigned to shards by
//     hashing namespace and digest with a database specific seed. Writers hold
//     the shard lock while they update the indexes covering the record, so an
//     index never observes an older version of a record after a newer one.
//
//   - SecondaryIndex: An ordered set of (value, digest) pairs for one bin of a
//     namespace (optionally restricted to a set). Range lookups walk the btree
//     from the lower bound and stop at the first value above the upper bound.
//     Both bounds are inclusive.
//
// Index Lifecycle:
//
//   - CreateIndex registers the index in the Building state and returns. From
//     that moment on every write to a covered record also updates the index.
//     A background goroutine then indexes the existing records shard by shard
//     and finally marks the index Ready.
//
//   - Range queries against an index that is not Ready fail with
//     db.ErrIndexNotReadable. Callers are expected to wait for the build
//     (see IndexStatus).
//
//   - DropIndex removes the index immediately. A running build notices the
//     drop and stops; Close aborts all running builds.
//
// Persistence Format:
//
//  1. Magic number "MAPLEDB\x00" to identify the file format
//  2. Version number (currently 4)
//  3. Write index of the database
//  4. Index definitions (namespace, set, name, bin, type)
//  5. Records: namespace, set, digest, optional user key, generation,
//     write index and the encoded bins
//
// Save creates a fuzzy snapshot that is only consistent per shard. Load
// replaces the whole state and rebuilds all indexes before it returns.
package maple
