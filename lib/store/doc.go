// Package store provides a high-level interface for record storage with numeric
// secondary indexes and unified error handling. It serves as an abstraction
// layer over the lower-level db.RecordDB implementations, adding functionality
// such as write index management, key handling and standardized error reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for record, index and query operations across different backends
//   - Pluggable storage backend architecture through DBFactory pattern
//   - Cursors (IRecordset) and index build tasks (IIndexTask) shared by all backends
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting with
//     a record store. All implementations share this common interface, allowing
//     applications to switch between different storage backends without code changes.
//     The interface methods return custom Error types that provide detailed information
//     about operation results.
//
//   - Key: A record is identified by namespace, set and a digest computed from
//     the set and the application supplied user key. The store only persists the
//     user key if the write policy asks for it (WritePolicy.SendKey). Records
//     written without it come back from queries with a nil Key.UserKey.
//
//   - Policies: Policy, WritePolicy and QueryPolicy carry per-call options. A zero
//     Policy.Timeout means no client side deadline.
//
//   - Recordset: A channel backed IRecordset. A producer goroutine feeds the
//     records and stops as soon as the consumer closes the recordset. Close is
//     idempotent and may be called in any state (Open, Iterating).
//
//   - PollingIndexTask: An IIndexTask that polls the build state of an index
//     until it is ready or failed, without any deadline.
//
//   - Error System: A structured error reporting mechanism using typed error codes
//     and descriptive messages (see RetCode). IsCode and CodeOf inspect wrapped errors.
//
// Implementations:
//
//	The package includes the following implementations of the IStore interface:
//
//	- Local Store (lstore): A simple, non-distributed implementation that directly
//	  utilizes a db.RecordDB instance. It manages write index progression internally
//	  using atomic operations to ensure thread safety.
//	  Available in the "github.com/ValentinKolb/ixKV/lib/store/lstore" package.
//
//	- Distributed Store (dstore): A implementation built on the Dragonboat
//	  RAFT consensus library. Writes and index changes are replicated through the
//	  raft log, reads are served by linearizable reads against the state machine.
//	  Available in the "github.com/ValentinKolb/ixKV/lib/store/dstore" package.
//
//	- Aerospike Store (astore): An adapter to an Aerospike cluster using the
//	  official Go client.
//	  Available in the "github.com/ValentinKolb/ixKV/lib/store/astore" package.
//
//	- RPC Client (rpc/client): Speaks the store interface to a remote ixKV server.
package store
