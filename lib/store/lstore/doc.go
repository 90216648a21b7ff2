// Package lstore implements a local, in-memory, single-node record store based on the
// store.IStore interface. It provides a thin wrapper around any db.RecordDB
// implementation with automatic write index management. Data is stored entirely
// in memory and is not persisted between process restarts.
//
// Key Features:
//   - Direct integration with db.RecordDB implementations
//   - Automatic write index progression using atomic operations
//   - Index builds tracked by a polling store.IIndexTask
//   - Queries streamed from the engine into a store.Recordset
//   - Feature detection to handle unsupported operations gracefully
//
// Implementation Details:
//
//   - Write Index Management: The store maintains an atomic counter that automatically
//     increments with each write operation (Put, Delete, CreateIndex, DropIndex).
//
//   - Queries: A filtered query first checks that the index exists and is
//     readable, so that a missing or building index is reported by Query itself.
//     The records are then streamed by the recordset producer goroutine directly
//     from the engine; closing the recordset early stops the engine iteration.
//
//   - Composition Architecture: The store.DBFactory factory function injects the
//     underlying db.RecordDB implementation.
//
// Usage Example:
//
//	factory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//	s := lstore.NewLocalStore(factory)
//
//	key, _ := store.NewKey("test", "demo", "skkey1")
//	wp := store.NewWritePolicy()
//	wp.SendKey = true
//	err := s.Put(wp, key, store.NewBin("skbin", 1))
//
// For distributed scenarios requiring consensus across multiple nodes, consider
// using the dstore package instead, which provides a RAFT-based implementation
// of the same interface with strong consistency guarantees.
package lstore
