// Package internal provides the replication protocol structures of the dstore
// package: the commands written to the raft log and the queries executed
// against the local replica of the state machine.
//
// This package is intended for internal use by the dstore implementation and should
// not be imported directly by external code.
//
//   - Command System: Put, Delete, CreateIndex and DropIndex modify the state of
//     the database. Commands are serialized and proposed to the raft shard,
//     applied by every replica in log order and produce a result (return code and
//     optional payload) that is returned to the proposer.
//
//   - Query System: Get, IndexStatus, Range, Scan and GetDBInfo read the database
//     without modifying it. Queries are executed on the local state machine and
//     are never serialized.
//
// Command Format:
//
//   - 1 byte: Command type
//   - 20 bytes: Record digest (zero for index commands)
//   - 5 strings, each with a 2 byte length prefix (big endian):
//     namespace, set, index name, bin name, index type
//   - 4 bytes: User key length (uint32, big endian)
//   - N bytes: User key (binary encoded value, absent if the key is not retained)
//   - M bytes: Bins (value.EncodeBins, rest of the buffer)
//
// Because a CreateIndex command only registers the index, the raft log stays
// small even for large sets; every replica builds the index in the background.
//
// The types in this package are not thread-safe. The raft protocol applies the
// commands of a shard sequentially.
package internal
