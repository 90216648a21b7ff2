// Package dstore implements a distributed, fault-tolerant record store using
// the Dragonboat RAFT consensus library. It provides a strongly consistent
// implementation of the store.IStore interface that replicates records and
// secondary index definitions across multiple nodes.
//
// Architecture:
//
//   - Store Client: Implements store.IStore. It serializes writes into commands,
//     proposes them to the raft shard and translates the results into *store.Error.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine (RecordStateMachine) that
//     owns a db.RecordDB and applies commands and queries to it.
//
//   - Communication Protocol: Defined in the internal package (Command and Query).
//
// Write Operations:
//
//	Put, Delete, CreateIndex and DropIndex follow this flow:
//
//	1. The operation is serialized into a Command
//	2. The Command is proposed to the raft shard via SyncPropose
//	3. Once committed, every replica applies the command (Update in statemachine.go)
//	4. The result code of the proposing replica is returned to the client
//
//	The raft log index is used as write index, so all replicas agree on the
//	order of writes. CreateIndex only registers the index in the log; every
//	replica builds it in the background and the returned task polls the build
//	state with linearizable reads.
//
// Read Operations:
//
//	Get, IndexStatus and Query use SyncRead and observe every committed write.
//	GetDBInfo uses StaleRead. A query collects all matching records in one read
//	and the recordset iterates over that result.
//
// Error Handling and Retries:
//
//	ErrSystemBusy is retried up to five times. Raft timeouts are reported as
//	RetCTimeout, errors of the state machine keep their return code.
//
// Snapshotting and Recovery:
//
//	Snapshots use db.RecordDB's Save and Load. Index definitions are part of the
//	snapshot; a recovering replica rebuilds the index contents from its records.
//
// Usage:
//
//	nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	if err != nil { ... }
//
//	dbFactory := func() db.RecordDB { return maple.NewMapleDB(nil) }
//
//	err = nh.StartConcurrentReplica(
//	    clusterMembers,
//	    false,
//	    dstore.CreateStateMaschineFactory(dbFactory),
//	    shardConfig)
//	if err != nil { ... }
//
//	s := dstore.NewDistributedStore(nh, shardID, 5*time.Second)
//
// For a single node without replication use the lstore package.
package dstore
