package dstore

import (
	"fmt"
	"io"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
)

// --------------------------------------------------------------------------
// State Machine Implementation
// --------------------------------------------------------------------------

// RecordStateMachine is a state machine implementation for Dragonboat RAFT
type RecordStateMachine struct {
	replicaID uint64
	shardID   uint64
	database  db.RecordDB // the actual dataStorage
}

// CreateStateMaschineFactory returns a function that can be used by dragonboat to create a new state machine for a node host.
// The factory pattern is used to enable the caller to pass an interchangeable dbFactory
func CreateStateMaschineFactory(dbFactory store.DBFactory) func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
	return func(shardID uint64, replicaID uint64) sm.IConcurrentStateMachine {
		return &RecordStateMachine{
			replicaID: replicaID,
			shardID:   shardID,
			database:  dbFactory(),
		}
	}
}

// Lookup handles read-only queries by mapping each Query operation to the corresponding RecordDB method.
// Errors are returned as *store.Error.
func (fsm *RecordStateMachine) Lookup(itf interface{}) (interface{}, error) {

	// try to parse Query into Query struct
	q, ok := itf.(internal.Query)
	if !ok {
		return nil, store.NewError(store.RetCInternalError, fmt.Sprintf("invalid Query type: %T", itf))
	}

	if feat := q.Type.ToDBFeature(); feat != 0 && !fsm.database.SupportsFeature(feat) {
		return nil, store.NewError(store.RetCUnsupportedOperation, fmt.Sprintf("%s operation is not supported", q.Type))
	}

	switch q.Type {
	case internal.QueryTGet:
		e, ok := fsm.database.Get(q.Namespace, q.Digest)
		return internal.QueryResult{
			Entry: e,
			Ok:    ok,
		}, nil
	case internal.QueryTIndexStatus:
		info, err := fsm.database.IndexStatus(q.Namespace, q.IndexName)
		if err != nil {
			return nil, store.FromDBError(err)
		}
		return info, nil
	case internal.QueryTRange:
		var entries []db.Entry
		err := fsm.database.Range(q.Range, func(e db.Entry) bool {
			entries = append(entries, e)
			return true
		})
		if err != nil {
			return nil, store.FromDBError(err)
		}
		return entries, nil
	case internal.QueryTScan:
		var entries []db.Entry
		err := fsm.database.Scan(q.Namespace, q.Set, func(e db.Entry) bool {
			entries = append(entries, e)
			return true
		})
		if err != nil {
			return nil, store.FromDBError(err)
		}
		return entries, nil
	case internal.QueryTGetDBInfo:
		return fsm.database.GetInfo(), nil
	default:
		return nil, store.NewError(store.RetCInvalidOperation, fmt.Sprintf("unknown Query operation: %d", q.Type))
	}
}

// Update handles write commands on the RecordDB instance.
// All write operations are serialized into []byte and are accessible via the entries struct.
// The result of an entry carries the store.RetCode as Value and a message (or payload) as Data.
func (fsm *RecordStateMachine) Update(entries []sm.Entry) ([]sm.Entry, error) {

	// Nothing to do
	if len(entries) == 0 {
		return entries, nil
	}

	// Stats
	start := time.Now()

	for idx, e := range entries {
		entries[idx].Result = fsm.apply(e)
	}

	// Log if the update took long
	if elapsed := time.Since(start); elapsed > time.Millisecond {
		log.Infof("Statemachine took long to update. Batch updated %d entries, took %.2fms", len(entries), float64(elapsed)/float64(time.Millisecond))
	}
	return entries, nil
}

func failed(code store.RetCode, format string, args ...interface{}) sm.Result {
	return sm.Result{Value: uint64(code), Data: []byte(fmt.Sprintf(format, args...))}
}

func (fsm *RecordStateMachine) apply(e sm.Entry) sm.Result {
	if len(e.Cmd) == 0 {
		return failed(store.RetCInvalidOperation, "empty command ignored")
	}

	// Deserialize the command
	cmd := internal.Command{}
	if err := cmd.Deserialize(e.Cmd); err != nil {
		return failed(store.RetCInternalError, "failed to deserialize command: %v", err)
	}

	// Check if the db supports the operation
	feat, err := cmd.Type.ToDBFeature()
	if err != nil {
		return failed(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
	}
	if !fsm.database.SupportsFeature(feat) {
		return failed(store.RetCUnsupportedOperation, "%s operation is not supported", cmd.Type)
	}

	switch cmd.Type {
	case internal.CommandTPut:
		entry, err := cmd.Entry()
		if err != nil {
			return failed(store.RetCParameterError, "put %s: %v", cmd.Digest, err)
		}
		gen := fsm.database.Put(entry, e.Index)
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("put: digest=%s generation=%d", cmd.Digest, gen))}
	case internal.CommandTDelete:
		existed := fsm.database.Delete(cmd.Namespace, cmd.Digest, e.Index)
		data := []byte{0}
		if existed {
			data[0] = 1
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: data}
	case internal.CommandTCreateIndex:
		if err := fsm.database.CreateIndex(cmd.IndexDef(), e.Index); err != nil {
			se := store.FromDBError(err).(*store.Error)
			return failed(se.Code, "%s", se.Msg)
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("create index: %s.%s", cmd.Namespace, cmd.IndexName))}
	case internal.CommandTDropIndex:
		if err := fsm.database.DropIndex(cmd.Namespace, cmd.Set, cmd.IndexName, e.Index); err != nil {
			se := store.FromDBError(err).(*store.Error)
			return failed(se.Code, "%s", se.Msg)
		}
		return sm.Result{Value: uint64(store.RetCSuccess), Data: []byte(fmt.Sprintf("drop index: %s.%s", cmd.Namespace, cmd.IndexName))}
	default:
		return failed(store.RetCInvalidOperation, "unknown Command operation: %s", cmd.Type)
	}
}

// PrepareSnapshot is not used. We don't need to prepare anything since we use fuzzy snapshotting
func (fsm *RecordStateMachine) PrepareSnapshot() (interface{}, error) {
	return nil, nil
}

// SaveSnapshot saves a fuzzy db snapshot to the writer
func (fsm *RecordStateMachine) SaveSnapshot(_ interface{}, writer io.Writer, _ sm.ISnapshotFileCollection, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureSave) {
		return fmt.Errorf("the used RecordDB implementation does not support Save() operations")
	}
	return fsm.database.Save(writer)
}

// RecoverFromSnapshot replaces the database state with the snapshot.
// Index definitions are part of the snapshot, the indexes themselves are rebuilt.
func (fsm *RecordStateMachine) RecoverFromSnapshot(r io.Reader, _ []sm.SnapshotFile, _ <-chan struct{}) error {
	if !fsm.database.SupportsFeature(db.FeatureLoad) {
		return fmt.Errorf("the used RecordDB implementation does not support Load() operations")
	}
	return fsm.database.Load(r)
}

// Close performs any necessary cleanup.
func (fsm *RecordStateMachine) Close() error {
	return fsm.database.Close()
}
