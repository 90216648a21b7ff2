package dstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/store/dstore/internal"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4"
	"github.com/lni/dragonboat/v4/client"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	retries = 5
	log     = logger.GetLogger("store")

	busyRetries = metrics.NewCounter(`ixkv_dstore_busy_retries_total`)
)

// storeImpl is the concrete implementation of the store.IStore interface.
// It encapsulates a Dragonboat NodeHost which is used to communicate with the state machine.
type storeImpl struct {
	nh      *dragonboat.NodeHost
	shardID uint64
	cs      *client.Session
	timeout time.Duration
}

// NewDistributedStore creates a new distributed store instance which uses raft consensus to ensure strict linearizability
// across multiple nodes. The NodeHost is owned by the caller and is not stopped by Close.
func NewDistributedStore(nh *dragonboat.NodeHost, shardID uint64, timeout time.Duration) store.IStore {
	cs := nh.GetNoOPSession(shardID)
	return &storeImpl{
		nh:      nh,
		shardID: shardID,
		cs:      cs,
		timeout: timeout,
	}
}

// timeoutFor returns the request timeout of a policy, or the store default.
func (s *storeImpl) timeoutFor(policy *store.Policy) time.Duration {
	if policy != nil && policy.Timeout > 0 {
		return policy.Timeout
	}
	return s.timeout
}

// --------------------------------------------------------------------------
// Internal write and read operations (used by interface methods)
// --------------------------------------------------------------------------

// write serializes a Command and sends it via SyncPropose.
// It returns the result payload, or a *store.Error if an error occurs.
func (s *storeImpl) write(cmd internal.Command, timeout time.Duration) ([]byte, error) {
	for i := 0; i < retries; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)

		res, err := s.nh.SyncPropose(ctx, s.cs, cmd.Serialize())
		cancel()

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			busyRetries.Inc()
			log.Infof("SyncPropose: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(timeout / 10)
			continue
		}

		if errors.Is(err, dragonboat.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
			return nil, store.NewError(store.RetCTimeout, err.Error())
		}
		if err != nil {
			return nil, store.NewError(store.RetCInternalError, err.Error())
		}
		if res.Value != uint64(store.RetCSuccess) {
			return nil, store.NewError(store.RetCode(res.Value), string(res.Data))
		}
		return res.Data, nil
	}
	return nil, store.NewError(store.RetCTimeout, "system busy")
}

// read is a generic helper function that queries the state machine
// and attempts to convert the response into the expected type R.
//
// This function uses the SyncRead function (dragonboat) by default to Query the state machine.
// If linearizability is not required, the stale parameter can be set to true to use the faster StaleRead function.
//
// If the read operation fails due to a system busy error, the function retries up to 5 times.
func read[R any](r *storeImpl, q internal.Query, timeout time.Duration, stale bool) (R, error) {
	var zero R
	for i := 0; i < retries; i++ {

		var res interface{}
		var err error

		// Query the state machine, use StaleRead if stale is set otherwise use SyncRead (default)
		if stale {
			res, err = r.nh.StaleRead(r.shardID, q)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), timeout)
			res, err = r.nh.SyncRead(ctx, r.shardID, q)
			cancel()
		}

		// Check for system busy errors
		if errors.Is(err, dragonboat.ErrSystemBusy) {
			busyRetries.Inc()
			log.Infof("SyncRead: System busy, retrying (%d/%d)...", i+1, retries)
			time.Sleep(timeout / 10)
			continue
		}

		if err != nil {
			var se *store.Error
			if errors.As(err, &se) {
				return zero, se
			}
			if errors.Is(err, dragonboat.ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
				return zero, store.NewError(store.RetCTimeout, err.Error())
			}
			return zero, store.NewError(store.RetCInternalError, err.Error())
		}

		// The state machine is expected to return the response in the expected type R.
		casted, ok := res.(R)
		if !ok {
			return zero, store.NewError(store.RetCInternalError,
				fmt.Sprintf("unexpected type: received %T, expected %T", res, zero))
		}
		return casted, nil
	}
	return zero, store.NewError(store.RetCTimeout, "system busy")
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(policy *store.WritePolicy, key *store.Key, bins ...*store.Bin) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if policy == nil {
		policy = store.NewWritePolicy()
	}
	_, err := s.write(internal.NewPutCommand(store.EntryFromPut(key, policy.SendKey, bins)), s.timeoutFor(&policy.Policy))
	return err
}

func (s *storeImpl) Get(policy *store.Policy, key *store.Key, binNames ...string) (*store.Record, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}
	res, err := read[internal.QueryResult](s, internal.Query{
		Type:      internal.QueryTGet,
		Namespace: key.Namespace,
		Digest:    key.Digest,
	}, s.timeoutFor(policy), false)
	if err != nil {
		return nil, err
	}
	if !res.Ok || (key.SetName != "" && res.Entry.Set != key.SetName) {
		return nil, store.Errorf(store.RetCRecordNotFound, "record %s not found", key)
	}
	return store.RecordFromEntry(res.Entry, binNames), nil
}

func (s *storeImpl) Delete(policy *store.WritePolicy, key *store.Key) (bool, error) {
	if err := store.ValidateKey(key); err != nil {
		return false, err
	}
	var p *store.Policy
	if policy != nil {
		p = &policy.Policy
	}
	data, err := s.write(internal.Command{
		Type:      internal.CommandTDelete,
		Namespace: key.Namespace,
		Set:       key.SetName,
		Digest:    key.Digest,
	}, s.timeoutFor(p))
	if err != nil {
		return false, err
	}
	return len(data) == 1 && data[0] == 1, nil
}

func (s *storeImpl) CreateIndex(policy *store.Policy, namespace, set, indexName, binName string, indexType store.IndexType) (store.IIndexTask, error) {
	if err := store.ValidateIndex(namespace, indexName, binName, indexType); err != nil {
		return nil, err
	}
	_, err := s.write(internal.Command{
		Type:      internal.CommandTCreateIndex,
		Namespace: namespace,
		Set:       set,
		IndexName: indexName,
		BinName:   binName,
		IndexType: indexType,
	}, s.timeoutFor(policy))
	if err != nil {
		return nil, err
	}
	log.Debugf("index %s.%s on %s.%s proposed", namespace, indexName, set, binName)

	timeout := s.timeoutFor(policy)
	return store.NewPollingIndexTask(indexName, policy.EffectivePollInterval(), func() (db.IndexInfo, error) {
		return read[db.IndexInfo](s, internal.Query{
			Type:      internal.QueryTIndexStatus,
			Namespace: namespace,
			IndexName: indexName,
		}, timeout, false)
	}), nil
}

func (s *storeImpl) DropIndex(policy *store.Policy, namespace, set, indexName string) error {
	_, err := s.write(internal.Command{
		Type:      internal.CommandTDropIndex,
		Namespace: namespace,
		Set:       set,
		IndexName: indexName,
	}, s.timeoutFor(policy))
	return err
}

// Query reads the matching records in one linearizable read and streams them
// from memory. The raft read can not be held open across Next calls.
func (s *storeImpl) Query(policy *store.QueryPolicy, stmt *store.Statement) (store.IRecordset, error) {
	if err := store.ValidateStatement(stmt); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = store.NewQueryPolicy()
	}

	q := internal.Query{Type: internal.QueryTScan, Namespace: stmt.Namespace, Set: stmt.SetName}
	if stmt.Filter != nil {
		q = internal.Query{Type: internal.QueryTRange, Namespace: stmt.Namespace, Set: stmt.SetName, Range: stmt.RangeQuery()}
	}
	entries, err := read[[]db.Entry](s, q, s.timeoutFor(&policy.Policy), false)
	if err != nil {
		return nil, err
	}

	binNames := append([]string(nil), stmt.BinNames...)
	return store.NewRecordset(policy.RecordQueueSize, func(yield func(*store.Record) bool) error {
		for _, e := range entries {
			if !yield(store.RecordFromEntry(e, binNames)) {
				return nil
			}
		}
		return nil
	}, nil), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return read[db.DatabaseInfo](
		s,
		internal.Query{
			Type: internal.QueryTGetDBInfo,
		},
		s.timeout,
		true, // Note: allow for stale reads
	)
}

// Close is a no-op, the NodeHost is owned by the caller.
func (s *storeImpl) Close() error {
	return nil
}
