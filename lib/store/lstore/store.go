package lstore

import (
	"sync/atomic"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("store")

type storeImpl struct {
	db    db.RecordDB
	index atomic.Uint64
}

// NewLocalStore creates a new local store instance.
// This store implementation is not distributed and only works on a single node.
// This works by using the maple engine from the db package directly.
func NewLocalStore(factory store.DBFactory) store.IStore {
	return &storeImpl{
		db:    factory(),
		index: atomic.Uint64{},
	}
}

// incAndGetIndex increments the index and returns the new value.
// It is used to ensure that each write operation has a unique index.
//
// Thread-safety: This method is thread-safe since it uses atomic operations.
func (s *storeImpl) incAndGetIndex() uint64 {
	return s.index.Add(1)
}

// --------------------------------------------------------------------------
// Interface Methods (docu see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(policy *store.WritePolicy, key *store.Key, bins ...*store.Bin) error {
	if !s.db.SupportsFeature(db.FeaturePut) {
		return store.NewError(store.RetCUnsupportedOperation, "Put operation is not supported")
	}
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if policy == nil {
		policy = store.NewWritePolicy()
	}
	s.db.Put(store.EntryFromPut(key, policy.SendKey, bins), s.incAndGetIndex())
	return nil
}

func (s *storeImpl) Get(_ *store.Policy, key *store.Key, binNames ...string) (*store.Record, error) {
	if !s.db.SupportsFeature(db.FeatureGet) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "Get operation is not supported")
	}
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}
	e, ok := s.db.Get(key.Namespace, key.Digest)
	if !ok || (key.SetName != "" && e.Set != key.SetName) {
		return nil, store.Errorf(store.RetCRecordNotFound, "record %s not found", key)
	}
	return store.RecordFromEntry(e, binNames), nil
}

func (s *storeImpl) Delete(_ *store.WritePolicy, key *store.Key) (bool, error) {
	if !s.db.SupportsFeature(db.FeatureDelete) {
		return false, store.NewError(store.RetCUnsupportedOperation, "Delete operation is not supported")
	}
	if err := store.ValidateKey(key); err != nil {
		return false, err
	}
	return s.db.Delete(key.Namespace, key.Digest, s.incAndGetIndex()), nil
}

func (s *storeImpl) CreateIndex(policy *store.Policy, namespace, set, indexName, binName string, indexType store.IndexType) (store.IIndexTask, error) {
	if !s.db.SupportsFeature(db.FeatureIndex) {
		return nil, store.NewError(store.RetCUnsupportedOperation, "CreateIndex operation is not supported")
	}
	if err := store.ValidateIndex(namespace, indexName, binName, indexType); err != nil {
		return nil, err
	}

	def := db.IndexDef{Namespace: namespace, Set: set, Name: indexName, Bin: binName, Type: indexType}
	if err := s.db.CreateIndex(def, s.incAndGetIndex()); err != nil {
		return nil, store.FromDBError(err)
	}
	log.Debugf("index %s.%s on %s.%s started building", namespace, indexName, set, binName)

	return store.NewPollingIndexTask(indexName, policy.EffectivePollInterval(), func() (db.IndexInfo, error) {
		info, err := s.db.IndexStatus(namespace, indexName)
		return info, store.FromDBError(err)
	}), nil
}

func (s *storeImpl) DropIndex(_ *store.Policy, namespace, set, indexName string) error {
	if !s.db.SupportsFeature(db.FeatureIndex) {
		return store.NewError(store.RetCUnsupportedOperation, "DropIndex operation is not supported")
	}
	return store.FromDBError(s.db.DropIndex(namespace, set, indexName, s.incAndGetIndex()))
}

func (s *storeImpl) Query(policy *store.QueryPolicy, stmt *store.Statement) (store.IRecordset, error) {
	if err := store.ValidateStatement(stmt); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = store.NewQueryPolicy()
	}
	binNames := append([]string(nil), stmt.BinNames...)

	var produce store.Producer
	if stmt.Filter != nil {
		if !s.db.SupportsFeature(db.FeatureRange) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "range queries are not supported")
		}
		q := stmt.RangeQuery()

		// fail early for missing or building indexes instead of from the first Next
		if err := s.db.Range(db.RangeQuery{Namespace: q.Namespace, Set: q.Set, IndexName: q.IndexName, Bin: q.Bin, Begin: 1, End: 0}, func(db.Entry) bool { return false }); err != nil {
			return nil, store.FromDBError(err)
		}

		produce = func(yield func(*store.Record) bool) error {
			return store.FromDBError(s.db.Range(q, func(e db.Entry) bool {
				return yield(store.RecordFromEntry(e, binNames))
			}))
		}
	} else {
		if !s.db.SupportsFeature(db.FeatureScan) {
			return nil, store.NewError(store.RetCUnsupportedOperation, "scans are not supported")
		}
		produce = func(yield func(*store.Record) bool) error {
			return store.FromDBError(s.db.Scan(stmt.Namespace, stmt.SetName, func(e db.Entry) bool {
				return yield(store.RecordFromEntry(e, binNames))
			}))
		}
	}

	return store.NewRecordset(policy.RecordQueueSize, produce, nil), nil
}

func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	return s.db.GetInfo(), nil
}

func (s *storeImpl) Close() error {
	return s.db.Close()
}
