package server

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/VictoriaMetrics/metrics"
	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"
)

var (
	cursorsOpened  = metrics.NewCounter(`ixkv_rpc_cursors_opened_total`)
	cursorsExpired = metrics.NewCounter(`ixkv_rpc_cursors_expired_total`)
)

// NewIStoreServerAdapter creates the adapter of a store shard. Cursors that
// were not used for idleTimeout are closed by a background reaper.
func NewIStoreServerAdapter(idleTimeout time.Duration) IRPCServerAdapter {
	a := &iStoreServerAdapterImpl{
		cursors:     xsync.NewMapOf[string, *cursor](),
		tasks:       xsync.NewMapOf[string, store.IIndexTask](),
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
	}
	go a.reap()
	return a
}

type iStoreServerAdapterImpl struct {
	cursors     *xsync.MapOf[string, *cursor]
	tasks       *xsync.MapOf[string, store.IIndexTask] // key: namespace + "/" + index name
	idleTimeout time.Duration
	stop        chan struct{}
	closeOnce   sync.Once
}

// cursor is a server side query cursor. A cursor is used by one request at a time.
type cursor struct {
	mu       sync.Mutex
	rs       store.IRecordset
	lastUsed time.Time
	closed   bool
}

// close closes the recordset, the caller must hold mu.
func (c *cursor) close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.rs.Close()
}

func (adapter *iStoreServerAdapterImpl) Handle(req *common.Message, s store.IStore) *common.Message {
	// Check for nil store
	if s == nil {
		return common.NewErrorResponse(store.RetCInternalError, "handler: store is nil")
	}

	// Handle different message types
	switch req.MsgType {
	case common.MsgTPut:
		return adapter.put(req, s)
	case common.MsgTGet:
		return adapter.get(req, s)
	case common.MsgTDelete:
		return adapter.delete(req, s)
	case common.MsgTCreateIndex:
		return adapter.createIndex(req, s)
	case common.MsgTIndexStatus:
		return adapter.indexStatus(req, s)
	case common.MsgTDropIndex:
		err := s.DropIndex(policyOf(req), req.Namespace, req.Set, req.IndexName)
		if err == nil {
			adapter.tasks.Delete(taskKey(req.Namespace, req.IndexName))
		}
		return common.NewResponse(common.MsgTDropIndex, err)
	case common.MsgTQueryOpen:
		return adapter.queryOpen(req, s)
	case common.MsgTQueryNext:
		return adapter.queryNext(req)
	case common.MsgTQueryClose:
		return adapter.queryClose(req)
	case common.MsgTGetDBInfo:
		info, err := s.GetDBInfo()
		return withMeta(common.MsgTGetDBInfo, info, err)
	default:
		return common.NewErrorResponse(
			store.RetCInvalidOperation,
			fmt.Sprintf("RPC IStoreAdapter - Unsuported message type: %s", req.MsgType),
		)
	}
}

func (adapter *iStoreServerAdapterImpl) Close() error {
	adapter.closeOnce.Do(func() {
		close(adapter.stop)
		adapter.cursors.Range(func(id string, c *cursor) bool {
			adapter.cursors.Delete(id)
			c.mu.Lock()
			_ = c.close()
			c.mu.Unlock()
			return true
		})
	})
	return nil
}

// --------------------------------------------------------------------------
// Record operations
// --------------------------------------------------------------------------

func (adapter *iStoreServerAdapterImpl) put(req *common.Message, s store.IStore) *common.Message {
	key, err := req.DecodeKey()
	if err != nil {
		return common.NewResponse(common.MsgTPut, err)
	}
	bins, err := req.DecodeBins()
	if err != nil {
		return common.NewResponse(common.MsgTPut, err)
	}
	policy := &store.WritePolicy{Policy: *policyOf(req), SendKey: req.SendKey}
	return common.NewResponse(common.MsgTPut, s.Put(policy, key, bins...))
}

func (adapter *iStoreServerAdapterImpl) get(req *common.Message, s store.IStore) *common.Message {
	key, err := req.DecodeKey()
	if err != nil {
		return common.NewResponse(common.MsgTGet, err)
	}
	rec, err := s.Get(policyOf(req), key, req.BinNames...)
	resp := common.NewResponse(common.MsgTGet, err)
	if err == nil {
		resp.Records = []common.WireRecord{common.RecordToWire(rec)}
	}
	return resp
}

func (adapter *iStoreServerAdapterImpl) delete(req *common.Message, s store.IStore) *common.Message {
	key, err := req.DecodeKey()
	if err != nil {
		return common.NewResponse(common.MsgTDelete, err)
	}
	existed, err := s.Delete(&store.WritePolicy{Policy: *policyOf(req)}, key)
	resp := common.NewResponse(common.MsgTDelete, err)
	resp.Ok = existed
	return resp
}

// --------------------------------------------------------------------------
// Index operations
// --------------------------------------------------------------------------

func (adapter *iStoreServerAdapterImpl) createIndex(req *common.Message, s store.IStore) *common.Message {
	task, err := s.CreateIndex(policyOf(req), req.Namespace, req.Set, req.IndexName, req.BinName, store.IndexType(req.IndexType))
	if err == nil {
		adapter.tasks.Store(taskKey(req.Namespace, req.IndexName), task)
	}
	return common.NewResponse(common.MsgTCreateIndex, err)
}

// indexStatus reports the state of an index as JSON encoded db.IndexInfo. Builds
// started through this adapter are polled via their task, all other indexes are
// looked up in the database info.
func (adapter *iStoreServerAdapterImpl) indexStatus(req *common.Message, s store.IStore) *common.Message {
	info, err := s.GetDBInfo()
	if err != nil {
		return common.NewResponse(common.MsgTIndexStatus, err)
	}

	var found *db.IndexInfo
	for i := range info.Indexes {
		if info.Indexes[i].Def.Namespace == req.Namespace && info.Indexes[i].Def.Name == req.IndexName {
			found = &info.Indexes[i]
			break
		}
	}

	task, ok := adapter.tasks.Load(taskKey(req.Namespace, req.IndexName))
	if ok {
		done, err := task.IsDone()
		if err != nil {
			adapter.tasks.Delete(taskKey(req.Namespace, req.IndexName))
			return common.NewResponse(common.MsgTIndexStatus, err)
		}
		status := db.IndexInfo{Def: db.IndexDef{Namespace: req.Namespace, Name: req.IndexName}, State: db.IndexStateBuilding}
		if found != nil {
			status = *found
		}
		if done {
			status.State = db.IndexStateReady
			adapter.tasks.Delete(taskKey(req.Namespace, req.IndexName))
		}
		return withMeta(common.MsgTIndexStatus, status, nil)
	}

	if found == nil {
		return common.NewResponse(common.MsgTIndexStatus,
			store.Errorf(store.RetCIndexNotFound, "index %s.%s does not exist", req.Namespace, req.IndexName))
	}
	return withMeta(common.MsgTIndexStatus, *found, nil)
}

// --------------------------------------------------------------------------
// Query operations (server side cursors)
// --------------------------------------------------------------------------

func (adapter *iStoreServerAdapterImpl) queryOpen(req *common.Message, s store.IStore) *common.Message {
	policy := store.NewQueryPolicy()
	policy.Policy = *policyOf(req)

	rs, err := s.Query(policy, req.Statement())
	if err != nil {
		return common.NewResponse(common.MsgTQueryOpen, err)
	}
	cursorsOpened.Inc()

	id := uuid.NewString()
	c := &cursor{rs: rs, lastUsed: time.Now()}
	adapter.cursors.Store(id, c)

	resp := adapter.page(id, c, req.MaxRecords)
	resp.MsgType = common.MsgTQueryOpen
	return resp
}

func (adapter *iStoreServerAdapterImpl) queryNext(req *common.Message) *common.Message {
	c, ok := adapter.cursors.Load(req.CursorID)
	if !ok {
		return common.NewResponse(common.MsgTQueryNext,
			store.Errorf(store.RetCCursorNotFound, "cursor %s not found", req.CursorID))
	}
	resp := adapter.page(req.CursorID, c, req.MaxRecords)
	resp.MsgType = common.MsgTQueryNext
	return resp
}

func (adapter *iStoreServerAdapterImpl) queryClose(req *common.Message) *common.Message {
	if c, ok := adapter.cursors.LoadAndDelete(req.CursorID); ok {
		c.mu.Lock()
		err := c.close()
		c.mu.Unlock()
		return common.NewResponse(common.MsgTQueryClose, err)
	}
	// closing an unknown (expired or exhausted) cursor is not an error
	return common.NewResponse(common.MsgTQueryClose, nil)
}

// page reads up to max records from the cursor. If the recordset is exhausted
// the cursor is closed and removed, and Ok is set in the response. A close
// error is reported only if the query itself did not fail.
func (adapter *iStoreServerAdapterImpl) page(id string, c *cursor, max uint32) *common.Message {
	if max == 0 {
		max = 128
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return common.NewResponse(common.MsgTQueryNext,
			store.Errorf(store.RetCCursorNotFound, "cursor %s not found", id))
	}
	c.lastUsed = time.Now()

	resp := &common.Message{CursorID: id, Records: make([]common.WireRecord, 0, max)}
	for uint32(len(resp.Records)) < max {
		if !c.rs.Next() {
			adapter.cursors.Delete(id)
			err := c.rs.Err()
			if cerr := c.close(); cerr != nil {
				if err == nil {
					err = cerr
				} else {
					Logger.Warningf("closing cursor %s after query error: %v", id, cerr)
				}
			}
			resp.Ok = true
			return resp.SetErr(err)
		}
		resp.Records = append(resp.Records, common.RecordToWire(c.rs.Record()))
	}
	return resp
}

// reap closes cursors that were idle for longer than the idle timeout.
func (adapter *iStoreServerAdapterImpl) reap() {
	interval := adapter.idleTimeout / 2
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-adapter.stop:
			return
		case now := <-ticker.C:
			adapter.cursors.Range(func(id string, c *cursor) bool {
				if !c.mu.TryLock() {
					return true // in use
				}
				idle := now.Sub(c.lastUsed) > adapter.idleTimeout
				if idle {
					adapter.cursors.Delete(id)
					_ = c.close()
				}
				c.mu.Unlock()
				if idle {
					cursorsExpired.Inc()
					Logger.Debugf("closed idle cursor %s", id)
				}
				return true
			})
		}
	}
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func policyOf(req *common.Message) *store.Policy {
	p := store.NewPolicy()
	p.Timeout = time.Duration(req.TimeoutMs) * time.Millisecond
	return p
}

func taskKey(namespace, indexName string) string {
	return namespace + "/" + indexName
}

// withMeta creates a response carrying v as JSON in Meta
func withMeta(msgType common.MessageType, v interface{}, err error) *common.Message {
	if err != nil {
		return common.NewResponse(msgType, err)
	}
	meta, err := json.Marshal(v)
	if err != nil {
		return common.NewResponse(msgType, store.Errorf(store.RetCInternalError, "encode meta: %v", err))
	}
	resp := common.NewResponse(msgType, nil)
	resp.Meta = meta
	return resp
}
