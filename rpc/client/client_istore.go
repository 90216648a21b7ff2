package client

import (
	"encoding/json"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/rpc/common"
	"github.com/ValentinKolb/ixKV/rpc/serializer"
	"github.com/ValentinKolb/ixKV/rpc/transport"
)

// NewRPCStore creates a new RPC store
// The function takes a shard ID, a config, a transport and a serializer as parameters
// It returns a store.IStore and an error
func NewRPCStore(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (store.IStore, error) {

	// Connect the transport
	if err := transport.Connect(config); err != nil {
		return nil, err
	}

	return &rpcStore{
		rpcClientAdapter{
			shardId:    shardId,
			config:     config,
			transport:  transport,
			serializer: serializer,
		},
	}, nil
}

type rpcStore struct {
	rpcClientAdapter
}

// --------------------------------------------------------------------------
// Interface Methods (docu see the store package in interface.go)
// --------------------------------------------------------------------------

func (i *rpcStore) Put(policy *store.WritePolicy, key *store.Key, bins ...*store.Bin) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	if policy == nil {
		policy = store.NewWritePolicy()
	}
	req := common.NewPutRequest(key, policy.SendKey, bins)
	req.TimeoutMs = timeoutMs(&policy.Policy)
	_, err := i.invoke(req)
	return err
}

func (i *rpcStore) Get(policy *store.Policy, key *store.Key, binNames ...string) (*store.Record, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}
	req := common.NewGetRequest(key, binNames)
	req.TimeoutMs = timeoutMs(policy)
	resp, err := i.invoke(req)
	if err != nil {
		return nil, err
	}
	if len(resp.Records) != 1 {
		return nil, store.Errorf(store.RetCInternalError, "get response carries %d records", len(resp.Records))
	}
	rec, err := resp.Records[0].Record()
	if err != nil {
		return nil, store.NewError(store.RetCInternalError, err.Error())
	}
	return rec, nil
}

func (i *rpcStore) Delete(policy *store.WritePolicy, key *store.Key) (bool, error) {
	if err := store.ValidateKey(key); err != nil {
		return false, err
	}
	req := common.NewDeleteRequest(key)
	if policy != nil {
		req.TimeoutMs = timeoutMs(&policy.Policy)
	}
	resp, err := i.invoke(req)
	if err != nil {
		return false, err
	}
	return resp.Ok, nil
}

func (i *rpcStore) CreateIndex(policy *store.Policy, namespace, set, indexName, binName string, indexType store.IndexType) (store.IIndexTask, error) {
	if err := store.ValidateIndex(namespace, indexName, binName, indexType); err != nil {
		return nil, err
	}
	req := common.NewCreateIndexRequest(namespace, set, indexName, binName, indexType)
	req.TimeoutMs = timeoutMs(policy)
	// the task is polled on the server that runs it
	sender := transport.Pin(i.transport)
	if _, err := i.invokeVia(sender, req); err != nil {
		return nil, err
	}

	return store.NewPollingIndexTask(indexName, policy.EffectivePollInterval(), func() (db.IndexInfo, error) {
		var info db.IndexInfo
		status := common.NewIndexStatusRequest(namespace, indexName)
		status.TimeoutMs = timeoutMs(policy)
		resp, err := i.invokeVia(sender, status)
		if err != nil {
			return info, err
		}
		if err := json.Unmarshal(resp.Meta, &info); err != nil {
			return info, store.Errorf(store.RetCInternalError, "decode index status: %v", err)
		}
		return info, nil
	}), nil
}

func (i *rpcStore) DropIndex(policy *store.Policy, namespace, set, indexName string) error {
	req := common.NewDropIndexRequest(namespace, set, indexName)
	req.TimeoutMs = timeoutMs(policy)
	_, err := i.invoke(req)
	return err
}

// Query opens a server side cursor. The first page is part of the open
// response, further pages are fetched while the recordset is consumed. Closing
// the recordset before it is exhausted releases the server side cursor.
func (i *rpcStore) Query(policy *store.QueryPolicy, stmt *store.Statement) (store.IRecordset, error) {
	if err := store.ValidateStatement(stmt); err != nil {
		return nil, err
	}
	if policy == nil {
		policy = store.NewQueryPolicy()
	}
	pageSize := i.config.PageSize()

	req := common.NewQueryOpenRequest(stmt, pageSize)
	req.TimeoutMs = timeoutMs(&policy.Policy)
	// the cursor only exists on the server that opened it
	sender := transport.Pin(i.transport)
	first, err := i.invokeVia(sender, req)
	if err != nil {
		return nil, err
	}

	cursorID := first.CursorID
	done := first.Ok

	produce := func(yield func(*store.Record) bool) error {
		page := first
		for {
			for _, w := range page.Records {
				rec, err := w.Record()
				if err != nil {
					return store.NewError(store.RetCInternalError, err.Error())
				}
				if !yield(rec) {
					return nil
				}
			}
			if done {
				return nil
			}

			next := common.NewQueryNextRequest(cursorID, pageSize)
			next.TimeoutMs = timeoutMs(&policy.Policy)
			var err error
			page, err = i.invokeVia(sender, next)
			if err != nil {
				// the server released the cursor
				done = true
				return err
			}
			done = page.Ok
		}
	}

	release := func() error {
		if done {
			return nil
		}
		done = true
		_, err := i.invokeVia(sender, common.NewQueryCloseRequest(cursorID))
		return err
	}

	return store.NewRecordset(policy.RecordQueueSize, produce, release), nil
}

func (i *rpcStore) GetDBInfo() (db.DatabaseInfo, error) {
	var info db.DatabaseInfo
	resp, err := i.invoke(common.NewGetDBInfoRequest())
	if err != nil {
		return info, err
	}
	if err := json.Unmarshal(resp.Meta, &info); err != nil {
		return info, store.Errorf(store.RetCInternalError, "decode database info: %v", err)
	}
	return info, nil
}

func (i *rpcStore) Close() error {
	return i.transport.Close()
}
