package astore

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/store"
	as "github.com/aerospike/aerospike-client-go/v7"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("astore")

// Config holds the connection settings of an Aerospike cluster.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string

	// Timeout is the default request timeout and the connect timeout
	Timeout time.Duration
}

// storeImpl adapts an Aerospike client to the store.IStore interface.
type storeImpl struct {
	client  *as.Client
	timeout time.Duration
}

// NewAerospikeStore connects to the Aerospike cluster reachable via cfg.Host.
func NewAerospikeStore(cfg Config) (store.IStore, error) {
	cp := as.NewClientPolicy()
	cp.User = cfg.User
	cp.Password = cfg.Password
	if cfg.Timeout > 0 {
		cp.Timeout = cfg.Timeout
	}

	client, err := as.NewClientWithPolicy(cp, cfg.Host, cfg.Port)
	if err != nil {
		return nil, fromAerospikeError(err)
	}
	log.Infof("connected to aerospike cluster at %s:%d (%d nodes)", cfg.Host, cfg.Port, len(client.GetNodes()))
	return &storeImpl{client: client, timeout: cfg.Timeout}, nil
}

// --------------------------------------------------------------------------
// Policy conversion
// --------------------------------------------------------------------------

// timeoutFor returns the client deadline for a request. A given policy is
// taken as is, so a zero timeout means no deadline. The store default only
// applies to requests without a policy.
func (s *storeImpl) timeoutFor(policy *store.Policy) time.Duration {
	if policy != nil {
		return policy.Timeout
	}
	return s.timeout
}

// setDeadline sets the total timeout of p. Zero disables the socket timeout
// as well, otherwise the client default would still cut the request off.
func setDeadline(p *as.BasePolicy, t time.Duration) {
	p.TotalTimeout = t
	if t == 0 || p.SocketTimeout > t {
		p.SocketTimeout = t
	}
}

func (s *storeImpl) basePolicy(policy *store.Policy) *as.BasePolicy {
	p := as.NewPolicy()
	setDeadline(p, s.timeoutFor(policy))
	return p
}

func (s *storeImpl) writePolicy(policy *store.WritePolicy) *as.WritePolicy {
	wp := as.NewWritePolicy(0, 0)
	var p *store.Policy
	if policy != nil {
		p = &policy.Policy
		wp.SendKey = policy.SendKey
	}
	setDeadline(&wp.BasePolicy, s.timeoutFor(p))
	return wp
}

// --------------------------------------------------------------------------
// Interface Methods (docs see store/interface.go)
// --------------------------------------------------------------------------

func (s *storeImpl) Put(policy *store.WritePolicy, key *store.Key, bins ...*store.Bin) error {
	if err := store.ValidateKey(key); err != nil {
		return err
	}
	k, err := toAerospikeKey(key)
	if err != nil {
		return err
	}
	return fromAerospikeError(s.client.Put(s.writePolicy(policy), k, toBinMap(bins)))
}

func (s *storeImpl) Get(policy *store.Policy, key *store.Key, binNames ...string) (*store.Record, error) {
	if err := store.ValidateKey(key); err != nil {
		return nil, err
	}
	k, err := toAerospikeKey(key)
	if err != nil {
		return nil, err
	}
	rec, aerr := s.client.Get(s.basePolicy(policy), k, binNames...)
	if aerr != nil {
		return nil, fromAerospikeError(aerr)
	}
	if rec == nil {
		return nil, store.Errorf(store.RetCRecordNotFound, "record %s not found", key)
	}
	return fromAerospikeRecord(rec)
}

func (s *storeImpl) Delete(policy *store.WritePolicy, key *store.Key) (bool, error) {
	if err := store.ValidateKey(key); err != nil {
		return false, err
	}
	k, err := toAerospikeKey(key)
	if err != nil {
		return false, err
	}
	existed, aerr := s.client.Delete(s.writePolicy(policy), k)
	if aerr != nil {
		return false, fromAerospikeError(aerr)
	}
	return existed, nil
}

func (s *storeImpl) CreateIndex(policy *store.Policy, namespace, set, indexName, binName string, indexType store.IndexType) (store.IIndexTask, error) {
	if err := store.ValidateIndex(namespace, indexName, binName, indexType); err != nil {
		return nil, err
	}
	wp := s.indexPolicy(policy)

	task, aerr := s.client.CreateIndex(wp, namespace, set, indexName, binName, as.NUMERIC)
	if aerr != nil {
		return nil, fromAerospikeError(aerr)
	}
	log.Debugf("index %s.%s on %s.%s requested", namespace, indexName, set, binName)
	return indexTask{task: task}, nil
}

// DropIndex checks the index list first. The server treats a missing index
// as success, the store contract reports it.
func (s *storeImpl) DropIndex(policy *store.Policy, namespace, set, indexName string) error {
	if _, err := s.lookupIndex(namespace, func(d db.IndexDef) bool { return d.Name == indexName }); err != nil {
		return err
	}
	return fromAerospikeError(s.client.DropIndex(s.indexPolicy(policy), namespace, set, indexName))
}

// indexPolicy builds the write policy used for index commands.
func (s *storeImpl) indexPolicy(policy *store.Policy) *as.WritePolicy {
	wp := as.NewWritePolicy(0, 0)
	setDeadline(&wp.BasePolicy, s.timeoutFor(policy))
	return wp
}

func (s *storeImpl) Query(policy *store.QueryPolicy, stmt *store.Statement) (store.IRecordset, error) {
	if err := store.ValidateStatement(stmt); err != nil {
		return nil, err
	}
	var timeoutPolicy *store.Policy
	if policy == nil {
		policy = store.NewQueryPolicy()
	} else {
		timeoutPolicy = &policy.Policy
	}

	st := as.NewStatement(stmt.Namespace, stmt.SetName, stmt.BinNames...)
	if f := stmt.Filter; f != nil {
		info, err := s.lookupIndex(stmt.Namespace, func(d db.IndexDef) bool {
			if stmt.IndexName != "" {
				return d.Name == stmt.IndexName
			}
			return d.Bin == f.Bin && (d.Set == "" || d.Set == stmt.SetName)
		})
		if err != nil {
			return nil, err
		}
		if info.State != db.IndexStateReady {
			return nil, store.Errorf(store.RetCIndexNotReadable, "index %s is still building", info.Def.Name)
		}
		st.IndexName = info.Def.Name
		if aerr := st.SetFilter(as.NewRangeFilter(f.Bin, f.Begin, f.End)); aerr != nil {
			return nil, fromAerospikeError(aerr)
		}
	}

	qp := as.NewQueryPolicy()
	setDeadline(&qp.BasePolicy, s.timeoutFor(timeoutPolicy))
	if policy.RecordQueueSize > 0 {
		qp.RecordQueueSize = policy.RecordQueueSize
	}

	rs, aerr := s.client.Query(qp, st)
	if aerr != nil {
		return nil, fromAerospikeError(aerr)
	}

	return store.NewRecordset(policy.RecordQueueSize, func(yield func(*store.Record) bool) error {
		for res := range rs.Results() {
			if res.Err != nil {
				return fromAerospikeError(res.Err)
			}
			rec, err := fromAerospikeRecord(res.Record)
			if err != nil {
				return err
			}
			if !yield(rec) {
				return nil
			}
		}
		return nil
	}, func() error {
		return fromAerospikeError(rs.Close())
	}), nil
}

// GetDBInfo sums the record counts of all namespaces and lists their indexes.
// Counts are per node master copies and may lag behind recent writes.
func (s *storeImpl) GetDBInfo() (db.DatabaseInfo, error) {
	info := db.DatabaseInfo{
		DbType: db.ImplAerospike,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeatureGet, db.FeatureDelete,
			db.FeatureIndex, db.FeatureRange, db.FeatureScan,
		},
	}

	nodes := s.client.GetNodes()
	if len(nodes) == 0 {
		return info, store.NewError(store.RetCInternalError, "no aerospike node available")
	}
	resp, err := s.requestInfo(nodes[0], "namespaces")
	if err != nil {
		return info, err
	}
	namespaces := strings.Split(resp["namespaces"], ";")
	info.Metadata = map[string]interface{}{
		"nodes":      s.client.GetNodeNames(),
		"namespaces": namespaces,
	}

	for _, ns := range namespaces {
		if ns == "" {
			continue
		}
		for _, node := range nodes {
			r, err := s.requestInfo(node, "namespace/"+ns)
			if err != nil {
				return info, err
			}
			n, perr := parseObjectCount(r["namespace/"+ns])
			if perr != nil {
				log.Warningf("node %s namespace %s: %v", node.GetName(), ns, perr)
				continue
			}
			info.Records += n
		}
		indexes, err := s.listIndexes(ns)
		if err != nil {
			return info, err
		}
		info.Indexes = append(info.Indexes, indexes...)
	}
	return info, nil
}

func (s *storeImpl) Close() error {
	s.client.Close()
	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

func (s *storeImpl) requestInfo(node *as.Node, commands ...string) (map[string]string, error) {
	ip := as.NewInfoPolicy()
	if s.timeout > 0 {
		ip.Timeout = s.timeout
	}
	resp, aerr := node.RequestInfo(ip, commands...)
	if aerr != nil {
		return nil, fromAerospikeError(aerr)
	}
	return resp, nil
}

func (s *storeImpl) listIndexes(namespace string) ([]db.IndexInfo, error) {
	nodes := s.client.GetNodes()
	if len(nodes) == 0 {
		return nil, store.NewError(store.RetCInternalError, "no aerospike node available")
	}
	node := nodes[0]
	cmd := "sindex-list:ns=" + namespace
	resp, err := s.requestInfo(node, cmd)
	if err != nil {
		return nil, err
	}
	return parseSIndexList(resp[cmd]), nil
}

// lookupIndex returns the first index of namespace matching pred or a
// RetCIndexNotFound error.
func (s *storeImpl) lookupIndex(namespace string, pred func(db.IndexDef) bool) (db.IndexInfo, error) {
	indexes, err := s.listIndexes(namespace)
	if err != nil {
		return db.IndexInfo{}, err
	}
	if info, ok := findIndex(indexes, pred); ok {
		return info, nil
	}
	return db.IndexInfo{}, store.NewError(store.RetCIndexNotFound, fmt.Sprintf("no matching index in namespace %s", namespace))
}

func findIndex(indexes []db.IndexInfo, pred func(db.IndexDef) bool) (db.IndexInfo, bool) {
	for _, info := range indexes {
		if pred(info.Def) {
			return info, true
		}
	}
	return db.IndexInfo{}, false
}

// indexTask wraps the index task of the Aerospike client.
type indexTask struct {
	task *as.IndexTask
}

func (t indexTask) IsDone() (bool, error) {
	done, err := t.task.IsDone()
	if err != nil {
		return false, fromAerospikeError(err)
	}
	return done, nil
}

func (t indexTask) WaitUntilComplete() error {
	if err := <-t.task.OnComplete(); err != nil {
		return fromAerospikeError(err)
	}
	return nil
}
