package workflow

import (
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/pkg/errors"
)

// IndexDefinition names a secondary index over (namespace, set, bin).
type IndexDefinition struct {
	Namespace string
	Set       string
	Name      string
	Bin       string
	Type      store.IndexType
}

// CreateOutcome is the result of an index creation attempt.
type CreateOutcome uint8

const (
	Created       CreateOutcome = iota // the index was built by this call
	AlreadyExists                      // an index with the same definition existed before
	Failed                             // the store rejected the request or the build failed
)

func (o CreateOutcome) String() string {
	switch o {
	case Created:
		return "created"
	case AlreadyExists:
		return "already exists"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// CreateResult carries the outcome of Create. Err is only set for Failed.
type CreateResult struct {
	Outcome CreateOutcome
	Err     error
}

// IndexManager creates and drops secondary indexes.
type IndexManager struct {
	store  store.IStore
	policy *store.Policy
}

// NewIndexManager creates an index manager. Index requests are sent without a
// client side timeout.
func NewIndexManager(s store.IStore) *IndexManager {
	policy := store.NewPolicy()
	policy.Timeout = 0
	return &IndexManager{store: s, policy: policy}
}

// Create requests the index and blocks until the build completed or failed.
// "Already exists" is reported as its own outcome, whether the store rejects the
// request directly or reports it from the build task.
func (m *IndexManager) Create(def IndexDefinition) CreateResult {
	log.Infof("Create index: ns=%s set=%s index=%s bin=%s", def.Namespace, def.Set, def.Name, def.Bin)

	indexType := def.Type
	if indexType == "" {
		indexType = store.NUMERIC
	}

	task, err := m.store.CreateIndex(m.policy, def.Namespace, def.Set, def.Name, def.Bin, indexType)
	if err == nil {
		err = task.WaitUntilComplete()
	}

	switch {
	case err == nil:
		return CreateResult{Outcome: Created}
	case store.IsCode(err, store.RetCIndexAlreadyExists):
		log.Infof("index %s already exists in %s.%s", def.Name, def.Namespace, def.Set)
		return CreateResult{Outcome: AlreadyExists}
	default:
		return CreateResult{
			Outcome: Failed,
			Err:     errors.Wrapf(err, "create index %s on %s.%s bin %s", def.Name, def.Namespace, def.Set, def.Bin),
		}
	}
}

// CreateIndex is Create with the idempotent policy applied: an existing index is not an error.
func (m *IndexManager) CreateIndex(def IndexDefinition) error {
	res := m.Create(def)
	if res.Outcome == Failed {
		return res.Err
	}
	return nil
}

// DropIndex removes the index. It is not retried.
func (m *IndexManager) DropIndex(namespace, set, name string) error {
	log.Infof("Drop index: ns=%s set=%s index=%s", namespace, set, name)
	if err := m.store.DropIndex(m.policy, namespace, set, name); err != nil {
		return errors.Wrapf(err, "drop index %s on %s.%s", name, namespace, set)
	}
	return nil
}
