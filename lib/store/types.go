package store

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
)

// --------------------------------------------------------------------------
// Keys, Bins and Records
// --------------------------------------------------------------------------

// Key identifies a record. The Digest is the identity inside the store, the
// UserKey is the application identifier and may be nil for records read back
// from the store without a retained key.
type Key struct {
	Namespace string
	SetName   string
	UserKey   *value.Value
	Digest    db.Digest
}

// NewKey creates a key from an application identifier (int, string or []byte).
func NewKey(namespace, set string, userKey interface{}) (*Key, error) {
	v, err := value.FromObject(userKey)
	if err != nil {
		return nil, NewError(RetCParameterError, err.Error())
	}
	if v.IsEmpty() {
		return nil, NewError(RetCParameterError, "user key must not be empty")
	}
	return &Key{
		Namespace: namespace,
		SetName:   set,
		UserKey:   &v,
		Digest:    db.ComputeDigest(set, v),
	}, nil
}

// NewKeyWithDigest creates a key for a record that is only known by its digest.
func NewKeyWithDigest(namespace, set string, digest db.Digest) *Key {
	return &Key{Namespace: namespace, SetName: set, Digest: digest}
}

// Value returns the user key or nil if the key has none.
func (k *Key) Value() *value.Value {
	return k.UserKey
}

func (k *Key) String() string {
	if k.UserKey != nil {
		return fmt.Sprintf("%s:%s:%s:%s", k.Namespace, k.SetName, k.UserKey, k.Digest)
	}
	return fmt.Sprintf("%s:%s::%s", k.Namespace, k.SetName, k.Digest)
}

// Bin is a named value of a record.
type Bin struct {
	Name  string
	Value value.Value
}

// NewBin creates a bin from a Go value (int, string, []byte or nil).
// Unsupported types produce an empty bin; use value constructors for strict typing.
func NewBin(name string, v interface{}) *Bin {
	val, err := value.FromObject(v)
	if err != nil {
		val = value.EmptyValue()
	}
	return &Bin{Name: name, Value: val}
}

// Record is a record returned by the store.
type Record struct {
	Key        *Key
	Bins       value.BinMap
	Generation uint32
}

// Int returns an integer bin.
func (r *Record) Int(bin string) (int64, error) {
	v, ok := r.Bins[bin]
	if !ok {
		return 0, fmt.Errorf("bin %q not in record", bin)
	}
	return v.AsInteger()
}

// RecordFromEntry converts a stored entry into a record with the projected bins.
func RecordFromEntry(e db.Entry, binNames []string) *Record {
	return &Record{
		Key: &Key{
			Namespace: e.Namespace,
			SetName:   e.Set,
			UserKey:   e.UserKey,
			Digest:    e.Digest,
		},
		Bins:       e.Bins.Project(binNames),
		Generation: e.Generation,
	}
}

// EntryFromPut builds the entry a Put writes. The user key is only set if sendKey is true.
func EntryFromPut(key *Key, sendKey bool, bins []*Bin) db.Entry {
	m := make(value.BinMap, len(bins))
	for _, b := range bins {
		if b != nil {
			m[b.Name] = b.Value
		}
	}
	e := db.Entry{
		Namespace: key.Namespace,
		Set:       key.SetName,
		Digest:    key.Digest,
		Bins:      m,
	}
	if sendKey && key.UserKey != nil {
		k := *key.UserKey
		e.UserKey = &k
	}
	return e
}

// --------------------------------------------------------------------------
// Indexes, Filters and Statements
// --------------------------------------------------------------------------

// IndexType is the value domain of a secondary index.
type IndexType = db.IndexType

// NUMERIC is the only supported index type.
const NUMERIC = db.IndexTypeNumeric

// Filter selects records whose Bin value lies in [Begin, End] (inclusive).
type Filter struct {
	Bin   string
	Begin int64
	End   int64
}

// NewRangeFilter creates an inclusive range filter.
func NewRangeFilter(bin string, begin, end int64) *Filter {
	return &Filter{Bin: bin, Begin: begin, End: end}
}

func (f *Filter) String() string {
	return fmt.Sprintf("%s in [%d, %d]", f.Bin, f.Begin, f.End)
}

// Statement describes a query: namespace/set, projected bins and an optional
// range filter. IndexName is optional; without it the index is resolved by the filter bin.
type Statement struct {
	Namespace string
	SetName   string
	IndexName string
	BinNames  []string
	Filter    *Filter
}

// NewStatement creates a statement that projects binNames (all bins if none are given).
func NewStatement(namespace, set string, binNames ...string) *Statement {
	return &Statement{Namespace: namespace, SetName: set, BinNames: binNames}
}

// SetFilter sets the range filter of the statement.
func (s *Statement) SetFilter(f *Filter) error {
	if f == nil {
		return NewError(RetCParameterError, "filter must not be nil")
	}
	if f.Bin == "" {
		return NewError(RetCParameterError, "filter bin must not be empty")
	}
	s.Filter = f
	return nil
}

// RangeQuery converts a filtered statement into an engine range query.
func (s *Statement) RangeQuery() db.RangeQuery {
	q := db.RangeQuery{
		Namespace: s.Namespace,
		Set:       s.SetName,
		IndexName: s.IndexName,
	}
	if s.Filter != nil {
		q.Bin = s.Filter.Bin
		q.Begin = s.Filter.Begin
		q.End = s.Filter.End
	}
	return q
}

// --------------------------------------------------------------------------
// Policies
// --------------------------------------------------------------------------

const (
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultRecordQueueSize = 64
)

// Policy holds the options shared by all operations.
type Policy struct {
	// Timeout bounds a single request. Zero means no client side deadline.
	Timeout time.Duration

	// PollInterval is the delay between two index status polls of an IIndexTask.
	PollInterval time.Duration
}

// NewPolicy returns a policy without deadline.
func NewPolicy() *Policy {
	return &Policy{PollInterval: DefaultPollInterval}
}

// WritePolicy holds the options of write operations.
type WritePolicy struct {
	Policy

	// SendKey makes the store persist the user key next to the digest. Without
	// it the key can not be recovered by reads or queries.
	SendKey bool
}

// NewWritePolicy returns the default write policy (the user key is not sent).
func NewWritePolicy() *WritePolicy {
	return &WritePolicy{Policy: *NewPolicy()}
}

// QueryPolicy holds the options of queries.
type QueryPolicy struct {
	Policy

	// RecordQueueSize is the number of records buffered between the producer
	// of a recordset and its consumer.
	RecordQueueSize int
}

// NewQueryPolicy returns the default query policy.
func NewQueryPolicy() *QueryPolicy {
	return &QueryPolicy{Policy: *NewPolicy(), RecordQueueSize: DefaultRecordQueueSize}
}

// EffectivePollInterval returns the poll interval of p or the default for nil/unset policies.
func (p *Policy) EffectivePollInterval() time.Duration {
	if p == nil || p.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return p.PollInterval
}
