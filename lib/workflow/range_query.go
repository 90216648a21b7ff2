package workflow

import (
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/pkg/errors"
)

// KeyStatus classifies the user key of a query result.
type KeyStatus uint8

const (
	KeyPresent KeyStatus = iota // the user key was retained and has a value
	KeyEmpty                    // a user key was returned but holds no value
	KeyAbsent                   // the store returned no user key
)

func (s KeyStatus) String() string {
	switch s {
	case KeyPresent:
		return "present"
	case KeyEmpty:
		return "empty"
	case KeyAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// MatchedRecord is one query hit.
type MatchedRecord struct {
	Namespace  string
	Set        string
	Status     KeyStatus
	Identifier value.Value // Empty unless Status is KeyPresent
	Value      int64
}

// QuerySummary is the result of a range query. Every hit counts towards
// MatchedCount, including hits without a recoverable user key.
type QuerySummary struct {
	MatchedCount int
	Records      []MatchedRecord
}

// Anomalies returns the hits without a usable user key.
func (s *QuerySummary) Anomalies() []MatchedRecord {
	var out []MatchedRecord
	for _, r := range s.Records {
		if r.Status != KeyPresent {
			out = append(out, r)
		}
	}
	return out
}

// Verification compares a summary with the expected hit count.
type Verification struct {
	Expected  int
	Received  int
	Anomalies int
}

// CountMatches reports whether the expected number of records was returned.
func (v Verification) CountMatches() bool {
	return v.Expected == v.Received
}

// OK reports whether the count matches and every hit carried its user key.
func (v Verification) OK() bool {
	return v.CountMatches() && v.Anomalies == 0
}

// Verify checks the match count. A mismatch is logged and reported, it is not an error.
func (s *QuerySummary) Verify(expected int) Verification {
	v := Verification{
		Expected:  expected,
		Received:  s.MatchedCount,
		Anomalies: len(s.Anomalies()),
	}
	if !v.CountMatches() {
		log.Errorf("Query count mismatch. Expected %d. Received %d", expected, s.MatchedCount)
	}
	return v
}

// RangeQueryExecutor runs range queries through a secondary index.
type RangeQueryExecutor struct {
	store  store.IStore
	policy *store.QueryPolicy
}

// NewRangeQueryExecutor creates an executor with the default query policy.
func NewRangeQueryExecutor(s store.IStore) *RangeQueryExecutor {
	return &RangeQueryExecutor{store: s, policy: store.NewQueryPolicy()}
}

// RangeQuery returns all records of namespace/set whose bin lies in [begin, end].
// Only bin is fetched. The recordset is closed on every return path; a close
// error is returned only if nothing else failed.
func (q *RangeQueryExecutor) RangeQuery(namespace, set, indexName, bin string, begin, end int64) (summary *QuerySummary, err error) {
	log.Infof("Query user key for: ns=%s set=%s index=%s bin=%s >= %d <= %d",
		namespace, set, indexName, bin, begin, end)

	stmt := store.NewStatement(namespace, set, bin)
	stmt.IndexName = indexName
	if err := stmt.SetFilter(store.NewRangeFilter(bin, begin, end)); err != nil {
		return nil, errors.Wrap(err, "build query")
	}

	rs, err := q.store.Query(q.policy, stmt)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s.%s index %s", namespace, set, indexName)
	}
	defer func() {
		if cerr := rs.Close(); cerr != nil {
			if err == nil {
				err = errors.Wrap(cerr, "close recordset")
			} else {
				log.Warningf("closing recordset after failed query: %v", cerr)
			}
		}
	}()

	summary = &QuerySummary{}
	for rs.Next() {
		m, err := classify(rs.Key(), rs.Record(), namespace, set, bin)
		if err != nil {
			return nil, err
		}
		summary.Records = append(summary.Records, m)
		summary.MatchedCount++
	}
	if err := rs.Err(); err != nil {
		return nil, errors.Wrapf(err, "iterate %s.%s index %s", namespace, set, indexName)
	}
	return summary, nil
}

// classify turns one result into a MatchedRecord and logs it.
func classify(key *store.Key, rec *store.Record, namespace, set, bin string) (MatchedRecord, error) {
	m := MatchedRecord{Namespace: namespace, Set: set}
	if key != nil {
		m.Namespace, m.Set = key.Namespace, key.SetName
	}
	if rec == nil {
		return m, errors.Errorf("query returned no record for key %v", key)
	}
	v, err := rec.Int(bin)
	if err != nil {
		return m, errors.Wrapf(err, "read bin %s of %s.%s", bin, m.Namespace, m.Set)
	}
	m.Value = v

	switch {
	case key == nil || key.Value() == nil:
		m.Status = KeyAbsent
		log.Errorf("Record found with null user key: ns=%s set=%s bin=%s userkey=null", m.Namespace, m.Set, bin)
	case key.Value().Object() == nil:
		m.Status = KeyEmpty
		log.Errorf("Record found with null user key: ns=%s set=%s bin=%s userkey=null value=%d", m.Namespace, m.Set, bin, v)
	default:
		m.Status = KeyPresent
		m.Identifier = *key.Value()
		log.Infof("Record found with user key: ns=%s set=%s bin=%s userkey=%s value=%d", m.Namespace, m.Set, bin, m.Identifier, v)
	}
	return m, nil
}
