package workflow

import (
	"errors"
	"testing"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/db/engines/maple"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/store/lstore"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --------------------------------------------------------------------------
// Test doubles
// --------------------------------------------------------------------------

// countingRecordset counts Close calls of the wrapped recordset.
type countingRecordset struct {
	store.IRecordset
	closes int
}

func (c *countingRecordset) Close() error {
	c.closes++
	return c.IRecordset.Close()
}

// fakeStore wraps a local store and injects failures.
type fakeStore struct {
	store.IStore

	createErr error
	putErrAt  int // 1-based number of the failing Put, 0 = never
	puts      int
	dropErr   error
	drops     int

	// query replaces Query when set
	query   func(stmt *store.Statement) (store.IRecordset, error)
	cursors []*countingRecordset
}

func newFakeStore(t *testing.T) *fakeStore {
	s := lstore.NewLocalStore(func() db.RecordDB { return maple.NewMapleDB(nil) })
	t.Cleanup(func() { _ = s.Close() })
	return &fakeStore{IStore: s}
}

func (f *fakeStore) CreateIndex(p *store.Policy, ns, set, name, bin string, t store.IndexType) (store.IIndexTask, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	return f.IStore.CreateIndex(p, ns, set, name, bin, t)
}

func (f *fakeStore) Put(p *store.WritePolicy, key *store.Key, bins ...*store.Bin) error {
	f.puts++
	if f.putErrAt != 0 && f.puts == f.putErrAt {
		return store.NewError(store.RetCTimeout, "put timed out")
	}
	return f.IStore.Put(p, key, bins...)
}

func (f *fakeStore) DropIndex(p *store.Policy, ns, set, name string) error {
	f.drops++
	if f.dropErr != nil {
		return f.dropErr
	}
	return f.IStore.DropIndex(p, ns, set, name)
}

func (f *fakeStore) Query(p *store.QueryPolicy, stmt *store.Statement) (store.IRecordset, error) {
	var rs store.IRecordset
	var err error
	if f.query != nil {
		rs, err = f.query(stmt)
	} else {
		rs, err = f.IStore.Query(p, stmt)
	}
	if err != nil {
		return nil, err
	}
	c := &countingRecordset{IRecordset: rs}
	f.cursors = append(f.cursors, c)
	return c, nil
}

func record(key *store.Key, bin string, v value.Value) *store.Record {
	return &store.Record{Key: key, Bins: value.BinMap{bin: v}}
}

// --------------------------------------------------------------------------
// Tests
// --------------------------------------------------------------------------

func TestEndToEnd(t *testing.T) {
	s := newFakeStore(t)

	w, err := New(s, DefaultConfig())
	require.NoError(t, err)

	report, err := w.Run()
	require.NoError(t, err)
	require.NotNil(t, report.Summary)

	assert.True(t, report.OK())
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, Created, report.Index.Outcome)
	assert.Equal(t, 4, report.Summary.MatchedCount)
	assert.Empty(t, report.Summary.Anomalies())

	got := map[string]int64{}
	for _, r := range report.Summary.Records {
		assert.Equal(t, KeyPresent, r.Status)
		assert.Equal(t, "test", r.Namespace)
		assert.Equal(t, "demo", r.Set)
		got[r.Identifier.String()] = r.Value
	}
	assert.Equal(t, map[string]int64{"skkey2": 2, "skkey3": 3, "skkey4": 4, "skkey5": 5}, got)

	// teardown dropped the index, the cursor was closed once
	assert.True(t, report.TeardownRan)
	info, err := s.GetDBInfo()
	require.NoError(t, err)
	assert.Empty(t, info.Indexes)
	require.Len(t, s.cursors, 1)
	assert.Equal(t, 1, s.cursors[0].closes)
}

func TestCreateIndexIdempotent(t *testing.T) {
	s := newFakeStore(t)
	m := NewIndexManager(s)
	def := IndexDefinition{Namespace: "test", Set: "demo", Name: "skindex", Bin: "skbin", Type: store.NUMERIC}

	assert.Equal(t, Created, m.Create(def).Outcome)
	second := m.Create(def)
	assert.Equal(t, AlreadyExists, second.Outcome)
	assert.NoError(t, second.Err)

	assert.NoError(t, m.CreateIndex(def))
	assert.NoError(t, m.CreateIndex(def))
}

func TestRunWithExistingIndex(t *testing.T) {
	s := newFakeStore(t)
	require.NoError(t, NewIndexManager(s).CreateIndex(IndexDefinition{Namespace: "test", Set: "demo", Name: "skindex", Bin: "skbin"}))

	w, err := New(s, DefaultConfig())
	require.NoError(t, err)
	report, err := w.Run()
	require.NoError(t, err)
	assert.Equal(t, AlreadyExists, report.Index.Outcome)
	assert.True(t, report.OK())
}

func TestCreateIndexFailure(t *testing.T) {
	s := newFakeStore(t)
	s.createErr = store.NewError(store.RetCParameterError, "bad bin")

	res := NewIndexManager(s).Create(IndexDefinition{Namespace: "test", Set: "demo", Name: "skindex", Bin: "skbin"})
	assert.Equal(t, Failed, res.Outcome)
	assert.True(t, store.IsCode(res.Err, store.RetCParameterError))
	assert.Contains(t, res.Err.Error(), "skindex")

	cfg := DefaultConfig()
	cfg.Teardown = TeardownOnSuccess
	w, err := New(s, cfg)
	require.NoError(t, err)
	report, err := w.Run()
	require.Error(t, err)
	assert.True(t, store.IsCode(err, store.RetCParameterError))
	assert.Zero(t, s.puts, "no records are written after a failed create")
	assert.Nil(t, report.Summary)
}

func TestRetainKeyDisabled(t *testing.T) {
	s := newFakeStore(t)
	cfg := DefaultConfig()
	cfg.RetainKey = false

	w, err := New(s, cfg)
	require.NoError(t, err)
	report, err := w.Run()
	require.NoError(t, err, "missing user keys are not an error")

	assert.Equal(t, 4, report.Summary.MatchedCount)
	assert.Len(t, report.Summary.Anomalies(), 4)
	for _, r := range report.Summary.Records {
		assert.Equal(t, KeyAbsent, r.Status)
		assert.True(t, r.Identifier.IsEmpty())
	}
	assert.True(t, report.Verification.CountMatches())
	assert.False(t, report.Verification.OK())
	assert.False(t, report.OK())
}

func TestCountMismatchIsReported(t *testing.T) {
	s := newFakeStore(t)
	cfg := DefaultConfig()
	cfg.Expected = 5

	w, err := New(s, cfg)
	require.NoError(t, err)
	report, err := w.Run()
	require.NoError(t, err)
	assert.False(t, report.Verification.CountMatches())
	assert.Equal(t, 4, report.Verification.Received)
	assert.Equal(t, 5, report.Verification.Expected)
}

func TestKeyEmptyClassification(t *testing.T) {
	s := newFakeStore(t)
	empty := value.EmptyValue()
	present := value.StringValue("skkey3")
	s.query = func(stmt *store.Statement) (store.IRecordset, error) {
		recs := []*store.Record{
			record(&store.Key{Namespace: "test", SetName: "demo", UserKey: &empty}, "skbin", value.IntegerValue(2)),
			record(&store.Key{Namespace: "test", SetName: "demo", UserKey: &present}, "skbin", value.IntegerValue(3)),
			record(&store.Key{Namespace: "test", SetName: "demo"}, "skbin", value.IntegerValue(4)),
		}
		return store.NewRecordset(1, func(yield func(*store.Record) bool) error {
			for _, r := range recs {
				if !yield(r) {
					return nil
				}
			}
			return nil
		}, nil), nil
	}

	summary, err := NewRangeQueryExecutor(s).RangeQuery("test", "demo", "skindex", "skbin", 2, 5)
	require.NoError(t, err)
	require.Len(t, summary.Records, 3)
	assert.Equal(t, 3, summary.MatchedCount)

	assert.Equal(t, KeyEmpty, summary.Records[0].Status)
	assert.Equal(t, int64(2), summary.Records[0].Value, "the value is still reported")
	assert.Equal(t, KeyPresent, summary.Records[1].Status)
	assert.True(t, summary.Records[1].Identifier.Equal(present))
	assert.Equal(t, KeyAbsent, summary.Records[2].Status)
	assert.Len(t, summary.Anomalies(), 2)
	assert.Equal(t, 1, s.cursors[0].closes)
}

func TestCursorClosedOnMidIterationFailure(t *testing.T) {
	key, err := store.NewKey("test", "demo", "skkey2")
	require.NoError(t, err)

	t.Run("store error", func(t *testing.T) {
		s := newFakeStore(t)
		s.query = func(*store.Statement) (store.IRecordset, error) {
			return store.NewRecordset(1, func(yield func(*store.Record) bool) error {
				yield(record(key, "skbin", value.IntegerValue(2)))
				return store.NewError(store.RetCTimeout, "connection lost")
			}, nil), nil
		}

		_, err := NewRangeQueryExecutor(s).RangeQuery("test", "demo", "skindex", "skbin", 2, 5)
		require.Error(t, err)
		assert.True(t, store.IsCode(err, store.RetCTimeout))
		require.Len(t, s.cursors, 1)
		assert.Equal(t, 1, s.cursors[0].closes)
	})

	t.Run("bad record", func(t *testing.T) {
		s := newFakeStore(t)
		s.query = func(*store.Statement) (store.IRecordset, error) {
			return store.NewRecordset(1, func(yield func(*store.Record) bool) error {
				yield(record(key, "skbin", value.StringValue("two")))
				yield(record(key, "skbin", value.IntegerValue(3)))
				return nil
			}, nil), nil
		}

		_, err := NewRangeQueryExecutor(s).RangeQuery("test", "demo", "skindex", "skbin", 2, 5)
		require.Error(t, err)
		assert.True(t, errors.Is(err, value.ErrType))
		require.Len(t, s.cursors, 1)
		assert.Equal(t, 1, s.cursors[0].closes)
	})

	t.Run("close error does not mask", func(t *testing.T) {
		s := newFakeStore(t)
		s.query = func(*store.Statement) (store.IRecordset, error) {
			return store.NewRecordset(1, func(yield func(*store.Record) bool) error {
				return store.NewError(store.RetCIndexNotReadable, "building")
			}, func() error {
				return store.NewError(store.RetCCursorNotFound, "cursor expired")
			}), nil
		}

		_, err := NewRangeQueryExecutor(s).RangeQuery("test", "demo", "skindex", "skbin", 2, 5)
		assert.True(t, store.IsCode(err, store.RetCIndexNotReadable), "got %v", err)
	})

	t.Run("close error surfaces", func(t *testing.T) {
		s := newFakeStore(t)
		s.query = func(*store.Statement) (store.IRecordset, error) {
			return store.NewRecordset(1, func(yield func(*store.Record) bool) error {
				return nil
			}, func() error {
				return store.NewError(store.RetCCursorNotFound, "cursor expired")
			}), nil
		}

		_, err := NewRangeQueryExecutor(s).RangeQuery("test", "demo", "skindex", "skbin", 2, 5)
		assert.True(t, store.IsCode(err, store.RetCCursorNotFound), "got %v", err)
	})
}

func TestTeardownPolicies(t *testing.T) {
	t.Run("always", func(t *testing.T) {
		s := newFakeStore(t)
		s.putErrAt = 3
		s.dropErr = store.NewError(store.RetCInternalError, "drop failed")

		w, err := New(s, DefaultConfig())
		require.NoError(t, err)
		report, err := w.Run()

		require.Error(t, err)
		assert.True(t, store.IsCode(err, store.RetCTimeout), "the stage error is returned, got %v", err)
		assert.Contains(t, err.Error(), "skkey3")
		assert.Equal(t, 3, s.puts, "the batch stops at the first failure")
		assert.Equal(t, 1, s.drops)
		assert.True(t, report.TeardownRan)
		assert.True(t, store.IsCode(report.TeardownErr, store.RetCInternalError))
	})

	t.Run("on success", func(t *testing.T) {
		s := newFakeStore(t)
		s.putErrAt = 1
		cfg := DefaultConfig()
		cfg.Teardown = TeardownOnSuccess

		w, err := New(s, cfg)
		require.NoError(t, err)
		report, err := w.Run()

		require.Error(t, err)
		assert.Zero(t, s.drops, "the index is left in place")
		assert.False(t, report.TeardownRan)

		info, err := s.GetDBInfo()
		require.NoError(t, err)
		assert.Len(t, info.Indexes, 1)
	})

	t.Run("drop error without stage error", func(t *testing.T) {
		s := newFakeStore(t)
		s.dropErr = store.NewError(store.RetCIndexNotFound, "gone")

		w, err := New(s, DefaultConfig())
		require.NoError(t, err)
		report, err := w.Run()

		assert.True(t, store.IsCode(err, store.RetCIndexNotFound), "got %v", err)
		require.NotNil(t, report.Summary)
		assert.Equal(t, 4, report.Summary.MatchedCount)
		assert.False(t, report.OK())
	})
}

func TestConfig(t *testing.T) {
	p, err := ParseTeardownPolicy("on-success")
	require.NoError(t, err)
	assert.Equal(t, TeardownOnSuccess, p)

	p, err = ParseTeardownPolicy("ALWAYS")
	require.NoError(t, err)
	assert.Equal(t, TeardownAlways, p)

	_, err = ParseTeardownPolicy("never")
	assert.Error(t, err)

	cfg := DefaultConfig()
	cfg.IndexName = ""
	_, err = New(newFakeStore(t), cfg)
	assert.Error(t, err)
}
