package store

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []*Record {
	out := make([]*Record, n)
	for i := range out {
		k, _ := NewKey("test", "demo", fmt.Sprintf("k%d", i))
		out[i] = &Record{Key: k, Bins: value.BinMap{"v": value.IntegerValue(int64(i))}}
	}
	return out
}

func fromSlice(recs []*Record) Producer {
	return func(yield func(*Record) bool) error {
		for _, r := range recs {
			if !yield(r) {
				return nil
			}
		}
		return nil
	}
}

func TestRecordsetIteratesAll(t *testing.T) {
	var released atomic.Int32
	rs := NewRecordset(2, fromSlice(records(5)), func() error {
		released.Add(1)
		return nil
	})
	assert.Equal(t, CursorOpen, rs.State())

	n := 0
	for rs.Next() {
		require.NotNil(t, rs.Key())
		v, err := rs.Record().Int("v")
		require.NoError(t, err)
		assert.Equal(t, int64(n), v)
		n++
	}
	assert.Equal(t, 5, n)
	assert.NoError(t, rs.Err())
	assert.Equal(t, CursorIterating, rs.State())

	require.NoError(t, rs.Close())
	require.NoError(t, rs.Close())
	assert.Equal(t, CursorClosed, rs.State())
	assert.Equal(t, int32(1), released.Load(), "release runs exactly once")
	assert.False(t, rs.Next(), "a closed recordset yields nothing")
}

func TestRecordsetCloseBeforeIteration(t *testing.T) {
	stopped := make(chan struct{})
	rs := NewRecordset(1, func(yield func(*Record) bool) error {
		defer close(stopped)
		for _, r := range records(1000) {
			if !yield(r) {
				return nil
			}
		}
		return nil
	}, nil)

	require.NoError(t, rs.Close())
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("producer did not stop after Close")
	}
	assert.Nil(t, rs.Record())
}

func TestRecordsetProducerError(t *testing.T) {
	boom := NewError(RetCIndexNotReadable, "building")
	rs := NewRecordset(0, func(yield func(*Record) bool) error {
		yield(records(1)[0])
		return boom
	}, nil)
	defer rs.Close()

	assert.True(t, rs.Next())
	assert.False(t, rs.Next())
	assert.True(t, IsCode(rs.Err(), RetCIndexNotReadable))
	assert.False(t, rs.Next(), "iteration stays stopped after an error")
}

func TestRecordsetReleaseError(t *testing.T) {
	rs := NewRecordset(1, fromSlice(nil), func() error {
		return NewError(RetCCursorNotFound, "gone")
	})
	assert.False(t, rs.Next())
	assert.True(t, IsCode(rs.Close(), RetCCursorNotFound))
	assert.NoError(t, rs.Close())
}

func TestPollingIndexTask(t *testing.T) {
	var polls atomic.Int32
	task := NewPollingIndexTask("idx", time.Millisecond, func() (db.IndexInfo, error) {
		if polls.Add(1) < 3 {
			return db.IndexInfo{State: db.IndexStateBuilding}, nil
		}
		return db.IndexInfo{State: db.IndexStateReady}, nil
	})

	done, err := task.IsDone()
	require.NoError(t, err)
	assert.False(t, done)

	require.NoError(t, task.WaitUntilComplete())
	assert.Equal(t, int32(3), polls.Load())

	failed := NewPollingIndexTask("idx", time.Millisecond, func() (db.IndexInfo, error) {
		return db.IndexInfo{State: db.IndexStateFailed}, nil
	})
	assert.Error(t, failed.WaitUntilComplete())

	missing := NewPollingIndexTask("idx", time.Millisecond, func() (db.IndexInfo, error) {
		return db.IndexInfo{}, NewError(RetCIndexNotFound, "dropped")
	})
	assert.True(t, IsCode(missing.WaitUntilComplete(), RetCIndexNotFound))
}

func TestErrorCodes(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewError(RetCIndexAlreadyExists, "skindex"))
	assert.True(t, IsCode(err, RetCIndexAlreadyExists))
	assert.False(t, IsCode(err, RetCIndexNotFound))
	assert.Equal(t, RetCIndexAlreadyExists, CodeOf(err))
	assert.Equal(t, RetCSuccess, CodeOf(nil))
	assert.Equal(t, RetCInternalError, CodeOf(errors.New("plain")))
	assert.Contains(t, NewError(RetCTimeout, "slow").Error(), "Timeout")

	cases := map[error]RetCode{
		db.ErrIndexExists:      RetCIndexAlreadyExists,
		db.ErrIndexNotFound:    RetCIndexNotFound,
		db.ErrIndexNotReadable: RetCIndexNotReadable,
		db.ErrInvalidIndex:     RetCParameterError,
		errors.New("other"):    RetCInternalError,
	}
	for in, want := range cases {
		assert.Equal(t, want, CodeOf(FromDBError(fmt.Errorf("ctx: %w", in))), in.Error())
	}
	assert.NoError(t, FromDBError(nil))
}

func TestKeysAndEntries(t *testing.T) {
	k, err := NewKey("test", "demo", "skkey1")
	require.NoError(t, err)
	assert.Equal(t, db.ComputeDigest("demo", value.StringValue("skkey1")), k.Digest)

	_, err = NewKey("test", "demo", nil)
	assert.True(t, IsCode(err, RetCParameterError))
	_, err = NewKey("test", "demo", 1.5)
	assert.True(t, IsCode(err, RetCParameterError))

	withKey := EntryFromPut(k, true, []*Bin{NewBin("skbin", 1), nil})
	require.NotNil(t, withKey.UserKey)
	assert.True(t, withKey.UserKey.Equal(value.StringValue("skkey1")))
	assert.Len(t, withKey.Bins, 1)

	withoutKey := EntryFromPut(k, false, []*Bin{NewBin("skbin", 1)})
	assert.Nil(t, withoutKey.UserKey)

	rec := RecordFromEntry(db.Entry{Namespace: "test", Set: "demo", Digest: k.Digest, Bins: value.BinMap{
		"a": value.IntegerValue(1), "b": value.IntegerValue(2),
	}}, []string{"a"})
	assert.Nil(t, rec.Key.Value())
	assert.Len(t, rec.Bins, 1)
	_, err = rec.Int("b")
	assert.Error(t, err)

	stmt := NewStatement("test", "demo", "skbin")
	assert.Error(t, stmt.SetFilter(nil))
	require.NoError(t, stmt.SetFilter(NewRangeFilter("skbin", 2, 5)))
	q := stmt.RangeQuery()
	assert.Equal(t, db.RangeQuery{Namespace: "test", Set: "demo", Bin: "skbin", Begin: 2, End: 5}, q)
}
