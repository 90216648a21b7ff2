package dstore

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/db/engines/maple"
	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/store/dstore/internal"
	sm "github.com/lni/dragonboat/v4/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMachine(t *testing.T) *RecordStateMachine {
	t.Helper()
	fsm := CreateStateMaschineFactory(func() db.RecordDB { return maple.NewMapleDB(nil) })(1, 1)
	t.Cleanup(func() { _ = fsm.Close() })
	return fsm.(*RecordStateMachine)
}

// apply runs the commands as one batch starting at log index from.
func apply(t *testing.T, fsm *RecordStateMachine, from uint64, cmds ...internal.Command) []sm.Result {
	t.Helper()
	entries := make([]sm.Entry, len(cmds))
	for i, cmd := range cmds {
		entries[i] = sm.Entry{Index: from + uint64(i), Cmd: cmd.Serialize()}
	}
	out, err := fsm.Update(entries)
	require.NoError(t, err)
	results := make([]sm.Result, len(out))
	for i, e := range out {
		results[i] = e.Result
	}
	return results
}

func putCmd(t *testing.T, i int, sendKey bool) internal.Command {
	t.Helper()
	key, err := store.NewKey("test", "demo", fmt.Sprintf("skkey%d", i))
	require.NoError(t, err)
	return internal.NewPutCommand(store.EntryFromPut(key, sendKey, []*store.Bin{store.NewBin("skbin", i)}))
}

func indexCmd() internal.Command {
	return internal.Command{
		Type:      internal.CommandTCreateIndex,
		Namespace: "test",
		Set:       "demo",
		IndexName: "skindex",
		BinName:   "skbin",
		IndexType: db.IndexTypeNumeric,
	}
}

func waitIndexReady(t *testing.T, fsm *RecordStateMachine) {
	t.Helper()
	task := store.NewPollingIndexTask("skindex", 0, func() (db.IndexInfo, error) {
		res, err := fsm.Lookup(internal.Query{Type: internal.QueryTIndexStatus, Namespace: "test", IndexName: "skindex"})
		if err != nil {
			return db.IndexInfo{}, err
		}
		return res.(db.IndexInfo), nil
	})
	require.NoError(t, task.WaitUntilComplete())
}

func rangeQuery(begin, end int64) internal.Query {
	return internal.Query{Type: internal.QueryTRange, Namespace: "test", Set: "demo", Range: db.RangeQuery{
		Namespace: "test", Set: "demo", Bin: "skbin", Begin: begin, End: end,
	}}
}

func TestUpdateAndLookup(t *testing.T) {
	fsm := newTestMachine(t)

	var cmds []internal.Command
	for i := 1; i <= 9; i++ {
		cmds = append(cmds, putCmd(t, i, true))
	}
	cmds = append(cmds, indexCmd())
	for _, res := range apply(t, fsm, 1, cmds...) {
		assert.Equal(t, uint64(store.RetCSuccess), res.Value, string(res.Data))
	}
	waitIndexReady(t, fsm)

	res, err := fsm.Lookup(rangeQuery(2, 5))
	require.NoError(t, err)
	entries := res.([]db.Entry)
	require.Len(t, entries, 4)
	for _, e := range entries {
		require.NotNil(t, e.UserKey)
		v, err := e.Bins["skbin"].AsInteger()
		require.NoError(t, err)
		assert.True(t, v >= 2 && v <= 5)
	}

	digest := putCmd(t, 3, true).Digest
	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTGet, Namespace: "test", Digest: digest})
	require.NoError(t, err)
	got := res.(internal.QueryResult)
	assert.True(t, got.Ok)
	assert.Equal(t, "skkey3", got.Entry.UserKey.String())

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTScan, Namespace: "test", Set: "demo"})
	require.NoError(t, err)
	assert.Len(t, res.([]db.Entry), 9)

	res, err = fsm.Lookup(internal.Query{Type: internal.QueryTGetDBInfo})
	require.NoError(t, err)
	assert.Equal(t, 9, res.(db.DatabaseInfo).Records)
}

func TestUpdateResultCodes(t *testing.T) {
	fsm := newTestMachine(t)

	del := internal.Command{Type: internal.CommandTDelete, Namespace: "test", Digest: putCmd(t, 1, false).Digest}
	drop := internal.Command{Type: internal.CommandTDropIndex, Namespace: "test", Set: "demo", IndexName: "skindex"}

	results := apply(t, fsm, 1,
		putCmd(t, 1, false),
		indexCmd(),
		indexCmd(),
		del,
		del,
		drop,
		drop,
		internal.Command{Type: internal.CommandType(99)},
	)

	assert.Equal(t, uint64(store.RetCSuccess), results[0].Value)
	assert.Equal(t, uint64(store.RetCSuccess), results[1].Value)
	assert.Equal(t, uint64(store.RetCIndexAlreadyExists), results[2].Value)
	assert.Equal(t, []byte{1}, results[3].Data, "first delete finds the record")
	assert.Equal(t, []byte{0}, results[4].Data, "second delete finds nothing")
	assert.Equal(t, uint64(store.RetCSuccess), results[5].Value)
	assert.Equal(t, uint64(store.RetCIndexNotFound), results[6].Value)
	assert.Equal(t, uint64(store.RetCInvalidOperation), results[7].Value)

	out, err := fsm.Update([]sm.Entry{{Index: 100}, {Index: 101, Cmd: []byte{1, 2}}})
	require.NoError(t, err)
	assert.Equal(t, uint64(store.RetCInvalidOperation), out[0].Result.Value)
	assert.Equal(t, uint64(store.RetCInternalError), out[1].Result.Value)
}

func TestLookupErrors(t *testing.T) {
	fsm := newTestMachine(t)

	_, err := fsm.Lookup("not a query")
	assert.True(t, store.IsCode(err, store.RetCInternalError))

	_, err = fsm.Lookup(rangeQuery(0, 10))
	assert.True(t, store.IsCode(err, store.RetCIndexNotFound), "got %v", err)

	_, err = fsm.Lookup(internal.Query{Type: internal.QueryTIndexStatus, Namespace: "test", IndexName: "missing"})
	assert.True(t, store.IsCode(err, store.RetCIndexNotFound), "got %v", err)

	_, err = fsm.Lookup(internal.Query{Type: internal.QueryType(99)})
	assert.True(t, store.IsCode(err, store.RetCInvalidOperation), "got %v", err)
}

func TestSnapshotRecovery(t *testing.T) {
	src := newTestMachine(t)
	var cmds []internal.Command
	for i := 1; i <= 5; i++ {
		cmds = append(cmds, putCmd(t, i, i%2 == 0))
	}
	cmds = append(cmds, indexCmd())
	apply(t, src, 1, cmds...)
	waitIndexReady(t, src)

	var buf bytes.Buffer
	ctx, err := src.PrepareSnapshot()
	require.NoError(t, err)
	require.NoError(t, src.SaveSnapshot(ctx, &buf, nil, nil))

	dst := newTestMachine(t)
	require.NoError(t, dst.RecoverFromSnapshot(&buf, nil, nil))
	waitIndexReady(t, dst)

	res, err := dst.Lookup(rangeQuery(1, 5))
	require.NoError(t, err)
	entries := res.([]db.Entry)
	require.Len(t, entries, 5)

	withKey := 0
	for _, e := range entries {
		if e.UserKey != nil {
			withKey++
		}
	}
	assert.Equal(t, 2, withKey, "only records written with the key keep it")

	// writes after recovery keep updating the index
	apply(t, dst, 10, putCmd(t, 6, true))
	res, err = dst.Lookup(rangeQuery(6, 6))
	require.NoError(t, err)
	assert.Len(t, res.([]db.Entry), 1)
}
