package maple

import (
	"errors"
	"testing"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockedBuild returns options whose index builds wait until release is closed.
func blockedBuild() (*DBOptions, chan struct{}, chan db.IndexDef) {
	release := make(chan struct{})
	started := make(chan db.IndexDef, 1)
	opts := &DBOptions{
		NumShards: 4,
		BuildHook: func(def db.IndexDef) {
			started <- def
			<-release
		},
	}
	return opts, release, started
}

func put(database db.RecordDB, key string, v int64) {
	k := value.StringValue(key)
	database.Put(db.Entry{
		Namespace: "test",
		Set:       "demo",
		Digest:    db.ComputeDigest("demo", k),
		UserKey:   &k,
		Bins:      value.BinMap{"skbin": value.IntegerValue(v)},
	}, 1)
}

var skindexDef = db.IndexDef{Namespace: "test", Set: "demo", Name: "skindex", Bin: "skbin", Type: db.IndexTypeNumeric}

func TestIndexNotReadableWhileBuilding(t *testing.T) {
	opts, release, started := blockedBuild()
	database := NewMapleDB(opts)
	defer database.Close()

	put(database, "a", 1)
	require.NoError(t, database.CreateIndex(skindexDef, 2))
	<-started

	info, err := database.IndexStatus("test", "skindex")
	require.NoError(t, err)
	assert.Equal(t, db.IndexStateBuilding, info.State)

	err = database.Range(db.RangeQuery{Namespace: "test", Set: "demo", Bin: "skbin", Begin: 0, End: 10}, func(db.Entry) bool { return true })
	assert.True(t, errors.Is(err, db.ErrIndexNotReadable), "got %v", err)

	// writes during the build are indexed
	put(database, "b", 2)

	close(release)
	require.Eventually(t, func() bool {
		info, err := database.IndexStatus("test", "skindex")
		return err == nil && info.State == db.IndexStateReady
	}, 5*time.Second, time.Millisecond)

	info, err = database.IndexStatus("test", "skindex")
	require.NoError(t, err)
	assert.Equal(t, 2, info.Entries)
}

func TestDropWhileBuilding(t *testing.T) {
	opts, release, started := blockedBuild()
	database := NewMapleDB(opts)
	defer database.Close()

	put(database, "a", 1)
	require.NoError(t, database.CreateIndex(skindexDef, 2))
	<-started

	require.NoError(t, database.DropIndex("test", "demo", "skindex", 3))
	close(release)

	_, err := database.IndexStatus("test", "skindex")
	assert.True(t, errors.Is(err, db.ErrIndexNotFound))

	// the name is free again
	require.NoError(t, database.CreateIndex(skindexDef, 4))
	<-started
	require.Eventually(t, func() bool {
		info, err := database.IndexStatus("test", "skindex")
		return err == nil && info.State == db.IndexStateReady
	}, 5*time.Second, time.Millisecond)
}

func TestCloseAbortsBuild(t *testing.T) {
	opts, release, started := blockedBuild()
	database := NewMapleDB(opts)

	put(database, "a", 1)
	require.NoError(t, database.CreateIndex(skindexDef, 2))
	<-started

	done := make(chan struct{})
	go func() {
		_ = database.Close()
		close(done)
	}()

	// Close waits for the build goroutine
	select {
	case <-done:
		t.Fatal("Close returned before the build stopped")
	case <-time.After(20 * time.Millisecond):
	}
	close(release)
	<-done

	info, err := database.IndexStatus("test", "skindex")
	require.NoError(t, err)
	assert.Equal(t, db.IndexStateFailed, info.State)

	assert.True(t, errors.Is(database.CreateIndex(db.IndexDef{Namespace: "test", Name: "x", Bin: "y", Type: db.IndexTypeNumeric}, 3), db.ErrClosed))
	assert.NoError(t, database.Close(), "Close is idempotent")
}

func TestDropIndexSetMismatch(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	require.NoError(t, database.CreateIndex(skindexDef, 1))
	err := database.DropIndex("test", "other", "skindex", 2)
	assert.True(t, errors.Is(err, db.ErrIndexNotFound))

	require.NoError(t, database.DropIndex("test", "", "skindex", 3), "empty set matches any index set")
}

func TestNamespaceWideIndex(t *testing.T) {
	database := NewMapleDB(nil)
	defer database.Close()

	put(database, "a", 1)
	k := value.StringValue("b")
	database.Put(db.Entry{Namespace: "test", Set: "other", Digest: db.ComputeDigest("other", k), Bins: value.BinMap{"skbin": value.IntegerValue(1)}}, 2)

	wide := db.IndexDef{Namespace: "test", Name: "wide", Bin: "skbin", Type: db.IndexTypeNumeric}
	require.NoError(t, database.CreateIndex(wide, 3))
	require.Eventually(t, func() bool {
		info, err := database.IndexStatus("test", "wide")
		return err == nil && info.State == db.IndexStateReady
	}, 5*time.Second, time.Millisecond)

	count := func(set string) int {
		n := 0
		require.NoError(t, database.Range(db.RangeQuery{Namespace: "test", Set: set, Bin: "skbin", Begin: 1, End: 1}, func(db.Entry) bool {
			n++
			return true
		}))
		return n
	}
	assert.Equal(t, 1, count("demo"))
	assert.Equal(t, 1, count("other"))
	assert.Equal(t, 2, count(""))
}
