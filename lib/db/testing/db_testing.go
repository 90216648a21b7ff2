package testing

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// DBFactory is a function that creates a new instance of a RecordDB implementation
type DBFactory func() db.RecordDB

// RunRecordDBTests runs a comprehensive test suite for a RecordDB implementation.
func RunRecordDBTests(t *testing.T, name string, factory DBFactory) {
	t.Run(name, func(t *testing.T) {
		t.Run("Put&Get", func(t *testing.T) {
			testPutGet(t, factory())
		})

		t.Run("UserKeyRetention", func(t *testing.T) {
			testUserKeyRetention(t, factory())
		})

		t.Run("Delete", func(t *testing.T) {
			testDelete(t, factory())
		})

		t.Run("IndexLifecycle", func(t *testing.T) {
			testIndexLifecycle(t, factory())
		})

		t.Run("InvalidIndex", func(t *testing.T) {
			testInvalidIndex(t, factory())
		})

		t.Run("IndexMaintenance", func(t *testing.T) {
			testIndexMaintenance(t, factory())
		})

		t.Run("RangeBounds", func(t *testing.T) {
			testRangeBounds(t, factory())
		})

		t.Run("RangeEarlyStop", func(t *testing.T) {
			testRangeEarlyStop(t, factory())
		})

		t.Run("Scan", func(t *testing.T) {
			testScan(t, factory())
		})

		t.Run("SaveLoad", func(t *testing.T) {
			testSaveLoad(t, factory)
		})

		t.Run("ConcurrentWritesDuringBuild", func(t *testing.T) {
			testConcurrentWritesDuringBuild(t, factory())
		})

		t.Run("WriteIndex", func(t *testing.T) {
			testWriteIndex(t, factory())
		})
	})
}

// --------------------------------------------------------------------------
// Helper functions
// --------------------------------------------------------------------------

const (
	testNamespace = "test"
	testSet       = "demo"
	testBin       = "skbin"
	testIndex     = "skindex"
)

// Checks if the database supports the specified feature
// Skip the test if it is not supported
func requireFeature(t testing.TB, database db.RecordDB, feature db.Feature) {
	if !database.SupportsFeature(feature) {
		t.Skip()
	}
}

// newEntry builds an entry for set/key. The user key is only kept if retain is true.
func newEntry(set string, key value.Value, retain bool, bins value.BinMap) db.Entry {
	e := db.Entry{
		Namespace: testNamespace,
		Set:       set,
		Digest:    db.ComputeDigest(set, key),
		Bins:      bins,
	}
	if retain {
		k := key
		e.UserKey = &k
	}
	return e
}

func skkey(i int) value.Value {
	return value.StringValue(fmt.Sprintf("skkey%d", i))
}

// putNumbered writes n records skkey0..skkey(n-1) with skbin = i.
func putNumbered(database db.RecordDB, set string, n int) {
	for i := 0; i < n; i++ {
		database.Put(newEntry(set, skkey(i), true, value.BinMap{testBin: value.IntegerValue(int64(i))}), uint64(i+1))
	}
}

func numericIndex(set string) db.IndexDef {
	return db.IndexDef{Namespace: testNamespace, Set: set, Name: testIndex, Bin: testBin, Type: db.IndexTypeNumeric}
}

// waitReady polls IndexStatus until the index is ready.
func waitReady(t testing.TB, database db.RecordDB, name string) {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		info, err := database.IndexStatus(testNamespace, name)
		require.NoError(t, err)
		switch info.State {
		case db.IndexStateReady:
			return
		case db.IndexStateFailed:
			t.Fatalf("index %s failed to build", name)
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("index %s not ready in time", name)
}

// rangeValues collects the bin values returned by a range query.
func rangeValues(t testing.TB, database db.RecordDB, set string, begin, end int64) []int64 {
	t.Helper()
	var out []int64
	err := database.Range(db.RangeQuery{Namespace: testNamespace, Set: set, Bin: testBin, Begin: begin, End: end}, func(e db.Entry) bool {
		v, err := e.Bins[testBin].AsInteger()
		require.NoError(t, err)
		out = append(out, v)
		return true
	})
	require.NoError(t, err)
	return out
}

// --------------------------------------------------------------------------
// Test functions
// --------------------------------------------------------------------------

func testPutGet(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	e := newEntry(testSet, value.StringValue("k1"), true, value.BinMap{
		"a": value.IntegerValue(1),
		"b": value.StringValue("one"),
	})

	assert.Equal(t, uint32(1), database.Put(e, 1))

	got, ok := database.Get(testNamespace, e.Digest)
	require.True(t, ok, "record should exist after Put")
	assert.Equal(t, testSet, got.Set)
	assert.Equal(t, uint32(1), got.Generation)
	assert.True(t, got.Bins["a"].Equal(value.IntegerValue(1)))
	assert.True(t, got.Bins["b"].Equal(value.StringValue("one")))

	// second put merges bins and removes bins set to the empty value
	update := newEntry(testSet, value.StringValue("k1"), true, value.BinMap{
		"a": value.IntegerValue(2),
		"b": value.EmptyValue(),
		"c": value.BytesValue([]byte{1, 2}),
	})
	assert.Equal(t, uint32(2), database.Put(update, 2))

	got, ok = database.Get(testNamespace, e.Digest)
	require.True(t, ok)
	assert.Equal(t, uint32(2), got.Generation)
	assert.Len(t, got.Bins, 2)
	assert.True(t, got.Bins["a"].Equal(value.IntegerValue(2)))
	assert.True(t, got.Bins["c"].Equal(value.BytesValue([]byte{1, 2})))
	_, hasB := got.Bins["b"]
	assert.False(t, hasB, "empty value should remove the bin")

	// Get returns a copy
	got.Bins["a"] = value.IntegerValue(99)
	again, _ := database.Get(testNamespace, e.Digest)
	assert.True(t, again.Bins["a"].Equal(value.IntegerValue(2)), "Get should return a copy")

	// namespaces are separate
	_, ok = database.Get("other", e.Digest)
	assert.False(t, ok)

	_, ok = database.Get(testNamespace, db.ComputeDigest(testSet, value.StringValue("missing")))
	assert.False(t, ok)
}

func testUserKeyRetention(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet)

	// not retained
	anon := newEntry(testSet, value.IntegerValue(7), false, value.BinMap{"x": value.IntegerValue(1)})
	database.Put(anon, 1)
	got, ok := database.Get(testNamespace, anon.Digest)
	require.True(t, ok)
	assert.Nil(t, got.UserKey, "key must not be stored without retention")

	// retained, then overwritten without retention: key stays
	kept := newEntry(testSet, value.IntegerValue(8), true, value.BinMap{"x": value.IntegerValue(1)})
	database.Put(kept, 2)
	database.Put(newEntry(testSet, value.IntegerValue(8), false, value.BinMap{"x": value.IntegerValue(2)}), 3)

	got, ok = database.Get(testNamespace, kept.Digest)
	require.True(t, ok)
	require.NotNil(t, got.UserKey, "a stored key is never forgotten")
	assert.True(t, got.UserKey.Equal(value.IntegerValue(8)))
}

func testDelete(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeaturePut|db.FeatureGet|db.FeatureDelete)

	e := newEntry(testSet, value.StringValue("gone"), true, value.BinMap{"x": value.IntegerValue(1)})
	database.Put(e, 1)

	assert.True(t, database.Delete(testNamespace, e.Digest, 2))
	_, ok := database.Get(testNamespace, e.Digest)
	assert.False(t, ok, "record should not exist after Delete")
	assert.False(t, database.Delete(testNamespace, e.Digest, 3), "second delete reports a missing record")

	// re-creating starts at generation 1 again
	assert.Equal(t, uint32(1), database.Put(e, 4))
}

func testIndexLifecycle(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIndex|db.FeatureRange)

	putNumbered(database, testSet, 10)

	require.NoError(t, database.CreateIndex(numericIndex(testSet), 11))
	waitReady(t, database, testIndex)

	info, err := database.IndexStatus(testNamespace, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 10, info.Entries)
	assert.Equal(t, testBin, info.Def.Bin)

	assert.ElementsMatch(t, []int64{2, 3, 4, 5}, rangeValues(t, database, testSet, 2, 5))

	// creating the same index again is reported, not silently accepted
	err = database.CreateIndex(numericIndex(testSet), 12)
	assert.True(t, errors.Is(err, db.ErrIndexExists), "got %v", err)

	// another name on the same bin is a duplicate as well
	dup := numericIndex(testSet)
	dup.Name = "other"
	err = database.CreateIndex(dup, 13)
	assert.True(t, errors.Is(err, db.ErrIndexExists), "got %v", err)

	// the index can be addressed by name
	count := 0
	err = database.Range(db.RangeQuery{Namespace: testNamespace, Set: testSet, IndexName: testIndex, Begin: 0, End: 100}, func(db.Entry) bool {
		count++
		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	infos := database.GetInfo().Indexes
	require.Len(t, infos, 1)
	assert.Equal(t, testIndex, infos[0].Def.Name)

	// drop
	require.NoError(t, database.DropIndex(testNamespace, testSet, testIndex, 14))
	_, err = database.IndexStatus(testNamespace, testIndex)
	assert.True(t, errors.Is(err, db.ErrIndexNotFound), "got %v", err)

	err = database.DropIndex(testNamespace, testSet, testIndex, 15)
	assert.True(t, errors.Is(err, db.ErrIndexNotFound), "got %v", err)

	err = database.Range(db.RangeQuery{Namespace: testNamespace, Set: testSet, Bin: testBin, Begin: 0, End: 1}, func(db.Entry) bool { return true })
	assert.True(t, errors.Is(err, db.ErrIndexNotFound), "got %v", err)

	// re-create after drop
	require.NoError(t, database.CreateIndex(numericIndex(testSet), 16))
	waitReady(t, database, testIndex)
	assert.Len(t, rangeValues(t, database, testSet, 0, 9), 10)
}

func testInvalidIndex(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIndex)

	cases := map[string]db.IndexDef{
		"no namespace": {Set: testSet, Name: testIndex, Bin: testBin, Type: db.IndexTypeNumeric},
		"no name":      {Namespace: testNamespace, Set: testSet, Bin: testBin, Type: db.IndexTypeNumeric},
		"no bin":       {Namespace: testNamespace, Set: testSet, Name: testIndex, Type: db.IndexTypeNumeric},
		"bad type":     {Namespace: testNamespace, Set: testSet, Name: testIndex, Bin: testBin, Type: "GEO2DSPHERE"},
	}
	for name, def := range cases {
		t.Run(name, func(t *testing.T) {
			err := database.CreateIndex(def, 1)
			assert.True(t, errors.Is(err, db.ErrInvalidIndex), "got %v", err)
		})
	}

	_, err := database.IndexStatus(testNamespace, "missing")
	assert.True(t, errors.Is(err, db.ErrIndexNotFound))
}

func testIndexMaintenance(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIndex|db.FeatureRange|db.FeatureDelete)

	putNumbered(database, testSet, 10)
	require.NoError(t, database.CreateIndex(numericIndex(testSet), 100))
	waitReady(t, database, testIndex)

	// move skkey3 out of the range, delete skkey4, add a new record in range
	database.Put(newEntry(testSet, skkey(3), true, value.BinMap{testBin: value.IntegerValue(42)}), 101)
	database.Delete(testNamespace, db.ComputeDigest(testSet, skkey(4)), 102)
	database.Put(newEntry(testSet, value.StringValue("late"), false, value.BinMap{testBin: value.IntegerValue(5)}), 103)

	assert.ElementsMatch(t, []int64{2, 5, 5}, rangeValues(t, database, testSet, 2, 5))
	assert.ElementsMatch(t, []int64{42}, rangeValues(t, database, testSet, 40, 50))

	// a bin changed to a non integer value drops out of the index
	database.Put(newEntry(testSet, skkey(2), true, value.BinMap{testBin: value.StringValue("two")}), 104)
	assert.ElementsMatch(t, []int64{5, 5}, rangeValues(t, database, testSet, 2, 5))

	// removing the bin drops the record out of the index as well
	database.Put(newEntry(testSet, skkey(5), true, value.BinMap{testBin: value.EmptyValue()}), 105)
	assert.ElementsMatch(t, []int64{5}, rangeValues(t, database, testSet, 2, 5))

	info, err := database.IndexStatus(testNamespace, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 8, info.Entries)
}

func testRangeBounds(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIndex|db.FeatureRange)

	for i, v := range []int64{-5, -1, 0, 1, 2, 2, 3} {
		database.Put(newEntry(testSet, value.StringValue(fmt.Sprintf("v%d", i)), true,
			value.BinMap{testBin: value.IntegerValue(v)}), 1)
	}

	// records in another set or without the bin are never returned
	database.Put(newEntry("other", value.StringValue("o"), true, value.BinMap{testBin: value.IntegerValue(1)}), 2)
	database.Put(newEntry(testSet, value.StringValue("nobin"), true, value.BinMap{"x": value.IntegerValue(1)}), 3)

	require.NoError(t, database.CreateIndex(numericIndex(testSet), 4))
	waitReady(t, database, testIndex)

	assert.ElementsMatch(t, []int64{2, 2}, rangeValues(t, database, testSet, 2, 2), "single value range")
	assert.ElementsMatch(t, []int64{-5, -1, 0}, rangeValues(t, database, testSet, -5, 0), "negative values")
	assert.ElementsMatch(t, []int64{1, 2, 2, 3}, rangeValues(t, database, testSet, 1, 1000), "open upper range")
	assert.Empty(t, rangeValues(t, database, testSet, 5, 2), "begin > end")
	assert.Empty(t, rangeValues(t, database, testSet, 100, 200), "no values")
}

func testRangeEarlyStop(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIndex|db.FeatureRange)

	putNumbered(database, testSet, 20)
	require.NoError(t, database.CreateIndex(numericIndex(testSet), 21))
	waitReady(t, database, testIndex)

	count := 0
	err := database.Range(db.RangeQuery{Namespace: testNamespace, Set: testSet, Bin: testBin, Begin: 0, End: 19}, func(db.Entry) bool {
		count++
		return count < 3
	})
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func testScan(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureScan)

	putNumbered(database, testSet, 10)
	putNumbered(database, "other", 5)

	count := func(set string) int {
		n := 0
		require.NoError(t, database.Scan(testNamespace, set, func(db.Entry) bool {
			n++
			return true
		}))
		return n
	}

	assert.Equal(t, 10, count(testSet))
	assert.Equal(t, 5, count("other"))
	assert.Equal(t, 15, count(""), "an empty set scans the namespace")
	assert.Equal(t, 15, database.GetInfo().Records)

	n := 0
	require.NoError(t, database.Scan("unknown", "", func(db.Entry) bool {
		n++
		return true
	}))
	assert.Zero(t, n)
}

func testSaveLoad(t *testing.T, factory DBFactory) {
	original := factory()
	defer original.Close()

	requireFeature(t, original, db.FeatureSave|db.FeatureLoad)

	putNumbered(original, testSet, 10)
	original.Put(newEntry(testSet, value.StringValue("anon"), false, value.BinMap{
		testBin: value.IntegerValue(3),
		"raw":   value.BytesValue([]byte("payload")),
	}), 11)
	original.Put(newEntry(testSet, skkey(1), true, value.BinMap{"extra": value.StringValue("x")}), 12)
	require.NoError(t, original.CreateIndex(numericIndex(testSet), 13))
	waitReady(t, original, testIndex)

	var buf bytes.Buffer
	require.NoError(t, original.Save(&buf))

	restored := factory()
	defer restored.Close()
	require.NoError(t, restored.Load(bytes.NewReader(buf.Bytes())))

	assert.Equal(t, original.WriteIdx(), restored.WriteIdx())
	assert.Equal(t, 11, restored.GetInfo().Records)

	// indexes are usable right after Load
	info, err := restored.IndexStatus(testNamespace, testIndex)
	require.NoError(t, err)
	assert.Equal(t, db.IndexStateReady, info.State)
	assert.ElementsMatch(t, []int64{2, 3, 3, 4, 5}, rangeValues(t, restored, testSet, 2, 5))

	got, ok := restored.Get(testNamespace, db.ComputeDigest(testSet, skkey(1)))
	require.True(t, ok)
	assert.Equal(t, uint32(2), got.Generation)
	require.NotNil(t, got.UserKey)
	assert.True(t, got.UserKey.Equal(skkey(1)))
	assert.True(t, got.Bins["extra"].Equal(value.StringValue("x")))

	anon, ok := restored.Get(testNamespace, db.ComputeDigest(testSet, value.StringValue("anon")))
	require.True(t, ok)
	assert.Nil(t, anon.UserKey)
	assert.True(t, anon.Bins["raw"].Equal(value.BytesValue([]byte("payload"))))

	// garbage is rejected
	bad := factory()
	defer bad.Close()
	assert.Error(t, bad.Load(bytes.NewReader([]byte("not a snapshot"))))
}

func testConcurrentWritesDuringBuild(t *testing.T, database db.RecordDB) {
	defer database.Close()

	requireFeature(t, database, db.FeatureIndex|db.FeatureRange)

	const writers, perWriter = 8, 200
	putNumbered(database, testSet, 100)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			<-start
			for i := 0; i < perWriter; i++ {
				key := value.StringValue(fmt.Sprintf("w%d-%d", w, i))
				database.Put(newEntry(testSet, key, false, value.BinMap{testBin: value.IntegerValue(int64(1000 + i))}), uint64(1000+i))
			}
		}(w)
	}

	close(start)
	require.NoError(t, database.CreateIndex(numericIndex(testSet), 500))
	wg.Wait()
	waitReady(t, database, testIndex)

	assert.Len(t, rangeValues(t, database, testSet, 0, 99), 100)
	assert.Len(t, rangeValues(t, database, testSet, 1000, 1000+perWriter), writers*perWriter)

	info, err := database.IndexStatus(testNamespace, testIndex)
	require.NoError(t, err)
	assert.Equal(t, 100+writers*perWriter, info.Entries)
}

func testWriteIndex(t *testing.T, database db.RecordDB) {
	defer database.Close()

	database.SetWriteIdx(10)
	assert.Equal(t, uint64(10), database.WriteIdx())

	database.SetWriteIdx(5)
	assert.Equal(t, uint64(10), database.WriteIdx(), "write index never decreases")

	database.Put(newEntry(testSet, value.StringValue("k"), false, nil), 20)
	assert.Equal(t, uint64(20), database.WriteIdx())
}
