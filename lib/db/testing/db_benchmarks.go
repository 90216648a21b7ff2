package testing

import (
	"bytes"
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/value"
)

// RunRecordDBBenchmarks runs all benchmarks for a record database implementation
func RunRecordDBBenchmarks(b *testing.B, name string, factory DBFactory) {

	b.Run("Put", func(b *testing.B) {
		benchmarkPut(b, factory())
	})

	b.Run("PutIndexed", func(b *testing.B) {
		benchmarkPutIndexed(b, factory())
	})

	b.Run("Get", func(b *testing.B) {
		benchmarkGet(b, factory())
	})

	b.Run("Range", func(b *testing.B) {
		benchmarkRange(b, factory())
	})

	b.Run("IndexBuild", func(b *testing.B) {
		benchmarkIndexBuild(b, factory)
	})

	b.Run("SaveLoad", func(b *testing.B) {
		benchmarkSaveLoad(b, factory)
	})

	b.Run("MixedUsage", func(b *testing.B) {
		benchmarkMixedUsage(b, factory())
	})
}

// --------------------------------------------------------------------------
// Benchmark functions
// --------------------------------------------------------------------------

// Benchmark for Put operation without any index
func benchmarkPut(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			key := value.StringValue(fmt.Sprintf("bench-key-%d-%d", counter, rand.Int63()))
			database.Put(newEntry(testSet, key, false, value.BinMap{testBin: value.IntegerValue(int64(counter))}), 0)
			counter++
		}
	})
}

// Benchmark for Put operation with a ready index on the written bin
func benchmarkPutIndexed(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureIndex)

	if err := database.CreateIndex(numericIndex(testSet), 0); err != nil {
		b.Fatal(err)
	}
	waitReady(b, database, testIndex)

	numKeys := 10000
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Put(newEntry(testSet, skkey(counter%numKeys), false, value.BinMap{testBin: value.IntegerValue(int64(counter))}), 0)
			counter++
		}
	})
}

// Parallel benchmarking for Get operation
func benchmarkGet(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet)

	numKeys := 10000
	putNumbered(database, testSet, numKeys)

	digests := make([]db.Digest, numKeys)
	for i := range digests {
		digests[i] = db.ComputeDigest(testSet, skkey(i))
	}

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			database.Get(testNamespace, digests[counter%numKeys])
			counter++
		}
	})
}

// Benchmark for small range queries over a ready index
func benchmarkRange(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureIndex|db.FeatureRange)

	numKeys := 100_000
	putNumbered(database, testSet, numKeys)
	if err := database.CreateIndex(numericIndex(testSet), 0); err != nil {
		b.Fatal(err)
	}
	waitReady(b, database, testIndex)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		for pb.Next() {
			begin := int64(counter % (numKeys - 10))
			_ = database.Range(db.RangeQuery{Namespace: testNamespace, Set: testSet, Bin: testBin, Begin: begin, End: begin + 9}, func(db.Entry) bool {
				return true
			})
			counter++
		}
	})
}

// Benchmark for building an index over existing records
func benchmarkIndexBuild(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureIndex)

	putNumbered(database, testSet, 50_000)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		name := fmt.Sprintf("idx-%d", i)
		def := numericIndex(testSet)
		def.Name = name
		if err := database.CreateIndex(def, 0); err != nil {
			b.Fatal(err)
		}
		waitReady(b, database, name)

		b.StopTimer()
		if err := database.DropIndex(testNamespace, testSet, name, 0); err != nil {
			b.Fatal(err)
		}
		b.StartTimer()
	}
}

// Benchmark for save and load operations
func benchmarkSaveLoad(b *testing.B, factory DBFactory) {
	database := factory()
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeatureSave|db.FeatureLoad)

	putNumbered(database, testSet, 10_000)
	if err := database.CreateIndex(numericIndex(testSet), 0); err != nil {
		b.Fatal(err)
	}
	waitReady(b, database, testIndex)

	var snapshot []byte

	b.Run("Save", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			var buf bytes.Buffer
			if err := database.Save(&buf); err != nil {
				b.Fatal(err)
			}
			snapshot = buf.Bytes()
		}
	})

	b.Run("Load", func(b *testing.B) {
		for i := 0; i < b.N; i++ {
			b.StopTimer()
			restored := factory()
			b.StartTimer()

			if err := restored.Load(bytes.NewReader(snapshot)); err != nil {
				b.Fatal(err)
			}

			b.StopTimer()
			restored.Close()
			b.StartTimer()
		}
	})
}

// Benchmark for mixed usage: 60% Get, 30% Put, 10% Range
func benchmarkMixedUsage(b *testing.B, database db.RecordDB) {
	b.Cleanup(func() {
		database.Close()
	})

	requireFeature(b, database, db.FeaturePut|db.FeatureGet|db.FeatureRange)

	numKeys := 50_000
	putNumbered(database, testSet, numKeys)
	if err := database.CreateIndex(numericIndex(testSet), 0); err != nil {
		b.Fatal(err)
	}
	waitReady(b, database, testIndex)

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		counter := 0
		rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

		for pb.Next() {
			i := counter % numKeys
			switch r := rnd.Float32(); {
			case r < .6:
				database.Get(testNamespace, db.ComputeDigest(testSet, skkey(i)))
			case r < .9:
				database.Put(newEntry(testSet, skkey(i), false, value.BinMap{testBin: value.IntegerValue(int64(rnd.Intn(numKeys)))}), 0)
			default:
				_ = database.Range(db.RangeQuery{Namespace: testNamespace, Set: testSet, Bin: testBin, Begin: int64(i), End: int64(i + 5)}, func(db.Entry) bool {
					return true
				})
			}
			counter++
		}
	})
}
