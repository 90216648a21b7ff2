package maple

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/db/engines/maple/internal"
	"github.com/ValentinKolb/ixKV/lib/db/util"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/VictoriaMetrics/metrics"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

// --------------------------------------------------------------------------
// Constants
// --------------------------------------------------------------------------

// Constants for database behavior and structure
const (
	magicNum           = "MAPLEDB\x00" // File format identifier
	mapleVersion       = 4             // Database version (4 = record engine with secondary indexes)
	defaultIndexDegree = 32            // Default btree degree of secondary indexes
)

var (
	log = logger.GetLogger("engine")

	putsTotal         = metrics.GetOrCreateCounter("ixkv_engine_puts_total")
	deletesTotal      = metrics.GetOrCreateCounter("ixkv_engine_deletes_total")
	rangeQueriesTotal = metrics.GetOrCreateCounter("ixkv_engine_range_queries_total")
	indexBuildsTotal  = metrics.GetOrCreateCounter("ixkv_engine_index_builds_total")
	indexBuildSeconds = metrics.GetOrCreateHistogram("ixkv_engine_index_build_duration_seconds")
)

// --------------------------------------------------------------------------
// Core Maple database structure
// --------------------------------------------------------------------------

// mapleImpl implements a sharded in-memory record database with numeric secondary indexes
type mapleImpl struct {
	numShards   int               // Number of shards
	seed        uint64            // Seed for hash function
	shards      []*internal.Shard // Array of shards
	currIndex   atomic.Uint64     // Current logical timestamp
	indexDegree int

	// secondary indexes, keyed by namespace + "\x00" + name
	indexes *xsync.MapOf[string, *internal.SecondaryIndex]
	indexMu sync.Mutex // serializes CreateIndex / DropIndex

	// background index builds
	builds  sync.WaitGroup
	stopCh  chan struct{}
	closed  atomic.Bool
	onBuild func(def db.IndexDef) // test hook, called before a build starts scanning
}

// DBOptions configures the mapleImpl behavior during initialization
type DBOptions struct {
	NumShards   int // Number of shards (0 = auto)
	IndexDegree int // btree degree of secondary indexes (0 = default)

	// BuildHook is called by the build goroutine before it scans existing records.
	// Used by tests to observe the Building state.
	BuildHook func(def db.IndexDef)
}

// DefaultOptions returns the default mapleImpl options
func DefaultOptions() *DBOptions {
	return &DBOptions{
		NumShards:   runtime.NumCPU(),
		IndexDegree: defaultIndexDegree,
	}
}

// --------------------------------------------------------------------------
// Initialization and Setup
// --------------------------------------------------------------------------

// NewMapleDB creates a new MapleDB instance with the specified options (optional)
func NewMapleDB(opts *DBOptions) db.RecordDB {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.NumShards <= 0 {
		opts.NumShards = runtime.NumCPU()
	}
	if opts.IndexDegree <= 1 {
		opts.IndexDegree = defaultIndexDegree
	}

	maple := &mapleImpl{
		numShards:   opts.NumShards,
		seed:        util.GenerateSeed(),
		indexDegree: opts.IndexDegree,
		indexes:     xsync.NewMapOf[string, *internal.SecondaryIndex](),
		stopCh:      make(chan struct{}),
		onBuild:     opts.BuildHook,
	}
	maple.shards = newShards(opts.NumShards)
	return maple
}

func newShards(n int) []*internal.Shard {
	shards := make([]*internal.Shard, n)
	for i := range shards {
		shards[i] = internal.NewShard()
	}
	return shards
}

func indexKey(namespace, name string) string {
	return namespace + "\x00" + name
}

func (maple *mapleImpl) shardFor(key internal.RecordKey) *internal.Shard {
	return internal.GetShard(key, maple.seed, maple.shards)
}

// forEachCoveringIndex calls fn for every index that covers the entry.
func (maple *mapleImpl) forEachCoveringIndex(e *db.Entry, fn func(idx *internal.SecondaryIndex)) {
	maple.indexes.Range(func(_ string, idx *internal.SecondaryIndex) bool {
		if idx.Covers(e) {
			fn(idx)
		}
		return true
	})
}

// --------------------------------------------------------------------------
// Core RecordDB Interface Methods - Write Operations
// --------------------------------------------------------------------------

// Put inserts a record or merges its bins into the existing record.
// Empty bin values remove the bin. A nil user key keeps the stored one.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Put(e db.Entry, writeIndex uint64) uint32 {
	maple.SetWriteIdx(writeIndex)
	putsTotal.Inc()

	key := internal.RecordKey{Namespace: e.Namespace, Digest: e.Digest}
	shard := maple.shardFor(key)

	shard.Lock()
	defer shard.Unlock()

	next := e.Clone()
	old, loaded := shard.Records[key]
	if loaded {
		merged := old.Bins.Clone()
		for name, v := range next.Bins {
			if v.IsEmpty() {
				delete(merged, name)
			} else {
				merged[name] = v
			}
		}
		next.Bins = merged
		if next.UserKey == nil {
			next.UserKey = old.UserKey
		}
		next.Generation = old.Generation + 1
	} else {
		for name, v := range next.Bins {
			if v.IsEmpty() {
				delete(next.Bins, name)
			}
		}
		next.Generation = 1
	}
	next.WriteIndex = writeIndex

	maple.forEachCoveringIndex(&next, func(idx *internal.SecondaryIndex) {
		if loaded {
			idx.Remove(old)
		}
		idx.Insert(&next)
	})
	shard.Records[key] = &next

	return next.Generation
}

// Delete removes a record and all of its index entries.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Delete(namespace string, digest db.Digest, writeIndex uint64) bool {
	maple.SetWriteIdx(writeIndex)
	deletesTotal.Inc()

	key := internal.RecordKey{Namespace: namespace, Digest: digest}
	shard := maple.shardFor(key)

	shard.Lock()
	defer shard.Unlock()

	old, loaded := shard.Records[key]
	if !loaded {
		return false
	}
	maple.forEachCoveringIndex(old, func(idx *internal.SecondaryIndex) {
		idx.Remove(old)
	})
	delete(shard.Records, key)
	return true
}

// --------------------------------------------------------------------------
// Core RecordDB Interface Methods - Read Operations
// --------------------------------------------------------------------------

// Get returns a copy of the record.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Get(namespace string, digest db.Digest) (db.Entry, bool) {
	key := internal.RecordKey{Namespace: namespace, Digest: digest}
	shard := maple.shardFor(key)

	shard.RLock()
	defer shard.RUnlock()

	e, ok := shard.Records[key]
	if !ok {
		return db.Entry{}, false
	}
	return e.Clone(), true
}

// resolveIndex finds the index used by a range query. A named index must be on
// the queried bin; without a name the first index on namespace/set/bin is used
// (an index on the exact set is preferred over a namespace wide one).
func (maple *mapleImpl) resolveIndex(q db.RangeQuery) (*internal.SecondaryIndex, error) {
	if q.IndexName != "" {
		idx, ok := maple.indexes.Load(indexKey(q.Namespace, q.IndexName))
		if !ok {
			return nil, fmt.Errorf("%w: %s.%s", db.ErrIndexNotFound, q.Namespace, q.IndexName)
		}
		if q.Bin != "" && idx.Def.Bin != q.Bin {
			return nil, fmt.Errorf("%w: index %s is on bin %s, not %s", db.ErrIndexNotFound, q.IndexName, idx.Def.Bin, q.Bin)
		}
		if idx.Def.Set != "" && idx.Def.Set != q.Set {
			return nil, fmt.Errorf("%w: index %s is on set %s, not %s", db.ErrIndexNotFound, q.IndexName, idx.Def.Set, q.Set)
		}
		return idx, nil
	}

	var found *internal.SecondaryIndex
	maple.indexes.Range(func(_ string, idx *internal.SecondaryIndex) bool {
		if idx.Def.Namespace != q.Namespace || idx.Def.Bin != q.Bin {
			return true
		}
		if idx.Def.Set == q.Set {
			found = idx
			return false
		}
		if idx.Def.Set == "" && found == nil {
			found = idx
		}
		return true
	})
	if found == nil {
		return nil, fmt.Errorf("%w: no index on %s.%s bin %s", db.ErrIndexNotFound, q.Namespace, q.Set, q.Bin)
	}
	return found, nil
}

// Range streams the records matched by the query to fn.
// Index entries are resolved to records one by one; a record that changed
// after the index lookup is re-checked against the range.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Range(q db.RangeQuery, fn func(e db.Entry) bool) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}
	rangeQueriesTotal.Inc()

	idx, err := maple.resolveIndex(q)
	if err != nil {
		return err
	}
	if state := idx.State(); state != db.IndexStateReady {
		return fmt.Errorf("%w: index %s is %s", db.ErrIndexNotReadable, idx.Def.Name, state)
	}

	bin := idx.Def.Bin
	for _, digest := range idx.Digests(q.Begin, q.End) {
		e, ok := maple.Get(q.Namespace, digest)
		if !ok {
			continue // deleted in the meantime
		}
		if q.Set != "" && e.Set != q.Set {
			continue
		}
		v, err := e.Bins[bin].AsInteger()
		if err != nil || v < q.Begin || v > q.End {
			continue
		}
		if !fn(e) {
			return nil
		}
	}
	return nil
}

// Scan streams all records of namespace/set to fn. An empty set scans the whole namespace.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) Scan(namespace, set string, fn func(e db.Entry) bool) error {
	if maple.closed.Load() {
		return db.ErrClosed
	}
	for _, shard := range maple.shards {
		var batch []db.Entry
		shard.RLock()
		for key, e := range shard.Records {
			if key.Namespace == namespace && (set == "" || e.Set == set) {
				batch = append(batch, e.Clone())
			}
		}
		shard.RUnlock()

		for _, e := range batch {
			if !fn(e) {
				return nil
			}
		}
	}
	return nil
}

// --------------------------------------------------------------------------
// Secondary Index Operations
// --------------------------------------------------------------------------

// CreateIndex registers a new index and builds it in the background.
// The index is visible (Building) before the build starts so that concurrent
// writes are indexed as well.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) CreateIndex(def db.IndexDef, writeIndex uint64) error {
	if err := validateIndexDef(def); err != nil {
		return err
	}
	if maple.closed.Load() {
		return db.ErrClosed
	}
	maple.SetWriteIdx(writeIndex)

	maple.indexMu.Lock()
	defer maple.indexMu.Unlock()

	if _, ok := maple.indexes.Load(indexKey(def.Namespace, def.Name)); ok {
		return fmt.Errorf("%w: %s.%s", db.ErrIndexExists, def.Namespace, def.Name)
	}
	var sameBin string
	maple.indexes.Range(func(_ string, idx *internal.SecondaryIndex) bool {
		if idx.Def.Namespace == def.Namespace && idx.Def.Set == def.Set && idx.Def.Bin == def.Bin {
			sameBin = idx.Def.Name
			return false
		}
		return true
	})
	if sameBin != "" {
		return fmt.Errorf("%w: index %s already covers %s.%s bin %s", db.ErrIndexExists, sameBin, def.Namespace, def.Set, def.Bin)
	}

	idx := internal.NewSecondaryIndex(def, maple.indexDegree)
	maple.indexes.Store(indexKey(def.Namespace, def.Name), idx)

	maple.builds.Add(1)
	go maple.buildIndex(idx)
	return nil
}

func validateIndexDef(def db.IndexDef) error {
	switch {
	case def.Namespace == "":
		return fmt.Errorf("%w: namespace is required", db.ErrInvalidIndex)
	case def.Name == "":
		return fmt.Errorf("%w: index name is required", db.ErrInvalidIndex)
	case def.Bin == "":
		return fmt.Errorf("%w: bin is required", db.ErrInvalidIndex)
	case def.Type != db.IndexTypeNumeric:
		return fmt.Errorf("%w: unsupported index type %q", db.ErrInvalidIndex, def.Type)
	}
	return nil
}

// buildIndex indexes all existing records. Each shard is scanned under its read
// lock, so writers of that shard wait until the shard is indexed.
func (maple *mapleImpl) buildIndex(idx *internal.SecondaryIndex) {
	defer maple.builds.Done()
	start := time.Now()
	indexBuildsTotal.Inc()

	if maple.onBuild != nil {
		maple.onBuild(idx.Def)
	}

	for _, shard := range maple.shards {
		select {
		case <-maple.stopCh:
			idx.SetState(db.IndexStateFailed)
			log.Warningf("index build of %s.%s aborted: database closed", idx.Def.Namespace, idx.Def.Name)
			return
		default:
		}

		// dropped while building
		if cur, ok := maple.indexes.Load(indexKey(idx.Def.Namespace, idx.Def.Name)); !ok || cur != idx {
			idx.SetState(db.IndexStateFailed)
			log.Infof("index build of %s.%s stopped: index dropped", idx.Def.Namespace, idx.Def.Name)
			return
		}

		shard.RLock()
		for _, e := range shard.Records {
			if idx.Covers(e) {
				idx.Insert(e)
			}
		}
		shard.RUnlock()
	}

	idx.SetState(db.IndexStateReady)
	indexBuildSeconds.Update(time.Since(start).Seconds())
	log.Infof("index %s.%s on bin %s ready (%d entries, took %s)",
		idx.Def.Namespace, idx.Def.Name, idx.Def.Bin, idx.Len(), time.Since(start))
}

// IndexStatus reports the build state of an index.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) IndexStatus(namespace, name string) (db.IndexInfo, error) {
	idx, ok := maple.indexes.Load(indexKey(namespace, name))
	if !ok {
		return db.IndexInfo{}, fmt.Errorf("%w: %s.%s", db.ErrIndexNotFound, namespace, name)
	}
	return idx.Info(), nil
}

// DropIndex removes an index. A running build notices the drop and stops.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) DropIndex(namespace, set, name string, writeIndex uint64) error {
	maple.SetWriteIdx(writeIndex)

	maple.indexMu.Lock()
	defer maple.indexMu.Unlock()

	key := indexKey(namespace, name)
	idx, ok := maple.indexes.Load(key)
	if !ok {
		return fmt.Errorf("%w: %s.%s", db.ErrIndexNotFound, namespace, name)
	}
	if set != "" && idx.Def.Set != set {
		return fmt.Errorf("%w: index %s is on set %s, not %s", db.ErrIndexNotFound, name, idx.Def.Set, set)
	}
	maple.indexes.Delete(key)
	return nil
}

// --------------------------------------------------------------------------
// Persistence Operations
// --------------------------------------------------------------------------

// Save persists index definitions and records to the writer.
// Concurrent reading and writing is allowed during Save operation; the result
// is a fuzzy snapshot (each shard is consistent on its own).
//
// Thread-safety: This function allows concurrent operations with all other functions
// except Load.
func (maple *mapleImpl) Save(w io.Writer) error {
	bw := bufio.NewWriterSize(w, 1024*1024) // 1 MB buffer

	var defs []db.IndexDef
	maple.indexes.Range(func(_ string, idx *internal.SecondaryIndex) bool {
		defs = append(defs, idx.Def)
		return true
	})

	var entries []db.Entry
	for _, shard := range maple.shards {
		shard.RLock()
		for _, e := range shard.Records {
			entries = append(entries, e.Clone())
		}
		shard.RUnlock()
	}

	// Write file header
	if _, err := bw.WriteString(magicNum); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, uint8(mapleVersion)); err != nil {
		return err
	}
	if err := binary.Write(bw, binary.LittleEndian, maple.WriteIdx()); err != nil {
		return err
	}

	// Write index definitions
	if err := binary.Write(bw, binary.LittleEndian, uint32(len(defs))); err != nil {
		return err
	}
	for _, def := range defs {
		for _, s := range []string{def.Namespace, def.Set, def.Name, def.Bin, string(def.Type)} {
			if err := writeString(bw, s); err != nil {
				return err
			}
		}
	}

	// Write records
	if err := binary.Write(bw, binary.LittleEndian, uint64(len(entries))); err != nil {
		return err
	}
	for _, e := range entries {
		if err := writeString(bw, e.Namespace); err != nil {
			return err
		}
		if err := writeString(bw, e.Set); err != nil {
			return err
		}
		if _, err := bw.Write(e.Digest[:]); err != nil {
			return err
		}

		var userKey []byte
		if e.UserKey != nil {
			userKey, _ = e.UserKey.MarshalBinary()
		}
		if err := writeBytes(bw, userKey); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.Generation); err != nil {
			return err
		}
		if err := binary.Write(bw, binary.LittleEndian, e.WriteIndex); err != nil {
			return err
		}
		if err := writeBytes(bw, value.EncodeBins(e.Bins)); err != nil {
			return err
		}
	}

	return bw.Flush()
}

// Load replaces the database state with a snapshot created by Save.
// Indexes are rebuilt synchronously and are Ready when Load returns.
//
// Thread-safety: This function is not thread-safe and should not be called concurrently
func (maple *mapleImpl) Load(r io.Reader) error {
	br := bufio.NewReaderSize(r, 1024*1024) // 1 MB buffer

	magicBytes := make([]byte, len(magicNum))
	if _, err := io.ReadFull(br, magicBytes); err != nil {
		return err
	}
	if string(magicBytes) != magicNum {
		return fmt.Errorf("invalid file format: magic number mismatch")
	}

	var version uint8
	if err := binary.Read(br, binary.LittleEndian, &version); err != nil {
		return err
	}
	if int(version) != mapleVersion {
		return fmt.Errorf("unsupported version: %d (expected %d)", version, mapleVersion)
	}

	var writeIdx uint64
	if err := binary.Read(br, binary.LittleEndian, &writeIdx); err != nil {
		return err
	}

	// Read index definitions
	var defCount uint32
	if err := binary.Read(br, binary.LittleEndian, &defCount); err != nil {
		return err
	}
	defs := make([]db.IndexDef, 0, defCount)
	for i := uint32(0); i < defCount; i++ {
		var fields [5]string
		for j := range fields {
			s, err := readString(br)
			if err != nil {
				return err
			}
			fields[j] = s
		}
		defs = append(defs, db.IndexDef{
			Namespace: fields[0],
			Set:       fields[1],
			Name:      fields[2],
			Bin:       fields[3],
			Type:      db.IndexType(fields[4]),
		})
	}

	// Read records into fresh shards
	shards := newShards(maple.numShards)
	var recordCount uint64
	if err := binary.Read(br, binary.LittleEndian, &recordCount); err != nil {
		return err
	}
	for i := uint64(0); i < recordCount; i++ {
		var e db.Entry
		var err error
		if e.Namespace, err = readString(br); err != nil {
			return err
		}
		if e.Set, err = readString(br); err != nil {
			return err
		}
		if _, err = io.ReadFull(br, e.Digest[:]); err != nil {
			return err
		}

		userKey, err := readBytes(br)
		if err != nil {
			return err
		}
		if len(userKey) > 0 {
			var k value.Value
			if err := k.UnmarshalBinary(userKey); err != nil {
				return fmt.Errorf("record %s: %w", e.Digest, err)
			}
			e.UserKey = &k
		}
		if err := binary.Read(br, binary.LittleEndian, &e.Generation); err != nil {
			return err
		}
		if err := binary.Read(br, binary.LittleEndian, &e.WriteIndex); err != nil {
			return err
		}
		rawBins, err := readBytes(br)
		if err != nil {
			return err
		}
		if e.Bins, err = value.DecodeBins(rawBins); err != nil {
			return fmt.Errorf("record %s: %w", e.Digest, err)
		}

		key := internal.RecordKey{Namespace: e.Namespace, Digest: e.Digest}
		entry := e
		internal.GetShard(key, maple.seed, shards).Records[key] = &entry
	}

	// Rebuild indexes from the loaded records
	indexes := xsync.NewMapOf[string, *internal.SecondaryIndex]()
	for _, def := range defs {
		idx := internal.NewSecondaryIndex(def, maple.indexDegree)
		for _, shard := range shards {
			for _, e := range shard.Records {
				if idx.Covers(e) {
					idx.Insert(e)
				}
			}
		}
		idx.SetState(db.IndexStateReady)
		indexes.Store(indexKey(def.Namespace, def.Name), idx)
	}

	maple.indexMu.Lock()
	maple.shards = shards
	maple.indexes = indexes
	maple.indexMu.Unlock()

	maple.currIndex.Store(0)
	maple.SetWriteIdx(writeIdx)

	log.Infof("loaded snapshot with %d records and %d indexes", recordCount, len(defs))
	return nil
}

func writeString(w io.Writer, s string) error {
	if len(s) > math.MaxUint16 {
		return fmt.Errorf("string too long: %d bytes", len(s))
	}
	if err := binary.Write(w, binary.LittleEndian, uint16(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint16
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeBytes(w io.Writer, b []byte) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(b))); err != nil {
		return err
	}
	_, err := w.Write(b)
	return err
}

func readBytes(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

// --------------------------------------------------------------------------
// Metadata and Feature Support
// --------------------------------------------------------------------------

// GetInfo returns information about the database.
func (maple *mapleImpl) GetInfo() db.DatabaseInfo {
	records := 0
	for _, shard := range maple.shards {
		shard.RLock()
		records += len(shard.Records)
		shard.RUnlock()
	}

	var indexes []db.IndexInfo
	maple.indexes.Range(func(_ string, idx *internal.SecondaryIndex) bool {
		indexes = append(indexes, idx.Info())
		return true
	})

	return db.DatabaseInfo{
		Records: records,
		Indexes: indexes,
		DbType:  db.ImplMaple,
		SupportedFeatures: []db.Feature{
			db.FeaturePut, db.FeatureGet, db.FeatureDelete, db.FeatureIndex,
			db.FeatureRange, db.FeatureScan, db.FeatureSave, db.FeatureLoad,
		},
		Metadata: map[string]interface{}{
			"shards":       maple.numShards,
			"index_degree": maple.indexDegree,
			"write_index":  maple.WriteIdx(),
		},
	}
}

// SupportsFeature checks if the database supports the given feature(s)
func (maple *mapleImpl) SupportsFeature(feature db.Feature) bool {
	supported := db.FeaturePut | db.FeatureGet | db.FeatureDelete | db.FeatureIndex |
		db.FeatureRange | db.FeatureScan | db.FeatureSave | db.FeatureLoad
	return feature&supported == feature
}

// Close aborts running index builds and waits for them to stop.
func (maple *mapleImpl) Close() error {
	if maple.closed.Swap(true) {
		return nil
	}
	close(maple.stopCh)
	maple.builds.Wait()
	return nil
}

// --------------------------------------------------------------------------
// Write Index Operations
// --------------------------------------------------------------------------

// SetWriteIdx sets the current index only if the new index is greater.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (maple *mapleImpl) SetWriteIdx(newIdx uint64) {
	for {
		current := maple.currIndex.Load()
		if newIdx <= current {
			return
		}
		if maple.currIndex.CompareAndSwap(current, newIdx) {
			return
		}
	}
}

// WriteIdx returns the current write index.
func (maple *mapleImpl) WriteIdx() uint64 {
	return maple.currIndex.Load()
}
