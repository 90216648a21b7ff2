package internal

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/ValentinKolb/ixKV/lib/db"
	"github.com/ValentinKolb/ixKV/lib/db/util"
	"github.com/google/btree"
)

// --------------------------------------------------------------------------
// Record Key (identity of a record inside the engine)
// --------------------------------------------------------------------------

// RecordKey addresses a record: the digest is only unique within a namespace.
type RecordKey struct {
	Namespace string
	Digest    db.Digest
}

func (k RecordKey) String() string {
	return fmt.Sprintf("%s:%s", k.Namespace, k.Digest)
}

// --------------------------------------------------------------------------
// Shard Type (partition of the record space)
// --------------------------------------------------------------------------

// Shard represents a partition of the database.
// Each shard has its own lock. Index updates for a record happen while the
// lock of the record's shard is held, so an index never sees an older version
// of a record after a newer one.
type Shard struct {
	sync.RWMutex
	Records map[RecordKey]*db.Entry
}

// NewShard creates an empty shard
func NewShard() *Shard {
	return &Shard{Records: make(map[RecordKey]*db.Entry)}
}

// GetShard returns the shard responsible for the given key
func GetShard(key RecordKey, seed uint64, shards []*Shard) *Shard {
	h := util.HashRecordKey(key.Namespace, key.Digest[:], seed)
	return shards[h%uint64(len(shards))]
}

// --------------------------------------------------------------------------
// Secondary Index (numeric bin -> digests)
// --------------------------------------------------------------------------

// indexItem is a single index entry. Items are ordered by value, ties are
// broken by digest so that every record has its own slot.
type indexItem struct {
	Val    int64
	Digest db.Digest
}

func lessItem(a, b indexItem) bool {
	if a.Val != b.Val {
		return a.Val < b.Val
	}
	return a.Digest.Less(b.Digest)
}

// SecondaryIndex is a numeric index over one bin of a namespace/set.
type SecondaryIndex struct {
	Def   db.IndexDef
	state atomic.Uint32
	mu    sync.RWMutex
	tree  *btree.BTreeG[indexItem]
}

// NewSecondaryIndex creates an index in the Building state.
func NewSecondaryIndex(def db.IndexDef, degree int) *SecondaryIndex {
	idx := &SecondaryIndex{
		Def:  def,
		tree: btree.NewG[indexItem](degree, lessItem),
	}
	idx.state.Store(uint32(db.IndexStateBuilding))
	return idx
}

// State returns the build state of the index
func (idx *SecondaryIndex) State() db.IndexState {
	return db.IndexState(idx.state.Load())
}

// SetState moves the index to the given state
func (idx *SecondaryIndex) SetState(s db.IndexState) {
	idx.state.Store(uint32(s))
}

// Covers reports whether the entry belongs to the namespace/set of the index
func (idx *SecondaryIndex) Covers(e *db.Entry) bool {
	if e.Namespace != idx.Def.Namespace {
		return false
	}
	return idx.Def.Set == "" || idx.Def.Set == e.Set
}

// itemFor returns the index item of an entry. Entries without the bin or with
// a non integer value are not indexed.
func (idx *SecondaryIndex) itemFor(e *db.Entry) (indexItem, bool) {
	v, ok := e.Bins[idx.Def.Bin]
	if !ok {
		return indexItem{}, false
	}
	i, err := v.AsInteger()
	if err != nil {
		return indexItem{}, false
	}
	return indexItem{Val: i, Digest: e.Digest}, true
}

// Insert adds the entry to the index (no-op if the bin is not indexable)
func (idx *SecondaryIndex) Insert(e *db.Entry) {
	item, ok := idx.itemFor(e)
	if !ok {
		return
	}
	idx.mu.Lock()
	idx.tree.ReplaceOrInsert(item)
	idx.mu.Unlock()
}

// Remove deletes the entry from the index
func (idx *SecondaryIndex) Remove(e *db.Entry) {
	item, ok := idx.itemFor(e)
	if !ok {
		return
	}
	idx.mu.Lock()
	idx.tree.Delete(item)
	idx.mu.Unlock()
}

// Digests returns the digests of all entries whose value lies in [begin, end]
func (idx *SecondaryIndex) Digests(begin, end int64) []db.Digest {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	var out []db.Digest
	idx.tree.AscendGreaterOrEqual(indexItem{Val: begin}, func(item indexItem) bool {
		if item.Val > end {
			return false
		}
		out = append(out, item.Digest)
		return true
	})
	return out
}

// Len returns the number of indexed entries
func (idx *SecondaryIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.tree.Len()
}

// Info returns the reported state of the index
func (idx *SecondaryIndex) Info() db.IndexInfo {
	return db.IndexInfo{
		Def:     idx.Def,
		State:   idx.State(),
		Entries: idx.Len(),
	}
}
