package db

import (
	"errors"
	"io"

	"github.com/ValentinKolb/ixKV/lib/value"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplMaple     Implementation = "maple"
	ImplAerospike Implementation = "aerospike"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeaturePut    Feature = 1 << iota // Support for Put operations
	FeatureGet                        // Support for Get operations
	FeatureDelete                     // Support for Delete operations
	FeatureIndex                      // Support for CreateIndex, IndexStatus and DropIndex
	FeatureRange                      // Support for Range queries over a secondary index
	FeatureScan                       // Support for full set scans
	FeatureSave                       // Support for Save operations
	FeatureLoad                       // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeaturePut:
		return "Put"
	case FeatureGet:
		return "Get"
	case FeatureDelete:
		return "Delete"
	case FeatureIndex:
		return "Index"
	case FeatureRange:
		return "Range"
	case FeatureScan:
		return "Scan"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	Records           int            `json:"records"`
	Indexes           []IndexInfo    `json:"indexes"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Records
// --------------------------------------------------------------------------

// Entry is a single stored record.
// UserKey is nil when the writer did not ask the store to retain the key.
type Entry struct {
	Namespace  string
	Set        string
	Digest     Digest
	UserKey    *value.Value
	Bins       value.BinMap
	Generation uint32
	WriteIndex uint64
}

// Clone returns a copy of the entry that does not share the bin map.
func (e Entry) Clone() Entry {
	c := e
	c.Bins = e.Bins.Clone()
	if e.UserKey != nil {
		k := *e.UserKey
		c.UserKey = &k
	}
	return c
}

// --------------------------------------------------------------------------
// Secondary Indexes
// --------------------------------------------------------------------------

// IndexType is the value domain of a secondary index. Only numeric indexes exist.
type IndexType string

const (
	IndexTypeNumeric IndexType = "NUMERIC"
)

// IndexDef describes a secondary index over a (namespace, set, bin) triple.
// An empty Set covers every set of the namespace.
type IndexDef struct {
	Namespace string    `json:"namespace"`
	Set       string    `json:"set"`
	Name      string    `json:"name"`
	Bin       string    `json:"bin"`
	Type      IndexType `json:"type"`
}

// IndexState is the build lifecycle of a secondary index.
type IndexState uint8

const (
	IndexStateBuilding IndexState = iota // Existing records are still being indexed.
	IndexStateReady                      // The index is complete and readable.
	IndexStateFailed                     // The build was aborted.
)

func (s IndexState) String() string {
	switch s {
	case IndexStateBuilding:
		return "building"
	case IndexStateReady:
		return "ready"
	case IndexStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// IndexInfo is the reported state of an index.
type IndexInfo struct {
	Def     IndexDef   `json:"def"`
	State   IndexState `json:"state"`
	Entries int        `json:"entries"`
}

// RangeQuery selects the records of Namespace/Set whose Bin value lies in
// [Begin, End] (inclusive). IndexName is optional; without it the index is
// resolved by bin.
type RangeQuery struct {
	Namespace string
	Set       string
	IndexName string
	Bin       string
	Begin     int64
	End       int64
}

// Errors returned by RecordDB implementations. Callers map them to store return codes.
var (
	ErrIndexExists      = errors.New("index already exists")
	ErrIndexNotFound    = errors.New("index not found")
	ErrIndexNotReadable = errors.New("index not readable")
	ErrInvalidIndex     = errors.New("invalid index definition")
	ErrClosed           = errors.New("database closed")
)

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// RecordDB defines an interface for record database implementations with
// numeric secondary indexes. Records are addressed by (namespace, digest).
// Implementations can vary in their feature support, which can be queried with SupportsFeature.
type RecordDB interface {

	// --------------------------------------------------------------------------
	// Write Operations
	// --------------------------------------------------------------------------

	// Put inserts a record or merges the bins into an existing one.
	// A nil e.UserKey keeps a previously retained user key.
	// The writeIndex parameter is used as a logical timestamp for the entry.
	// Every index covering the record is updated before Put returns.
	// Put returns the new generation of the record.
	Put(e Entry, writeIndex uint64) (generation uint32)

	// Delete removes a record and its index entries.
	// The boolean return value indicates whether the record existed.
	Delete(namespace string, digest Digest, writeIndex uint64) (existed bool)

	// --------------------------------------------------------------------------
	// Read Operations
	// --------------------------------------------------------------------------

	// Get retrieves a copy of the record for an exact digest.
	Get(namespace string, digest Digest) (e Entry, loaded bool)

	// Range calls fn for every record matched by q until fn returns false.
	// The index must be ready, otherwise ErrIndexNotReadable is returned.
	Range(q RangeQuery, fn func(e Entry) bool) (err error)

	// Scan calls fn for every record of namespace/set until fn returns false.
	Scan(namespace, set string, fn func(e Entry) bool) (err error)

	// --------------------------------------------------------------------------
	// Index Operations
	// --------------------------------------------------------------------------

	// CreateIndex registers the index and starts building it asynchronously.
	// It returns ErrIndexExists if an index with the same name exists in the namespace.
	CreateIndex(def IndexDef, writeIndex uint64) (err error)

	// IndexStatus reports the build state of an index.
	IndexStatus(namespace, name string) (info IndexInfo, err error)

	// DropIndex removes an index. A non-empty set must match the index set.
	DropIndex(namespace, set, name string, writeIndex uint64) (err error)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists records and index definitions to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load replaces the database state with data from an io.Reader.
	// Indexes are rebuilt from the loaded records.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// --------------------------------------------------------------------------
	// Write Index Operations
	// --------------------------------------------------------------------------

	// SetWriteIdx sets the current index of the database only if the provided index is greater than the current index.
	SetWriteIdx(index uint64)

	// WriteIdx returns the current index of the database.
	WriteIdx() (index uint64)

	// Close stops background index builds and releases all data.
	Close() (err error)
}
