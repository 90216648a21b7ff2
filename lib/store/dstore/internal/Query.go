package internal

import (
	"github.com/ValentinKolb/ixKV/lib/db"
)

// QueryType defines the possible queries for the state machine.
type QueryType uint8

const (
	QueryTGet         QueryType = iota // Retrieve a record by digest.
	QueryTIndexStatus                  // Report the build state of an index.
	QueryTRange                        // Collect the records matched by an index range.
	QueryTScan                         // Collect all records of a set.
	QueryTGetDBInfo                    // Retrieve metadata about the database underlying the machine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTIndexStatus:
		return "IndexStatus"
	case QueryTRange:
		return "Range"
	case QueryTScan:
		return "Scan"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// ToDBFeature converts a QueryType to the db.Feature it requires.
func (q QueryType) ToDBFeature() db.Feature {
	switch q {
	case QueryTGet:
		return db.FeatureGet
	case QueryTIndexStatus:
		return db.FeatureIndex
	case QueryTRange:
		return db.FeatureRange
	case QueryTScan:
		return db.FeatureScan
	default:
		return 0
	}
}

// Query defines the structure for lookup requests (read-only) sent via SyncRead or StaleRead.
// Only the fields needed by the query type are set.
type Query struct {
	Type      QueryType
	Namespace string
	Set       string
	Digest    db.Digest     // QueryTGet
	IndexName string        // QueryTIndexStatus
	Range     db.RangeQuery // QueryTRange
}

// QueryResult is the result of a QueryTGet operation.
// Range and Scan return []db.Entry, IndexStatus a db.IndexInfo and GetDBInfo a db.DatabaseInfo.
type QueryResult struct {
	Ok    bool
	Entry db.Entry
}
