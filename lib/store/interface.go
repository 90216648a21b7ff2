package store

import (
	"github.com/ValentinKolb/ixKV/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.RecordDB

// IStore is the generic interface for interacting with a record store with
// numeric secondary indexes. All methods return a *Error (as error, nil on
// success) so that callers can branch on the RetCode.
type IStore interface {
	// Put writes the bins of a record. Existing records are updated: the given
	// bins replace the stored ones, other bins are kept. The user key of the
	// record is only persisted if policy.SendKey is set.
	Put(policy *WritePolicy, key *Key, bins ...*Bin) (err error)

	// Get reads a record by key. Only the given bins are returned (all if none are given).
	// A missing record is reported with RetCRecordNotFound.
	Get(policy *Policy, key *Key, binNames ...string) (record *Record, err error)

	// Delete removes a record. The boolean return value indicates whether the record existed.
	Delete(policy *WritePolicy, key *Key) (existed bool, err error)

	// CreateIndex starts building a secondary index on bin. The returned task
	// reports completion. An index with the same name (or on the same bin) is
	// reported with RetCIndexAlreadyExists, either directly or by the task.
	CreateIndex(policy *Policy, namespace, set, indexName, binName string, indexType IndexType) (task IIndexTask, err error)

	// DropIndex removes a secondary index.
	DropIndex(policy *Policy, namespace, set, indexName string) (err error)

	// Query runs a statement. With a filter the secondary index on the filter
	// bin is used, without one the whole set is scanned. The caller must Close
	// the returned recordset.
	Query(policy *QueryPolicy, stmt *Statement) (rs IRecordset, err error)

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)

	// Close releases all resources held by the store.
	Close() (err error)
}

// IIndexTask tracks an asynchronous index build.
type IIndexTask interface {
	// IsDone polls the build state once.
	IsDone() (done bool, err error)

	// WaitUntilComplete blocks until the build finished or failed.
	// There is no deadline: index builds may run for a long time and are never
	// aborted by the client.
	WaitUntilComplete() (err error)
}

// IRecordset is a cursor over query results.
//
// A recordset is Open after creation, Iterating while Next returns true and
// Closed after Close. Close may be called in any state and more than once.
type IRecordset interface {
	// Next advances to the next record. It returns false when the results are
	// exhausted, an error occurred (see Err) or the recordset is closed.
	Next() (ok bool)

	// Key returns the key of the current record.
	Key() (key *Key)

	// Record returns the current record.
	Record() (record *Record)

	// Err returns the error that stopped the iteration, if any.
	Err() (err error)

	// Close releases the cursor and all server side resources.
	Close() (err error)
}
