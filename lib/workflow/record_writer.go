package workflow

import (
	"strconv"

	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/ValentinKolb/ixKV/lib/value"
	"github.com/pkg/errors"
)

// RecordWriter writes numbered records.
type RecordWriter struct {
	store  store.IStore
	policy *store.WritePolicy
}

// NewRecordWriter creates a writer. With retainKey the store is asked to keep
// the user key of every record (WritePolicy.SendKey).
func NewRecordWriter(s store.IStore, retainKey bool) *RecordWriter {
	policy := store.NewWritePolicy()
	policy.SendKey = retainKey
	return &RecordWriter{store: s, policy: policy}
}

// WriteRecords writes the records keyPrefix1..keyPrefix<count> with bin = i.
// Writes are sequential; the first failure aborts the batch.
func (w *RecordWriter) WriteRecords(namespace, set, keyPrefix, bin string, count int) error {
	if w.policy.SendKey {
		log.Infof("Write %d records with store user key option.", count)
	} else {
		log.Infof("Write %d records without store user key option.", count)
	}

	for i := 1; i <= count; i++ {
		userKey := keyPrefix + strconv.Itoa(i)
		key, err := store.NewKey(namespace, set, userKey)
		if err != nil {
			return errors.Wrapf(err, "build key %s", userKey)
		}
		b := &store.Bin{Name: bin, Value: value.IntegerValue(int64(i))}
		if err := w.store.Put(w.policy, key, b); err != nil {
			return errors.Wrapf(err, "write record %s to %s.%s (%d of %d)", userKey, namespace, set, i, count)
		}
	}
	return nil
}
