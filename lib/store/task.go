package store

import (
	"time"

	"github.com/ValentinKolb/ixKV/lib/db"
)

// IndexStatusFunc returns the current state of an index.
type IndexStatusFunc func() (db.IndexInfo, error)

// PollingIndexTask is an IIndexTask that polls the index state.
type PollingIndexTask struct {
	status   IndexStatusFunc
	interval time.Duration
	name     string
}

// NewPollingIndexTask creates a task for the index name that polls status every interval.
func NewPollingIndexTask(name string, interval time.Duration, status IndexStatusFunc) *PollingIndexTask {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &PollingIndexTask{status: status, interval: interval, name: name}
}

// IsDone implements IIndexTask. A failed build is reported as error.
func (t *PollingIndexTask) IsDone() (bool, error) {
	info, err := t.status()
	if err != nil {
		return false, err
	}
	switch info.State {
	case db.IndexStateReady:
		return true, nil
	case db.IndexStateFailed:
		return true, Errorf(RetCInternalError, "build of index %s failed", t.name)
	default:
		return false, nil
	}
}

// WaitUntilComplete implements IIndexTask.
func (t *PollingIndexTask) WaitUntilComplete() error {
	for {
		done, err := t.IsDone()
		if err != nil || done {
			return err
		}
		time.Sleep(t.interval)
	}
}
