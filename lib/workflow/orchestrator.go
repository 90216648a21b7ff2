package workflow

import (
	"fmt"
	"strings"
	"time"

	"github.com/ValentinKolb/ixKV/lib/store"
	"github.com/google/uuid"
	"github.com/lni/dragonboat/v4/logger"
	"github.com/pkg/errors"
)

var log = logger.GetLogger("workflow")

// --------------------------------------------------------------------------
// Configuration
// --------------------------------------------------------------------------

// TeardownPolicy decides when the index is dropped at the end of a run.
type TeardownPolicy uint8

const (
	// TeardownAlways drops the index even if an earlier stage failed.
	TeardownAlways TeardownPolicy = iota
	// TeardownOnSuccess only drops the index if every stage succeeded.
	// A failed run leaves the index in place.
	TeardownOnSuccess
)

func (p TeardownPolicy) String() string {
	switch p {
	case TeardownAlways:
		return "always"
	case TeardownOnSuccess:
		return "on-success"
	default:
		return "unknown"
	}
}

// ParseTeardownPolicy parses "always" or "on-success".
func ParseTeardownPolicy(s string) (TeardownPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "always", "":
		return TeardownAlways, nil
	case "on-success", "onsuccess":
		return TeardownOnSuccess, nil
	default:
		return 0, fmt.Errorf("invalid teardown policy %q (expected always or on-success)", s)
	}
}

// Config holds the identifiers and parameters of a workflow run.
type Config struct {
	Namespace string
	Set       string
	Bin       string
	IndexName string
	KeyPrefix string
	Count     int
	Begin     int64
	End       int64
	Expected  int
	RetainKey bool
	Teardown  TeardownPolicy
}

// DefaultConfig returns the configuration of the demo run: ten records
// skkey1..skkey10 in test.demo, queried for skbin in [2, 5].
func DefaultConfig() Config {
	return Config{
		Namespace: "test",
		Set:       "demo",
		Bin:       "skbin",
		IndexName: "skindex",
		KeyPrefix: "skkey",
		Count:     10,
		Begin:     2,
		End:       5,
		Expected:  4,
		RetainKey: true,
		Teardown:  TeardownAlways,
	}
}

// Validate checks that all identifiers are set.
func (c Config) Validate() error {
	switch {
	case c.Namespace == "":
		return errors.New("namespace must not be empty")
	case c.Bin == "":
		return errors.New("bin must not be empty")
	case c.IndexName == "":
		return errors.New("index name must not be empty")
	case c.Count < 0:
		return errors.Errorf("record count must not be negative, got %d", c.Count)
	case c.Expected < 0:
		return errors.Errorf("expected count must not be negative, got %d", c.Expected)
	}
	return nil
}

// --------------------------------------------------------------------------
// Orchestrator
// --------------------------------------------------------------------------

// Report is the outcome of a run.
type Report struct {
	RunID        string
	Index        CreateResult
	Summary      *QuerySummary
	Verification Verification
	TeardownRan  bool
	TeardownErr  error
	Duration     time.Duration
}

// OK reports whether the run passed verification and cleaned up after itself.
func (r *Report) OK() bool {
	return r.Summary != nil && r.Verification.OK() && r.TeardownRan && r.TeardownErr == nil
}

// Workflow runs create index -> write records -> range query + verify -> drop index.
type Workflow struct {
	cfg     Config
	indexes *IndexManager
	writer  *RecordWriter
	query   *RangeQueryExecutor
}

// New creates a workflow against the given store.
func New(s store.IStore, cfg Config) (*Workflow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid workflow config")
	}
	return &Workflow{
		cfg:     cfg,
		indexes: NewIndexManager(s),
		writer:  NewRecordWriter(s, cfg.RetainKey),
		query:   NewRangeQueryExecutor(s),
	}, nil
}

// Run executes all stages. A stage error aborts the remaining stages. The index
// is then dropped according to the teardown policy; a drop error is returned
// only if no stage failed and is otherwise kept on the report.
func (w *Workflow) Run() (*Report, error) {
	start := time.Now()
	report := &Report{RunID: uuid.NewString()}
	log.Infof("run %s started (teardown: %s)", report.RunID, w.cfg.Teardown)

	err := w.runStages(report)

	if err == nil || w.cfg.Teardown == TeardownAlways {
		report.TeardownRan = true
		report.TeardownErr = w.indexes.DropIndex(w.cfg.Namespace, w.cfg.Set, w.cfg.IndexName)
		if report.TeardownErr != nil {
			if err == nil {
				err = report.TeardownErr
			} else {
				log.Warningf("run %s: teardown after failed run: %v", report.RunID, report.TeardownErr)
			}
		}
	} else {
		log.Warningf("run %s: index %s left in place after failed run", report.RunID, w.cfg.IndexName)
	}

	report.Duration = time.Since(start)
	if err != nil {
		log.Errorf("run %s failed after %s: %v", report.RunID, report.Duration, err)
		return report, err
	}
	log.Infof("run %s finished in %s (matched %d, expected %d)",
		report.RunID, report.Duration, report.Verification.Received, report.Verification.Expected)
	return report, nil
}

func (w *Workflow) runStages(report *Report) error {
	cfg := w.cfg

	report.Index = w.indexes.Create(IndexDefinition{
		Namespace: cfg.Namespace,
		Set:       cfg.Set,
		Name:      cfg.IndexName,
		Bin:       cfg.Bin,
		Type:      store.NUMERIC,
	})
	if report.Index.Outcome == Failed {
		return report.Index.Err
	}

	if err := w.writer.WriteRecords(cfg.Namespace, cfg.Set, cfg.KeyPrefix, cfg.Bin, cfg.Count); err != nil {
		return err
	}

	summary, err := w.query.RangeQuery(cfg.Namespace, cfg.Set, cfg.IndexName, cfg.Bin, cfg.Begin, cfg.End)
	if err != nil {
		return err
	}
	report.Summary = summary
	report.Verification = summary.Verify(cfg.Expected)
	return nil
}
