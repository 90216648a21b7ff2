package store

import (
	"sync"
)

// --------------------------------------------------------------------------
// Recordset (channel backed IRecordset)
// --------------------------------------------------------------------------

// CursorState is the lifecycle state of a recordset.
type CursorState uint8

const (
	CursorOpen      CursorState = iota // created, Next was not called yet
	CursorIterating                    // at least one Next call
	CursorClosed                       // terminal
)

func (s CursorState) String() string {
	switch s {
	case CursorOpen:
		return "open"
	case CursorIterating:
		return "iterating"
	case CursorClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Producer fills a recordset. It must stop and return nil as soon as yield returns false.
type Producer func(yield func(r *Record) bool) error

type result struct {
	record *Record
	err    error
}

// Recordset is an IRecordset fed by a producer goroutine through a bounded channel.
// The producer is started by NewRecordset and stopped by Close.
type Recordset struct {
	results chan result
	cancel  chan struct{}
	release func() error

	mu      sync.Mutex
	state   CursorState
	current *Record
	err     error
}

// NewRecordset starts produce in a new goroutine. queueSize bounds the number of
// records buffered ahead of the consumer. release (optional) is called once by Close,
// after the producer stopped.
func NewRecordset(queueSize int, produce Producer, release func() error) *Recordset {
	if queueSize <= 0 {
		queueSize = DefaultRecordQueueSize
	}
	rs := &Recordset{
		results: make(chan result, queueSize),
		cancel:  make(chan struct{}),
		release: release,
	}
	go rs.run(produce)
	return rs
}

func (rs *Recordset) run(produce Producer) {
	defer close(rs.results)

	yield := func(r *Record) bool {
		select {
		case <-rs.cancel:
			return false
		case rs.results <- result{record: r}:
			return true
		}
	}

	if err := produce(yield); err != nil {
		select {
		case <-rs.cancel:
		case rs.results <- result{err: err}:
		}
	}
}

// Next implements IRecordset.
func (rs *Recordset) Next() bool {
	rs.mu.Lock()
	if rs.state == CursorClosed || rs.err != nil {
		rs.mu.Unlock()
		return false
	}
	rs.state = CursorIterating
	rs.mu.Unlock()

	r, ok := <-rs.results

	rs.mu.Lock()
	defer rs.mu.Unlock()
	if !ok || rs.state == CursorClosed {
		rs.current = nil
		return false
	}
	if r.err != nil {
		rs.err = r.err
		rs.current = nil
		return false
	}
	rs.current = r.record
	return true
}

// Key implements IRecordset.
func (rs *Recordset) Key() *Key {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.current == nil {
		return nil
	}
	return rs.current.Key
}

// Record implements IRecordset.
func (rs *Recordset) Record() *Record {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.current
}

// Err implements IRecordset.
func (rs *Recordset) Err() error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.err
}

// State returns the lifecycle state of the recordset.
func (rs *Recordset) State() CursorState {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.state
}

// Close stops the producer, discards buffered records and calls the release hook.
// Only the first call has an effect.
func (rs *Recordset) Close() error {
	rs.mu.Lock()
	if rs.state == CursorClosed {
		rs.mu.Unlock()
		return nil
	}
	rs.state = CursorClosed
	rs.current = nil
	rs.mu.Unlock()

	close(rs.cancel)
	for range rs.results {
		// drain until the producer is gone
	}

	if rs.release != nil {
		return rs.release()
	}
	return nil
}
