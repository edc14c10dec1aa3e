// Package coalescer implements the optional write-batching channel:
// a single worker goroutine drains concurrent producers' small writes
// into one batched insert, amortizing one WAL append across many
// callers. Enabled only when Options.WaitEntryNum > 0.
//
// Reference: spec.md §4.9 "Write coalescer (optional)".
package coalescer

import (
	"errors"
	"sync"
)

// ErrClosed is returned to any caller whose request could not be
// accepted or completed because the coalescer has shut down.
var ErrClosed = errors.New("coalescer: closed")

// Entry is one key-value pair submitted through the channel.
type Entry struct {
	Key   []byte
	Value []byte
}

// Apply is called with the concatenation of every entry in a drained
// batch; the storage facade wires this to a single PutBatch call on the
// active memtable.
type Apply func(entries []Entry) error

type request struct {
	entries []Entry
	resp    chan error
}

// Coalescer batches concurrent Submit calls into fewer Apply calls.
type Coalescer struct {
	waitEntryNum int
	apply        Apply

	reqCh chan request
	stop  chan struct{}
	wg    sync.WaitGroup

	closeOnce sync.Once
}

// New starts a coalescer whose worker drains up to waitEntryNum entries
// (or whatever is immediately available, if fewer) before calling apply.
func New(waitEntryNum int, apply Apply) *Coalescer {
	if waitEntryNum < 1 {
		waitEntryNum = 1
	}
	c := &Coalescer{
		waitEntryNum: waitEntryNum,
		apply:        apply,
		reqCh:        make(chan request),
		stop:         make(chan struct{}),
	}
	c.wg.Add(1)
	go c.run()
	return c
}

// Submit enqueues entries and returns a receiver that yields the shared
// batch's error (nil on success) once applied. The receiver always
// yields exactly one value.
func (c *Coalescer) Submit(entries []Entry) <-chan error {
	resp := make(chan error, 1)
	select {
	case c.reqCh <- request{entries: entries, resp: resp}:
	case <-c.stop:
		resp <- ErrClosed
	}
	return resp
}

// Close stops the worker after any in-flight batch finishes. Submit
// calls racing with Close either complete normally or receive
// ErrClosed; none are left unanswered.
func (c *Coalescer) Close() {
	c.closeOnce.Do(func() { close(c.stop) })
	c.wg.Wait()
}

func (c *Coalescer) run() {
	defer c.wg.Done()
	for {
		select {
		case <-c.stop:
			return
		case first := <-c.reqCh:
			c.drainAndApply(first)
		}
	}
}

func (c *Coalescer) drainAndApply(first request) {
	batch := []request{first}
	total := len(first.entries)

drain:
	for total < c.waitEntryNum {
		select {
		case r := <-c.reqCh:
			batch = append(batch, r)
			total += len(r.entries)
		default:
			break drain
		}
	}

	all := make([]Entry, 0, total)
	for _, r := range batch {
		all = append(all, r.entries...)
	}

	err := c.apply(all)
	for _, r := range batch {
		r.resp <- err
	}
}
