// Package retriever bridges the HNSW graph engine to the pager's buffer
// manager and WAL. It gives the graph engine two ways to dereference a slot:
// Borrow (shared, read-only, pinned) and BorrowMut (exclusive, WAL-registered,
// read-write) and tracks every page an insert touches so they can all be
// released or rolled back together.
//
// Grounded in the host storage engine's existing per-page sync.RWMutex/pin
// counter (pkg/pager) and in the retriever/extra-dirtied split used by
// on-disk HNSW index access methods: reads go through a plain pin, writes
// go through a small bounded "extra dirtied" set that is flushed or
// discarded as a unit when the enclosing operation finishes.
package retriever

import (
	"errors"
	"fmt"

	"vecindex/pkg/pager"
)

// MaxExtraDirtied bounds how many pages a single insert may dirty beyond the
// header page before it is treated as a resource-exhaustion error rather
// than silently growing without limit.
const MaxExtraDirtied = 100

// State is the insert transaction's lifecycle.
type State int

const (
	// StateIdle: no operation in progress; Begin must be called first.
	StateIdle State = iota
	// StateCollecting: reads are underway (greedy descent, beam search);
	// no page has been dirtied yet.
	StateCollecting
	// StateMutating: at least one page has been borrowed for write; a
	// pager transaction is open and WAL frames will be produced on Commit.
	StateMutating
	// StateCommitted: the transaction has been committed; the context is
	// spent and must be discarded.
	StateCommitted
)

var (
	// ErrWrongState is returned when an operation is attempted from a
	// lifecycle state that does not permit it.
	ErrWrongState = errors.New("retriever: operation not valid in current state")
	// ErrExtraDirtiedBudgetExceeded is returned when an insert would dirty
	// more pages than MaxExtraDirtied allows.
	ErrExtraDirtiedBudgetExceeded = errors.New("retriever: extra-dirtied page budget exceeded")
	// ErrAlreadyTaken is returned by BorrowMut when the same page was
	// already borrowed read-only and cannot be silently upgraded.
	ErrAlreadyTaken = errors.New("retriever: page already borrowed; release it before re-borrowing for write")
)

// dirtied records one page this context has borrowed for mutation, mirroring
// the original implementation's parallel blockno/buffer/page arrays.
type dirtied struct {
	blockNo uint32
	page    *pager.Page
}

// Context is a per-operation borrow/pin tracker. One Context is created per
// insert (or other graph mutation) and discarded after Commit or Abort.
type Context struct {
	pager *pager.Pager
	tx    *pager.Transaction

	state State

	// takenBuffers holds every page pinned via Borrow, in acquisition
	// order, so they can all be released together even on an error path.
	takenBuffers []*pager.Page

	// extraDirtied holds pages pinned via BorrowMut, keyed by block number
	// for the O(1) re-borrow lookup the graph engine needs when it visits
	// the same node twice while repairing edges.
	extraDirtied map[uint32]*dirtied
}

// NewContext creates a borrow/pin tracker for one graph operation against p.
// The context starts idle with no pages pinned.
func NewContext(p *pager.Pager) *Context {
	return &Context{
		pager:        p,
		state:        StateIdle,
		takenBuffers: make([]*pager.Page, 0, 8),
		extraDirtied: make(map[uint32]*dirtied),
	}
}

// Begin moves the context into StateCollecting. Reads performed through
// Borrow are valid from here on; writes require StartMutating first.
func (c *Context) Begin() error {
	if c.state != StateIdle {
		return fmt.Errorf("%w: Begin called from state %d", ErrWrongState, c.state)
	}
	c.state = StateCollecting
	return nil
}

// StartMutating opens the pager transaction backing this context's writes
// and moves the state machine into StateMutating. Safe to call more than
// once; only the first call opens a transaction.
func (c *Context) StartMutating() error {
	switch c.state {
	case StateMutating:
		return nil
	case StateCollecting:
	default:
		return fmt.Errorf("%w: StartMutating called from state %d", ErrWrongState, c.state)
	}

	tx, err := c.pager.BeginWrite()
	if err != nil {
		return err
	}
	c.tx = tx
	c.state = StateMutating
	return nil
}

// Borrow pins blockNo for shared, read-only access. The returned page must
// not be written to; use BorrowMut for that. The pin is released by
// ReleaseAll at the end of the operation.
func (c *Context) Borrow(blockNo uint32) (*pager.Page, error) {
	if c.state == StateIdle || c.state == StateCommitted {
		return nil, fmt.Errorf("%w: Borrow called from state %d", ErrWrongState, c.state)
	}

	if d, ok := c.extraDirtied[blockNo]; ok {
		return d.page, nil
	}

	page, err := c.pager.Get(blockNo)
	if err != nil {
		return nil, err
	}
	c.takenBuffers = append(c.takenBuffers, page)
	return page, nil
}

// BorrowMut pins blockNo for exclusive, read-write access, registers it with
// the open pager transaction (so its pre-image is captured for rollback and
// its post-image reaches the WAL on commit), and records it in the
// extra-dirtied set. StartMutating must have been called first.
func (c *Context) BorrowMut(blockNo uint32) (*pager.Page, error) {
	if c.state != StateMutating {
		return nil, fmt.Errorf("%w: BorrowMut called from state %d", ErrWrongState, c.state)
	}

	if d, ok := c.extraDirtied[blockNo]; ok {
		return d.page, nil
	}

	if len(c.extraDirtied) >= MaxExtraDirtied {
		return nil, ErrExtraDirtiedBudgetExceeded
	}

	page, err := c.pager.Get(blockNo)
	if err != nil {
		return nil, err
	}
	c.pager.MarkDirty(page)
	c.extraDirtied[blockNo] = &dirtied{blockNo: blockNo, page: page}
	return page, nil
}

// ExtraDirtiedCount reports how many pages are currently held for write,
// for callers that want to watch the resource cap proactively.
func (c *Context) ExtraDirtiedCount() int {
	return len(c.extraDirtied)
}

// Commit flushes all extra-dirtied pages through the pager transaction's
// WAL batch, releases every pin this context holds, and moves the state
// machine to StateCommitted. The context must not be reused afterward.
func (c *Context) Commit() error {
	if c.state != StateMutating {
		return fmt.Errorf("%w: Commit called from state %d", ErrWrongState, c.state)
	}

	for _, d := range c.extraDirtied {
		d.page.SetDirty(true)
	}

	if err := c.tx.Commit(); err != nil {
		return err
	}

	c.releaseAll()
	c.state = StateCommitted
	return nil
}

// Abort discards any pending writes via the pager transaction's rollback,
// releases every pin this context holds, and resets the state machine to
// StateIdle so the context may be reused for a fresh operation.
func (c *Context) Abort() {
	if c.tx != nil {
		c.tx.Rollback()
		c.tx = nil
	}
	c.releaseAll()
	c.state = StateIdle
}

// releaseAll unpins every page this context holds, in the order they were
// acquired, mirroring extra_dirtied_release_all/ldb_wal_retriever_area_reset.
func (c *Context) releaseAll() {
	for _, page := range c.takenBuffers {
		c.pager.Release(page)
	}
	c.takenBuffers = c.takenBuffers[:0]

	for blockNo, d := range c.extraDirtied {
		c.pager.Release(d.page)
		delete(c.extraDirtied, blockNo)
	}
}
