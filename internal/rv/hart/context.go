package hart

import (
	"strconv"
	"sync/atomic"

	"golang.org/x/sys/cpu"
)

// ID identifies a hart. It is only ever used as a key.
type ID uint16

// None is the ID of no hart. Writes issued with None as the writer
// invalidate every hart's reservation.
const None ID = 0xFFFF

// MaxHarts is the largest pool size supported.
const MaxHarts = 1024

// String formats the ID as "hart<N>", or "none".
func (id ID) String() string {
	if id == None {
		return "none"
	}
	return "hart" + strconv.Itoa(int(id))
}

// Stats is a snapshot of one hart's counters.
type Stats struct {
	LoadReserved uint64 // lr.w executed.
	SCSuccess    uint64 // sc.w that wrote.
	SCFailure    uint64 // sc.w that did not write.
	Retries      uint64 // Retry-loop iterations (CAS, lock, wait).
}

// Add returns the element-wise sum of s and o.
func (s Stats) Add(o Stats) Stats {
	return Stats{
		LoadReserved: s.LoadReserved + o.LoadReserved,
		SCSuccess:    s.SCSuccess + o.SCSuccess,
		SCFailure:    s.SCFailure + o.SCFailure,
		Retries:      s.Retries + o.Retries,
	}
}

// Context is the state of one running hart.
//
// Layout:
//   - ID: Stable for the hart's lifetime
//   - counters: Updated only by the owning goroutine, read by anyone
//
// The counters sit on their own cache line so that harts updating their own
// counters do not false-share with neighbouring contexts.
type Context struct {
	// ID is the hart identifier; it keys the hart's reservation slot.
	ID ID

	_ cpu.CacheLinePad

	loadReserved atomic.Uint64
	scSuccess    atomic.Uint64
	scFailure    atomic.Uint64
	retries      atomic.Uint64

	_ cpu.CacheLinePad
}

// NewContext creates a Context for id with zeroed counters.
//
// Contexts are normally obtained from a Pool. NewContext exists for tests and
// for callers that manage IDs themselves.
func NewContext(id ID) *Context {
	return &Context{ID: id}
}

// NoteLoadReserved counts one lr.w.
func (c *Context) NoteLoadReserved() {
	c.loadReserved.Add(1)
}

// NoteStoreConditional counts one sc.w and its outcome.
func (c *Context) NoteStoreConditional(ok bool) {
	if ok {
		c.scSuccess.Add(1)
	} else {
		c.scFailure.Add(1)
	}
}

// NoteRetry counts one retry-loop iteration.
func (c *Context) NoteRetry() {
	c.retries.Add(1)
}

// Stats returns a snapshot of the counters.
func (c *Context) Stats() Stats {
	return Stats{
		LoadReserved: c.loadReserved.Load(),
		SCSuccess:    c.scSuccess.Load(),
		SCFailure:    c.scFailure.Load(),
		Retries:      c.retries.Load(),
	}
}

// reset zeroes the counters before a Context is reused.
func (c *Context) reset() {
	c.loadReserved.Store(0)
	c.scSuccess.Store(0)
	c.scFailure.Store(0)
	c.retries.Store(0)
}
