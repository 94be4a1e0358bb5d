// Package semaphore implements a counting semaphore over two shared words.
//
// Layout:
//
//	count  signed permit count, never negative once initialized
//	guard  a spinlock for compound updates of the semaphore state
//
// Wait takes a permit with an LR/SC compare-and-swap of count to count-1, and
// only when count is positive: a waiter spins rather than driving the count
// negative. Signal returns a permit with an amoadd.w that declines to write
// at math.MaxInt32. Neither path takes the guard.
//
// Waiters are not queued. Wakeup order is whatever the retry loops produce,
// and a waiter can starve.
package semaphore

import (
	"context"
	"math"

	"github.com/kolkov/rvatomic/internal/rv/amo"
	"github.com/kolkov/rvatomic/internal/rv/backoff"
	"github.com/kolkov/rvatomic/internal/rv/cas"
	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/memory"
	"github.com/kolkov/rvatomic/internal/rv/spinlock"
)

// Semaphore is a handle on a count word and a guard word.
type Semaphore struct {
	cas     *cas.Primitive
	amo     *amo.Engine
	count   memory.Word
	guard   *spinlock.Spinlock
	backoff backoff.Strategy
}

// New returns a handle on the semaphore stored at count and guard. The words
// are not initialized; call Init once before first use. A nil strategy
// selects backoff.Default.
//
// prim and engine must share one reservation table.
func New(prim *cas.Primitive, engine *amo.Engine, count, guard memory.Word, strategy backoff.Strategy) *Semaphore {
	if strategy == nil {
		strategy = backoff.Default()
	}
	return &Semaphore{
		cas:     prim,
		amo:     engine,
		count:   count,
		guard:   spinlock.New(engine, guard, strategy),
		backoff: strategy,
	}
}

// Init sets the count to k and releases the guard.
//
// Returns a *fault.UsageError wrapping fault.ErrNegativeCount, and touches
// nothing, if k < 0.
func (s *Semaphore) Init(k int32) error {
	if k < 0 {
		return fault.Usage("semaphore.init", fault.ErrNegativeCount)
	}
	s.amo.Table().Store(s.count, uint32(k))
	s.guard.Init()
	return nil
}

// Wait takes one permit, spinning while none is available.
func (s *Semaphore) Wait(h *hart.Context) {
	var attempt uint
	for !s.tryTake(h) {
		h.NoteRetry()
		attempt = s.backoff.Pause(attempt)
	}
}

// TryWait takes one permit if the count is positive and reports whether it
// did. A compare-and-swap lost to another hart is retried as long as the count
// stays positive.
func (s *Semaphore) TryWait(h *hart.Context) bool {
	for {
		c := s.Count()
		if c <= 0 {
			return false
		}
		if s.cas.CompareAndSwap(h, s.count, uint32(c), uint32(c-1)) {
			return true
		}
		h.NoteRetry()
	}
}

// WaitContext is Wait that gives up when ctx is done, returning ctx.Err().
func (s *Semaphore) WaitContext(ctx context.Context, h *hart.Context) error {
	var attempt uint
	for !s.tryTake(h) {
		if err := ctx.Err(); err != nil {
			return err
		}
		h.NoteRetry()
		attempt = s.backoff.Pause(attempt)
	}
	return nil
}

// tryTake is one pass of the wait loop: a fenced load and, if positive, one
// compare-and-swap.
func (s *Semaphore) tryTake(h *hart.Context) bool {
	c := s.Count()
	return c > 0 && s.cas.CompareAndSwap(h, s.count, uint32(c), uint32(c-1))
}

// Signal returns one permit.
//
// The increment is an amoadd.w that refuses to write when the count is
// already math.MaxInt32, in which case Signal returns a *fault.UsageError
// wrapping fault.ErrCountOverflow and the count is left unchanged. The check
// and the add are one indivisible step, so no hart ever observes a wrapped
// count.
func (s *Semaphore) Signal() error {
	overflow := false
	s.amo.Table().Write(s.count, hart.None, func(old uint32) (uint32, bool) {
		if int32(old) == math.MaxInt32 {
			overflow = true
			return old, false
		}
		return amo.Add.Apply(old, 1), true
	})
	if overflow {
		return fault.Usage("semaphore.signal", fault.ErrCountOverflow)
	}
	return nil
}

// Count returns the current permit count. Diagnostic use only.
func (s *Semaphore) Count() int32 {
	return int32(s.amo.Table().Memory().Load(s.count))
}

// Guard returns the embedded guard lock. Wait and Signal never take it; it
// exists for callers that update the count together with other state.
func (s *Semaphore) Guard() *spinlock.Spinlock {
	return s.guard
}

// CountWord returns the count word.
func (s *Semaphore) CountWord() memory.Word {
	return s.count
}
