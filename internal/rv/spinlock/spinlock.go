// Package spinlock implements a test-and-set lock over one shared word.
//
// The word holds Unlocked (0) or Locked (1). Acquisition swaps Locked in with
// amoswap.w and owns the lock when the previous value was Unlocked. Release
// is a plain store of Unlocked followed by a fence, so every write made inside
// the critical section is visible to the next holder.
//
// The lock is not fair and not reentrant. It does not record its owner:
// releasing a lock held by another hart is not detected, releasing an
// unlocked lock is.
package spinlock

import (
	"context"
	"sync/atomic"

	"github.com/kolkov/rvatomic/internal/rv/amo"
	"github.com/kolkov/rvatomic/internal/rv/backoff"
	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/memory"
)

// Lock word values.
const (
	Unlocked uint32 = 0
	Locked   uint32 = 1
)

// Spinlock is a handle on a lock word. Handles are cheap; any number of
// handles may refer to the same word.
type Spinlock struct {
	amo     *amo.Engine
	word    memory.Word
	backoff backoff.Strategy

	acquired atomic.Uint64
	spins    atomic.Uint64
}

// New returns a handle on the lock stored at w. The word is not initialized;
// call Init once before first use. A nil strategy selects backoff.Default.
func New(engine *amo.Engine, w memory.Word, strategy backoff.Strategy) *Spinlock {
	if strategy == nil {
		strategy = backoff.Default()
	}
	return &Spinlock{amo: engine, word: w, backoff: strategy}
}

// Word returns the lock word.
func (l *Spinlock) Word() memory.Word {
	return l.word
}

// Init stores Unlocked into the lock word.
func (l *Spinlock) Init() {
	l.amo.Table().Store(l.word, Unlocked)
}

// Lock spins until the lock is acquired.
func (l *Spinlock) Lock() {
	var attempt uint
	for !l.TryLock() {
		l.spins.Add(1)
		attempt = l.backoff.Pause(attempt)
	}
}

// TryLock makes exactly one acquisition attempt.
func (l *Spinlock) TryLock() bool {
	if l.amo.Swap(l.word, Locked) != Unlocked {
		return false
	}
	l.acquired.Add(1)
	return true
}

// LockContext is Lock that gives up when ctx is done, returning ctx.Err().
// ctx is checked between attempts, so a lock that is free is acquired even
// from an already cancelled context.
func (l *Spinlock) LockContext(ctx context.Context) error {
	var attempt uint
	for !l.TryLock() {
		if err := ctx.Err(); err != nil {
			return err
		}
		l.spins.Add(1)
		attempt = l.backoff.Pause(attempt)
	}
	return nil
}

// Unlock releases the lock.
//
// Returns a *fault.UsageError wrapping fault.ErrNotLocked, and stores
// nothing, if the lock word does not read Locked.
func (l *Spinlock) Unlock() error {
	mem := l.amo.Table().Memory()
	if mem.Load(l.word) != Locked {
		return fault.Usage("spinlock.unlock "+l.word.Addr().String(), fault.ErrNotLocked)
	}
	l.amo.Table().Store(l.word, Unlocked)
	return nil
}

// Locked reports whether the lock word currently reads Locked. The answer is
// stale as soon as it is returned.
func (l *Spinlock) Locked() bool {
	return l.amo.Table().Memory().Load(l.word) == Locked
}

// Stats is a snapshot of a handle's counters.
type Stats struct {
	Acquired uint64 // Successful acquisitions through this handle.
	Spins    uint64 // Failed attempts while waiting.
}

// Stats returns this handle's counters.
func (l *Spinlock) Stats() Stats {
	return Stats{Acquired: l.acquired.Load(), Spins: l.spins.Load()}
}
