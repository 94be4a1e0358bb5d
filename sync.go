package rvatomic

import (
	"context"

	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/semaphore"
	"github.com/kolkov/rvatomic/internal/rv/spinlock"
)

// Spinlock is a test-and-set lock living in one word of a Machine's memory.
type Spinlock struct {
	m *Machine
	l *spinlock.Spinlock
}

// NewSpinlock allocates and initializes a spinlock.
func (m *Machine) NewSpinlock() (*Spinlock, error) {
	w, err := m.alloc.AllocWord()
	if err != nil {
		return nil, err
	}
	l := spinlock.New(m.amo, w, m.strategy)
	l.Init()
	return &Spinlock{m: m, l: l}, nil
}

// Addr returns the address of the lock word.
func (l *Spinlock) Addr() Address { return l.l.Word().Addr() }

// Lock spins until the lock is acquired.
func (l *Spinlock) Lock() { l.l.Lock() }

// TryLock makes one acquisition attempt.
func (l *Spinlock) TryLock() bool { return l.l.TryLock() }

// LockContext is Lock that gives up when ctx is done.
func (l *Spinlock) LockContext(ctx context.Context) error { return l.l.LockContext(ctx) }

// Unlock releases the lock. Releasing an unlocked lock returns a *UsageError
// wrapping ErrNotLocked.
func (l *Spinlock) Unlock() error { return l.l.Unlock() }

// Locked reports whether the lock is currently held.
func (l *Spinlock) Locked() bool { return l.l.Locked() }

// Close returns the lock word to the Machine. The lock must not be used
// afterwards. Closing twice, or closing a semaphore's guard, returns a
// *UsageError wrapping ErrNotAllocated.
func (l *Spinlock) Close() error { return l.m.Free(l.Addr()) }

// Semaphore is a counting semaphore living in two words of a Machine's
// memory: the count and a guard spinlock.
type Semaphore struct {
	m *Machine
	s *semaphore.Semaphore
}

// NewSemaphore allocates a semaphore holding k permits.
//
// Returns a *UsageError wrapping ErrNegativeCount if k < 0.
func (m *Machine) NewSemaphore(k int32) (*Semaphore, error) {
	if k < 0 {
		return nil, fault.Usage("semaphore.init", fault.ErrNegativeCount)
	}
	addr, err := m.alloc.Alloc(2)
	if err != nil {
		return nil, err
	}
	count, _ := m.mem.Resolve("semaphore", addr)
	guard := count.Next()

	s := semaphore.New(m.cas, m.amo, count, guard, m.strategy)
	if err := s.Init(k); err != nil {
		return nil, err
	}
	return &Semaphore{m: m, s: s}, nil
}

// Addr returns the address of the count word. The guard word follows it.
func (s *Semaphore) Addr() Address { return s.s.CountWord().Addr() }

// Wait takes a permit, spinning while none is available.
//
// Panics with a *UsageError wrapping ErrUnknownHart if h has been released.
func (s *Semaphore) Wait(h *Hart) { s.s.Wait(mustLive(h, "semaphore.wait")) }

// TryWait takes a permit if one is available.
//
// Panics with a *UsageError wrapping ErrUnknownHart if h has been released.
func (s *Semaphore) TryWait(h *Hart) bool {
	return s.s.TryWait(mustLive(h, "semaphore.trywait"))
}

// WaitContext is Wait that gives up when ctx is done.
func (s *Semaphore) WaitContext(ctx context.Context, h *Hart) error {
	hc, err := h.live("semaphore.wait")
	if err != nil {
		return err
	}
	return s.s.WaitContext(ctx, hc)
}

// Signal returns a permit. Signalling a semaphore already holding
// math.MaxInt32 permits returns a *UsageError wrapping ErrCountOverflow.
func (s *Semaphore) Signal() error { return s.s.Signal() }

// Count returns the current permit count.
func (s *Semaphore) Count() int32 { return s.s.Count() }

// Guard returns the semaphore's embedded guard lock. The guard is freed with
// the semaphore; closing it on its own fails.
func (s *Semaphore) Guard() *Spinlock { return &Spinlock{m: s.m, l: s.s.Guard()} }

// Close returns both words to the Machine. The semaphore must not be used
// afterwards. Closing twice returns a *UsageError wrapping ErrNotAllocated.
func (s *Semaphore) Close() error { return s.m.Free(s.Addr()) }

func mustLive(h *Hart, op string) *hart.Context {
	ctx, err := h.live(op)
	if err != nil {
		panic(err)
	}
	return ctx
}
