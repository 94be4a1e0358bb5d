package reservation

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/memory"
)

// Config configures a reservation Table.
type Config struct {
	// MaxHarts is the number of slots. Hart IDs must be below it.
	// Default: 8. Clamped to hart.MaxHarts.
	MaxHarts int

	// Spurious configures injected store-conditional failures.
	Spurious SpuriousConfig
}

// DefaultMaxHarts is the slot count used when Config.MaxHarts is zero.
const DefaultMaxHarts = 8

// Stats is a snapshot of the table's counters.
type Stats struct {
	LoadReserved  uint64 // lr.w executed.
	SCSuccess     uint64 // sc.w that wrote.
	SCConflict    uint64 // sc.w failed: no matching reservation.
	SCSpurious    uint64 // sc.w failed: vetoed by the injector.
	Invalidations uint64 // Reservations destroyed by another hart's write.
	Preemptions   uint64 // Reservations destroyed by Preempt.
	Writes        uint64 // Non-SC writes (AMOs and fenced stores).
}

// SCFailure returns the total number of failed store-conditionals.
func (s Stats) SCFailure() uint64 {
	return s.SCConflict + s.SCSpurious
}

// slot holds one hart's ticket on its own cache line.
type slot struct {
	ticket atomic.Uint64
	_      cpu.CacheLinePad
}

// Table tracks one reservation per hart over a Memory.
//
// Thread Safety: All methods are safe for concurrent use, with one
// restriction inherited from the hardware model: a hart ID must only be used
// by one goroutine at a time.
type Table struct {
	mem      *memory.Memory
	slots    []slot
	spurious *Spurious

	loadReserved  atomic.Uint64
	scSuccess     atomic.Uint64
	scConflict    atomic.Uint64
	scSpurious    atomic.Uint64
	invalidations atomic.Uint64
	preemptions   atomic.Uint64
	writes        atomic.Uint64
}

// NewTable creates a reservation table over mem.
//
// Example:
//
//	tbl := NewTable(mem, Config{MaxHarts: 4})
//	v := tbl.LoadReserved(0, w)
//	if !tbl.StoreConditional(0, w, v+1) {
//	    // retry
//	}
func NewTable(mem *memory.Memory, cfg Config) *Table {
	if cfg.MaxHarts <= 0 {
		cfg.MaxHarts = DefaultMaxHarts
	}
	cfg.MaxHarts = min(cfg.MaxHarts, hart.MaxHarts)

	return &Table{
		mem:      mem,
		slots:    make([]slot, cfg.MaxHarts),
		spurious: NewSpurious(cfg.Spurious),
	}
}

// Memory returns the region the table guards.
func (t *Table) Memory() *memory.Memory {
	return t.mem
}

// Harts returns the number of slots.
func (t *Table) Harts() int {
	return len(t.slots)
}

// Spurious returns the table's spurious-failure injector.
func (t *Table) Spurious() *Spurious {
	return t.spurious
}

// LoadReserved reads w and makes it h's sole reservation.
//
// Any previous reservation held by h is replaced. Other harts' reservations
// are unaffected.
//
// Panics with a *fault.UsageError if h has no slot.
func (t *Table) LoadReserved(h hart.ID, w memory.Word) uint32 {
	s := t.slot(h)
	ticket := NewTicket(w.Addr())

	v := t.mem.Exclusive(w, func(old uint32) (uint32, bool) {
		s.ticket.Store(uint64(ticket))
		return old, false
	})

	t.loadReserved.Add(1)
	return v
}

// StoreConditional writes v to w if h still holds a reservation on exactly w.
//
// h's reservation is consumed whatever the outcome: a store-conditional is a
// single-use ticket. On success every other hart's reservation on w is
// invalidated as part of the same indivisible step as the write.
//
// A false return is a retry signal, never an error.
//
// Panics with a *fault.UsageError if h has no slot.
func (t *Table) StoreConditional(h hart.ID, w memory.Word, v uint32) bool {
	s := t.slot(h)
	addr := w.Addr()
	ok := false

	t.mem.Exclusive(w, func(uint32) (uint32, bool) {
		held := Ticket(s.ticket.Swap(0))
		if !held.Covers(addr) {
			t.scConflict.Add(1)
			return 0, false
		}
		if t.spurious.Veto() {
			t.scSpurious.Add(1)
			return 0, false
		}
		t.invalidate(addr, h)
		ok = true
		return v, true
	})

	if ok {
		t.scSuccess.Add(1)
	}
	return ok
}

// InvalidateConflicting clears every reservation on w held by a hart other
// than writer.
//
// Write paths inside this package invalidate as part of their write. This
// method is for writers that mutate w through some other channel and must
// tell the table about it. Pass hart.None to clear every hart.
//
// Returns the number of reservations cleared.
func (t *Table) InvalidateConflicting(w memory.Word, writer hart.ID) int {
	n := 0
	t.mem.Exclusive(w, func(old uint32) (uint32, bool) {
		n = t.invalidate(w.Addr(), writer)
		return old, false
	})
	return n
}

// Write performs an indivisible read-modify-write on w on behalf of writer.
//
// fn has the same contract as memory.Memory.Exclusive. If fn writes, every
// reservation on w not held by writer is invalidated before the lock is
// released. AMOs pass hart.None as writer: they have no owning hart and clear
// all reservations, exactly like a plain store.
//
// Returns the value observed before fn ran.
func (t *Table) Write(w memory.Word, writer hart.ID, fn func(old uint32) (uint32, bool)) uint32 {
	return t.mem.Exclusive(w, func(old uint32) (uint32, bool) {
		next, write := fn(old)
		if write {
			t.invalidate(w.Addr(), writer)
			t.writes.Add(1)
		}
		return next, write
	})
}

// Store writes v to w, invalidates every reservation on w, then fences.
//
// This is the plain store used for lock release and counter initialization.
// The trailing fence makes the store visible to every hart before Store
// returns.
func (t *Table) Store(w memory.Word, v uint32) {
	t.Write(w, hart.None, func(uint32) (uint32, bool) { return v, true })
	memory.Fence()
}

// Drop discards h's reservation, if any.
//
// A compare-and-swap that observes an unexpected value calls Drop: its
// load-reserved created a reservation that no store-conditional will consume.
func (t *Table) Drop(h hart.ID) {
	t.slot(h).ticket.Store(0)
}

// Preempt destroys h's reservation without h's consent, as a trap or context
// switch would on hardware.
//
// Returns true if a reservation was destroyed.
func (t *Table) Preempt(h hart.ID) bool {
	if Ticket(t.slot(h).ticket.Swap(0)).Valid() {
		t.preemptions.Add(1)
		return true
	}
	return false
}

// Holds reports whether h currently holds a reservation on w. Diagnostic use
// only: the answer may be stale by the time the caller looks at it.
func (t *Table) Holds(h hart.ID, w memory.Word) bool {
	return Ticket(t.slot(h).ticket.Load()).Covers(w.Addr())
}

// Reservation returns h's current ticket. Diagnostic use only.
func (t *Table) Reservation(h hart.ID) Ticket {
	return Ticket(t.slot(h).ticket.Load())
}

// Stats returns a snapshot of the table's counters.
func (t *Table) Stats() Stats {
	return Stats{
		LoadReserved:  t.loadReserved.Load(),
		SCSuccess:     t.scSuccess.Load(),
		SCConflict:    t.scConflict.Load(),
		SCSpurious:    t.scSpurious.Load(),
		Invalidations: t.invalidations.Load(),
		Preemptions:   t.preemptions.Load(),
		Writes:        t.writes.Load(),
	}
}

// invalidate clears tickets for addr held by harts other than writer.
//
// Must be called with addr's word lock held. The compare-and-swap leaves a
// slot alone if its owner has since reserved something else.
func (t *Table) invalidate(addr memory.Address, writer hart.ID) int {
	want := uint64(NewTicket(addr))
	n := 0
	for i := range t.slots {
		if hart.ID(i) == writer {
			continue
		}
		s := &t.slots[i]
		if s.ticket.Load() == want && s.ticket.CompareAndSwap(want, 0) {
			n++
		}
	}
	if n > 0 {
		t.invalidations.Add(uint64(n))
	}
	return n
}

// slot returns h's slot, panicking if h is out of range.
func (t *Table) slot(h hart.ID) *slot {
	if int(h) >= len(t.slots) {
		panic(fault.Usage("reservation."+h.String(), fault.ErrUnknownHart))
	}
	return &t.slots[h]
}
