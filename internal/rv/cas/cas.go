// Package cas builds compare-and-swap and fetch-and-add out of nothing but
// load-reserved and store-conditional.
//
// The algorithm is the classic LR/SC loop:
//
//	loop:
//	    old = lr.w(addr)
//	    if old != expected: return false
//	    if sc.w(addr, desired) succeeded: return true
//	    goto loop
//
// A mismatch returns immediately; only a failed store-conditional retries.
// The loop is unbounded. Under sustained contention a hart may starve, which
// is the documented behavior of the primitive; the configured backoff
// strategy only changes how hard the retrying hart spins.
//
// Thread Safety: All functions are safe for concurrent use by distinct harts.
// A single hart.Context must not be used by two goroutines at once.
package cas

import (
	"github.com/kolkov/rvatomic/internal/rv/backoff"
	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/memory"
	"github.com/kolkov/rvatomic/internal/rv/reservation"
)

// Primitive runs LR/SC loops against a reservation table.
type Primitive struct {
	table   *reservation.Table
	backoff backoff.Strategy
}

// New creates a Primitive over table. A nil strategy selects backoff.Default.
func New(table *reservation.Table, strategy backoff.Strategy) *Primitive {
	if strategy == nil {
		strategy = backoff.Default()
	}
	return &Primitive{table: table, backoff: strategy}
}

// Table returns the underlying reservation table.
func (p *Primitive) Table() *reservation.Table {
	return p.table
}

// LoadReserved performs lr.w for h and counts it in h's statistics.
func (p *Primitive) LoadReserved(h *hart.Context, w memory.Word) uint32 {
	v := p.table.LoadReserved(h.ID, w)
	h.NoteLoadReserved()
	return v
}

// StoreConditional performs sc.w for h and counts the outcome.
func (p *Primitive) StoreConditional(h *hart.Context, w memory.Word, v uint32) bool {
	ok := p.table.StoreConditional(h.ID, w, v)
	h.NoteStoreConditional(ok)
	return ok
}

// CompareAndSwap atomically replaces expected with desired at w.
//
// Returns false, with memory unchanged and h holding no reservation, if the
// value observed by the load-reserved differs from expected. Returns true
// once a store-conditional of desired succeeds.
func (p *Primitive) CompareAndSwap(h *hart.Context, w memory.Word, expected, desired uint32) bool {
	var attempt uint
	for {
		if p.LoadReserved(h, w) != expected {
			p.table.Drop(h.ID)
			return false
		}
		if p.StoreConditional(h, w, desired) {
			return true
		}
		h.NoteRetry()
		attempt = p.backoff.Pause(attempt)
	}
}

// FetchAdd atomically adds delta to w and returns the previous value,
// retrying the LR/SC pair until the store-conditional succeeds.
func (p *Primitive) FetchAdd(h *hart.Context, w memory.Word, delta uint32) uint32 {
	var attempt uint
	for {
		old := p.LoadReserved(h, w)
		if p.StoreConditional(h, w, old+delta) {
			return old
		}
		h.NoteRetry()
		attempt = p.backoff.Pause(attempt)
	}
}

// CompareAndSwapAt is CompareAndSwap on a raw address. Access faults are
// returned before any reservation is taken.
func (p *Primitive) CompareAndSwapAt(h *hart.Context, addr memory.Address, expected, desired uint32) (bool, error) {
	w, err := p.table.Memory().Resolve("cas", addr)
	if err != nil {
		return false, err
	}
	return p.CompareAndSwap(h, w, expected, desired), nil
}

// FetchAddAt is FetchAdd on a raw address.
func (p *Primitive) FetchAddAt(h *hart.Context, addr memory.Address, delta uint32) (uint32, error) {
	w, err := p.table.Memory().Resolve("fetch_add", addr)
	if err != nil {
		return 0, err
	}
	return p.FetchAdd(h, w, delta), nil
}
