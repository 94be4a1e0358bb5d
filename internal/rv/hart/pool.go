package hart

import (
	"sync"

	"github.com/kolkov/rvatomic/internal/rv/fault"
)

// Pool allocates hart IDs in the range [0, Max).
//
// Free IDs are kept in a FIFO queue seeded in ascending order, so a fresh
// pool hands out 0, 1, 2, ... which keeps reports readable. Counters of
// released harts are folded into a retired total so that aggregate statistics
// survive hart turnover.
//
// Thread Safety: Safe for concurrent calls (protected by mu).
type Pool struct {
	mu      sync.Mutex
	size    int
	free    []ID
	live    map[ID]*Context
	retired Stats
}

// NewPool creates a pool of size IDs. size is clamped to [1, MaxHarts].
func NewPool(size int) *Pool {
	size = min(max(size, 1), MaxHarts)

	p := &Pool{
		size: size,
		free: make([]ID, size),
		live: make(map[ID]*Context, size),
	}
	for i := range p.free {
		p.free[i] = ID(i)
	}
	return p
}

// Max returns the pool size.
func (p *Pool) Max() int {
	return p.size
}

// Alloc returns a Context with the lowest free ID.
//
// Returns fault.ErrNoHarts (as a UsageError) if every ID is in use.
func (p *Pool) Alloc() (*Context, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.free) == 0 {
		return nil, fault.Usage("hart.alloc", fault.ErrNoHarts)
	}

	id := p.free[0]
	p.free = p.free[1:]

	ctx := NewContext(id)
	p.live[id] = ctx
	return ctx, nil
}

// Free returns ctx's ID to the pool.
//
// The caller must not use ctx afterwards. Freeing a context that the pool
// does not consider live reports fault.ErrUnknownHart.
func (p *Pool) Free(ctx *Context) error {
	return p.FreeWith(ctx, nil)
}

// FreeWith is Free with a release hook. release, if non-nil, runs with the
// departing ID after ctx has been confirmed live and before the ID can be
// handed out again, so per-hart state such as a reservation is cleared while
// no other hart owns the ID. A stale or foreign ctx never reaches release.
func (p *Pool) FreeWith(ctx *Context, release func(ID)) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if ctx == nil || p.live[ctx.ID] != ctx {
		return fault.Usage("hart.free", fault.ErrUnknownHart)
	}

	if release != nil {
		release(ctx.ID)
	}
	delete(p.live, ctx.ID)
	p.retired = p.retired.Add(ctx.Stats())
	ctx.reset()
	//nolint:makezero // Intentional append to the FIFO queue.
	p.free = append(p.free, ctx.ID)
	return nil
}

// InUse returns the number of live harts.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.live)
}

// Stats returns the counters of every live hart plus those of released harts.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()

	total := p.retired
	for _, ctx := range p.live {
		total = total.Add(ctx.Stats())
	}
	return total
}
