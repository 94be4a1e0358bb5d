package memory

import (
	"sync"

	"github.com/kolkov/rvatomic/internal/rv/fault"
)

// Allocator hands out words from a Memory.
//
// Blocks come from a bump pointer that never moves backwards. Every live
// allocation is recorded by its first word, and Free accepts only such a
// first word: a second free of the same block, or a free aimed at the middle
// of a block, is refused. Freed words go onto a free list and are reused one
// at a time by AllocWord, in the manner of a page allocator's run list.
//
// Thread Safety: Safe for concurrent calls (protected by mu).
type Allocator struct {
	mem *Memory

	mu   sync.Mutex
	next uint32            // Index of the first never-allocated word.
	free []uint32          // Indices of freed words (LIFO).
	live map[uint32]uint32 // First index of each live block -> length.
	used int               // Words in live blocks.
}

// NewAllocator creates an allocator over the whole of mem.
func NewAllocator(mem *Memory) *Allocator {
	return &Allocator{mem: mem, live: make(map[uint32]uint32)}
}

// Alloc reserves n consecutive zeroed words and returns the address of the
// first one.
//
// Returns fault.ErrOutOfMemory (wrapped in an AccessFault) when the region is
// exhausted. Words handed out by Alloc are zeroed on allocation.
func (a *Allocator) Alloc(n int) (Address, error) {
	if n <= 0 {
		n = 1
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if uint64(a.next)+uint64(n) > uint64(len(a.mem.cells)) {
		return 0, fault.Access("alloc", uint32(a.mem.base)+a.next*WordSize, fault.ErrOutOfMemory)
	}

	first := a.next
	a.next += uint32(n)
	for i := first; i < a.next; i++ {
		a.mem.cells[i].v.Store(0)
	}
	a.live[first] = uint32(n)
	a.used += n
	return a.mem.base + Address(first*WordSize), nil
}

// AllocWord returns a zeroed word, preferring previously freed words.
func (a *Allocator) AllocWord() (Word, error) {
	a.mu.Lock()
	if n := len(a.free); n > 0 {
		idx := a.free[n-1]
		a.free = a.free[:n-1]
		a.mem.cells[idx].v.Store(0)
		a.live[idx] = 1
		a.used++
		a.mu.Unlock()
		return Word{mem: a.mem, idx: idx}, nil
	}
	a.mu.Unlock()

	addr, err := a.Alloc(1)
	if err != nil {
		return Word{}, err
	}
	return a.mem.Resolve("alloc", addr)
}

// Free returns the block starting at w to the allocator.
func (a *Allocator) Free(w Word) error {
	return a.FreeWith(w, nil)
}

// FreeWith is Free with a release hook, called for each word of the block
// after the block has been validated and before any of its words can be
// handed out again.
//
// Returns an AccessFault wrapping fault.ErrOutOfRange for a word of another
// Memory, and a UsageError wrapping fault.ErrNotAllocated for a word that
// does not start a live block. Neither error touches the allocator or calls
// release.
func (a *Allocator) FreeWith(w Word, release func(Word)) error {
	if w.mem != a.mem {
		return fault.Access("free", uint32(w.Addr()), fault.ErrOutOfRange)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	n, ok := a.live[w.idx]
	if !ok {
		return fault.Usage("free "+w.Addr().String(), fault.ErrNotAllocated)
	}
	delete(a.live, w.idx)
	a.used -= int(n)

	// Push the last word first so AllocWord hands the block back in address
	// order.
	for i := w.idx + n; i > w.idx; i-- {
		if release != nil {
			release(Word{mem: a.mem, idx: i - 1})
		}
		a.free = append(a.free, i-1)
	}
	return nil
}

// Used returns the number of words handed out and not freed.
func (a *Allocator) Used() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.used
}
