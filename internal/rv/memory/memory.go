package memory

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kolkov/rvatomic/internal/rv/fault"
)

// Address is a byte address in the emulated address space.
type Address uint32

// String formats the address as 0xXXXXXXXX.
func (a Address) String() string {
	return fmt.Sprintf("0x%08x", uint32(a))
}

const (
	// WordSize is the width of an atomic word in bytes (RV32 ".w" operations).
	WordSize = 4

	// DefaultBase is the default start of the region (RISC-V DRAM base on the
	// QEMU virt machine).
	DefaultBase Address = 0x80000000

	// DefaultSize is the default region size in bytes (64 KiB).
	DefaultSize = 64 * 1024
)

// Config configures a Memory region.
//
// Zero values select DefaultBase and DefaultSize.
type Config struct {
	// Base is the first byte address of the region. Must be word-aligned.
	Base Address

	// Size is the region size in bytes. Must be a multiple of WordSize.
	Size uint32
}

// cell is the storage for one word.
//
// mu serializes read-modify-write sequences on the word. v is accessed with
// atomic loads and stores so polling readers never need mu.
type cell struct {
	mu sync.Mutex
	v  atomic.Uint32
}

// Memory is a flat region of atomically addressable words.
//
// Thread Safety: All methods are safe for concurrent use.
type Memory struct {
	base  Address
	size  uint32
	cells []cell
}

// New creates a zero-filled memory region.
//
// Returns an error if Base is misaligned, Size is not a multiple of WordSize,
// or the region wraps past the end of the 32-bit address space.
func New(cfg Config) (*Memory, error) {
	if cfg.Base == 0 && cfg.Size == 0 {
		cfg.Base = DefaultBase
	}
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}

	if cfg.Base%WordSize != 0 {
		return nil, fault.Access("memory.new", uint32(cfg.Base), fault.ErrMisaligned)
	}
	if cfg.Size%WordSize != 0 {
		return nil, fmt.Errorf("memory: size %d is not a multiple of %d", cfg.Size, WordSize)
	}
	if uint64(cfg.Base)+uint64(cfg.Size) > 1<<32 {
		return nil, fault.Access("memory.new", uint32(cfg.Base), fault.ErrOutOfRange)
	}

	return &Memory{
		base:  cfg.Base,
		size:  cfg.Size,
		cells: make([]cell, cfg.Size/WordSize),
	}, nil
}

// Base returns the first byte address of the region.
func (m *Memory) Base() Address {
	return m.base
}

// Size returns the region size in bytes.
func (m *Memory) Size() uint32 {
	return m.size
}

// Words returns the number of words in the region.
func (m *Memory) Words() int {
	return len(m.cells)
}

// Word resolves addr into a Word handle.
//
// The alignment check runs first, then the range check. On failure the
// returned error is a *fault.AccessFault and no memory has been touched.
func (m *Memory) Word(addr Address) (Word, error) {
	return m.Resolve("access", addr)
}

// Resolve is Word with the faulting operation name recorded in the error.
func (m *Memory) Resolve(op string, addr Address) (Word, error) {
	if addr%WordSize != 0 {
		return Word{}, fault.Access(op, uint32(addr), fault.ErrMisaligned)
	}
	if addr < m.base || uint64(addr) >= uint64(m.base)+uint64(m.size) {
		return Word{}, fault.Access(op, uint32(addr), fault.ErrOutOfRange)
	}
	return Word{mem: m, idx: uint32(addr-m.base) / WordSize}, nil
}

// Exclusive performs an indivisible read-modify-write on w.
//
// fn receives the current value and returns the value to write and whether to
// write it at all. fn runs with the word lock held: no other Exclusive call on
// the same word can observe an intermediate state. fn must not call back into
// Exclusive for the same word.
//
// Returns the value observed before fn ran.
func (m *Memory) Exclusive(w Word, fn func(old uint32) (next uint32, write bool)) uint32 {
	c := m.cell(w)
	c.mu.Lock()
	old := c.v.Load()
	if next, write := fn(old); write {
		c.v.Store(next)
	}
	c.mu.Unlock()
	return old
}

// Load performs a fenced atomic load of w.
//
// The fence precedes the read, matching an acquire-style poll of a counter
// that is updated by AMOs elsewhere.
func (m *Memory) Load(w Word) uint32 {
	Fence()
	return m.cell(w).v.Load()
}

// Peek reads w without fencing. Diagnostic use only.
func (m *Memory) Peek(w Word) uint32 {
	return m.cell(w).v.Load()
}

// Poke writes w without taking the word lock and without invalidating any
// reservation. Diagnostic use only: it is not linearizable with atomic
// operations on the same word.
func (m *Memory) Poke(w Word, v uint32) {
	m.cell(w).v.Store(v)
}

// Reset zeroes every word.
//
// Thread Safety: NOT safe for concurrent access. Use only while no hart is
// running.
func (m *Memory) Reset() {
	for i := range m.cells {
		m.cells[i].v.Store(0)
	}
}

// cell returns the storage for w. w must belong to m.
func (m *Memory) cell(w Word) *cell {
	if w.mem != m {
		panic("memory: word belongs to a different region")
	}
	return &m.cells[w.idx]
}

// fenceWord is the target of Fence's read-modify-write.
var fenceWord atomic.Uint32

// Fence is a full memory fence.
//
// Go's sync/atomic operations are sequentially consistent, so every atomic
// access is already ordered. Fence marks the points where a weakly ordered
// implementation must insert a barrier (RISC-V "fence rw,rw").
func Fence() {
	fenceWord.Add(1)
}
