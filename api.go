package rvatomic

import (
	"github.com/kolkov/rvatomic/internal/rv/amo"
	"github.com/kolkov/rvatomic/internal/rv/backoff"
	"github.com/kolkov/rvatomic/internal/rv/cas"
	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/memory"
	"github.com/kolkov/rvatomic/internal/rv/reservation"
)

// Address is a byte address in a Machine's memory.
type Address = memory.Address

// HartID identifies a hart.
type HartID = hart.ID

// Op is an atomic memory operation.
type Op = amo.Op

// AMO operations.
const (
	OpSwap = amo.Swap
	OpAdd  = amo.Add
	OpAnd  = amo.And
	OpOr   = amo.Or
	OpXor  = amo.Xor
	OpMin  = amo.Min
	OpMax  = amo.Max
	OpMinU = amo.MinU
	OpMaxU = amo.MaxU
)

// Ops returns every AMO in opcode order.
func Ops() []Op { return amo.Ops() }

// ParseOp parses a mnemonic such as "amoadd.w" or a bare name such as "add".
func ParseOp(s string) (Op, error) { return amo.ParseOp(s) }

// Error types and causes, matched with errors.As and errors.Is.
type (
	AccessFault = fault.AccessFault
	UsageError  = fault.UsageError
)

var (
	ErrMisaligned    = fault.ErrMisaligned
	ErrOutOfRange    = fault.ErrOutOfRange
	ErrOutOfMemory   = fault.ErrOutOfMemory
	ErrNotLocked     = fault.ErrNotLocked
	ErrNegativeCount = fault.ErrNegativeCount
	ErrCountOverflow = fault.ErrCountOverflow
	ErrNoHarts       = fault.ErrNoHarts
	ErrUnknownHart   = fault.ErrUnknownHart
	ErrUnknownOp     = fault.ErrUnknownOp
	ErrNotAllocated  = fault.ErrNotAllocated
)

// Config configures a Machine. The zero value is usable.
type Config struct {
	// Base is the first byte address of memory. Must be word aligned.
	// Default: 0x80000000 (when Size is also zero).
	Base Address

	// Size is the memory size in bytes. Must be a multiple of 4.
	// Default: 64 KiB.
	Size uint32

	// MaxHarts bounds the number of harts alive at once.
	// Default: 8. Maximum: 1024.
	MaxHarts int

	// SpuriousRate makes one in SpuriousRate store-conditionals fail with no
	// conflicting write. 0 or 1 disables injection.
	SpuriousRate uint64

	// Backoff names the strategy used at every retry point:
	// "spin", "yield" or "exponential". Default: "exponential".
	Backoff string
}

// Machine is a shared memory with its reservation table and hart pool.
//
// Thread Safety: All methods are safe for concurrent use.
type Machine struct {
	mem      *memory.Memory
	alloc    *memory.Allocator
	table    *reservation.Table
	amo      *amo.Engine
	cas      *cas.Primitive
	harts    *hart.Pool
	strategy backoff.Strategy
}

// NewMachine creates a Machine.
//
// Returns an error if the memory geometry is invalid or Backoff names an
// unknown strategy.
func NewMachine(cfg Config) (*Machine, error) {
	strategy, err := backoff.Parse(cfg.Backoff)
	if err != nil {
		return nil, err
	}

	mem, err := memory.New(memory.Config{Base: cfg.Base, Size: cfg.Size})
	if err != nil {
		return nil, err
	}

	if cfg.MaxHarts <= 0 {
		cfg.MaxHarts = reservation.DefaultMaxHarts
	}
	harts := hart.NewPool(cfg.MaxHarts)
	table := reservation.NewTable(mem, reservation.Config{
		MaxHarts: harts.Max(),
		Spurious: reservation.SpuriousConfig{Rate: cfg.SpuriousRate},
	})

	return &Machine{
		mem:      mem,
		alloc:    memory.NewAllocator(mem),
		table:    table,
		amo:      amo.NewEngine(table),
		cas:      cas.New(table, strategy),
		harts:    harts,
		strategy: strategy,
	}, nil
}

// Base returns the first byte address of memory.
func (m *Machine) Base() Address { return m.mem.Base() }

// Size returns the memory size in bytes.
func (m *Machine) Size() uint32 { return m.mem.Size() }

// MaxHarts returns the number of hart slots.
func (m *Machine) MaxHarts() int { return m.harts.Max() }

// Backoff returns the name of the configured backoff strategy.
func (m *Machine) Backoff() string { return backoff.Name(m.strategy) }

// Hart allocates a hart. Release it when the goroutine is done.
//
// Returns a *UsageError wrapping ErrNoHarts if MaxHarts harts are alive.
func (m *Machine) Hart() (*Hart, error) {
	ctx, err := m.harts.Alloc()
	if err != nil {
		return nil, err
	}
	return &Hart{m: m, ctx: ctx}, nil
}

// Alloc reserves n consecutive zeroed words and returns the first address.
func (m *Machine) Alloc(n int) (Address, error) {
	return m.alloc.Alloc(n)
}

// Free returns a block obtained from Alloc, NewSpinlock or NewSemaphore.
// addr must be the block's first address. Every word of the block is zeroed
// and its reservations destroyed before the words can be reallocated.
//
// Returns a *UsageError wrapping ErrNotAllocated for an address that does not
// start a live block, including a second Free of the same block.
func (m *Machine) Free(addr Address) error {
	w, err := m.mem.Resolve("free", addr)
	if err != nil {
		return err
	}
	return m.alloc.FreeWith(w, m.scrub)
}

func (m *Machine) scrub(w memory.Word) {
	m.table.Store(w, 0)
}

// Peek reads addr without a fence. Diagnostic use only.
func (m *Machine) Peek(addr Address) (uint32, error) {
	w, err := m.mem.Resolve("peek", addr)
	if err != nil {
		return 0, err
	}
	return m.mem.Peek(w), nil
}

// Poke writes addr without invalidating reservations. Diagnostic use only;
// use Hart.Store from running harts.
func (m *Machine) Poke(addr Address, v uint32) error {
	w, err := m.mem.Resolve("poke", addr)
	if err != nil {
		return err
	}
	m.mem.Poke(w, v)
	return nil
}

// Preempt destroys h's reservation as a trap or context switch would.
// Returns true if h held one. A released hart holds nothing.
func (m *Machine) Preempt(h *Hart) bool {
	if h.ctx == nil {
		return false
	}
	return m.table.Preempt(h.ctx.ID)
}

// Hart is one hardware thread's view of a Machine.
//
// A Hart must be used by one goroutine at a time. After Release every
// method that can fail returns a *UsageError wrapping ErrUnknownHart.
type Hart struct {
	m   *Machine
	ctx *hart.Context // nil once released
}

// live returns the hart's context, or an error once the hart is released.
func (h *Hart) live(op string) (*hart.Context, error) {
	if h.ctx == nil {
		return nil, fault.Usage(op, fault.ErrUnknownHart)
	}
	return h.ctx, nil
}

// ID returns the hart's identifier, or hart.None once released.
func (h *Hart) ID() HartID {
	if h.ctx == nil {
		return hart.None
	}
	return h.ctx.ID
}

// Stats returns this hart's counters. A released hart reports zeros; its
// counters live on in Machine.Stats.
func (h *Hart) Stats() HartStats {
	if h.ctx == nil {
		return HartStats{}
	}
	return h.ctx.Stats()
}

// Release drops the hart's reservation and returns its ID to the pool.
//
// Releasing twice returns a *UsageError wrapping ErrUnknownHart and has no
// effect on whichever hart now owns the ID.
func (h *Hart) Release() error {
	ctx, err := h.live("hart.release")
	if err != nil {
		return err
	}
	if err := h.m.harts.FreeWith(ctx, h.m.table.Drop); err != nil {
		return err
	}
	h.ctx = nil
	return nil
}

// LoadReserved performs lr.w: it reads addr and makes it the hart's sole
// reservation.
func (h *Hart) LoadReserved(addr Address) (uint32, error) {
	ctx, err := h.live("lr.w")
	if err != nil {
		return 0, err
	}
	w, err := h.m.mem.Resolve("lr.w", addr)
	if err != nil {
		return 0, err
	}
	return h.m.cas.LoadReserved(ctx, w), nil
}

// StoreConditional performs sc.w: it writes v to addr only if the hart still
// holds a reservation on exactly addr. The reservation is consumed either
// way. A false result is a retry signal, not an error.
func (h *Hart) StoreConditional(addr Address, v uint32) (bool, error) {
	ctx, err := h.live("sc.w")
	if err != nil {
		return false, err
	}
	w, err := h.m.mem.Resolve("sc.w", addr)
	if err != nil {
		return false, err
	}
	return h.m.cas.StoreConditional(ctx, w, v), nil
}

// CompareAndSwap atomically replaces expected with desired at addr using an
// LR/SC loop. It returns false without writing if addr does not hold
// expected.
func (h *Hart) CompareAndSwap(addr Address, expected, desired uint32) (bool, error) {
	ctx, err := h.live("cas")
	if err != nil {
		return false, err
	}
	return h.m.cas.CompareAndSwapAt(ctx, addr, expected, desired)
}

// FetchAddLRSC adds delta to addr with an LR/SC loop and returns the
// previous value.
func (h *Hart) FetchAddLRSC(addr Address, delta uint32) (uint32, error) {
	ctx, err := h.live("fetch_add")
	if err != nil {
		return 0, err
	}
	return h.m.cas.FetchAddAt(ctx, addr, delta)
}

// AMO applies op to addr and returns the previous value.
func (h *Hart) AMO(op Op, addr Address, operand uint32) (uint32, error) {
	if _, err := h.live(op.String()); err != nil {
		return 0, err
	}
	return h.m.amo.DoAt(op, addr, operand)
}

// AMOSwap performs amoswap.w.
func (h *Hart) AMOSwap(addr Address, v uint32) (uint32, error) { return h.AMO(OpSwap, addr, v) }

// AMOAdd performs amoadd.w.
func (h *Hart) AMOAdd(addr Address, v uint32) (uint32, error) { return h.AMO(OpAdd, addr, v) }

// AMOAnd performs amoand.w.
func (h *Hart) AMOAnd(addr Address, v uint32) (uint32, error) { return h.AMO(OpAnd, addr, v) }

// AMOOr performs amoor.w.
func (h *Hart) AMOOr(addr Address, v uint32) (uint32, error) { return h.AMO(OpOr, addr, v) }

// AMOXor performs amoxor.w.
func (h *Hart) AMOXor(addr Address, v uint32) (uint32, error) { return h.AMO(OpXor, addr, v) }

// AMOMin performs amomin.w (signed).
func (h *Hart) AMOMin(addr Address, v int32) (int32, error) {
	old, err := h.AMO(OpMin, addr, uint32(v))
	return int32(old), err
}

// AMOMax performs amomax.w (signed).
func (h *Hart) AMOMax(addr Address, v int32) (int32, error) {
	old, err := h.AMO(OpMax, addr, uint32(v))
	return int32(old), err
}

// AMOMinU performs amominu.w (unsigned).
func (h *Hart) AMOMinU(addr Address, v uint32) (uint32, error) { return h.AMO(OpMinU, addr, v) }

// AMOMaxU performs amomaxu.w (unsigned).
func (h *Hart) AMOMaxU(addr Address, v uint32) (uint32, error) { return h.AMO(OpMaxU, addr, v) }

// Load performs a fenced load of addr.
func (h *Hart) Load(addr Address) (uint32, error) {
	if _, err := h.live("load"); err != nil {
		return 0, err
	}
	w, err := h.m.mem.Resolve("load", addr)
	if err != nil {
		return 0, err
	}
	return h.m.mem.Load(w), nil
}

// Store writes v to addr, invalidates every reservation on addr, then
// fences.
func (h *Hart) Store(addr Address, v uint32) error {
	if _, err := h.live("store"); err != nil {
		return err
	}
	w, err := h.m.mem.Resolve("store", addr)
	if err != nil {
		return err
	}
	h.m.table.Store(w, v)
	return nil
}
