// Package amo implements single-step atomic memory operations.
//
// An AMO atomically reads a word, computes op(old, operand), writes the
// result back and returns old. The whole sequence runs under the word's lock
// inside the reservation table's write path, so it is indivisible with
// respect to every other AMO, compare-and-swap and store-conditional on the
// same address, and it invalidates every hart's reservation on that address
// exactly like a plain store does.
//
// AMOs never fail and need no retry loop.
package amo

import (
	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/memory"
	"github.com/kolkov/rvatomic/internal/rv/reservation"
)

// Engine executes AMOs against the memory guarded by a reservation table.
//
// Thread Safety: All methods are safe for concurrent use.
type Engine struct {
	table *reservation.Table
}

// NewEngine creates an engine over table.
func NewEngine(table *reservation.Table) *Engine {
	return &Engine{table: table}
}

// Table returns the reservation table the engine invalidates.
func (e *Engine) Table() *reservation.Table {
	return e.table
}

// Do atomically applies op to w and returns the previous value.
//
// Panics with a *fault.UsageError if op is not a defined operation; the
// check happens before memory is touched.
func (e *Engine) Do(op Op, w memory.Word, operand uint32) uint32 {
	if !op.Valid() {
		panic(fault.Usage("amo.do", fault.ErrUnknownOp))
	}
	return e.table.Write(w, hart.None, func(old uint32) (uint32, bool) {
		return op.Apply(old, operand), true
	})
}

// DoAt is Do on a raw address.
//
// Returns a *fault.AccessFault for a misaligned or out-of-range address and
// a *fault.UsageError for an undefined op. In both cases memory is untouched.
func (e *Engine) DoAt(op Op, addr memory.Address, operand uint32) (uint32, error) {
	if !op.Valid() {
		return 0, fault.Usage("amo.do", fault.ErrUnknownOp)
	}
	w, err := e.table.Memory().Resolve(op.String(), addr)
	if err != nil {
		return 0, err
	}
	return e.Do(op, w, operand), nil
}

// Swap performs amoswap.w.
func (e *Engine) Swap(w memory.Word, v uint32) uint32 { return e.Do(Swap, w, v) }

// Add performs amoadd.w.
func (e *Engine) Add(w memory.Word, v uint32) uint32 { return e.Do(Add, w, v) }

// And performs amoand.w.
func (e *Engine) And(w memory.Word, v uint32) uint32 { return e.Do(And, w, v) }

// Or performs amoor.w.
func (e *Engine) Or(w memory.Word, v uint32) uint32 { return e.Do(Or, w, v) }

// Xor performs amoxor.w.
func (e *Engine) Xor(w memory.Word, v uint32) uint32 { return e.Do(Xor, w, v) }

// Min performs amomin.w (signed).
func (e *Engine) Min(w memory.Word, v int32) int32 { return int32(e.Do(Min, w, uint32(v))) }

// Max performs amomax.w (signed).
func (e *Engine) Max(w memory.Word, v int32) int32 { return int32(e.Do(Max, w, uint32(v))) }

// MinU performs amominu.w (unsigned).
func (e *Engine) MinU(w memory.Word, v uint32) uint32 { return e.Do(MinU, w, v) }

// MaxU performs amomaxu.w (unsigned).
func (e *Engine) MaxU(w memory.Word, v uint32) uint32 { return e.Do(MaxU, w, v) }
