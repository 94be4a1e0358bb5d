package amo

import (
	"errors"
	"math"
	"sort"
	"sync"
	"testing"

	"github.com/kolkov/rvatomic/internal/rv/fault"
	"github.com/kolkov/rvatomic/internal/rv/memory"
	"github.com/kolkov/rvatomic/internal/rv/reservation"
)

// newTestEngine returns an engine over a small region plus its first word.
func newTestEngine(t *testing.T) (*Engine, memory.Word) {
	t.Helper()

	mem, err := memory.New(memory.Config{Base: 0x2000, Size: 64})
	if err != nil {
		t.Fatalf("memory.New error: %v", err)
	}
	w, _ := mem.Word(0x2000)
	return NewEngine(reservation.NewTable(mem, reservation.Config{MaxHarts: 4})), w
}

// ========================================
// Operation Semantics
// ========================================

// TestApply verifies the value every op writes back.
func TestApply(t *testing.T) {
	neg5 := uint32(math.MaxUint32 - 4) // int32(-5)

	tests := []struct {
		op      Op
		old     uint32
		operand uint32
		want    uint32
	}{
		{Swap, 100, 200, 200},
		{Add, 10, 5, 15},
		{Add, math.MaxUint32, 1, 0},
		{And, 0xFF, 0x0F, 0x0F},
		{Or, 0x0F, 0xF0, 0xFF},
		{Xor, 0xFF, 0x55, 0xAA},
		{Min, 50, 30, 30},
		{Min, 5, neg5, neg5},
		{Max, 30, 40, 40},
		{Max, neg5, 5, 5},
		{MinU, 50, 25, 25},
		{MinU, 5, neg5, 5},
		{MaxU, 25, 75, 75},
		{MaxU, 5, neg5, neg5},
	}

	for _, tt := range tests {
		if got := tt.op.Apply(tt.old, tt.operand); got != tt.want {
			t.Errorf("%v.Apply(%#x, %#x) = %#x, want %#x", tt.op, tt.old, tt.operand, got, tt.want)
		}
	}
}

// TestParseOp verifies mnemonic and bare-name parsing.
func TestParseOp(t *testing.T) {
	for _, op := range Ops() {
		got, err := ParseOp(op.String())
		if err != nil || got != op {
			t.Errorf("ParseOp(%q) = %v, %v", op.String(), got, err)
		}
	}

	if got, err := ParseOp("minu"); err != nil || got != MinU {
		t.Errorf("ParseOp(\"minu\") = %v, %v", got, err)
	}
	if _, err := ParseOp("amonand.w"); !errors.Is(err, fault.ErrUnknownOp) {
		t.Errorf("ParseOp(\"amonand.w\") error = %v, want ErrUnknownOp", err)
	}
}

// ========================================
// Engine Tests
// ========================================

// TestEngine_ReferenceSequence replays the reference program's AMO sequence.
func TestEngine_ReferenceSequence(t *testing.T) {
	e, w := newTestEngine(t)
	mem := e.Table().Memory()

	mem.Poke(w, 100)
	if old := e.Swap(w, 200); old != 100 || mem.Peek(w) != 200 {
		t.Errorf("Swap: old=%d now=%d, want 100/200", old, mem.Peek(w))
	}

	mem.Poke(w, 0)
	if old := e.Add(w, 10); old != 0 {
		t.Errorf("Add(10) old = %d, want 0", old)
	}
	if old := e.Add(w, 5); old != 10 || mem.Peek(w) != 15 {
		t.Errorf("Add(5): old=%d now=%d, want 10/15", old, mem.Peek(w))
	}

	mem.Poke(w, 0xFF)
	if old := e.And(w, 0x0F); old != 0xFF || mem.Peek(w) != 0x0F {
		t.Errorf("And: old=%#x now=%#x, want 0xff/0x0f", old, mem.Peek(w))
	}
	if old := e.Or(w, 0xF0); old != 0x0F || mem.Peek(w) != 0xFF {
		t.Errorf("Or: old=%#x now=%#x, want 0x0f/0xff", old, mem.Peek(w))
	}
	if old := e.Xor(w, 0x55); old != 0xFF || mem.Peek(w) != 0xAA {
		t.Errorf("Xor: old=%#x now=%#x, want 0xff/0xaa", old, mem.Peek(w))
	}

	mem.Poke(w, 50)
	if old := e.Min(w, 30); old != 50 || mem.Peek(w) != 30 {
		t.Errorf("Min: old=%d now=%d, want 50/30", old, mem.Peek(w))
	}
	if old := e.Max(w, 40); old != 30 || mem.Peek(w) != 40 {
		t.Errorf("Max: old=%d now=%d, want 30/40", old, mem.Peek(w))
	}

	mem.Poke(w, 50)
	if old := e.MinU(w, 25); old != 50 || mem.Peek(w) != 25 {
		t.Errorf("MinU: old=%d now=%d, want 50/25", old, mem.Peek(w))
	}
	if old := e.MaxU(w, 75); old != 25 || mem.Peek(w) != 75 {
		t.Errorf("MaxU: old=%d now=%d, want 25/75", old, mem.Peek(w))
	}
}

// TestEngine_InvalidatesReservations verifies an AMO kills every hart's
// reservation on the address, including one that looks like the issuer's.
func TestEngine_InvalidatesReservations(t *testing.T) {
	e, w := newTestEngine(t)
	tbl := e.Table()
	other := w.Next()

	tbl.LoadReserved(0, w)
	tbl.LoadReserved(1, w)
	tbl.LoadReserved(2, other)

	e.Add(w, 1)

	if tbl.Holds(0, w) || tbl.Holds(1, w) {
		t.Error("reservation on w survived an AMO")
	}
	if !tbl.Holds(2, other) {
		t.Error("reservation on another word was invalidated")
	}
	if tbl.StoreConditional(0, w, 99) {
		t.Error("StoreConditional succeeded after an intervening AMO")
	}
}

// TestEngine_DoAtFaults verifies faults abort before memory is touched.
func TestEngine_DoAtFaults(t *testing.T) {
	e, w := newTestEngine(t)
	e.Table().Memory().Poke(w, 7)

	if _, err := e.DoAt(Add, 0x2001, 1); !errors.Is(err, fault.ErrMisaligned) {
		t.Errorf("DoAt(misaligned) error = %v, want ErrMisaligned", err)
	}
	if _, err := e.DoAt(Add, 0x3000, 1); !errors.Is(err, fault.ErrOutOfRange) {
		t.Errorf("DoAt(out of range) error = %v, want ErrOutOfRange", err)
	}
	if _, err := e.DoAt(Op(200), 0x2000, 1); !errors.Is(err, fault.ErrUnknownOp) {
		t.Errorf("DoAt(bad op) error = %v, want ErrUnknownOp", err)
	}
	if got := e.Table().Memory().Peek(w); got != 7 {
		t.Errorf("word changed to %d by faulting operations", got)
	}

	old, err := e.DoAt(Add, 0x2000, 1)
	if err != nil || old != 7 {
		t.Errorf("DoAt(valid) = %d, %v; want 7, nil", old, err)
	}
}

// ========================================
// Linearizability
// ========================================

// TestEngine_AddLinearizable verifies N concurrent amoadd(1) from 0 end at N
// and return exactly {0, 1, ..., N-1}.
func TestEngine_AddLinearizable(t *testing.T) {
	e, w := newTestEngine(t)

	const goroutines = 16
	const perGoroutine = 500
	const n = goroutines * perGoroutine

	olds := make([][]uint32, goroutines)
	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			local := make([]uint32, 0, perGoroutine)
			for i := 0; i < perGoroutine; i++ {
				local = append(local, e.Add(w, 1))
			}
			olds[g] = local
		}(g)
	}
	wg.Wait()

	if got := e.Table().Memory().Load(w); got != n {
		t.Fatalf("final value = %d, want %d", got, n)
	}

	all := make([]uint32, 0, n)
	for _, local := range olds {
		all = append(all, local...)
	}
	sort.Slice(all, func(i, j int) bool { return all[i] < all[j] })
	for i, v := range all {
		if v != uint32(i) {
			t.Fatalf("sorted old values[%d] = %d, want %d", i, v, i)
		}
	}
}

// TestEngine_MaxConcurrent verifies concurrent amomax keeps the maximum.
func TestEngine_MaxConcurrent(t *testing.T) {
	e, w := newTestEngine(t)
	e.Table().Memory().Poke(w, uint32(0x80000000)) // int32 minimum

	var wg sync.WaitGroup
	for g := int32(-50); g < 50; g++ {
		wg.Add(1)
		go func(v int32) {
			defer wg.Done()
			e.Max(w, v)
		}(g)
	}
	wg.Wait()

	if got := int32(e.Table().Memory().Load(w)); got != 49 {
		t.Errorf("final max = %d, want 49", got)
	}
}

// BenchmarkEngine_Add measures uncontended amoadd.w.
func BenchmarkEngine_Add(b *testing.B) {
	mem, _ := memory.New(memory.Config{Base: 0x2000, Size: 64})
	w, _ := mem.Word(0x2000)
	e := NewEngine(reservation.NewTable(mem, reservation.Config{}))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		e.Add(w, 1)
	}
}
