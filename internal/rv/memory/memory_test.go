package memory

import (
	"errors"
	"sync"
	"testing"

	"github.com/kolkov/rvatomic/internal/rv/fault"
)

// ========================================
// Construction Tests
// ========================================

// TestNew_Defaults verifies the zero Config selects the default region.
func TestNew_Defaults(t *testing.T) {
	m, err := New(Config{})
	if err != nil {
		t.Fatalf("New(Config{}) error: %v", err)
	}

	if m.Base() != DefaultBase {
		t.Errorf("Base() = %v, want %v", m.Base(), DefaultBase)
	}
	if m.Size() != DefaultSize {
		t.Errorf("Size() = %d, want %d", m.Size(), DefaultSize)
	}
	if m.Words() != DefaultSize/WordSize {
		t.Errorf("Words() = %d, want %d", m.Words(), DefaultSize/WordSize)
	}
}

// TestNew_InvalidConfig verifies bad regions are rejected.
func TestNew_InvalidConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"misaligned base", Config{Base: 0x1002, Size: 64}},
		{"odd size", Config{Base: 0x1000, Size: 6}},
		{"wraps address space", Config{Base: 0xFFFFFF00, Size: 0x200}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Errorf("New(%+v) succeeded, want error", tt.cfg)
			}
		})
	}
}

// ========================================
// Word Resolution Tests
// ========================================

// TestWord_Faults verifies alignment is checked before range.
func TestWord_Faults(t *testing.T) {
	m, _ := New(Config{Base: 0x1000, Size: 64})

	tests := []struct {
		name string
		addr Address
		want error
	}{
		{"misaligned in range", 0x1001, fault.ErrMisaligned},
		{"misaligned out of range", 0x2003, fault.ErrMisaligned},
		{"below base", 0x0FFC, fault.ErrOutOfRange},
		{"one past end", 0x1040, fault.ErrOutOfRange},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Word(tt.addr)
			if !errors.Is(err, tt.want) {
				t.Errorf("Word(%v) error = %v, want %v", tt.addr, err, tt.want)
			}
			if !fault.IsAccessFault(err) {
				t.Errorf("Word(%v) error is not an AccessFault: %T", tt.addr, err)
			}
		})
	}
}

// TestWord_Addr verifies round-tripping addresses through Word handles.
func TestWord_Addr(t *testing.T) {
	m, _ := New(Config{Base: 0x1000, Size: 64})

	w, err := m.Word(0x103C)
	if err != nil {
		t.Fatalf("Word(0x103C) error: %v", err)
	}
	if w.Addr() != 0x103C {
		t.Errorf("Addr() = %v, want 0x0000103c", w.Addr())
	}
	if w.Next().Valid() {
		t.Error("Next() of last word should be invalid")
	}
	if (Word{}).Valid() {
		t.Error("zero Word should be invalid")
	}
}

// ========================================
// Access Tests
// ========================================

// TestExclusive_ReadModifyWrite verifies Exclusive returns the old value and
// honours the write flag.
func TestExclusive_ReadModifyWrite(t *testing.T) {
	m, _ := New(Config{Base: 0x1000, Size: 64})
	w, _ := m.Word(0x1000)
	m.Poke(w, 10)

	old := m.Exclusive(w, func(v uint32) (uint32, bool) { return v + 5, true })
	if old != 10 {
		t.Errorf("Exclusive returned %d, want 10", old)
	}
	if got := m.Load(w); got != 15 {
		t.Errorf("value after write = %d, want 15", got)
	}

	old = m.Exclusive(w, func(v uint32) (uint32, bool) { return 99, false })
	if old != 15 {
		t.Errorf("Exclusive returned %d, want 15", old)
	}
	if got := m.Peek(w); got != 15 {
		t.Errorf("value after no-write = %d, want 15", got)
	}
}

// TestExclusive_Concurrent verifies increments under Exclusive are not lost.
func TestExclusive_Concurrent(t *testing.T) {
	m, _ := New(Config{Base: 0x1000, Size: 64})
	w, _ := m.Word(0x1008)

	const goroutines = 16
	const perGoroutine = 1000

	var wg sync.WaitGroup
	for g := 0; g < goroutines; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perGoroutine; i++ {
				m.Exclusive(w, func(v uint32) (uint32, bool) { return v + 1, true })
			}
		}()
	}
	wg.Wait()

	if got := m.Load(w); got != goroutines*perGoroutine {
		t.Errorf("final value = %d, want %d", got, goroutines*perGoroutine)
	}
}

// TestMemory_ForeignWordPanics verifies words cannot cross regions.
func TestMemory_ForeignWordPanics(t *testing.T) {
	m1, _ := New(Config{Base: 0x1000, Size: 64})
	m2, _ := New(Config{Base: 0x1000, Size: 64})
	w, _ := m1.Word(0x1000)

	defer func() {
		if recover() == nil {
			t.Error("Peek with foreign word did not panic")
		}
	}()
	m2.Peek(w)
}

// TestReset verifies Reset zeroes every word.
func TestReset(t *testing.T) {
	m, _ := New(Config{Base: 0x1000, Size: 16})
	for a := Address(0x1000); a < 0x1010; a += WordSize {
		w, _ := m.Word(a)
		m.Poke(w, 0xDEADBEEF)
	}

	m.Reset()

	for a := Address(0x1000); a < 0x1010; a += WordSize {
		w, _ := m.Word(a)
		if got := m.Peek(w); got != 0 {
			t.Errorf("word %v = 0x%x after Reset, want 0", a, got)
		}
	}
}
