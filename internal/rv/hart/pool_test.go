package hart

import (
	"errors"
	"sync"
	"testing"

	"github.com/kolkov/rvatomic/internal/rv/fault"
)

// TestPool_AscendingAllocation verifies IDs are handed out 0, 1, 2, ...
func TestPool_AscendingAllocation(t *testing.T) {
	p := NewPool(4)

	for want := ID(0); want < 4; want++ {
		ctx, err := p.Alloc()
		if err != nil {
			t.Fatalf("Alloc() error: %v", err)
		}
		if ctx.ID != want {
			t.Errorf("Alloc() ID = %v, want %v", ctx.ID, want)
		}
	}

	if p.InUse() != 4 {
		t.Errorf("InUse() = %d, want 4", p.InUse())
	}
}

// TestPool_Exhausted verifies the pool fails instead of sharing an ID.
func TestPool_Exhausted(t *testing.T) {
	p := NewPool(1)
	if _, err := p.Alloc(); err != nil {
		t.Fatalf("first Alloc() error: %v", err)
	}

	_, err := p.Alloc()
	if !errors.Is(err, fault.ErrNoHarts) {
		t.Errorf("Alloc() on exhausted pool error = %v, want ErrNoHarts", err)
	}
	if !fault.IsUsageError(err) {
		t.Errorf("exhausted pool error is not a UsageError: %T", err)
	}
}

// TestPool_FreeReuses verifies freed IDs are reused FIFO.
func TestPool_FreeReuses(t *testing.T) {
	p := NewPool(2)
	a, _ := p.Alloc()
	b, _ := p.Alloc()

	if err := p.Free(a); err != nil {
		t.Fatalf("Free() error: %v", err)
	}

	c, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc() after Free error: %v", err)
	}
	if c.ID != a.ID {
		t.Errorf("reused ID = %v, want %v", c.ID, a.ID)
	}
	if c.ID == b.ID {
		t.Error("reused ID collides with a live hart")
	}
}

// TestPool_FreeUnknown verifies double frees are rejected.
func TestPool_FreeUnknown(t *testing.T) {
	p := NewPool(2)
	a, _ := p.Alloc()
	_ = p.Free(a)

	if err := p.Free(a); !errors.Is(err, fault.ErrUnknownHart) {
		t.Errorf("double Free() error = %v, want ErrUnknownHart", err)
	}
	if err := p.Free(nil); !errors.Is(err, fault.ErrUnknownHart) {
		t.Errorf("Free(nil) error = %v, want ErrUnknownHart", err)
	}
}

// TestPool_FreeWithRelease verifies the release hook runs once, with the
// departing ID, and never for a stale context.
func TestPool_FreeWithRelease(t *testing.T) {
	p := NewPool(1)
	a, _ := p.Alloc()

	var released []ID
	release := func(id ID) {
		if p.live[id] == nil {
			t.Errorf("release(%v) ran after the ID left the live set", id)
		}
		released = append(released, id)
	}

	if err := p.FreeWith(a, release); err != nil {
		t.Fatalf("FreeWith() error: %v", err)
	}
	b, err := p.Alloc()
	if err != nil {
		t.Fatalf("Alloc() after FreeWith error: %v", err)
	}
	if b.ID != 0 {
		t.Fatalf("reused ID = %v, want 0", b.ID)
	}

	if err := p.FreeWith(a, release); !errors.Is(err, fault.ErrUnknownHart) {
		t.Errorf("stale FreeWith() error = %v, want ErrUnknownHart", err)
	}
	if len(released) != 1 || released[0] != 0 {
		t.Errorf("release calls = %v, want [0]", released)
	}
	if p.InUse() != 1 {
		t.Errorf("InUse() = %d after stale free, want 1", p.InUse())
	}
}

// TestPool_StatsSurviveFree verifies retired counters stay in the total.
func TestPool_StatsSurviveFree(t *testing.T) {
	p := NewPool(2)
	a, _ := p.Alloc()
	a.NoteLoadReserved()
	a.NoteStoreConditional(true)
	a.NoteStoreConditional(false)
	a.NoteRetry()
	_ = p.Free(a)

	b, _ := p.Alloc()
	b.NoteLoadReserved()

	got := p.Stats()
	want := Stats{LoadReserved: 2, SCSuccess: 1, SCFailure: 1, Retries: 1}
	if got != want {
		t.Errorf("Stats() = %+v, want %+v", got, want)
	}
	if b.Stats().SCSuccess != 0 {
		t.Error("reused context kept counters from previous owner")
	}
}

// TestPool_ConcurrentAlloc verifies concurrent allocations yield unique IDs.
func TestPool_ConcurrentAlloc(t *testing.T) {
	const n = 64
	p := NewPool(n)

	ids := make(chan ID, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, err := p.Alloc()
			if err != nil {
				t.Errorf("Alloc() error: %v", err)
				return
			}
			ids <- ctx.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[ID]bool)
	for id := range ids {
		if seen[id] {
			t.Errorf("ID %v allocated twice", id)
		}
		seen[id] = true
	}
}

// TestID_String verifies ID formatting.
func TestID_String(t *testing.T) {
	if got := ID(3).String(); got != "hart3" {
		t.Errorf("ID(3).String() = %q, want %q", got, "hart3")
	}
	if got := None.String(); got != "none" {
		t.Errorf("None.String() = %q, want %q", got, "none")
	}
}
