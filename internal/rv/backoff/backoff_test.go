package backoff

import "testing"

// TestPause_Progress verifies every strategy advances or caps the attempt.
func TestPause_Progress(t *testing.T) {
	if got := (Spin{}).Pause(3); got != 4 {
		t.Errorf("Spin.Pause(3) = %d, want 4", got)
	}
	if got := (Yield{}).Pause(3); got != 4 {
		t.Errorf("Yield.Pause(3) = %d, want 4", got)
	}

	e := Exponential{MaxShift: 2}
	var attempt uint
	for i := 0; i < 5; i++ {
		attempt = e.Pause(attempt)
	}
	if attempt != 2 {
		t.Errorf("Exponential attempt after 5 pauses = %d, want capped at 2", attempt)
	}
}

// TestExponential_LargeMaxShift verifies an oversized MaxShift is clamped:
// attempts past the clamp yield instead of spinning 1<<attempt times.
func TestExponential_LargeMaxShift(t *testing.T) {
	e := Exponential{MaxShift: 64}
	if got := e.Pause(40); got != 40 {
		t.Errorf("Pause(40) = %d, want 40 (clamped)", got)
	}
	if got := e.Pause(63); got != 63 {
		t.Errorf("Pause(63) = %d, want 63 (clamped)", got)
	}
	if got := e.Pause(3); got != 4 {
		t.Errorf("Pause(3) = %d, want 4", got)
	}
}

// TestParse verifies name round-tripping.
func TestParse(t *testing.T) {
	for _, name := range []string{"spin", "yield", "exponential"} {
		s, err := Parse(name)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", name, err)
		}
		if got := Name(s); got != name {
			t.Errorf("Name(Parse(%q)) = %q", name, got)
		}
	}

	if s, err := Parse(""); err != nil || Name(s) != "exponential" {
		t.Errorf("Parse(\"\") = %v, %v; want default exponential", s, err)
	}
	if _, err := Parse("sleep"); err == nil {
		t.Error("Parse(\"sleep\") succeeded, want error")
	}
}
