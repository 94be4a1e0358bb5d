package rvatomic

import (
	"fmt"
	"io"
	"strings"

	"github.com/kolkov/rvatomic/internal/rv/hart"
	"github.com/kolkov/rvatomic/internal/rv/reservation"
)

// HartStats are per-hart counters.
type HartStats = hart.Stats

// ReservationStats are reservation table counters.
type ReservationStats = reservation.Stats

// Stats is a snapshot of a Machine's counters.
//
// Counters are read one at a time while harts may still be running, so a
// snapshot taken under load is not a consistent cut.
type Stats struct {
	// Harts sums the counters of every hart, live or released.
	Harts HartStats

	// Reservations are the reservation table counters.
	Reservations ReservationStats

	// HartsInUse is the number of live harts.
	HartsInUse int

	// WordsAllocated is the number of words handed out by Alloc and not freed.
	WordsAllocated int

	// SpuriousRate is the configured injection rate (1 when disabled).
	SpuriousRate uint64
}

// Stats returns a snapshot of the machine's counters.
func (m *Machine) Stats() Stats {
	return Stats{
		Harts:          m.harts.Stats(),
		Reservations:   m.table.Stats(),
		HartsInUse:     m.harts.InUse(),
		WordsAllocated: m.alloc.Used(),
		SpuriousRate:   m.table.Spurious().Rate(),
	}
}

// WriteReport writes a human-readable summary of the machine to w.
//
// Example output:
//
//	==================
//	rvatomic 0.1.0 machine report
//	memory:      0x80000000..0x80010000 (16384 words, 3 allocated)
//	harts:       0 in use of 8, backoff exponential
//	lr.w:        12
//	sc.w:        10 ok, 2 failed (1 conflict, 1 spurious of 1 in 3)
//	invalidated: 4 by writes, 0 by preemption
//	writes:      25 (AMOs and fenced stores)
//	retries:     2
//	==================
func (m *Machine) WriteReport(w io.Writer) error {
	s := m.Stats()
	r := s.Reservations

	var b strings.Builder
	fmt.Fprintf(&b, "==================\n")
	fmt.Fprintf(&b, "rvatomic %s machine report\n", Version)
	fmt.Fprintf(&b, "memory:      %v..%v (%d words, %d allocated)\n",
		m.mem.Base(), m.mem.Base()+Address(m.mem.Size()), m.mem.Words(), s.WordsAllocated)
	fmt.Fprintf(&b, "harts:       %d in use of %d, backoff %s\n",
		s.HartsInUse, m.harts.Max(), m.Backoff())
	fmt.Fprintf(&b, "lr.w:        %d\n", r.LoadReserved)
	fmt.Fprintf(&b, "sc.w:        %d ok, %d failed (%d conflict, %d spurious",
		r.SCSuccess, r.SCFailure(), r.SCConflict, r.SCSpurious)
	if s.SpuriousRate > 1 {
		fmt.Fprintf(&b, " of 1 in %d", s.SpuriousRate)
	}
	fmt.Fprintf(&b, ")\n")
	fmt.Fprintf(&b, "invalidated: %d by writes, %d by preemption\n", r.Invalidations, r.Preemptions)
	fmt.Fprintf(&b, "writes:      %d (AMOs and fenced stores)\n", r.Writes)
	fmt.Fprintf(&b, "retries:     %d\n", s.Harts.Retries)
	fmt.Fprintf(&b, "==================\n")

	_, err := io.WriteString(w, b.String())
	return err
}
