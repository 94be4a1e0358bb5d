package reservation

import (
	"github.com/kolkov/rvatomic/internal/rv/memory"
)

// Ticket is a packed reservation: a valid bit and the reserved address.
//
// Layout: [unused:31][valid:1][addr:32]
//
// The zero Ticket means "no reservation", so a cleared slot and an invalidated
// slot are the same thing.
type Ticket uint64

// validBit marks a live reservation.
const validBit = 1 << 32

// NewTicket returns a valid ticket for addr.
//
//go:nosplit
func NewTicket(addr memory.Address) Ticket {
	return Ticket(validBit | uint64(addr))
}

// Valid reports whether t is a live reservation.
//
//go:nosplit
func (t Ticket) Valid() bool {
	return t&validBit != 0
}

// Addr returns the reserved address. Meaningless if !t.Valid().
//
//go:nosplit
func (t Ticket) Addr() memory.Address {
	return memory.Address(uint32(t))
}

// Covers reports whether t is a live reservation on exactly addr.
//
//go:nosplit
func (t Ticket) Covers(addr memory.Address) bool {
	return t == NewTicket(addr)
}

// String formats the ticket as "lr@0xADDR", or "none".
func (t Ticket) String() string {
	if !t.Valid() {
		return "none"
	}
	return "lr@" + t.Addr().String()
}
