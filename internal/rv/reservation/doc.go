// Package reservation implements the reservation table behind load-reserved /
// store-conditional.
//
// # Overview
//
// Each hart owns one slot in a fixed array indexed by hart ID. A slot holds
// at most one Ticket: the address the hart reserved with its last
// load-reserved, or nothing. Slots are padded to separate cache lines so that
// harts reserving unrelated addresses never share a line.
//
// # Protocol
//
//	LoadReserved(h, w):          under w's lock: read w, slot[h] = ticket(w)
//	StoreConditional(h, w, v):   under w's lock: t = swap(slot[h], none)
//	                               if t != ticket(w) or spurious: fail
//	                               invalidate other harts on w; write v
//	Write(w, writer, fn):        under w's lock: fn(old); invalidate harts != writer on w
//
// Every write to a word happens under that word's lock, and so does every
// invalidation of tickets for it. A store-conditional therefore checks its
// ticket and writes without any other write to the same address slipping in
// between. Harts working on different addresses never touch the same lock.
//
// A slot whose owner moves on to another address while a writer is scanning
// is cleared with a compare-and-swap, so the writer can never wipe out the
// owner's newer reservation.
//
// # Failure modes
//
// A store-conditional fails when:
//   - the hart never reserved the address, or reserved another one since
//   - another hart wrote the address (SC, AMO, or fenced store)
//   - the hart was preempted (Preempt models a trap or context switch)
//   - the spurious-failure injector vetoed it
//
// All of these look the same to the caller: StoreConditional returns false
// and the caller retries. Stats keeps genuine conflicts and spurious failures
// apart for diagnostics.
package reservation
