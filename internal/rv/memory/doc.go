// Package memory implements the flat, word-addressable memory region that the
// atomic operations act on.
//
// # Overview
//
// A Memory covers the byte range [Base, Base+Size). Storage is an array of
// 32-bit words, one per naturally aligned address. Every word carries its own
// lock, so read-modify-write sequences on different addresses never contend:
// the only serialization point is the address itself.
//
// # Words
//
// Operations never take raw addresses on their hot path. Callers resolve an
// Address into a Word handle once:
//
//	w, err := mem.Word(0x80000010)
//	if err != nil {
//	    // *fault.AccessFault: misaligned or out of range
//	}
//
// A Word proves its address is aligned and in range, so code holding one
// cannot fault. Alignment is checked before range, and both are checked before
// memory is touched.
//
// # Access classes
//
//   - Exclusive: indivisible read-modify-write under the word lock. This is the
//     primitive the reservation table and the AMO engine are built from.
//   - Load: fenced atomic load, for polling loops (semaphore counters).
//   - Peek / Poke: diagnostic access. Poke bypasses the word lock and the
//     reservation table and is NOT linearizable with atomic operations.
//
// Plain stores that must invalidate reservations live in the reservation
// package, because only the reservation table knows who holds what.
//
// # Memory Ordering
//
// sync/atomic operations are sequentially consistent in Go. Fence issues a
// sequentially consistent read-modify-write on a private word so that the
// places where a weakly ordered host would need a barrier are explicit in the
// code. On such a host Fence is where a full fence instruction belongs.
//
// # Allocation
//
// Allocator hands out aligned words and blocks from a Memory with a bump
// pointer and a free list of single words.
package memory
