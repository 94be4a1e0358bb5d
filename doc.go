// Package rvatomic emulates the RISC-V "A" extension (LR/SC and AMOs) for Go
// programs that run many harts in parallel.
//
// A Machine owns a flat region of 32-bit words, a reservation table with one
// slot per hart and a pool of hart IDs. Each goroutine that takes part in the
// memory model obtains a Hart and issues operations through it:
//
//	m, err := rvatomic.NewMachine(rvatomic.Config{MaxHarts: 4})
//	if err != nil {
//		return err
//	}
//	h, _ := m.Hart()
//	defer h.Release()
//
//	addr, _ := m.Alloc(1)
//	h.AMOAdd(addr, 10)
//	ok, _ := h.CompareAndSwap(addr, 10, 20)
//
// # Operations
//
// The package provides:
//   - Reservations: [Hart.LoadReserved], [Hart.StoreConditional]
//   - Single-step AMOs: [Hart.AMO] and [Hart.AMOSwap] through [Hart.AMOMaxU]
//   - LR/SC loops: [Hart.CompareAndSwap], [Hart.FetchAddLRSC]
//   - Fenced plain access: [Hart.Load], [Hart.Store]
//   - Synchronization: [Machine.NewSpinlock], [Machine.NewSemaphore]
//   - Diagnostics: [Machine.Stats], [Machine.WriteReport], [GetInfo]
//
// # Memory Model
//
// Every operation on one address is linearizable. Any write to an address
// (AMO, successful store-conditional, plain store) invalidates every other
// hart's reservation on it before the write becomes visible. A
// store-conditional always consumes the issuing hart's reservation.
// Operations on different addresses never contend.
//
// Store-conditional may fail with no conflicting write. Config.SpuriousRate
// makes that happen deterministically so retry loops can be tested.
//
// # Errors
//
// Misaligned and out-of-range addresses are reported as *AccessFault before
// memory is touched. Misuse (releasing an unlocked spinlock, a negative
// semaphore count, running out of harts) is reported as *UsageError. A failed
// store-conditional is not an error.
package rvatomic
