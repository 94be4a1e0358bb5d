// Package fault defines the error taxonomy shared by the atomic memory packages.
//
// Two classes of failure are surfaced as errors:
//
//   - Access faults: an operation named an address that is not naturally
//     aligned or lies outside the memory region. The operation is aborted
//     before memory is touched.
//   - Usage violations: the caller broke a primitive's contract, for example
//     unlocking a spinlock that is not held.
//
// A failed store-conditional is NOT an error. It is a normal retry signal and
// is reported as a plain false return value.
package fault

import (
	"errors"
	"fmt"
)

// Access fault causes.
var (
	// ErrMisaligned reports an address that is not word-aligned.
	ErrMisaligned = errors.New("misaligned address")

	// ErrOutOfRange reports an address outside the memory region.
	ErrOutOfRange = errors.New("address out of range")

	// ErrOutOfMemory reports an exhausted word allocator.
	ErrOutOfMemory = errors.New("out of memory")
)

// Usage violation causes.
var (
	// ErrNotLocked reports an unlock of a spinlock that is not held.
	ErrNotLocked = errors.New("spinlock not locked")

	// ErrNegativeCount reports a semaphore initialized below zero.
	ErrNegativeCount = errors.New("negative semaphore count")

	// ErrCountOverflow reports a semaphore signalled past its maximum count.
	ErrCountOverflow = errors.New("semaphore count overflow")

	// ErrNoHarts reports that every hart ID is in use.
	ErrNoHarts = errors.New("no free hart IDs")

	// ErrUnknownHart reports a hart ID outside the reservation table, or a
	// hart that has already been released.
	ErrUnknownHart = errors.New("unknown hart")

	// ErrNotAllocated reports a free of a word that does not start a live
	// allocation: a double free, or a word in the middle of a block.
	ErrNotAllocated = errors.New("word not allocated")

	// ErrUnknownOp reports an AMO opcode that does not exist.
	ErrUnknownOp = errors.New("unknown atomic operation")
)

// AccessFault reports an operation aborted because of its address.
//
// Fields:
//   - Op: Operation that faulted (e.g. "amoadd.w", "lr.w")
//   - Addr: Byte address the operation named
//   - Err: ErrMisaligned or ErrOutOfRange
//
// Example:
//
//	err := &AccessFault{Op: "amoswap.w", Addr: 0x80000002, Err: ErrMisaligned}
//	fmt.Println(err) // amoswap.w 0x80000002: misaligned address
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type AccessFault struct {
	Op   string // Operation name
	Addr uint32 // Faulting byte address
	Err  error  // Cause
}

// Error implements the error interface.
//
// Format: op 0xADDR: cause
func (e *AccessFault) Error() string {
	return fmt.Sprintf("%s 0x%08x: %v", e.Op, e.Addr, e.Err)
}

// Unwrap returns the underlying cause so callers can use errors.Is.
func (e *AccessFault) Unwrap() error {
	return e.Err
}

// UsageError reports a violated primitive contract.
//
// Usage errors mark the undefined-behavior boundary of a primitive. They are
// returned instead of silently corrupting state, and a caller that receives
// one has a bug.
//
// Thread Safety: Immutable after creation, safe for concurrent use.
type UsageError struct {
	Op  string // Operation name (e.g. "spinlock.unlock")
	Err error  // Cause
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause so callers can use errors.Is.
func (e *UsageError) Unwrap() error {
	return e.Err
}

// Access returns an AccessFault for op at addr.
func Access(op string, addr uint32, cause error) *AccessFault {
	return &AccessFault{Op: op, Addr: addr, Err: cause}
}

// Usage returns a UsageError for op.
func Usage(op string, cause error) *UsageError {
	return &UsageError{Op: op, Err: cause}
}

// IsAccessFault reports whether err is (or wraps) an AccessFault.
func IsAccessFault(err error) bool {
	var af *AccessFault
	return errors.As(err, &af)
}

// IsUsageError reports whether err is (or wraps) a UsageError.
func IsUsageError(err error) bool {
	var ue *UsageError
	return errors.As(err, &ue)
}
