// Package backoff provides the hook called at every retry point of a spin
// loop: store-conditional retries, spinlock acquisition and semaphore waits.
//
// Strategies do not change any primitive's contract, only how hard a waiting
// hart hammers the contended word. Usage:
//
//	var attempt uint
//	for !tryOnce() {
//	    attempt = strategy.Pause(attempt)
//	}
package backoff

import (
	"fmt"
	"runtime"
	"strings"
)

// Strategy decides how a hart waits between two attempts.
type Strategy interface {
	// Pause delays the caller and returns the next attempt number.
	Pause(attempt uint) uint
}

// Spin retries immediately. It is the bare busy-wait of the reference
// assembly loops, with no pause or yield at all.
type Spin struct{}

// Pause returns immediately.
func (Spin) Pause(attempt uint) uint {
	return attempt + 1
}

// Yield gives up the processor on every retry.
type Yield struct{}

// Pause calls runtime.Gosched.
func (Yield) Pause(attempt uint) uint {
	runtime.Gosched()
	return attempt + 1
}

// Exponential busy-waits for 1, 2, 4, ... iterations, then yields the
// processor once the spin budget is exhausted.
type Exponential struct {
	// MaxShift caps the busy-wait at 1<<MaxShift iterations.
	// Default: 7 (128 iterations). Values above 30 are clamped to 30.
	MaxShift uint
}

// maxShift bounds MaxShift so that 1<<attempt fits in an int on every
// platform.
const maxShift = 30

// Pause spins for 1<<attempt iterations while attempt < MaxShift, else yields.
func (e Exponential) Pause(attempt uint) uint {
	limit := e.MaxShift
	if limit == 0 {
		limit = 7
	}
	limit = min(limit, maxShift)
	if attempt < limit {
		for i := 0; i != 1<<attempt; i++ {
		}
		return attempt + 1
	}
	runtime.Gosched()
	return attempt
}

// Default returns the strategy used when none is configured.
func Default() Strategy {
	return Exponential{}
}

// Parse maps a strategy name to a Strategy.
//
// Accepted names: "spin", "yield", "exponential" (or "exp"). The empty string
// selects Default.
func Parse(name string) (Strategy, error) {
	switch strings.ToLower(name) {
	case "":
		return Default(), nil
	case "spin", "none":
		return Spin{}, nil
	case "yield":
		return Yield{}, nil
	case "exponential", "exp":
		return Exponential{}, nil
	default:
		return nil, fmt.Errorf("backoff: unknown strategy %q", name)
	}
}

// Name returns the name Parse accepts for s.
func Name(s Strategy) string {
	switch s.(type) {
	case Spin, *Spin:
		return "spin"
	case Yield, *Yield:
		return "yield"
	case Exponential, *Exponential:
		return "exponential"
	default:
		return fmt.Sprintf("%T", s)
	}
}
