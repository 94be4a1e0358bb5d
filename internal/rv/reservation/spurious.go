package reservation

import "sync/atomic"

// SpuriousConfig configures spurious store-conditional failures.
//
// Real hardware may fail a store-conditional with no conflicting write (an
// interrupt, a cache eviction). Retry loops must survive that, and injecting
// such failures on purpose is how tests prove they do.
type SpuriousConfig struct {
	// Rate makes one in Rate otherwise successful store-conditionals fail.
	//   - 0 or 1: Disabled (no spurious failures)
	//   - 2: Every second store-conditional fails
	//   - 100: One in a hundred fails
	Rate uint64
}

// Spurious decides which store-conditionals fail spuriously.
//
// An atomic counter advanced on every decision is the pseudo-random source,
// and counter % Rate == 0 selects a failure. Concurrent harts interleave on
// the counter, which spreads the failures across them without an RNG.
//
// Thread Safety: All methods are safe for concurrent calls.
type Spurious struct {
	rate     uint64
	pos      atomic.Uint64
	injected atomic.Uint64
}

// NewSpurious creates an injector. A nil *Spurious never vetoes.
func NewSpurious(cfg SpuriousConfig) *Spurious {
	return &Spurious{rate: cfg.Rate}
}

// Enabled reports whether failures are being injected.
func (s *Spurious) Enabled() bool {
	return s != nil && s.rate > 1
}

// Rate returns the configured rate, or 1 when disabled.
func (s *Spurious) Rate() uint64 {
	if !s.Enabled() {
		return 1
	}
	return s.rate
}

// Veto reports whether the current store-conditional must fail.
//
// Disabled injectors return false without touching the counter.
func (s *Spurious) Veto() bool {
	if !s.Enabled() {
		return false
	}
	if s.pos.Add(1)%s.rate != 0 {
		return false
	}
	s.injected.Add(1)
	return true
}

// Injected returns the number of vetoed store-conditionals.
func (s *Spurious) Injected() uint64 {
	if s == nil {
		return 0
	}
	return s.injected.Load()
}
