// stress.go implements the 'rvatomic stress' command.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/pflag"

	"github.com/kolkov/rvatomic"
)

// stressConfig holds the parsed 'stress' flags.
type stressConfig struct {
	harts    int
	iters    int
	spurious uint64
	backoff  string
	report   bool
}

// stressCommand implements the 'rvatomic stress' command.
//
// Every property runs on a fresh machine with the same configuration. The
// command fails if any property is violated.
//
// Example:
//
//	rvatomic stress
//	rvatomic stress --harts 16 --iters 10000 --spurious 5 --backoff yield
func stressCommand(args []string) error {
	cfg, err := parseStressArgs(args)
	if err != nil {
		return err
	}
	return runStress(os.Stdout, cfg)
}

// parseStressArgs parses and validates the 'stress' flags.
func parseStressArgs(args []string) (stressConfig, error) {
	var cfg stressConfig

	fs := pflag.NewFlagSet("stress", pflag.ContinueOnError)
	fs.IntVarP(&cfg.harts, "harts", "n", 8, "number of concurrent harts")
	fs.IntVarP(&cfg.iters, "iters", "k", 2000, "operations per hart per property")
	fs.Uint64Var(&cfg.spurious, "spurious", 0, "fail one in N store-conditionals spuriously (0 disables)")
	fs.StringVar(&cfg.backoff, "backoff", "exponential", "retry strategy: spin, yield or exponential")
	fs.BoolVar(&cfg.report, "report", true, "print the machine report of each property")

	if err := fs.Parse(args); err != nil {
		return cfg, err
	}
	if fs.NArg() > 0 {
		return cfg, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	if cfg.harts < 1 || cfg.harts > 1024 {
		return cfg, fmt.Errorf("--harts must be in [1, 1024], got %d", cfg.harts)
	}
	if cfg.iters < 1 {
		return cfg, fmt.Errorf("--iters must be positive, got %d", cfg.iters)
	}
	return cfg, nil
}

// property is one concurrent check.
type property struct {
	name string
	run  func(m *rvatomic.Machine, cfg stressConfig) error
}

var properties = []property{
	{"amoadd linearizability", checkAMOAdd},
	{"cas increment", checkCAS},
	{"spinlock mutual exclusion", checkSpinlock},
	{"semaphore bound", checkSemaphore},
}

// runStress runs every property and reports the outcome of each.
func runStress(w io.Writer, cfg stressConfig) error {
	fmt.Fprintf(w, "stress: %d harts x %d iterations, spurious 1/%d, backoff %s\n\n",
		cfg.harts, cfg.iters, cfg.spurious, cfg.backoff)

	var failed []error
	for _, p := range properties {
		m, err := rvatomic.NewMachine(rvatomic.Config{
			MaxHarts:     cfg.harts,
			SpuriousRate: cfg.spurious,
			Backoff:      cfg.backoff,
		})
		if err != nil {
			return err
		}

		start := time.Now()
		err = p.run(m, cfg)
		elapsed := time.Since(start)

		status := "PASS"
		if err != nil {
			status = "FAIL: " + err.Error()
			failed = append(failed, fmt.Errorf("%s: %w", p.name, err))
		}
		fmt.Fprintf(w, "%-28s %-8v %s\n", p.name, elapsed.Round(time.Microsecond), status)

		if cfg.report {
			if err := m.WriteReport(w); err != nil {
				return err
			}
			fmt.Fprintln(w)
		}
	}
	return errors.Join(failed...)
}

// parallel runs fn on cfg.harts goroutines, each with its own hart, and
// returns the errors they reported.
func parallel(m *rvatomic.Machine, cfg stressConfig, fn func(h *rvatomic.Hart, id int) error) error {
	errs := make([]error, cfg.harts)

	var wg sync.WaitGroup
	for i := 0; i < cfg.harts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			h, err := m.Hart()
			if err != nil {
				errs[i] = err
				return
			}
			defer func() { _ = h.Release() }()

			errs[i] = fn(h, i)
		}(i)
	}
	wg.Wait()

	return errors.Join(errs...)
}

// checkAMOAdd verifies N concurrent amoadd(1) from 0 end at N and return
// every value in [0, N) exactly once.
func checkAMOAdd(m *rvatomic.Machine, cfg stressConfig) (err error) {
	addr, err := m.Alloc(1)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Free(addr)) }()
	total := cfg.harts * cfg.iters
	seen := make([]atomic.Bool, total)

	err = parallel(m, cfg, func(h *rvatomic.Hart, _ int) error {
		for j := 0; j < cfg.iters; j++ {
			old, err := h.AMOAdd(addr, 1)
			if err != nil {
				return err
			}
			if int(old) >= total || seen[old].Swap(true) {
				return fmt.Errorf("amoadd returned %d twice or out of range", old)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return expectWord(m, addr, uint32(total))
}

// checkCAS verifies a CAS-based increment loop loses no updates.
func checkCAS(m *rvatomic.Machine, cfg stressConfig) (err error) {
	addr, err := m.Alloc(1)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Free(addr)) }()

	err = parallel(m, cfg, func(h *rvatomic.Hart, _ int) error {
		for j := 0; j < cfg.iters; j++ {
			for {
				old, err := h.Load(addr)
				if err != nil {
					return err
				}
				ok, err := h.CompareAndSwap(addr, old, old+1)
				if err != nil {
					return err
				}
				if ok {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return expectWord(m, addr, uint32(cfg.harts*cfg.iters))
}

// checkSpinlock verifies a plain load/store increment under the lock loses
// no updates.
func checkSpinlock(m *rvatomic.Machine, cfg stressConfig) (err error) {
	lock, err := m.NewSpinlock()
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, lock.Close()) }()
	addr, err := m.Alloc(1)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, m.Free(addr)) }()

	err = parallel(m, cfg, func(h *rvatomic.Hart, _ int) error {
		for j := 0; j < cfg.iters; j++ {
			lock.Lock()
			v, err := h.Load(addr)
			if err == nil {
				err = h.Store(addr, v+1)
			}
			if uerr := lock.Unlock(); err == nil {
				err = uerr
			}
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	return expectWord(m, addr, uint32(cfg.harts*cfg.iters))
}

// checkSemaphore verifies no more than k harts are ever between Wait and
// Signal, with k a quarter of the harts.
func checkSemaphore(m *rvatomic.Machine, cfg stressConfig) (err error) {
	k := int32(max(cfg.harts/4, 1))
	sem, err := m.NewSemaphore(k)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, sem.Close()) }()

	var inside atomic.Int32
	err = parallel(m, cfg, func(h *rvatomic.Hart, _ int) error {
		for j := 0; j < cfg.iters; j++ {
			sem.Wait(h)
			n := inside.Add(1)
			inside.Add(-1)
			if err := sem.Signal(); err != nil {
				return err
			}
			if n > k {
				return fmt.Errorf("%d harts inside a semaphore of %d", n, k)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if c := sem.Count(); c != k {
		return fmt.Errorf("final count %d, want %d", c, k)
	}
	return nil
}

// expectWord checks the final value of addr.
func expectWord(m *rvatomic.Machine, addr rvatomic.Address, want uint32) error {
	got, err := m.Peek(addr)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("final value %d, want %d", got, want)
	}
	return nil
}
