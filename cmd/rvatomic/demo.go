// demo.go implements the 'rvatomic demo' command.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/kolkov/rvatomic"
)

// demoChecksum is the sum the reference program accumulates: every value
// returned by its atomic operations plus the final counter.
const demoChecksum = 829

// demoCommand implements the 'rvatomic demo' command.
//
// Example:
//
//	rvatomic demo
//	rvatomic demo --report
func demoCommand(args []string) error {
	fs := pflag.NewFlagSet("demo", pflag.ContinueOnError)
	report := fs.Bool("report", false, "print the machine report after the run")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return runDemo(os.Stdout, *report)
}

// demo accumulates step results and remembers the first mismatch.
type demo struct {
	w      io.Writer
	result int32
	err    error
}

// step records one operation and adds its result to the checksum.
func (d *demo) step(name string, got, want int32, after string) {
	d.result += got
	d.show(name, got, want, after)
}

// show records one operation without touching the checksum.
func (d *demo) show(name string, got, want int32, after string) {
	mark := "ok"
	if got != want {
		mark = fmt.Sprintf("FAIL (want %d)", want)
		if d.err == nil {
			d.err = fmt.Errorf("%s returned %d, want %d", name, got, want)
		}
	}
	fmt.Fprintf(d.w, "  %-28s -> %-5d %-16s %s\n", name, got, after, mark)
}

// check records a failure without touching the checksum.
func (d *demo) check(err error) {
	if err != nil && d.err == nil {
		d.err = err
	}
}

// runDemo replays the reference program on a fresh machine.
func runDemo(w io.Writer, report bool) error {
	m, err := rvatomic.NewMachine(rvatomic.Config{MaxHarts: 1})
	if err != nil {
		return err
	}
	h, err := m.Hart()
	if err != nil {
		return err
	}
	defer func() { _ = h.Release() }()

	words, err := m.Alloc(3)
	if err != nil {
		return err
	}
	counter, shared, unsigned := words, words+4, words+8

	d := &demo{w: w}
	val := func(a rvatomic.Address) string {
		v, err := h.Load(a)
		d.check(err)
		return fmt.Sprintf("(now %d)", int32(v))
	}
	u32 := func(v uint32, err error) int32 {
		d.check(err)
		return int32(v)
	}
	i32 := func(v int32, err error) int32 {
		d.check(err)
		return v
	}
	incr := func(a rvatomic.Address) int32 {
		v, err := h.Load(a)
		d.check(err)
		d.check(h.Store(a, v+1))
		return int32(v)
	}
	b2i := func(ok bool, err error) int32 {
		d.check(err)
		if ok {
			return 1
		}
		return 0
	}

	d.check(h.Store(shared, 100))
	d.check(h.Store(unsigned, 50))

	fmt.Fprintln(w, "AMOs:")
	d.step("amoswap.w shared, 200", u32(h.AMOSwap(shared, 200)), 100, val(shared))
	d.step("amoadd.w counter, 10", u32(h.AMOAdd(counter, 10)), 0, val(counter))
	d.step("amoadd.w counter, 5", u32(h.AMOAdd(counter, 5)), 10, val(counter))

	d.check(h.Store(shared, 0xFF))
	d.step("amoand.w shared, 0x0F", u32(h.AMOAnd(shared, 0x0F)), 0xFF, val(shared))
	d.step("amoor.w shared, 0xF0", u32(h.AMOOr(shared, 0xF0)), 0x0F, val(shared))
	d.step("amoxor.w shared, 0x55", u32(h.AMOXor(shared, 0x55)), 0xFF, val(shared))

	d.check(h.Store(shared, 50))
	d.step("amomin.w shared, 30", i32(h.AMOMin(shared, 30)), 50, val(shared))
	d.step("amomax.w shared, 40", i32(h.AMOMax(shared, 40)), 30, val(shared))

	d.step("amominu.w unsigned, 25", u32(h.AMOMinU(unsigned, 25)), 50, val(unsigned))
	d.step("amomaxu.w unsigned, 75", u32(h.AMOMaxU(unsigned, 75)), 25, val(unsigned))

	fmt.Fprintln(w, "LR/SC:")
	d.check(h.Store(shared, 100))
	d.step("cas shared, 100, 200", b2i(h.CompareAndSwap(shared, 100, 200)), 1, val(shared))
	d.step("cas shared, 100, 300", b2i(h.CompareAndSwap(shared, 100, 300)), 0, val(shared))
	d.step("fetch_add counter, 5", u32(h.FetchAddLRSC(counter, 5)), 15, val(counter))

	fmt.Fprintln(w, "Synchronization:")
	lock, err := m.NewSpinlock()
	if err != nil {
		return err
	}
	lock.Lock()
	d.show("spinlock counter += 1", incr(counter), 20, val(counter))
	d.check(lock.Unlock())

	if lock.TryLock() {
		d.show("trylock counter += 1", incr(counter), 21, val(counter))
		d.check(lock.Unlock())
	} else {
		d.check(fmt.Errorf("trylock on a free lock failed"))
	}

	sem, err := m.NewSemaphore(1)
	if err != nil {
		return err
	}
	sem.Wait(h)
	d.show("semaphore counter += 1", incr(counter), 22, val(counter))
	d.check(sem.Signal())

	final, err := h.Load(counter)
	d.check(err)
	d.result += int32(final)

	fmt.Fprintf(w, "\ncounter = %d, result = %d (want %d)\n", final, d.result, demoChecksum)
	if d.err == nil && d.result != demoChecksum {
		d.err = fmt.Errorf("result %d, want %d", d.result, demoChecksum)
	}

	if report {
		fmt.Fprintln(w)
		if err := m.WriteReport(w); err != nil {
			return err
		}
	}
	return d.err
}
