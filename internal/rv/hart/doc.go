// Package hart implements per-hart identity and bookkeeping.
//
// A hart is an independent thread of execution. In the emulator each hart is
// a goroutine that holds a Context for its lifetime. The Context carries the
// hart's ID, which keys its slot in the reservation table, and per-hart
// counters that the reporting layer aggregates.
//
// IDs come from a Pool sized to the reservation table. IDs are handed out in
// ascending order and returned with Free so that long-running programs can
// start and stop harts without growing the table. An exhausted Pool fails
// with fault.ErrNoHarts and never hands out an ID that is still live: two
// harts sharing an ID would share a reservation slot.
//
// A Context must only be used by the goroutine that owns it. Its counters are
// atomics so that other goroutines can read them for reports.
package hart
