package tick

import (
	"sync/atomic"
	"time"
	_ "unsafe" // Required for go:linkname
)

// nanotime returns the current monotonic time in nanoseconds.
// This is faster than time.Now() because it returns a single int64
// and avoids constructing a time.Time struct.
//
// Note: This uses go:linkname to access an internal runtime function.
// It may break in future Go versions, though it has been stable.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// AtomicTicker is a lock-free polled ticker for hot loops.
//
// It keeps the deadline of the next tick in an atomic and, when that
// deadline passes, moves it forward by whole intervals from the old
// deadline rather than from the time it was observed. Polling late
// therefore never shifts the grid. When more than one interval was
// missed, the skipped ticks are absorbed and a single tick is reported.
//
// Typical cost of Tick(): a nanotime read and an atomic load (~3-5ns).
type AtomicTicker struct {
	interval int64 // nanoseconds
	next     atomic.Int64
	missed   atomic.Uint64
}

// NewAtomicTicker creates an AtomicTicker whose first tick is due one
// interval from now.
func NewAtomicTicker(interval time.Duration) (*AtomicTicker, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}
	t := &AtomicTicker{
		interval: int64(interval),
	}
	t.next.Store(nanotime() + t.interval)
	return t, nil
}

// Tick returns true if the next deadline has passed.
//
// Uses a compare-and-swap so that only one of several concurrent pollers
// observes a given tick.
func (a *AtomicTicker) Tick() bool {
	now := nanotime()
	next := a.next.Load()
	if now < next {
		return false
	}

	behind := (now - next) / a.interval
	if a.next.CompareAndSwap(next, next+(behind+1)*a.interval) {
		if behind > 0 {
			a.missed.Add(uint64(behind))
		}
		return true
	}
	return false
}

// Missed returns how many ticks were absorbed because the ticker was
// polled more than one interval late.
func (a *AtomicTicker) Missed() uint64 {
	return a.missed.Load()
}

// Reset restarts the cadence with the next tick one interval from now.
func (a *AtomicTicker) Reset() {
	a.next.Store(nanotime() + a.interval)
}

// Stop is a no-op for AtomicTicker (no resources to release).
func (a *AtomicTicker) Stop() {}

// Interval returns the ticker's interval.
func (a *AtomicTicker) Interval() time.Duration {
	return time.Duration(a.interval)
}
