// Package tick keeps loops on a fixed cadence.
//
// This package offers two implementations of the Ticker interface:
//   - Schedule: blocking (Wait) and polled (Tick) pacing against an absolute
//     start instant, shareable between goroutines
//   - AtomicTicker: lock-free polled ticks using runtime.nanotime
//
// Both compute every deadline from a fixed origin plus a whole number of
// intervals, never from the time the previous tick was observed. Jitter in
// one iteration therefore does not push later deadlines back, and the
// error after N ticks stays bounded by one scheduling granularity instead
// of growing with N.
package tick

import (
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidInterval is returned when an interval is not positive.
var ErrInvalidInterval = eris.New("tick: interval must be positive")

// Ticker signals when the next interval boundary has been reached.
//
// All implementations are safe for concurrent use from multiple goroutines,
// though typically only one goroutine polls Tick() in a hot loop.
type Ticker interface {
	// Tick returns true if the next deadline has passed.
	// This is a non-blocking check.
	Tick() bool

	// Reset restarts the cadence from now.
	Reset()

	// Stop releases any resources held by the ticker.
	// After Stop, the ticker should not be used.
	Stop()
}

// DefaultInterval is the period of a 60 Hz loop.
const DefaultInterval = 16667 * time.Microsecond

func checkInterval(interval time.Duration) error {
	if interval <= 0 {
		return eris.Wrapf(ErrInvalidInterval, "got %v", interval)
	}
	return nil
}
