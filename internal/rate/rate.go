// Package rate estimates how many iterations per second a loop runs.
package rate

import (
	"time"

	"github.com/joeycumines/go-catrate"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// DefaultWindow is the number of updates aggregated per estimate.
const DefaultWindow = 15

// ErrInvalidWindow is returned when the smoothing window is not positive.
var ErrInvalidWindow = eris.New("rate: window must be positive")

// Option configures an Estimator.
type Option func(*Estimator)

// WithClock replaces time.Now as the Estimator's time source for rate
// measurement. The once-per-second limit on debug lines still follows the
// wall clock: catrate reads time.Now itself.
func WithClock(now func() time.Time) Option {
	return func(e *Estimator) {
		e.now = now
	}
}

// WithLogger sets where debug estimates are written.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Estimator) {
		e.logger = logger
	}
}

// Estimator is a smoothed iterations-per-second counter.
//
// Every window updates it measures the time since the previous window
// boundary and blends the instantaneous rate into the estimate:
//
//	ips = (ips + (1s / elapsed) * window) / 2
//
// This is a fixed half-weight blend, not an exponential moving average
// with a tunable factor.
//
// An Estimator is not safe for concurrent use; it belongs to the loop
// that calls Update.
type Estimator struct {
	window int
	count  int
	last   time.Time
	ips    float64

	now     func() time.Time
	logger  zerolog.Logger
	limiter *catrate.Limiter
}

// New creates an Estimator that recomputes its estimate every window
// updates. The first window is measured from the moment New returns.
func New(window int, opts ...Option) (*Estimator, error) {
	if window <= 0 {
		return nil, eris.Wrapf(ErrInvalidWindow, "got %d", window)
	}
	e := &Estimator{
		window: window,
		now:    time.Now,
		logger: zerolog.Nop(),
		// at most one debug line per second
		limiter: catrate.NewLimiter(map[time.Duration]int{time.Second: 1}),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.last = e.now()
	return e, nil
}

// Update records one iteration. When printDebug is set, each new estimate
// is logged, at most once per second.
func (e *Estimator) Update(printDebug bool) {
	e.count++
	if e.count < e.window {
		return
	}
	e.count = 0

	now := e.now()
	elapsed := now.Sub(e.last)
	e.last = now
	if elapsed <= 0 {
		// clock did not move; keep the previous estimate
		return
	}

	instantaneous := float64(e.window) / elapsed.Seconds()
	e.ips = (e.ips + instantaneous) / 2

	if printDebug {
		if _, ok := e.limiter.Allow("ips"); ok {
			e.logger.Info().
				Float64("ips", e.ips).
				Dur("window_elapsed", elapsed).
				Int("window", e.window).
				Msg("iterations per second")
		}
	}
}

// IPS returns the current estimate, in iterations per second.
func (e *Estimator) IPS() float64 {
	return e.ips
}

// Window returns the smoothing window size.
func (e *Estimator) Window() int {
	return e.window
}
