package tick

import (
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// Option configures a Schedule.
type Option func(*Schedule)

// WithClock replaces time.Now as the Schedule's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Schedule) {
		s.now = now
	}
}

// WithSleep replaces time.Sleep as the Schedule's way of blocking.
func WithSleep(sleep func(time.Duration)) Option {
	return func(s *Schedule) {
		s.sleep = sleep
	}
}

// WithStart sets the start instant instead of taking it from the clock.
func WithStart(start time.Time) Option {
	return func(s *Schedule) {
		s.start = start
	}
}

// Schedule paces one or more loops on a fixed-period cadence that begins at
// a configurable start instant.
//
// Tick n (counting from zero) is due at start + (n+1)*interval. Wait sleeps
// until the deadline of the Schedule's own tick counter; WaitTick and
// Remaining take the tick from the caller, so several goroutines can follow
// their own progress against the same start and interval without
// disturbing each other.
//
// A Schedule is safe for concurrent use. Its mutex serializes
// reconfiguration and the claim of the next tick; the sleep itself happens
// outside the lock and blocks only the calling goroutine. Waits cannot be
// interrupted: the interval is the only timeout there is.
//
// A deadline is fixed when the wait begins: AddOffset, SetStart or
// SetInterval called while another goroutine sleeps do not shorten or
// extend that sleep, only the waits that start afterwards.
//
// Deadlines that do not fit in a time.Duration from the start instant
// (very large ticks, or tick == math.MaxUint64) saturate at the farthest
// representable instant instead of wrapping around.
type Schedule struct {
	mu      sync.Mutex
	start   time.Time
	counter uint64

	// nanoseconds; atomic so Interval() may be read without the lock
	interval atomic.Int64

	now   func() time.Time
	sleep func(time.Duration)
}

// New creates a Schedule with the given interval, starting now.
func New(interval time.Duration, opts ...Option) (*Schedule, error) {
	if err := checkInterval(interval); err != nil {
		return nil, err
	}

	s := &Schedule{
		now:   time.Now,
		sleep: time.Sleep,
	}
	s.interval.Store(int64(interval))
	for _, opt := range opts {
		opt(s)
	}
	if s.start.IsZero() {
		s.start = s.now()
	}
	return s, nil
}

// FromMillis converts a period in (possibly fractional) milliseconds into
// an interval, e.g. FromMillis(16.667) for a 60 Hz loop.
func FromMillis(ms float64) time.Duration {
	return time.Duration(ms * float64(time.Millisecond))
}

// SetInterval changes the period for subsequent waits.
func (s *Schedule) SetInterval(interval time.Duration) error {
	if err := checkInterval(interval); err != nil {
		return err
	}
	s.mu.Lock()
	s.interval.Store(int64(interval))
	s.mu.Unlock()
	return nil
}

// Interval returns the current period.
func (s *Schedule) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// SetStartNow moves the start instant to the current time.
// The tick counter is left as is.
func (s *Schedule) SetStartNow() {
	s.mu.Lock()
	s.start = s.now()
	s.mu.Unlock()
}

// SetStart moves the start instant to t.
func (s *Schedule) SetStart(t time.Time) {
	s.mu.Lock()
	s.start = t
	s.mu.Unlock()
}

// Start returns the start instant.
func (s *Schedule) Start() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.start
}

// AddOffset shifts the start instant by a signed number of seconds.
// Every wait that begins afterwards aims at the shifted deadlines.
func (s *Schedule) AddOffset(seconds int) {
	s.mu.Lock()
	s.start = s.start.Add(time.Duration(seconds) * time.Second)
	s.mu.Unlock()
}

// Ticks returns how many ticks Wait and Tick have consumed.
func (s *Schedule) Ticks() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counter
}

// Target returns the deadline of the given tick.
func (s *Schedule) Target(tick uint64) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.targetLocked(tick)
}

// Remaining returns the time left until the given tick is due:
//
//	interval - (now - start) + interval*tick
//
// It is negative when the deadline has already passed.
func (s *Schedule) Remaining(tick uint64) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remainingLocked(tick)
}

// Wait blocks until the next tick of the Schedule's own counter is due,
// then advances the counter. A deadline that has already passed does not
// block: the late tick is absorbed and the next call aims at the following
// deadline, which lets a loop catch up after a slow iteration.
func (s *Schedule) Wait() {
	s.mu.Lock()
	remaining := s.remainingLocked(s.counter)
	s.counter++
	s.mu.Unlock()

	s.pause(remaining)
}

// WaitTick blocks until the given tick is due and returns the slack that
// was computed before sleeping; negative slack means the caller arrived
// late by that much. The Schedule's own counter is not touched.
func (s *Schedule) WaitTick(tick uint64) time.Duration {
	remaining := s.Remaining(tick)
	s.pause(remaining)
	return remaining
}

// Tick is the polled form of Wait: if the next tick of the counter is due
// it advances the counter and returns true, otherwise it returns false
// without blocking.
func (s *Schedule) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.remainingLocked(s.counter) > 0 {
		return false
	}
	s.counter++
	return true
}

// Reset restarts the cadence: the start instant becomes now and the
// counter returns to zero.
func (s *Schedule) Reset() {
	s.mu.Lock()
	s.start = s.now()
	s.counter = 0
	s.mu.Unlock()
}

// Stop is a no-op for Schedule (no resources to release).
func (s *Schedule) Stop() {}

// farthest is the largest offset targetLocked adds to the start instant.
const farthest = time.Duration(math.MaxInt64)

func (s *Schedule) targetLocked(tick uint64) time.Time {
	interval := s.Interval()
	n := tick + 1
	if n == 0 || n > uint64(farthest/interval) {
		return s.start.Add(farthest)
	}
	return s.start.Add(interval * time.Duration(n))
}

func (s *Schedule) remainingLocked(tick uint64) time.Duration {
	return s.targetLocked(tick).Sub(s.now())
}

func (s *Schedule) pause(d time.Duration) {
	if d > 0 {
		s.sleep(d)
	}
}
