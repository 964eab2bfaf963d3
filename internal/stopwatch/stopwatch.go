// Package stopwatch records checkpoints through a run and reports how long
// each stretch between them took.
package stopwatch

import (
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// ErrRunning is returned by Report while the stopwatch has not been stopped.
var ErrRunning = eris.New("stopwatch: still running")

// Lap is the stretch that ended at a checkpoint.
type Lap struct {
	Comment  string
	Duration time.Duration
}

type checkpoint struct {
	at      time.Time
	comment string
}

// Option configures a Stopwatch.
type Option func(*Stopwatch)

// WithClock replaces time.Now as the Stopwatch's time source.
func WithClock(now func() time.Time) Option {
	return func(s *Stopwatch) {
		s.now = now
	}
}

// Stopwatch is not safe for concurrent use.
type Stopwatch struct {
	start       time.Time
	stop        time.Time
	checkpoints []checkpoint
	stopped     bool

	now func() time.Time
}

// New returns a stopped Stopwatch; call Start to begin a run.
func New(opts ...Option) *Stopwatch {
	s := &Stopwatch{
		stopped: true,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins a new run, discarding the checkpoints of any previous one.
func (s *Stopwatch) Start() {
	s.checkpoints = s.checkpoints[:0]
	s.stopped = false
	s.start = s.now()
}

// Checkpoint marks the end of a stretch. It is ignored once stopped.
func (s *Stopwatch) Checkpoint(comment string) {
	if s.stopped {
		return
	}
	s.checkpoints = append(s.checkpoints, checkpoint{at: s.now(), comment: comment})
}

// Stop ends the run. Stopping twice keeps the first stop time.
func (s *Stopwatch) Stop() {
	if !s.stopped {
		s.stop = s.now()
	}
	s.stopped = true
}

// Running reports whether Start was called without a matching Stop.
func (s *Stopwatch) Running() bool {
	return !s.stopped
}

// Total is the time from Start to Stop.
func (s *Stopwatch) Total() time.Duration {
	return s.stop.Sub(s.start)
}

// Laps returns one Lap per checkpoint. The first is measured from Start,
// each following one from the checkpoint before it.
func (s *Stopwatch) Laps() []Lap {
	laps := make([]Lap, len(s.checkpoints))
	prev := s.start
	for i, c := range s.checkpoints {
		laps[i] = Lap{Comment: c.comment, Duration: c.at.Sub(prev)}
		prev = c.at
	}
	return laps
}

// Tail is the time from the last checkpoint to Stop, or zero when there
// were no checkpoints.
func (s *Stopwatch) Tail() time.Duration {
	if len(s.checkpoints) == 0 {
		return 0
	}
	return s.stop.Sub(s.checkpoints[len(s.checkpoints)-1].at)
}

// Report logs the total, every lap, and the tail after the last checkpoint.
func (s *Stopwatch) Report(logger zerolog.Logger) error {
	if !s.stopped {
		return eris.Wrap(ErrRunning, "can't report duration")
	}

	logger.Info().Dur("total", s.Total()).Msg("total time")
	if len(s.checkpoints) == 0 {
		return nil
	}
	for i, lap := range s.Laps() {
		ev := logger.Info().Int("checkpoint", i).Dur("duration", lap.Duration)
		if lap.Comment != "" {
			ev = ev.Str("comment", lap.Comment)
		}
		ev.Msg("checkpoint")
	}
	logger.Info().Dur("duration", s.Tail()).Msg("after last checkpoint")
	return nil
}
