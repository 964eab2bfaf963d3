// Package loop runs a paced producer and a polling consumer joined by an
// SPSC queue, the shape of a typical real-time control loop: the producer
// samples on a fixed cadence, the consumer handles samples at its own pace.
package loop

import (
	"context"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/randomizedcoder/looptime/internal/queue"
	"github.com/randomizedcoder/looptime/internal/rate"
	"github.com/randomizedcoder/looptime/internal/telemetry"
	"github.com/randomizedcoder/looptime/internal/tick"
)

// DefaultStatsEvery is how often the consumer reports progress when
// Config.StatsEvery is zero.
const DefaultStatsEvery = time.Second

const (
	// spinPolls is how many empty polls the consumer spins through,
	// yielding between them, before it starts sleeping.
	spinPolls = 64
	// maxBackoff caps the consumer's sleep between empty polls.
	maxBackoff = 2 * time.Millisecond
)

// backoff is how long an idle consumer sleeps between polls: a quarter of
// the producer's interval, capped at maxBackoff.
func backoff(interval time.Duration) time.Duration {
	return min(interval/4, maxBackoff)
}

// Sample is what the producer hands to the consumer once per tick.
type Sample struct {
	Tick uint64
	At   time.Time
	// Slack is how early the producer was for this tick; negative when late.
	Slack time.Duration
	// IPS is the producer's smoothed rate at the time of the sample.
	IPS float64
}

// Handler is called by the consumer for every sample, in tick order.
type Handler func(Sample)

// Config describes one run.
type Config struct {
	Interval time.Duration
	Capacity int
	Window   int
	// Ticks stops the producer after that many ticks; zero runs until the
	// context is done.
	Ticks      uint64
	StatsEvery time.Duration
	// Debug logs the producer's rate estimate once per second.
	Debug bool
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Interval <= 0:
		return eris.Errorf("loop: interval must be positive, got %v", c.Interval)
	case c.Capacity <= 0:
		return eris.Errorf("loop: capacity must be positive, got %d", c.Capacity)
	case c.Window <= 0:
		return eris.Errorf("loop: window must be positive, got %d", c.Window)
	case c.StatsEvery < 0:
		return eris.Errorf("loop: stats interval must not be negative, got %v", c.StatsEvery)
	}
	return nil
}

// Stats summarizes a run.
type Stats struct {
	Produced uint64
	Dropped  uint64
	Consumed uint64
	// Late counts ticks the producer reached after their deadline.
	Late        uint64
	MaxLateness time.Duration
	IPS         float64
}

type options struct {
	logger    zerolog.Logger
	telemetry *telemetry.Client
	handler   Handler
	schedule  []tick.Option
}

// Option configures Run.
type Option func(*options)

// WithLogger sets the logger for progress and debug output.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithTelemetry sets where periodic gauges are sent.
func WithTelemetry(c *telemetry.Client) Option {
	return func(o *options) {
		o.telemetry = c
	}
}

// WithHandler sets the consumer's per-sample callback.
func WithHandler(h Handler) Option {
	return func(o *options) {
		o.handler = h
	}
}

// WithScheduleOptions passes options through to the producer's Schedule.
func WithScheduleOptions(opts ...tick.Option) Option {
	return func(o *options) {
		o.schedule = append(o.schedule, opts...)
	}
}

// producer owns everything it writes; the consumer only reads the counters
// through atomics and the samples through the queue.
type producer struct {
	cfg   Config
	sched *tick.Schedule
	q     *queue.SPSC[Sample]
	est   *rate.Estimator
	now   func() time.Time

	produced atomic.Uint64
	dropped  atomic.Uint64
	late     atomic.Uint64
	maxLate  time.Duration
	done     atomic.Bool
}

func (p *producer) run(ctx context.Context) error {
	defer p.done.Store(true)

	for i := uint64(0); p.cfg.Ticks == 0 || i < p.cfg.Ticks; i++ {
		if ctx.Err() != nil {
			return nil
		}

		slack := p.sched.WaitTick(i)
		if slack < 0 {
			p.late.Add(1)
			if -slack > p.maxLate {
				p.maxLate = -slack
			}
		}

		p.est.Update(p.cfg.Debug)
		s := Sample{Tick: i, At: p.now(), Slack: slack, IPS: p.est.IPS()}
		if p.q.Put(s) {
			p.produced.Add(1)
		} else {
			p.dropped.Add(1)
		}
	}
	return nil
}

type consumer struct {
	p         *producer
	q         *queue.SPSC[Sample]
	handler   Handler
	stats     *tick.AtomicTicker
	logger    zerolog.Logger
	telemetry *telemetry.Client
	backoff   time.Duration

	consumed    uint64
	lastIPS     float64
	lastDropped uint64
}

// run polls the queue until the producer is done. It spins while samples
// keep arriving and, after spinPolls empty polls in a row, sleeps for
// c.backoff between polls until the next sample shows up.
func (c *consumer) run() error {
	idle := 0
	for {
		if c.take() {
			idle = 0
			continue
		}
		if c.p.done.Load() {
			// Everything put before done was set is visible now.
			for c.take() {
			}
			c.report()
			return nil
		}
		if c.stats.Tick() {
			c.report()
		}
		if idle < spinPolls {
			idle++
			runtime.Gosched()
			continue
		}
		if c.backoff > 0 {
			time.Sleep(c.backoff)
		} else {
			runtime.Gosched()
		}
	}
}

func (c *consumer) take() bool {
	s, ok := c.q.Get()
	if !ok {
		return false
	}
	c.consumed++
	c.lastIPS = s.IPS
	c.handler(s)
	return true
}

func (c *consumer) report() {
	dropped := c.p.dropped.Load()
	c.logger.Info().
		Uint64("produced", c.p.produced.Load()).
		Uint64("consumed", c.consumed).
		Uint64("dropped", dropped).
		Uint64("late", c.p.late.Load()).
		Float64("ips", c.lastIPS).
		Int("queued", c.q.Len()).
		Msg("loop stats")

	c.telemetry.Gauge("ips", c.lastIPS)
	c.telemetry.Gauge("queued", float64(c.q.Len()))
	c.telemetry.Count("dropped", int64(dropped-c.lastDropped))
	c.lastDropped = dropped
}

// Run drives the loop until cfg.Ticks ticks were produced or ctx is done,
// then lets the consumer drain the queue and returns the totals.
//
// Cancellation is checked between ticks; a wait in progress always runs to
// its deadline. Stopping through ctx is a normal end of the run, not an
// error.
func Run(ctx context.Context, cfg Config, opts ...Option) (Stats, error) {
	if err := cfg.Validate(); err != nil {
		return Stats{}, err
	}
	if cfg.StatsEvery == 0 {
		cfg.StatsEvery = DefaultStatsEvery
	}

	o := options{
		logger:    zerolog.Nop(),
		telemetry: telemetry.NoOp(),
		handler:   func(Sample) {},
	}
	for _, opt := range opts {
		opt(&o)
	}

	sched, err := tick.New(cfg.Interval, o.schedule...)
	if err != nil {
		return Stats{}, eris.Wrap(err, "loop: schedule")
	}
	q, err := queue.NewSPSC[Sample](cfg.Capacity)
	if err != nil {
		return Stats{}, eris.Wrap(err, "loop: queue")
	}
	est, err := rate.New(cfg.Window, rate.WithLogger(o.logger))
	if err != nil {
		return Stats{}, eris.Wrap(err, "loop: rate estimator")
	}
	statsTicker, err := tick.NewAtomicTicker(cfg.StatsEvery)
	if err != nil {
		return Stats{}, eris.Wrap(err, "loop: stats ticker")
	}

	p := &producer{cfg: cfg, sched: sched, q: q, est: est, now: time.Now}
	c := &consumer{
		p:         p,
		q:         q,
		handler:   o.handler,
		stats:     statsTicker,
		logger:    o.logger,
		telemetry: o.telemetry,
		backoff:   backoff(cfg.Interval),
	}

	o.logger.Debug().
		Dur("interval", cfg.Interval).
		Int("capacity", cfg.Capacity).
		Uint64("ticks", cfg.Ticks).
		Msg("loop starting")

	var g errgroup.Group
	g.Go(func() error { return p.run(ctx) })
	g.Go(c.run)
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	return Stats{
		Produced:    p.produced.Load(),
		Dropped:     p.dropped.Load(),
		Consumed:    c.consumed,
		Late:        p.late.Load(),
		MaxLateness: p.maxLate,
		IPS:         est.IPS(),
	}, nil
}
