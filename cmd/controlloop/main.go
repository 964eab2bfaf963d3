// Command controlloop runs a paced producer feeding a consumer through an
// SPSC queue and reports how well the loop kept its cadence.
//
// Settings come from the environment and may be overridden by flags:
//
//	LOOPTIME_INTERVAL_MS=16 LOOPTIME_TICKS=600 go run ./cmd/controlloop
//	go run ./cmd/controlloop -interval-ms 1 -ticks 5000 -capacity 64
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	jlconfig "github.com/JeremyLoy/config"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/randomizedcoder/looptime/internal/loop"
	"github.com/randomizedcoder/looptime/internal/stopwatch"
	"github.com/randomizedcoder/looptime/internal/telemetry"
	"github.com/randomizedcoder/looptime/internal/tick"
)

type Config struct {
	IntervalMS float64 `config:"LOOPTIME_INTERVAL_MS"`
	Capacity   int     `config:"LOOPTIME_CAPACITY"`
	Window     int     `config:"LOOPTIME_WINDOW"`
	Ticks      uint64  `config:"LOOPTIME_TICKS"`
	StatsdAddr string  `config:"LOOPTIME_STATSD_ADDR"`
	StatsdTags string  `config:"LOOPTIME_STATSD_TAGS"`
	LogLevel   string  `config:"LOOPTIME_LOG_LEVEL"`
	Debug      bool    `config:"LOOPTIME_DEBUG"`
}

func defaultConfig() Config {
	return Config{
		IntervalMS: 16,
		Capacity:   64,
		Window:     15,
		Ticks:      600,
		LogLevel:   "info",
	}
}

func loadConfig(args []string) (Config, bool, error) {
	cfg := defaultConfig()
	if err := jlconfig.FromEnv().To(&cfg); err != nil {
		return cfg, false, err
	}

	fs := flag.NewFlagSet("controlloop", flag.ContinueOnError)
	fs.Float64Var(&cfg.IntervalMS, "interval-ms", cfg.IntervalMS, "tick interval in milliseconds")
	fs.IntVar(&cfg.Capacity, "capacity", cfg.Capacity, "queue capacity")
	fs.IntVar(&cfg.Window, "window", cfg.Window, "rate smoothing window")
	fs.Uint64Var(&cfg.Ticks, "ticks", cfg.Ticks, "ticks to run (0 = until interrupted)")
	fs.StringVar(&cfg.StatsdAddr, "statsd", cfg.StatsdAddr, "statsd address (empty disables metrics)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.BoolVar(&cfg.Debug, "debug", cfg.Debug, "log the producer rate estimate")
	laps := fs.Bool("laps", false, "record a stopwatch checkpoint per consumed sample (needs -ticks > 0)")
	if err := fs.Parse(args); err != nil {
		return cfg, false, err
	}
	if *laps && cfg.Ticks == 0 {
		return cfg, false, eris.New("controlloop: -laps needs a bounded run, set -ticks > 0")
	}
	return cfg, *laps, nil
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(lvl).
		With().Timestamp().Logger()
}

func splitTags(s string) []string {
	var tags []string
	for _, tag := range strings.Split(s, ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

func main() {
	cfg, laps, err := loadConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	logger := newLogger(cfg.LogLevel)

	if err := run(cfg, laps, logger); err != nil {
		logger.Error().Err(err).Msg("controlloop failed")
		os.Exit(1)
	}
}

func closeTelemetry(c *telemetry.Client, logger zerolog.Logger) {
	if err := c.Close(); err != nil {
		logger.Warn().Err(err).Msg("failed to close telemetry")
	}
}

func run(cfg Config, laps bool, logger zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics := telemetry.NoOp()
	if cfg.StatsdAddr != "" {
		c, err := telemetry.New(cfg.StatsdAddr, splitTags(cfg.StatsdTags), logger)
		if err != nil {
			return err
		}
		metrics = c
	}
	defer closeTelemetry(metrics, logger)

	sw := stopwatch.New()
	sw.Start()

	handler := func(s loop.Sample) {
		metrics.Timing("slack", s.Slack)
		if laps {
			sw.Checkpoint(fmt.Sprintf("tick %d", s.Tick))
		}
	}

	loopCfg := loop.Config{
		Interval: tick.FromMillis(cfg.IntervalMS),
		Capacity: cfg.Capacity,
		Window:   cfg.Window,
		Ticks:    cfg.Ticks,
		Debug:    cfg.Debug,
	}
	stats, err := loop.Run(ctx, loopCfg,
		loop.WithLogger(logger),
		loop.WithTelemetry(metrics),
		loop.WithHandler(handler),
	)
	sw.Stop()
	if err != nil {
		return err
	}

	logger.Info().
		Uint64("produced", stats.Produced).
		Uint64("consumed", stats.Consumed).
		Uint64("dropped", stats.Dropped).
		Uint64("late", stats.Late).
		Dur("max_lateness", stats.MaxLateness).
		Float64("ips", stats.IPS).
		Msg("loop finished")

	expected := loopCfg.Interval * time.Duration(stats.Produced+stats.Dropped)
	logger.Info().
		Dur("expected", expected).
		Dur("elapsed", sw.Total()).
		Msg("cadence")

	return sw.Report(logger)
}
