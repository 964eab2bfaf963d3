// Package telemetry ships loop health metrics to statsd.
//
// It hides the datadog dependency so the rest of the module only sees a
// handful of helpers; swapping the backend means editing this file.
package telemetry

import (
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

// Namespace prefixes every metric name.
const Namespace = "looptime."

// Client emits metrics. Send failures are logged, never returned, so a
// broken metrics pipe cannot stall a control loop.
type Client struct {
	statsd ddstatsd.ClientInterface
	logger zerolog.Logger
}

// New connects to the statsd agent at addr.
func New(addr string, tags []string, logger zerolog.Logger) (*Client, error) {
	if addr == "" {
		return nil, eris.New("telemetry: address must not be empty")
	}
	opts := []ddstatsd.Option{
		ddstatsd.WithNamespace(Namespace),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	c, err := ddstatsd.New(addr, opts...)
	if err != nil {
		return nil, eris.Wrapf(err, "telemetry: statsd client for %q", addr)
	}
	return &Client{statsd: c, logger: logger}, nil
}

// NoOp returns a Client that discards everything.
func NoOp() *Client {
	return &Client{statsd: &ddstatsd.NoOpClient{}, logger: zerolog.Nop()}
}

// Wrap builds a Client around an existing statsd client.
func Wrap(c ddstatsd.ClientInterface, logger zerolog.Logger) *Client {
	return &Client{statsd: c, logger: logger}
}

// Gauge records the current value of name.
func (c *Client) Gauge(name string, value float64, tags ...string) {
	if err := c.statsd.Gauge(name, value, tags, 1); err != nil {
		c.logger.Warn().Err(err).Str("metric", name).Msg("failed to emit gauge")
	}
}

// Count adds delta to the counter name.
func (c *Client) Count(name string, delta int64, tags ...string) {
	if err := c.statsd.Count(name, delta, tags, 1); err != nil {
		c.logger.Warn().Err(err).Str("metric", name).Msg("failed to emit count")
	}
}

// Timing records a duration under name.
func (c *Client) Timing(name string, d time.Duration, tags ...string) {
	if err := c.statsd.Timing(name, d, tags, 1); err != nil {
		c.logger.Warn().Err(err).Str("metric", name).Msg("failed to emit timing")
	}
}

// Close flushes and closes the underlying client.
func (c *Client) Close() error {
	return c.statsd.Close()
}
