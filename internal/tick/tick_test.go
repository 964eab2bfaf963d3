package tick_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/looptime/internal/tick"
)

func TestAtomicTicker(t *testing.T) {
	interval := 50 * time.Millisecond
	ticker, err := tick.NewAtomicTicker(interval)
	require.NoError(t, err)
	defer ticker.Stop()

	// Should not tick immediately
	if ticker.Tick() {
		t.Error("expected Tick() = false immediately after creation")
	}

	// Wait for interval + buffer
	time.Sleep(interval + 20*time.Millisecond)

	// Should tick now
	if !ticker.Tick() {
		t.Error("expected Tick() = true after interval elapsed")
	}

	// Should not tick again immediately
	if ticker.Tick() {
		t.Error("expected Tick() = false immediately after tick")
	}
}

func TestAtomicTicker_Reset(t *testing.T) {
	interval := 50 * time.Millisecond
	ticker, err := tick.NewAtomicTicker(interval)
	require.NoError(t, err)
	defer ticker.Stop()

	// Wait and tick
	time.Sleep(interval + 20*time.Millisecond)
	if !ticker.Tick() {
		t.Error("expected Tick() = true after interval")
	}

	// Reset
	ticker.Reset()

	// Should not tick immediately after reset
	if ticker.Tick() {
		t.Error("expected Tick() = false after Reset()")
	}
}

func TestAtomicTicker_AbsorbsMissedTicks(t *testing.T) {
	interval := 20 * time.Millisecond
	ticker, err := tick.NewAtomicTicker(interval)
	require.NoError(t, err)

	// Poll far too late: several deadlines pass unobserved.
	time.Sleep(4*interval + interval/2)

	assert.True(t, ticker.Tick(), "expected Tick() = true after missed deadlines")
	assert.False(t, ticker.Tick(), "expected a single tick for the missed deadlines")
	assert.GreaterOrEqual(t, ticker.Missed(), uint64(3))
}

func TestAtomicTicker_InvalidInterval(t *testing.T) {
	_, err := tick.NewAtomicTicker(0)
	assert.ErrorIs(t, err, tick.ErrInvalidInterval)
}

func TestAtomicTicker_Interval(t *testing.T) {
	ticker, err := tick.NewAtomicTicker(time.Second)
	require.NoError(t, err)
	assert.Equal(t, time.Second, ticker.Interval())
}

// Test that all implementations satisfy the interface
func TestTickerInterface(t *testing.T) {
	interval := 50 * time.Millisecond

	// Factory functions to create fresh tickers for each test
	testCases := []struct {
		name   string
		create func() (tick.Ticker, error)
	}{
		{"Schedule", func() (tick.Ticker, error) { return tick.New(interval) }},
		{"AtomicTicker", func() (tick.Ticker, error) { return tick.NewAtomicTicker(interval) }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ticker, err := tc.create()
			require.NoError(t, err)
			defer ticker.Stop()

			// Should not tick immediately
			if ticker.Tick() {
				t.Error("expected Tick() = false immediately")
			}

			// Wait and check
			time.Sleep(interval + 20*time.Millisecond)

			if !ticker.Tick() {
				t.Error("expected Tick() = true after interval")
			}

			ticker.Reset()
			if ticker.Tick() {
				t.Error("expected Tick() = false after Reset()")
			}
		})
	}
}
