package loop_test

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randomizedcoder/looptime/internal/loop"
	"github.com/randomizedcoder/looptime/internal/tick"
)

// manualClock advances only when the schedule sleeps, plus an optional
// overshoot per sleep to simulate a coarse sleeper.
type manualClock struct {
	mu        sync.Mutex
	now       time.Time
	overshoot time.Duration
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Sleep(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d + c.overshoot)
}

func fakeSchedule(c *manualClock) loop.Option {
	return loop.WithScheduleOptions(tick.WithClock(c.Now), tick.WithSleep(c.Sleep))
}

func TestConfig_Validate(t *testing.T) {
	valid := loop.Config{Interval: time.Millisecond, Capacity: 1, Window: 1}
	require.NoError(t, valid.Validate())

	testCases := []struct {
		name   string
		mutate func(*loop.Config)
	}{
		{"zero interval", func(c *loop.Config) { c.Interval = 0 }},
		{"negative interval", func(c *loop.Config) { c.Interval = -time.Second }},
		{"zero capacity", func(c *loop.Config) { c.Capacity = 0 }},
		{"zero window", func(c *loop.Config) { c.Window = 0 }},
		{"negative stats interval", func(c *loop.Config) { c.StatsEvery = -1 }},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			assert.Error(t, cfg.Validate())

			_, err := loop.Run(context.Background(), cfg)
			assert.Error(t, err)
		})
	}
}

func TestRun_DeliversInOrder(t *testing.T) {
	var ticks []uint64
	stats, err := loop.Run(context.Background(),
		loop.Config{Interval: time.Millisecond, Capacity: 8, Window: 5, Ticks: 40},
		loop.WithHandler(func(s loop.Sample) { ticks = append(ticks, s.Tick) }),
	)
	require.NoError(t, err)

	assert.Equal(t, uint64(40), stats.Produced+stats.Dropped)
	assert.Equal(t, stats.Produced, stats.Consumed)
	require.Len(t, ticks, int(stats.Consumed))
	for i := 1; i < len(ticks); i++ {
		assert.Less(t, ticks[i-1], ticks[i], "samples out of order at %d", i)
	}
}

func TestRun_FakeClockNeverLate(t *testing.T) {
	clock := &manualClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	const interval = 5 * time.Millisecond

	var slacks []time.Duration
	stats, err := loop.Run(context.Background(),
		loop.Config{Interval: interval, Capacity: 1024, Window: 10, Ticks: 1000},
		fakeSchedule(clock),
		loop.WithHandler(func(s loop.Sample) { slacks = append(slacks, s.Slack) }),
	)
	require.NoError(t, err)

	assert.Equal(t, uint64(0), stats.Late)
	assert.Equal(t, uint64(1000), stats.Produced+stats.Dropped)
	for i, slack := range slacks {
		require.Equal(t, interval, slack, "sample %d", i)
	}
}

func TestRun_CountsLateTicks(t *testing.T) {
	clock := &manualClock{
		now:       time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		overshoot: 3 * time.Millisecond,
	}

	// Every sleep overshoots by 3ms on a 2ms grid, so every other tick
	// arrives 1ms late and is absorbed without sleeping.
	stats, err := loop.Run(context.Background(),
		loop.Config{Interval: 2 * time.Millisecond, Capacity: 64, Window: 2, Ticks: 10},
		fakeSchedule(clock),
	)
	require.NoError(t, err)

	assert.Equal(t, uint64(5), stats.Late)
	assert.Equal(t, time.Millisecond, stats.MaxLateness)
}

func TestRun_DropsWhenConsumerIsSlow(t *testing.T) {
	stats, err := loop.Run(context.Background(),
		loop.Config{Interval: time.Millisecond, Capacity: 2, Window: 5, Ticks: 30},
		loop.WithHandler(func(loop.Sample) { time.Sleep(5 * time.Millisecond) }),
	)
	require.NoError(t, err)

	assert.Greater(t, stats.Dropped, uint64(0))
	assert.Equal(t, uint64(30), stats.Produced+stats.Dropped)
	assert.Equal(t, stats.Produced, stats.Consumed)
}

func TestRun_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	stats, err := loop.Run(ctx, loop.Config{Interval: time.Millisecond, Capacity: 16, Window: 5})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Greater(t, stats.Produced, uint64(0))
	assert.Equal(t, stats.Produced, stats.Consumed)
}

func TestRun_LogsStats(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(zerolog.SyncWriter(&buf))

	_, err := loop.Run(context.Background(),
		loop.Config{
			Interval:   time.Millisecond,
			Capacity:   8,
			Window:     5,
			Ticks:      30,
			StatsEvery: 10 * time.Millisecond,
			Debug:      true,
		},
		loop.WithLogger(logger),
	)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"message":"loop stats"`)
	assert.Contains(t, out, `"message":"iterations per second"`)
	assert.Contains(t, out, `"consumed":`)
}
