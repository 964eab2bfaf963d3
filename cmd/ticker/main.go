// Command ticker compares a naive sleep loop against the drift-free
// Schedule, and measures the cost of a non-blocking tick check.
//
// Usage:
//
//	go run ./cmd/ticker -ticks 200 -interval 5ms -n 10000000
package main

import (
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/randomizedcoder/looptime/internal/tick"
)

type tickerInfo struct {
	name   string
	create func() (tick.Ticker, error)
}

func main() {
	iterations := flag.Int("n", 10_000_000, "tick check iterations")
	ticks := flag.Int("ticks", 200, "paced ticks per drift run")
	interval := flag.Duration("interval", 5*time.Millisecond, "paced tick interval")
	work := flag.Duration("work", time.Millisecond, "simulated work per tick")
	flag.Parse()

	fmt.Printf("Architecture: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Println("─────────────────────────────────────────────────")

	if err := drift(*ticks, *interval, *work); err != nil {
		fmt.Println("drift:", err)
		return
	}
	if err := checkOverhead(*iterations); err != nil {
		fmt.Println("tick check:", err)
	}
}

// busy spins for d so the simulated work is not itself a sleep.
func busy(d time.Duration) {
	end := time.Now().Add(d)
	for time.Now().Before(end) {
	}
}

func drift(ticks int, interval, work time.Duration) error {
	fmt.Printf("Drift over %d ticks (interval=%v, work=%v)\n", ticks, interval, work)
	expected := interval * time.Duration(ticks)

	start := time.Now()
	for i := 0; i < ticks; i++ {
		busy(work)
		time.Sleep(interval)
	}
	naive := time.Since(start)

	s, err := tick.New(interval)
	if err != nil {
		return err
	}
	late := 0
	start = time.Now()
	s.SetStartNow()
	for i := 0; i < ticks; i++ {
		busy(work)
		if s.Remaining(s.Ticks()) < 0 {
			late++
		}
		s.Wait()
	}
	paced := time.Since(start)

	fmt.Printf("\nResults:\n")
	fmt.Printf("  %-12s %12v\n", "expected", expected)
	fmt.Printf("  %-12s %12v  drift %+v\n", "time.Sleep", naive, naive-expected)
	fmt.Printf("  %-12s %12v  drift %+v  late %d\n", "Schedule", paced, paced-expected, late)
	fmt.Println("─────────────────────────────────────────────────")
	return nil
}

func checkOverhead(iterations int) error {
	// Long so we measure check overhead, not actual ticks
	interval := time.Hour

	fmt.Printf("Tick check (%d iterations)\n", iterations)

	tickers := []tickerInfo{
		{"Schedule", func() (tick.Ticker, error) { return tick.New(interval) }},
		{"AtomicTicker", func() (tick.Ticker, error) { return tick.NewAtomicTicker(interval) }},
	}

	results := make([]time.Duration, len(tickers))
	for i, info := range tickers {
		t, err := info.create()
		if err != nil {
			return err
		}
		start := time.Now()
		for j := 0; j < iterations; j++ {
			_ = t.Tick()
		}
		results[i] = time.Since(start)
		t.Stop()
	}

	fmt.Printf("\nResults:\n")
	baseline := float64(results[0].Nanoseconds()) / float64(iterations)
	for i, info := range tickers {
		perOp := float64(results[i].Nanoseconds()) / float64(iterations)
		speedup := baseline / perOp
		throughput := 1000 / perOp // M ops/sec

		fmt.Printf("  %-20s %12v  %8.2f ns/op  %6.2fx  %8.2f M/s\n",
			info.name, results[i], perOp, speedup, throughput)
	}

	fmt.Printf("\nNote: Schedule.Tick takes a mutex; AtomicTicker is lock-free.\n")
	return nil
}
