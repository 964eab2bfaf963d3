// Command queue compares the channel-backed queue with the SPSC ring,
// first single-threaded and then across a producer and a consumer goroutine.
//
// Usage:
//
//	go run ./cmd/queue -n 10000000 -size 1024
package main

import (
	"flag"
	"fmt"
	"runtime"
	"time"

	"github.com/randomizedcoder/looptime/internal/queue"
)

type queueInfo struct {
	name   string
	create func(size int) (queue.Queue[int], error)
}

var queues = []queueInfo{
	{"Channel", func(size int) (queue.Queue[int], error) { return queue.NewChannel[int](size) }},
	{"SPSC", func(size int) (queue.Queue[int], error) { return queue.NewSPSC[int](size) }},
}

func main() {
	iterations := flag.Int("n", 10_000_000, "number of iterations")
	size := flag.Int("size", 1024, "queue size")
	flag.Parse()

	fmt.Printf("Benchmarking queues (%d iterations, size=%d)\n", *iterations, *size)
	fmt.Println("─────────────────────────────────────────────────")

	single := make([]time.Duration, len(queues))
	pipe := make([]time.Duration, len(queues))
	for i, info := range queues {
		q, err := info.create(*size)
		if err != nil {
			fmt.Println(info.name+":", err)
			return
		}
		single[i] = putGet(q, *iterations)

		q, _ = info.create(*size)
		pipe[i] = pipeline(q, *iterations)
	}

	report := func(title string, results []time.Duration) {
		fmt.Printf("\n%s:\n", title)
		for i, info := range queues {
			perOp := float64(results[i].Nanoseconds()) / float64(*iterations)
			fmt.Printf("  %-10s %12v  %8.2f ns/op  %8.2f M ops/sec\n",
				info.name, results[i], perOp, 1000/perOp)
		}
		ch, ring := results[0], results[1]
		if ring < ch {
			fmt.Printf("  Speedup:  %.2fx (SPSC faster)\n", float64(ch)/float64(ring))
		} else {
			fmt.Printf("  Speedup:  %.2fx (Channel faster)\n", float64(ring)/float64(ch))
		}
	}
	report("Results (put + get per iteration)", single)
	report("Results (producer -> consumer goroutines)", pipe)
}

func putGet(q queue.Queue[int], n int) time.Duration {
	start := time.Now()
	for i := 0; i < n; i++ {
		q.Put(i)
		q.Get()
	}
	return time.Since(start)
}

func pipeline(q queue.Queue[int], n int) time.Duration {
	done := make(chan struct{})
	start := time.Now()
	go func() {
		defer close(done)
		for got := 0; got < n; {
			if _, ok := q.Get(); ok {
				got++
			} else {
				runtime.Gosched()
			}
		}
	}()
	for i := 0; i < n; {
		if q.Put(i) {
			i++
		} else {
			runtime.Gosched()
		}
	}
	<-done
	return time.Since(start)
}
