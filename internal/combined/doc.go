// Package combined holds benchmarks that run the loop's pieces together:
// tick checks, rate updates and queue hand-off in one hot path, and
// producer/consumer pipelines across goroutines.
//
// Per-component numbers live next to each package; these capture what the
// pieces cost when they share a loop.
package combined
