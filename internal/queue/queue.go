// Package queue provides fixed-capacity SPSC queues for handing values
// between a producer goroutine and a consumer goroutine running at
// independent paces.
//
// This package offers two implementations of the Queue interface:
//   - SPSC: lock-free ring of slots, each with an atomic occupancy flag
//   - ChannelQueue: Standard library baseline using a buffered channel
//
// # SPSC Safety (IMPORTANT)
//
// SPSC is a Single-Producer Single-Consumer queue.
// It is NOT safe for multiple goroutines to call Put() or Get() concurrently.
//
// The implementation includes runtime guards that panic on misuse.
//
// Correct usage:
//   - Exactly ONE goroutine calls Put()
//   - Exactly ONE goroutine calls Get()
//   - These may be the same goroutine or different goroutines
//   - Clear() only while neither side is running
package queue

import "github.com/rotisserie/eris"

// ErrInvalidCapacity is returned when a queue is constructed with a
// capacity that is not positive.
var ErrInvalidCapacity = eris.New("queue: capacity must be positive")

// Queue is a single-producer single-consumer queue.
//
// Implementations are non-blocking: Put returns false if full,
// Get returns false if empty. Retry and backoff are up to the caller.
type Queue[T any] interface {
	// Put adds an item to the queue.
	// Returns false if the queue is full.
	Put(T) bool

	// Get removes and returns the oldest item in the queue.
	// Returns false if the queue is empty.
	Get() (T, bool)
}
