package queue

import "github.com/rotisserie/eris"

// ChannelQueue wraps a buffered channel as a Queue.
//
// It is the baseline the SPSC queue is measured against. Each Put/Get
// performs a non-blocking channel operation via select with default.
type ChannelQueue[T any] struct {
	ch chan T
}

// NewChannel creates a ChannelQueue holding at most capacity items.
func NewChannel[T any](capacity int) (*ChannelQueue[T], error) {
	if capacity <= 0 {
		return nil, eris.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	return &ChannelQueue[T]{
		ch: make(chan T, capacity),
	}, nil
}

// Put adds an item to the queue.
// Returns false if the queue is full (non-blocking).
func (q *ChannelQueue[T]) Put(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Get removes and returns an item from the queue.
// Returns false if the queue is empty (non-blocking).
func (q *ChannelQueue[T]) Get() (T, bool) {
	select {
	case v := <-q.ch:
		return v, true
	default:
		var zero T
		return zero, false
	}
}

// Len returns the current number of items in the queue.
func (q *ChannelQueue[T]) Len() int {
	return len(q.ch)
}

// Cap returns the capacity of the queue.
func (q *ChannelQueue[T]) Cap() int {
	return cap(q.ch)
}
