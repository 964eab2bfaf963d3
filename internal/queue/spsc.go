package queue

import (
	"sync/atomic"

	"github.com/rotisserie/eris"
	"golang.org/x/sys/cpu"
)

// slot is one cell of the ring. occupied is true iff value holds an item
// that has not been consumed yet.
type slot[T any] struct {
	occupied atomic.Bool
	value    T
}

// SPSC is a lock-free, fixed-capacity SPSC (Single-Producer Single-Consumer)
// queue.
//
// Each slot carries its own occupancy flag. The producer publishes a value
// by storing the flag after writing the value; the consumer observes the
// flag before reading the value, and clears it after moving the value out.
// Go's atomics are sequentially consistent, so the flag store/load pair
// gives the release/acquire ordering the handoff needs. No other
// synchronization is involved: the cursors are owned by one side each.
//
// WARNING: This queue is NOT safe for multiple producers or multiple consumers.
// The implementation includes runtime guards that panic if the SPSC contract
// is violated.
type SPSC[T any] struct {
	slots []slot[T]

	_ cpu.CacheLinePad

	// Producer side
	write     int
	putActive atomic.Uint32

	_ cpu.CacheLinePad

	// Consumer side
	read      int
	getActive atomic.Uint32

	_ cpu.CacheLinePad
}

// NewSPSC creates an SPSC queue holding at most capacity items.
// Unlike a power-of-two ring, the capacity is used exactly as given.
func NewSPSC[T any](capacity int) (*SPSC[T], error) {
	if capacity <= 0 {
		return nil, eris.Wrapf(ErrInvalidCapacity, "got %d", capacity)
	}
	return &SPSC[T]{
		slots: make([]slot[T], capacity),
	}, nil
}

// Put adds an item to the queue.
// Returns false, leaving the queue untouched, if the queue is full.
//
// SPSC CONTRACT: Only ONE goroutine may call Put().
func (q *SPSC[T]) Put(v T) bool {
	if !q.putActive.CompareAndSwap(0, 1) {
		panic("queue: concurrent Put on SPSC queue - only one producer allowed")
	}
	defer q.putActive.Store(0)

	s := &q.slots[q.write]
	if s.occupied.Load() {
		return false
	}

	s.value = v
	// Publish: the consumer may read value once it sees the flag.
	s.occupied.Store(true)

	q.write++
	if q.write == len(q.slots) {
		q.write = 0
	}
	return true
}

// Get removes and returns the oldest item in the queue.
// Returns false if the queue is empty.
//
// SPSC CONTRACT: Only ONE goroutine may call Get().
func (q *SPSC[T]) Get() (T, bool) {
	if !q.getActive.CompareAndSwap(0, 1) {
		panic("queue: concurrent Get on SPSC queue - only one consumer allowed")
	}
	defer q.getActive.Store(0)

	var zero T
	s := &q.slots[q.read]
	if !s.occupied.Load() {
		return zero, false
	}

	v := s.value
	s.value = zero
	// Release the slot back to the producer.
	s.occupied.Store(false)

	q.read++
	if q.read == len(q.slots) {
		q.read = 0
	}
	return v, true
}

// Clear empties the queue and rewinds both cursors to the first slot.
//
// Clear is not synchronized with Put or Get. The caller must make sure
// neither the producer nor the consumer is running.
func (q *SPSC[T]) Clear() {
	var zero T
	for i := range q.slots {
		q.slots[i].value = zero
		q.slots[i].occupied.Store(false)
	}
	q.read = 0
	q.write = 0
}

// Cap returns the capacity of the queue.
func (q *SPSC[T]) Cap() int {
	return len(q.slots)
}

// Len counts occupied slots. It is a snapshot and may be stale by the
// time it returns when either side is running.
func (q *SPSC[T]) Len() int {
	n := 0
	for i := range q.slots {
		if q.slots[i].occupied.Load() {
			n++
		}
	}
	return n
}
