package window

import (
	"errors"
	"sync"
)

// ErrZeroCapacity is returned when a ring buffer is created without room for a value
var ErrZeroCapacity = errors.New("window: capacity must be at least 1")

// RingBuffer is a circular buffer with fixed capacity.
// Once full, each push overwrites the oldest value.
type RingBuffer[T any] struct {
	data     []T
	capacity int
	size     int
	head     int // points to the next write position
	mu       sync.RWMutex
}

// NewRingBuffer creates a new ring buffer with the specified capacity
func NewRingBuffer[T any](capacity int) (*RingBuffer[T], error) {
	if capacity < 1 {
		return nil, ErrZeroCapacity
	}
	return &RingBuffer[T]{
		data:     make([]T, capacity),
		capacity: capacity,
	}, nil
}

// Push adds a value to the buffer
// If the buffer is full, the oldest value is overwritten
func (rb *RingBuffer[T]) Push(v T) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.data[rb.head] = v
	rb.head = (rb.head + 1) % rb.capacity
	if rb.size < rb.capacity {
		rb.size++
	}
}

// Len returns the current number of elements in the buffer
func (rb *RingBuffer[T]) Len() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size
}

// IsFull returns true if the buffer is at capacity
func (rb *RingBuffer[T]) IsFull() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.size == rb.capacity
}

// Cap returns the maximum capacity of the buffer
func (rb *RingBuffer[T]) Cap() int {
	return rb.capacity
}

// Values returns a snapshot of all values in chronological order (oldest first).
// The snapshot does not change when the buffer is pushed to later.
func (rb *RingBuffer[T]) Values() []T {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	result := make([]T, rb.size)
	if rb.size == 0 {
		return result
	}

	// Calculate the start position (oldest element)
	start := 0
	if rb.size == rb.capacity {
		start = rb.head
	}

	for i := 0; i < rb.size; i++ {
		result[i] = rb.data[(start+i)%rb.capacity]
	}

	return result
}

// Last returns the most recent value
func (rb *RingBuffer[T]) Last() (T, bool) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	var zero T
	if rb.size == 0 {
		return zero, false
	}

	return rb.data[(rb.head-1+rb.capacity)%rb.capacity], true
}
