package sink

import (
	"sync"
	"sync/atomic"
)

// Queue is an unbounded FIFO of pending records. Push and PopN are safe
// for concurrent use; Len reads an atomic counter and may briefly lag.
type Queue[T any] struct {
	mu    sync.Mutex
	items []T
	count atomic.Int64
}

// NewQueue creates an empty queue
func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Push appends v at the tail
func (q *Queue[T]) Push(v T) {
	q.mu.Lock()
	q.items = append(q.items, v)
	q.mu.Unlock()
	q.count.Add(1)
}

// PopN removes and returns up to n items from the head
func (q *Queue[T]) PopN(n int) []T {
	if n <= 0 {
		return nil
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if n > len(q.items) {
		n = len(q.items)
	}
	if n == 0 {
		return nil
	}

	out := make([]T, n)
	copy(out, q.items[:n])

	// Drop references so popped records can be collected
	var zero T
	for i := 0; i < n; i++ {
		q.items[i] = zero
	}
	q.items = q.items[n:]
	if len(q.items) == 0 {
		q.items = nil
	}

	q.count.Add(int64(-n))
	return out
}

// PushFront puts vs back at the head, keeping their order
func (q *Queue[T]) PushFront(vs []T) {
	if len(vs) == 0 {
		return
	}

	q.mu.Lock()
	items := make([]T, 0, len(vs)+len(q.items))
	items = append(items, vs...)
	items = append(items, q.items...)
	q.items = items
	q.mu.Unlock()

	q.count.Add(int64(len(vs)))
}

// Len returns the number of pending items
func (q *Queue[T]) Len() int {
	return int(q.count.Load())
}
