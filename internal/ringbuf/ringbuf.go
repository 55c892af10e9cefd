// Package ringbuf provides a bounded single-producer single-consumer queue.
// The backtest goroutine pushes progress events and a websocket writer
// drains them; a slow reader loses events instead of stalling the run.
package ringbuf

import "sync/atomic"

const cacheLine = 64

// Ring is a lock-free SPSC ring buffer. Capacity is a power of two.
type Ring[T any] struct {
	buf  []T
	mask uint64

	_pad0 [cacheLine]byte
	head  atomic.Uint64 // producer
	_pad1 [cacheLine]byte
	tail  atomic.Uint64 // consumer
	_pad2 [cacheLine]byte

	dropped atomic.Uint64
}

// New creates a ring holding at least capacity items (minimum 2).
func New[T any](capacity int) *Ring[T] {
	n := nextPow2(capacity)
	if n < 2 {
		n = 2
	}
	return &Ring[T]{
		buf:  make([]T, n),
		mask: uint64(n - 1),
	}
}

// Push appends v, or counts a drop and returns false when full.
// Only the producer goroutine may call Push.
func (r *Ring[T]) Push(v T) bool {
	head := r.head.Load()
	if head-r.tail.Load() >= uint64(len(r.buf)) {
		r.dropped.Add(1)
		return false
	}
	r.buf[head&r.mask] = v
	r.head.Store(head + 1)
	return true
}

// Pop removes the oldest item. Only the consumer goroutine may call Pop.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	tail := r.tail.Load()
	if tail >= r.head.Load() {
		return zero, false
	}
	v := r.buf[tail&r.mask]
	r.buf[tail&r.mask] = zero
	r.tail.Store(tail + 1)
	return v, true
}

// Drain pops everything currently queued into fn and returns the count.
func (r *Ring[T]) Drain(fn func(T)) int {
	n := 0
	for {
		v, ok := r.Pop()
		if !ok {
			return n
		}
		fn(v)
		n++
	}
}

// Len returns the number of queued items.
func (r *Ring[T]) Len() int {
	return int(r.head.Load() - r.tail.Load())
}

// Cap returns the ring capacity.
func (r *Ring[T]) Cap() int {
	return len(r.buf)
}

// Dropped returns the number of pushes rejected because the ring was full.
func (r *Ring[T]) Dropped() uint64 {
	return r.dropped.Load()
}

func nextPow2(n int) int {
	if n <= 0 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
