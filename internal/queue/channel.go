package queue

// ChannelQueue holds deferred signals in a buffered channel.
//
// It is the host's default deferred queue. Any number of delivery
// goroutines may Push while the dispatcher drains; Push never blocks the
// delivery path and a full queue drops the signal.
type ChannelQueue[T any] struct {
	ch chan T
}

// NewChannel creates a ChannelQueue holding up to size items. Sizes below
// 1 are raised to 1 so a single pending signal always fits.
func NewChannel[T any](size int) *ChannelQueue[T] {
	if size < 1 {
		size = 1
	}
	return &ChannelQueue[T]{
		ch: make(chan T, size),
	}
}

// Push adds an item to the queue.
// Returns false if the queue is full (non-blocking).
func (q *ChannelQueue[T]) Push(v T) bool {
	select {
	case q.ch <- v:
		return true
	default:
		return false
	}
}

// Pop removes and returns an item from the queue.
// Returns false if the queue is empty (non-blocking).
func (q *ChannelQueue[T]) Pop() (T, bool) {
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
