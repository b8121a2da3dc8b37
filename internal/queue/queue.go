// Package queue provides the non-blocking queues that hold signals whose
// delivery the platform defers.
//
// This package offers two implementations of the Queue interface:
//   - ChannelQueue: Standard library approach using a buffered channel
//   - ShardedQueue: Lock-free multi-producer ring (go-lock-free-ring)
//
// # Consumer Safety (IMPORTANT)
//
// ShardedQueue supports many producers but only ONE consumer at a time.
// Callers that drain from several goroutines must serialize Pop themselves;
// the host dispatcher does this with a CAS drain guard.
package queue

// Queue is a bounded FIFO used from signal context.
//
// Implementations are non-blocking: Push returns false if full,
// Pop returns false if empty.
type Queue[T any] interface {
	// Push adds an item to the queue.
	// Returns false if the queue is full.
	Push(T) bool

	// Pop removes and returns an item from the queue.
	// Returns false if the queue is empty.
	Pop() (T, bool)

	// Len returns the approximate number of queued items.
	Len() int
}
