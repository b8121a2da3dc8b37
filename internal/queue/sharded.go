package queue

import (
	"fmt"
	"sync/atomic"

	ring "github.com/randomizedcoder/go-lock-free-ring"
)

// ShardedQueue is a lock-free MPSC queue backed by go-lock-free-ring.
//
// Producers are spread across shards round-robin, so FIFO order holds per
// shard only. Signals carry no ordering requirement between deliveries.
type ShardedQueue[T any] struct {
	r      *ring.ShardedRing
	shards uint64
	next   atomic.Uint64
}

// NewSharded creates a ShardedQueue with at least the given total capacity
// split across shards. Shard count and per-shard size are rounded up to
// powers of 2.
func NewSharded[T any](capacity, shards int) (*ShardedQueue[T], error) {
	n := pow2(uint64(max(shards, 1)))
	per := pow2((uint64(max(capacity, 1)) + n - 1) / n)
	r, err := ring.NewShardedRing(per*n, n)
	if err != nil {
		return nil, fmt.Errorf("queue: sharded ring: %w", err)
	}
	return &ShardedQueue[T]{r: r, shards: n}, nil
}

// pow2 rounds v up to the next power of 2.
func pow2(v uint64) uint64 {
	n := uint64(1)
	for n < v {
		n <<= 1
	}
	return n
}

// Push adds an item to the next shard.
// Returns false if that shard is full (non-blocking).
func (q *ShardedQueue[T]) Push(v T) bool {
	pid := q.next.Add(1) - 1
	return q.r.Write(pid%q.shards, v)
}

// Pop removes and returns an item from any non-empty shard.
// Returns false if the queue is empty (non-blocking).
//
// CONSUMER CONTRACT: Only ONE goroutine may call Pop() at a time.
func (q *ShardedQueue[T]) Pop() (T, bool) {
	var zero T
	v, ok := q.r.TryRead()
	if !ok {
		return zero, false
	}
	item, ok := v.(T)
	if !ok {
		return zero, false
	}
	return item, true
}

// Len returns the number of items across all shards, as reported by the
// ring. It may be stale while producers are writing.
func (q *ShardedQueue[T]) Len() int {
	return int(q.r.Len())
}

// Shards returns the number of producer shards.
func (q *ShardedQueue[T]) Shards() int {
	return int(q.shards)
}
