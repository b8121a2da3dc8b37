// Package broadcast fans interrupt requests out to every compiled-in
// subsystem endpoint, and fans cancellations back in.
package broadcast

import "github.com/randomizedcoder/geointerrupt/internal/cancel"

// Broadcaster calls the same operation on a fixed list of endpoints.
//
// The list is frozen at construction so that RequestInterrupt and
// CancelInterrupt are a plain loop: no allocation, no locking, no failure.
type Broadcaster struct {
	endpoints []cancel.Endpoint
}

// New creates a Broadcaster over endpoints, in the order given. Nil
// endpoints are skipped.
func New(endpoints ...cancel.Endpoint) *Broadcaster {
	eps := make([]cancel.Endpoint, 0, len(endpoints))
	for _, ep := range endpoints {
		if ep != nil {
			eps = append(eps, ep)
		}
	}
	return &Broadcaster{endpoints: eps}
}

// RequestInterrupt sets every endpoint's flag, in order.
//
// Safe to call from signal context.
func (b *Broadcaster) RequestInterrupt() {
	for _, ep := range b.endpoints {
		ep.RequestInterrupt()
	}
}

// CancelInterrupt clears every endpoint's flag, in order.
func (b *Broadcaster) CancelInterrupt() {
	for _, ep := range b.endpoints {
		ep.CancelInterrupt()
	}
}

// Interrupted reports whether any endpoint has a pending request.
func (b *Broadcaster) Interrupted() bool {
	for _, ep := range b.endpoints {
		if ep.Interrupted() {
			return true
		}
	}
	return false
}

// Len returns the number of endpoints.
func (b *Broadcaster) Len() int {
	return len(b.endpoints)
}
