// Package cancel provides the interrupt endpoints that computational
// subsystems expose to the relay.
//
// Each endpoint is a process-wide sticky flag:
//   - RequestInterrupt sets it (called from signal context)
//   - CancelInterrupt clears it (called at the start of every unit of work)
//   - Interrupted reports it (polled by the subsystem at its safe points)
//
// Request and cancel are a single atomic store. They never allocate, lock,
// block or log, so they are safe to call from the signal relay.
package cancel

// Endpoint is the interrupt surface of one subsystem.
//
// Implementations must be safe for concurrent use:
//   - RequestInterrupt may run concurrently with Interrupted
//   - CancelInterrupt may run concurrently with Interrupted
type Endpoint interface {
	// RequestInterrupt asks the subsystem to abort at its next checkpoint.
	// Safe to call multiple times.
	RequestInterrupt()

	// CancelInterrupt withdraws any pending request. Safe to call when no
	// request was ever made.
	CancelInterrupt()

	// Interrupted reports whether a request is pending.
	Interrupted() bool
}

// Checker is the subsystem-side view of an endpoint: a poll performed at a
// safe point of a long-running algorithm.
type Checker interface {
	// Check returns true if the computation should abort.
	Check() bool
}
