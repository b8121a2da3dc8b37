// Package checkpoint paces how often a long-running subsystem algorithm
// polls its interrupt flag.
//
// A poll is cheap, but not free once callbacks are registered (platforms
// with deferred signal delivery flush their queue on every poll). A Pacer
// decides at which iterations a safe point is due:
//   - Batch: every N calls
//   - Interval: once per wall-clock interval, using runtime.nanotime
package checkpoint

// Pacer reports when a checkpoint is due.
//
// Implementations are polled from the subsystem's own goroutine. Interval
// is also safe for concurrent use.
type Pacer interface {
	// Due returns true if the caller should poll its interrupt flag now.
	// This is a non-blocking check.
	Due() bool

	// Reset restarts pacing, typically at the start of a unit of work.
	Reset()
}

// Always is a Pacer that makes every call a checkpoint.
type Always struct{}

// Due always returns true.
func (Always) Due() bool { return true }

// Reset is a no-op.
func (Always) Reset() {}
