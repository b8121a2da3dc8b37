package checkpoint

import (
	"sync/atomic"
	"time"
	_ "unsafe" // Required for go:linkname
)

// nanotime returns the current monotonic time in nanoseconds.
// This is faster than time.Now() because it returns a single int64
// and avoids constructing a time.Time struct.
//
//go:linkname nanotime runtime.nanotime
func nanotime() int64

// Interval makes a call to Due a checkpoint once per interval.
//
// It uses the runtime's monotonic clock and a compare-and-swap, so several
// goroutines sharing one Interval see each checkpoint exactly once.
type Interval struct {
	interval int64 // nanoseconds
	last     atomic.Int64
}

// NewInterval creates an Interval pacer.
func NewInterval(interval time.Duration) *Interval {
	p := &Interval{
		interval: int64(interval),
	}
	p.last.Store(nanotime())
	return p
}

// Due returns true if the interval has elapsed since the last checkpoint.
func (p *Interval) Due() bool {
	now := nanotime()
	last := p.last.Load()

	if now-last >= p.interval {
		// CAS to prevent multiple triggers
		if p.last.CompareAndSwap(last, now) {
			return true
		}
	}
	return false
}

// Reset starts a new interval from now.
func (p *Interval) Reset() {
	p.last.Store(nanotime())
}

// Interval returns the pacing interval.
func (p *Interval) Interval() time.Duration {
	return time.Duration(p.interval)
}
