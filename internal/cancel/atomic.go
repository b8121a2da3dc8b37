package cancel

import "sync/atomic"

// Flag is a named sticky interrupt flag backed by an atomic.Bool.
//
// Every write is a single atomic store, so the relay can set it from signal
// context and the owning subsystem never observes a torn value.
type Flag struct {
	name string
	set  atomic.Bool

	// callback runs at each Check before the flag is loaded. Platforms that
	// defer signal delivery use it to flush queued signals into the relay.
	callback atomic.Pointer[func()]
}

// NewFlag creates a cleared Flag for the named subsystem.
func NewFlag(name string) *Flag {
	return &Flag{name: name}
}

// Name returns the subsystem name.
func (f *Flag) Name() string {
	return f.name
}

// RequestInterrupt sets the flag.
//
// Safe to call multiple times; subsequent calls are no-ops.
func (f *Flag) RequestInterrupt() {
	f.set.Store(true)
}

// CancelInterrupt clears the flag.
//
// Safe to call when the flag is already clear.
func (f *Flag) CancelInterrupt() {
	f.set.Store(false)
}

// Interrupted returns true if an interrupt has been requested and not yet
// cancelled.
//
// This performs a single atomic load operation.
func (f *Flag) Interrupted() bool {
	return f.set.Load()
}

// Check runs the registered callback, if any, then reports the flag.
//
// Subsystems call Check at their safe points instead of Interrupted so that
// signals queued by the platform get a chance to reach the relay first.
func (f *Flag) Check() bool {
	if cb := f.callback.Load(); cb != nil {
		(*cb)()
	}
	return f.set.Load()
}

// RegisterCallback installs fn to be run by Check and returns the callback
// it replaced. A nil fn removes the callback.
func (f *Flag) RegisterCallback(fn func()) func() {
	var next *func()
	if fn != nil {
		next = &fn
	}
	prev := f.callback.Swap(next)
	if prev == nil {
		return nil
	}
	return *prev
}
