// Package host models the process that embeds the interrupt relay: its
// per-signal handler table, the dispatcher that turns OS signals into
// handler calls, and the executor that runs units of work behind a chainable
// pre-execution hook.
package host

import "os"

// Handler handles one delivery of a signal.
//
// Handlers run in signal context: they may be invoked while the main path is
// in the middle of any operation. They must not allocate, take locks the
// main path may hold, block or log.
type Handler interface {
	HandleSignal(sig os.Signal)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(sig os.Signal)

// HandleSignal calls f(sig).
func (f HandlerFunc) HandleSignal(sig os.Signal) {
	f(sig)
}

// Disposition is a built-in signal handler.
type Disposition int

const (
	// SigDefault requests the host's default action for the signal.
	SigDefault Disposition = iota
	// SigIgnore drops the signal.
	SigIgnore
)

// HandleSignal is a no-op; the table interprets dispositions itself.
func (Disposition) HandleSignal(os.Signal) {}

func (d Disposition) String() string {
	switch d {
	case SigDefault:
		return "SIG_DFL"
	case SigIgnore:
		return "SIG_IGN"
	}
	return "SIG_UNKNOWN"
}

// IsDefault reports whether h is nil or SigDefault.
func IsDefault(h Handler) bool {
	if h == nil {
		return true
	}
	d, ok := h.(Disposition)
	return ok && d == SigDefault
}

// IsIgnore reports whether h is SigIgnore.
func IsIgnore(h Handler) bool {
	d, ok := h.(Disposition)
	return ok && d == SigIgnore
}

// IsDisposition reports whether h is a built-in disposition rather than a
// callable handler.
func IsDisposition(h Handler) bool {
	return IsDefault(h) || IsIgnore(h)
}
