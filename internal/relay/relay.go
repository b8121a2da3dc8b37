// Package relay installs a signal handler that broadcasts an interrupt
// request to every subsystem and then chains to the handler it replaced.
package relay

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"

	"github.com/randomizedcoder/geointerrupt/internal/host"
)

// ErrAlreadyInstalled is returned by Install when the relay is active.
// Installing twice would capture the relay as its own previous handler.
var ErrAlreadyInstalled = errors.New("relay: already installed")

// SignalTable is the host's handler registration primitive.
type SignalTable interface {
	Handler(sig os.Signal) host.Handler
	SetHandler(sig os.Signal, h host.Handler) (host.Handler, error)
}

// Broadcaster sets every subsystem's interrupt flag. RequestInterrupt must
// be safe in signal context.
type Broadcaster interface {
	RequestInterrupt()
}

// slot boxes the previous handler so it can live in an atomic.Pointer.
type slot struct {
	h host.Handler
}

// Relay is the interrupt signal handler.
//
// HandleSignal is restricted to two operations: the broadcast (atomic flag
// stores) and a call to the previous handler. Nothing else may be added to
// that path.
type Relay struct {
	table SignalTable
	sig   os.Signal
	bc    Broadcaster

	prev atomic.Pointer[slot]
}

// New creates a Relay for sig. It is inert until Install.
func New(table SignalTable, sig os.Signal, bc Broadcaster) *Relay {
	return &Relay{table: table, sig: sig, bc: bc}
}

// Signal returns the signal the relay handles.
func (r *Relay) Signal() os.Signal {
	return r.sig
}

// Install registers the relay for its signal and keeps the handler it
// replaced. Must run before any subsystem work can begin.
//
// Install should run before the host starts delivering the signal. The
// current handler is captured before the relay is registered, so a signal
// that arrives during Install still chains, but a concurrent change to the
// same slot by another caller is not detected.
func (r *Relay) Install() error {
	pending := &slot{h: r.table.Handler(r.sig)}
	if !r.prev.CompareAndSwap(nil, pending) {
		return ErrAlreadyInstalled
	}
	prev, err := r.table.SetHandler(r.sig, r)
	if err != nil {
		r.prev.Store(nil)
		return fmt.Errorf("relay: install %v handler: %w", r.sig, err)
	}
	r.prev.Store(&slot{h: prev})
	return nil
}

// Uninstall puts the previous handler back exactly as captured, including
// SigDefault. It is a no-op when the relay is not installed.
func (r *Relay) Uninstall() error {
	s := r.prev.Load()
	if s == nil {
		return nil
	}
	if _, err := r.table.SetHandler(r.sig, s.h); err != nil {
		return fmt.Errorf("relay: restore %v handler: %w", r.sig, err)
	}
	r.prev.Store(nil)
	return nil
}

// Installed reports whether the relay is registered.
func (r *Relay) Installed() bool {
	return r.prev.Load() != nil
}

// Previous returns the handler captured at Install, or nil when not
// installed.
func (r *Relay) Previous() host.Handler {
	if s := r.prev.Load(); s != nil {
		return s.h
	}
	return nil
}

// HandleSignal broadcasts the interrupt, then chains to the previous
// handler. The broadcast comes first so that it is visible to subsystems
// even if the previous handler never returns.
func (r *Relay) HandleSignal(sig os.Signal) {
	r.bc.RequestInterrupt()

	if s := r.prev.Load(); s != nil && !host.IsDisposition(s.h) {
		s.h.HandleSignal(sig)
	}
}
