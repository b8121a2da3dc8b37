// Package lifecycle installs the pre-execution hook that clears every
// subsystem's interrupt flag at the start of each unit of work.
package lifecycle

import (
	"github.com/randomizedcoder/geointerrupt/internal/host"
	"github.com/randomizedcoder/geointerrupt/internal/metrics"
)

// HookRegistry is the host's pre-execution hook slot and its standard start
// behavior.
type HookRegistry interface {
	StartHook() host.StartHook
	SetStartHook(h host.StartHook)
	StandardStart(q *host.QueryDesc, flags host.ExecFlags)
}

// Canceler clears every subsystem's interrupt flag.
type Canceler interface {
	CancelInterrupt()
}

// ResetHook is a host.StartHook that resets interrupt state and then hands
// the query on to the hook it replaced.
//
// Several modules can install a ResetHook-style hook on the same registry;
// each saves the previous one, so the chain runs last-installed first and
// ends at the host's standard start.
type ResetHook struct {
	reg HookRegistry
	bc  Canceler

	installed bool
	prev      host.StartHook
}

// NewResetHook creates a hook for reg. It is inert until Install.
func NewResetHook(reg HookRegistry, bc Canceler) *ResetHook {
	return &ResetHook{reg: reg, bc: bc}
}

// Install saves the active hook, which may be nil, and registers h.
func (h *ResetHook) Install() {
	if h.installed {
		return
	}
	h.prev = h.reg.StartHook()
	h.reg.SetStartHook(h)
	h.installed = true
}

// Uninstall restores the saved hook, including nil.
func (h *ResetHook) Uninstall() {
	if !h.installed {
		return
	}
	h.reg.SetStartHook(h.prev)
	h.prev = nil
	h.installed = false
}

// Installed reports whether h is registered.
func (h *ResetHook) Installed() bool {
	return h.installed
}

// Previous returns the hook saved at Install.
func (h *ResetHook) Previous() host.StartHook {
	return h.prev
}

// ExecutorStart clears stale interrupt requests, then chains.
func (h *ResetHook) ExecutorStart(q *host.QueryDesc, flags host.ExecFlags) {
	// A new unit of work must never inherit a request from an earlier one,
	// nor one that arrived while idle and was never consumed.
	h.bc.CancelInterrupt()
	metrics.UnitReset()

	if h.prev != nil {
		h.prev.ExecutorStart(q, flags)
	} else {
		h.reg.StandardStart(q, flags)
	}
}
