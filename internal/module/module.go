// Package module loads and unloads the interrupt relay: the signal handler
// that fans interrupts out to the computational subsystems and the
// pre-execution hook that clears stale requests.
package module

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/randomizedcoder/geointerrupt/internal/broadcast"
	"github.com/randomizedcoder/geointerrupt/internal/cancel"
	"github.com/randomizedcoder/geointerrupt/internal/lifecycle"
	"github.com/randomizedcoder/geointerrupt/internal/logging"
	"github.com/randomizedcoder/geointerrupt/internal/metrics"
	"github.com/randomizedcoder/geointerrupt/internal/relay"
	"github.com/randomizedcoder/geointerrupt/internal/subsystem"
)

// ErrLoaded is returned by Init when the module is already loaded.
var ErrLoaded = errors.New("module: already loaded")

// DefaultVersion is reported in the unload notice when none is configured.
const DefaultVersion = "dev"

// SignalQueue is the host's deferred signal queue, on platforms where
// signals are not delivered synchronously.
type SignalQueue interface {
	Pending() bool
	DispatchQueued() int
}

// HandlerInstaller routes subsystem notices and errors to a logger.
type HandlerInstaller func(logger *logrus.Entry) error

// Option configures a Module.
type Option func(*Module)

// WithSignal sets the interrupt signal. Defaults to os.Interrupt.
func WithSignal(sig os.Signal) Option {
	return func(m *Module) { m.sig = sig }
}

// WithEndpoints replaces the compiled-in subsystem endpoints.
func WithEndpoints(eps ...cancel.Endpoint) Option {
	return func(m *Module) { m.endpoints = eps }
}

// WithLogger sets the module logger.
func WithLogger(log *logrus.Entry) Option {
	return func(m *Module) { m.log = log }
}

// WithVersion sets the version reported at unload.
func WithVersion(v string) Option {
	return func(m *Module) { m.version = v }
}

// WithDeferredDispatch registers an interrupt callback that drains q each
// time a subsystem polls its flag. Use it when the host queues signals
// instead of running handlers on arrival.
func WithDeferredDispatch(q SignalQueue) Option {
	return func(m *Module) { m.queue = q }
}

// WithCallbackTargets replaces the endpoints that receive the deferred
// dispatch callback.
func WithCallbackTargets(targets ...*cancel.Flag) Option {
	return func(m *Module) { m.targets = targets }
}

// WithHandlerInstaller replaces the subsystem handler installation.
func WithHandlerInstaller(fn HandlerInstaller) Option {
	return func(m *Module) { m.installHandlers = fn }
}

// Module is one loadable instance of the interrupt relay.
type Module struct {
	sig             os.Signal
	endpoints       []cancel.Endpoint
	targets         []*cancel.Flag
	queue           SignalQueue
	installHandlers HandlerInstaller
	version         string
	log             *logrus.Entry

	bc    *broadcast.Broadcaster
	relay *relay.Relay
	hook  *lifecycle.ResetHook

	mu        sync.Mutex
	loaded    bool
	unloading bool
	callback  func()
	prevCalls []func()
}

// New creates a Module bound to the host's signal table and hook registry.
// Nothing is installed until Init.
func New(signals relay.SignalTable, hooks lifecycle.HookRegistry, opts ...Option) *Module {
	m := &Module{
		sig:             os.Interrupt,
		endpoints:       subsystem.Endpoints(),
		targets:         subsystem.CallbackTargets(),
		installHandlers: subsystem.InstallHandlers,
		version:         DefaultVersion,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.log == nil {
		m.log = logging.Discard()
	}

	m.bc = broadcast.New(m.endpoints...)
	m.relay = relay.New(signals, m.sig, m.bc)
	m.hook = lifecycle.NewResetHook(hooks, m.bc)
	return m
}

// Broadcaster returns the broadcaster shared by the relay and the hook.
func (m *Module) Broadcaster() *broadcast.Broadcaster {
	return m.bc
}

// Loaded reports whether Init has run without a matching Fini.
func (m *Module) Loaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loaded
}

// Init installs the relay, the deferred dispatch callback, the subsystem
// handlers and the pre-execution hook, in that order. The relay goes first
// so that no subsystem work can start without interrupt coverage.
//
// If a later step fails the relay is uninstalled again and the error is
// returned.
func (m *Module) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.loaded {
		return ErrLoaded
	}

	if err := m.relay.Install(); err != nil {
		return fmt.Errorf("module: %w", err)
	}

	m.registerCallbacks()

	if m.installHandlers != nil {
		if err := m.installHandlers(m.log); err != nil {
			m.unregisterCallbacks()
			if rerr := m.relay.Uninstall(); rerr != nil {
				return fmt.Errorf("module: install subsystem handlers: %w", errors.Join(err, rerr))
			}
			return fmt.Errorf("module: install subsystem handlers: %w", err)
		}
	}

	m.hook.Install()

	m.loaded = true
	metrics.SetModuleLoaded(true)
	m.log.WithFields(logrus.Fields{
		"signal":    m.sig,
		"endpoints": m.bc.Len(),
		"deferred":  m.queue != nil,
	}).Debug("module loaded")
	return nil
}

// Fini restores the signal handler and pre-execution hook captured at Init.
// The hook is restored even when the handler restore fails. Fini on an
// unloaded module does nothing.
//
// If the handler cannot be restored the module stays loaded, and a later
// Fini retries the handler restore.
func (m *Module) Fini() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		return nil
	}
	if !m.unloading {
		m.log.Infof("Goodbye from geointerrupt %s", m.version)
		m.unloading = true
	}

	// Uninstall on the hook and callbacks is a no-op when a previous Fini
	// already restored them.
	err := m.relay.Uninstall()
	m.hook.Uninstall()
	m.unregisterCallbacks()
	if err != nil {
		return fmt.Errorf("module: %w", err)
	}

	m.loaded = false
	m.unloading = false
	metrics.SetModuleLoaded(false)
	return nil
}

func (m *Module) registerCallbacks() {
	if m.queue == nil {
		return
	}
	q := m.queue
	if m.callback == nil {
		m.callback = func() {
			if q.Pending() {
				q.DispatchQueued()
			}
		}
	}
	m.prevCalls = m.prevCalls[:0]
	for _, f := range m.targets {
		m.prevCalls = append(m.prevCalls, f.RegisterCallback(m.callback))
	}
}

func (m *Module) unregisterCallbacks() {
	if m.queue == nil {
		return
	}
	for i, f := range m.targets {
		if i < len(m.prevCalls) {
			f.RegisterCallback(m.prevCalls[i])
		}
	}
	m.prevCalls = m.prevCalls[:0]
}
