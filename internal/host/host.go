package host

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/randomizedcoder/geointerrupt/internal/logging"
	"github.com/randomizedcoder/geointerrupt/internal/queue"
)

// Options configure a Host.
type Options struct {
	// Signal is the interrupt signal. Defaults to os.Interrupt.
	Signal os.Signal
	// Deferred selects deferred signal delivery. Defaults to the platform.
	Deferred *bool
	// Queue holds deferred signals. Defaults to a channel queue.
	Queue queue.Queue[os.Signal]
	// Source replaces os/signal, for tests.
	Source SignalSource
	// DefaultAction runs for signals left at SigDefault.
	DefaultAction func(os.Signal)
	Logger        *logrus.Entry
}

// Host bundles the signal table, dispatcher and executor of one process.
type Host struct {
	Signals    *SignalTable
	Dispatcher *Dispatcher
	Executor   *Executor

	signal os.Signal
	log    *logrus.Entry
}

// New creates a Host and registers the executor's cancel handler for the
// interrupt signal, as the host process does before any extension loads.
func New(opts Options) (*Host, error) {
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	sig := opts.Signal
	if sig == nil {
		sig = os.Interrupt
	}

	h := &Host{
		Signals:  NewSignalTable(opts.DefaultAction),
		Executor: NewExecutor(log.WithField("component", "executor")),
		signal:   sig,
		log:      log,
	}

	dopts := []DispatcherOption{WithDispatcherLogger(log.WithField("component", "dispatcher"))}
	if opts.Source != nil {
		dopts = append(dopts, WithSignalSource(opts.Source))
	}
	deferred := DeferredDelivery
	if opts.Deferred != nil {
		deferred = *opts.Deferred
	}
	dopts = append(dopts, WithDeferred(deferred, opts.Queue))
	h.Dispatcher = NewDispatcher(h.Signals, dopts...)

	if _, err := h.Signals.SetHandler(sig, h.Executor.CancelHandler()); err != nil {
		return nil, fmt.Errorf("register %v handler: %w", sig, err)
	}
	return h, nil
}

// Signal returns the interrupt signal.
func (h *Host) Signal() os.Signal {
	return h.signal
}

// Start begins delivering the interrupt signal and any extra signals.
func (h *Host) Start(extra ...os.Signal) error {
	return h.Dispatcher.Start(append([]os.Signal{h.signal}, extra...)...)
}

// Stop stops signal delivery.
func (h *Host) Stop() {
	h.Dispatcher.Stop()
}
