package host

import (
	"errors"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/randomizedcoder/geointerrupt/internal/logging"
	"github.com/randomizedcoder/geointerrupt/internal/metrics"
	"github.com/randomizedcoder/geointerrupt/internal/queue"
)

// ErrDispatcherStarted is returned by Start when the dispatcher is running.
var ErrDispatcherStarted = errors.New("host: dispatcher already started")

// SignalSource abstracts OS signal registration so tests can inject signals.
type SignalSource interface {
	// Notify registers c to receive the given signals.
	Notify(c chan<- os.Signal, sig ...os.Signal)
	// Stop stops delivery to c.
	Stop(c chan<- os.Signal)
}

// osSignalSource delegates to os/signal.
type osSignalSource struct{}

func (osSignalSource) Notify(c chan<- os.Signal, sig ...os.Signal) { signal.Notify(c, sig...) }
func (osSignalSource) Stop(c chan<- os.Signal)                     { signal.Stop(c) }

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithSignalSource replaces os/signal as the source of signals.
func WithSignalSource(src SignalSource) DispatcherOption {
	return func(d *Dispatcher) {
		if src != nil {
			d.source = src
		}
	}
}

// WithDeferred selects deferred delivery: received signals are queued until
// DispatchQueued runs. q holds them; nil uses a 64-slot channel queue.
func WithDeferred(deferred bool, q queue.Queue[os.Signal]) DispatcherOption {
	return func(d *Dispatcher) {
		d.deferred = deferred
		if q != nil {
			d.queue = q
		}
	}
}

// WithDispatcherLogger sets the dispatcher's logger.
func WithDispatcherLogger(log *logrus.Entry) DispatcherOption {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// Dispatcher delivers OS signals to a SignalTable.
//
// In synchronous mode a received signal is dispatched immediately on the
// dispatcher goroutine. In deferred mode it is queued, and the handler runs
// only when some checkpoint calls DispatchQueued.
type Dispatcher struct {
	table    *SignalTable
	source   SignalSource
	deferred bool
	queue    queue.Queue[os.Signal]
	log      *logrus.Entry

	draining atomic.Bool

	mu      sync.Mutex
	ch      chan os.Signal
	stop    chan struct{}
	stopped chan struct{}
}

// NewDispatcher creates a Dispatcher for table. Delivery is deferred by
// default only where the platform requires it.
func NewDispatcher(table *SignalTable, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		table:    table,
		source:   osSignalSource{},
		deferred: DeferredDelivery,
		log:      logging.Discard(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.queue == nil {
		d.queue = queue.NewChannel[os.Signal](64)
	}
	return d
}

// Deferred reports whether delivery is deferred.
func (d *Dispatcher) Deferred() bool {
	return d.deferred
}

// Start subscribes to sigs and begins delivering them.
func (d *Dispatcher) Start(sigs ...os.Signal) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ch != nil {
		return ErrDispatcherStarted
	}

	d.ch = make(chan os.Signal, 8)
	d.stop = make(chan struct{})
	d.stopped = make(chan struct{})
	d.source.Notify(d.ch, sigs...)

	go d.loop(d.ch, d.stop, d.stopped)

	d.log.WithFields(logrus.Fields{"signals": sigs, "deferred": d.deferred}).Debug("signal dispatcher started")
	return nil
}

// Stop unsubscribes and waits for the delivery goroutine to exit. Signals
// still queued for deferred delivery stay queued.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	ch, stop, stopped := d.ch, d.stop, d.stopped
	d.ch, d.stop, d.stopped = nil, nil, nil
	d.mu.Unlock()
	if ch == nil {
		return
	}

	d.source.Stop(ch)
	close(stop)
	<-stopped
	d.log.Debug("signal dispatcher stopped")
}

func (d *Dispatcher) loop(ch <-chan os.Signal, stop <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	for {
		select {
		case sig := <-ch:
			d.Raise(sig)
		case <-stop:
			return
		}
	}
}

// Raise delivers sig in-process, through the same path as an OS signal. In
// synchronous mode the handler runs on the calling goroutine.
func (d *Dispatcher) Raise(sig os.Signal) {
	if !d.deferred {
		metrics.SignalReceived(sig.String(), "sync")
		d.table.Dispatch(sig)
		return
	}

	metrics.SignalReceived(sig.String(), "deferred")
	if !d.queue.Push(sig) {
		metrics.SignalDropped()
		d.log.WithField("signal", sig.String()).Warn("deferred signal queue full, signal dropped")
	}
}

// Pending reports whether deferred signals are waiting for dispatch.
func (d *Dispatcher) Pending() bool {
	return d.queue.Len() > 0
}

// DispatchQueued delivers every queued signal and returns how many ran.
//
// Only one caller drains at a time; a concurrent call returns 0 at once
// rather than wait, since the active drain will deliver the signals.
func (d *Dispatcher) DispatchQueued() int {
	if !d.draining.CompareAndSwap(false, true) {
		return 0
	}
	defer d.draining.Store(false)

	n := 0
	for {
		sig, ok := d.queue.Pop()
		if !ok {
			return n
		}
		d.table.Dispatch(sig)
		n++
	}
}
