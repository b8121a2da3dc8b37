package module_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/sirupsen/logrus"
	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/randomizedcoder/geointerrupt/internal/cancel"
	"github.com/randomizedcoder/geointerrupt/internal/checkpoint"
	"github.com/randomizedcoder/geointerrupt/internal/host"
	"github.com/randomizedcoder/geointerrupt/internal/module"
	"github.com/randomizedcoder/geointerrupt/internal/relay"
	"github.com/randomizedcoder/geointerrupt/internal/workload"
)

type flags struct {
	geos, wagyu, lwgeom *cancel.Flag
}

func newFlags() flags {
	return flags{
		geos:   cancel.NewFlag("geos"),
		wagyu:  cancel.NewFlag("wagyu"),
		lwgeom: cancel.NewFlag("lwgeom"),
	}
}

func (f flags) endpoints() []cancel.Endpoint {
	return []cancel.Endpoint{f.geos, f.wagyu, f.lwgeom}
}

func (f flags) all() []*cancel.Flag {
	return []*cancel.Flag{f.geos, f.wagyu, f.lwgeom}
}

func noHandlers(*logrus.Entry) error { return nil }

func newHost(t *testing.T, deferred bool) *host.Host {
	t.Helper()
	h, err := host.New(host.Options{Deferred: &deferred})
	assert.NilError(t, err)
	return h
}

func newModule(h *host.Host, f flags, opts ...module.Option) *module.Module {
	base := []module.Option{
		module.WithEndpoints(f.endpoints()...),
		module.WithHandlerInstaller(noHandlers),
	}
	return module.New(h.Signals, h.Executor, append(base, opts...)...)
}

func TestInitFini_RestoresHandlerAndHook(t *testing.T) {
	h := newHost(t, false)
	origHandler := h.Signals.Handler(os.Interrupt)
	origHook := host.StartHookFunc(func(q *host.QueryDesc, flags host.ExecFlags) {
		h.Executor.StandardStart(q, flags)
	})
	h.Executor.SetStartHook(origHook)

	m := newModule(h, newFlags())
	assert.NilError(t, m.Init())
	assert.Assert(t, m.Loaded())

	_, isRelay := h.Signals.Handler(os.Interrupt).(*relay.Relay)
	assert.Assert(t, isRelay, "expected relay installed for SIGINT")
	assert.Assert(t, h.Executor.StartHook() != nil)

	assert.NilError(t, m.Fini())
	assert.Assert(t, !m.Loaded())
	assert.Assert(t, h.Signals.Handler(os.Interrupt) == origHandler, "expected original handler restored")
	_, stillFunc := h.Executor.StartHook().(host.StartHookFunc)
	assert.Assert(t, stillFunc, "expected original hook restored")
}

func TestInitFini_RestoresDefaultDisposition(t *testing.T) {
	table := host.NewSignalTable(nil)
	x := host.NewExecutor(nil)

	m := module.New(table, x,
		module.WithEndpoints(newFlags().endpoints()...),
		module.WithHandlerInstaller(noHandlers))
	assert.NilError(t, m.Init())
	assert.NilError(t, m.Fini())

	assert.Assert(t, host.IsDefault(table.Handler(os.Interrupt)))
	assert.Assert(t, x.StartHook() == nil)
}

func TestInit_Twice(t *testing.T) {
	h := newHost(t, false)
	m := newModule(h, newFlags())
	assert.NilError(t, m.Init())
	defer m.Fini()

	err := m.Init()
	assert.Assert(t, errors.Is(err, module.ErrLoaded))
}

func TestFini_NotLoaded(t *testing.T) {
	h := newHost(t, false)
	m := newModule(h, newFlags())
	assert.NilError(t, m.Fini())

	assert.NilError(t, m.Init())
	assert.NilError(t, m.Fini())
	assert.NilError(t, m.Fini())
}

func TestInitFini_Reload(t *testing.T) {
	h := newHost(t, false)
	orig := h.Signals.Handler(os.Interrupt)
	m := newModule(h, newFlags())

	for i := 0; i < 3; i++ {
		assert.NilError(t, m.Init())
		assert.NilError(t, m.Fini())
	}
	assert.Assert(t, h.Signals.Handler(os.Interrupt) == orig)
}

func TestSignal_ReachesEveryEndpointAndHost(t *testing.T) {
	h := newHost(t, false)
	f := newFlags()
	m := newModule(h, f)
	assert.NilError(t, m.Init())
	defer m.Fini()

	var seen []bool
	q := host.NewQuery("SELECT ST_Union(geom)", func(ctx context.Context, x *host.Executor, q *host.QueryDesc) error {
		h.Dispatcher.Raise(os.Interrupt)
		for _, fl := range f.all() {
			seen = append(seen, fl.Interrupted())
		}
		return nil
	})

	err := h.Executor.Execute(context.Background(), q, 0)
	assert.Assert(t, errors.Is(err, host.ErrQueryCanceled), "got %v", err)
	assert.DeepEqual(t, seen, []bool{true, true, true})
}

func TestUnitStart_ClearsStaleInterrupt(t *testing.T) {
	h := newHost(t, false)
	f := newFlags()
	m := newModule(h, f)
	assert.NilError(t, m.Init())
	defer m.Fini()

	// Interrupt arrives while idle: flags set, host handler ignores it
	h.Dispatcher.Raise(os.Interrupt)
	for _, fl := range f.all() {
		assert.Assert(t, fl.Interrupted(), "%s not set", fl.Name())
	}

	var seen []bool
	q := host.NewQuery("SELECT 1", func(ctx context.Context, x *host.Executor, q *host.QueryDesc) error {
		for _, fl := range f.all() {
			seen = append(seen, fl.Interrupted())
		}
		return nil
	})
	assert.NilError(t, h.Executor.Execute(context.Background(), q, 0))
	assert.DeepEqual(t, seen, []bool{false, false, false})
}

func TestFini_StaleFlagsRemainUntilNextUnit(t *testing.T) {
	h := newHost(t, false)
	f := newFlags()
	m := newModule(h, f)
	assert.NilError(t, m.Init())

	h.Dispatcher.Raise(os.Interrupt)
	assert.NilError(t, m.Fini())

	// Unload does not clear pending requests
	assert.Assert(t, f.geos.Interrupted())

	// and signals after unload no longer reach the subsystems
	f.geos.CancelInterrupt()
	h.Dispatcher.Raise(os.Interrupt)
	assert.Assert(t, !f.geos.Interrupted())
}

func TestInit_HandlerInstallFailureRollsBack(t *testing.T) {
	h := newHost(t, false)
	orig := h.Signals.Handler(os.Interrupt)
	boom := errors.New("boom")

	m := newModule(h, newFlags(), module.WithHandlerInstaller(func(*logrus.Entry) error { return boom }))
	err := m.Init()
	assert.Assert(t, errors.Is(err, boom), "got %v", err)
	assert.Assert(t, !m.Loaded())
	assert.Assert(t, h.Signals.Handler(os.Interrupt) == orig, "expected relay rolled back")
	assert.Assert(t, h.Executor.StartHook() == nil, "expected hook not installed")
}

func TestInit_RelayInstallFailure(t *testing.T) {
	h := newHost(t, false)
	m := newModule(h, newFlags(), module.WithSignal(syscall.SIGKILL))

	err := m.Init()
	assert.Assert(t, errors.Is(err, host.ErrUncatchable), "got %v", err)
	assert.Assert(t, !m.Loaded())
	assert.Assert(t, h.Executor.StartHook() == nil)
}

// failingTable refuses handler changes once armed.
type failingTable struct {
	*host.SignalTable
	armed bool
}

var errRefused = errors.New("refused")

func (t *failingTable) SetHandler(sig os.Signal, h host.Handler) (host.Handler, error) {
	if t.armed {
		return nil, errRefused
	}
	return t.SignalTable.SetHandler(sig, h)
}

func TestFini_RestoresHookWhenHandlerRestoreFails(t *testing.T) {
	table := &failingTable{SignalTable: host.NewSignalTable(nil)}
	x := host.NewExecutor(nil)
	m := module.New(table, x,
		module.WithEndpoints(newFlags().endpoints()...),
		module.WithHandlerInstaller(noHandlers))
	assert.NilError(t, m.Init())

	table.armed = true
	err := m.Fini()
	assert.Assert(t, errors.Is(err, errRefused), "got %v", err)
	assert.Assert(t, x.StartHook() == nil, "expected hook restored despite handler failure")
	assert.Assert(t, m.Loaded(), "module must stay loaded while the relay is still installed")
	_, isRelay := table.Handler(os.Interrupt).(*relay.Relay)
	assert.Assert(t, isRelay)

	// Retrying once the host accepts the change restores the handler
	table.armed = false
	assert.NilError(t, m.Fini())
	assert.Assert(t, !m.Loaded())
	assert.Assert(t, host.IsDefault(table.Handler(os.Interrupt)), "expected original handler restored")
	assert.Assert(t, x.StartHook() == nil)

	// and the module can be loaded again
	assert.NilError(t, m.Init())
	assert.NilError(t, m.Fini())
	assert.Assert(t, host.IsDefault(table.Handler(os.Interrupt)))
}

func TestFini_RetryLogsGoodbyeOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)

	table := &failingTable{SignalTable: host.NewSignalTable(nil)}
	m := module.New(table, host.NewExecutor(nil),
		module.WithEndpoints(newFlags().endpoints()...),
		module.WithHandlerInstaller(noHandlers),
		module.WithLogger(logrus.NewEntry(logger)))
	assert.NilError(t, m.Init())

	table.armed = true
	assert.Assert(t, m.Fini() != nil)
	table.armed = false
	assert.NilError(t, m.Fini())

	assert.Equal(t, strings.Count(buf.String(), "Goodbye from geointerrupt"), 1)
}

func TestFini_LogsGoodbye(t *testing.T) {
	var buf bytes.Buffer
	logger := logrus.New()
	logger.SetOutput(&buf)
	logger.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})

	h := newHost(t, false)
	m := newModule(h, newFlags(),
		module.WithLogger(logrus.NewEntry(logger)),
		module.WithVersion("3.4.2"))
	assert.NilError(t, m.Init())
	assert.NilError(t, m.Fini())

	assert.Assert(t, is.Contains(buf.String(), "Goodbye from geointerrupt 3.4.2"))
}

func TestInit_PassesLoggerToHandlerInstaller(t *testing.T) {
	h := newHost(t, false)
	logger := logrus.NewEntry(logrus.New())
	var got *logrus.Entry

	m := newModule(h, newFlags(),
		module.WithLogger(logger),
		module.WithHandlerInstaller(func(l *logrus.Entry) error {
			got = l
			return nil
		}))
	assert.NilError(t, m.Init())
	defer m.Fini()
	assert.Assert(t, got == logger)
}

func TestDeferredDispatch_DrainsOnCheck(t *testing.T) {
	h := newHost(t, true)
	f := newFlags()
	m := newModule(h, f,
		module.WithDeferredDispatch(h.Dispatcher),
		module.WithCallbackTargets(f.geos, f.lwgeom))
	assert.NilError(t, m.Init())

	h.Dispatcher.Raise(os.Interrupt)
	assert.Assert(t, h.Dispatcher.Pending())
	assert.Assert(t, !f.geos.Interrupted(), "deferred signal delivered before any checkpoint")

	// A subsystem checkpoint flushes the queue through the relay
	assert.Assert(t, f.geos.Check())
	assert.Assert(t, !h.Dispatcher.Pending())
	for _, fl := range f.all() {
		assert.Assert(t, fl.Interrupted(), "%s not set", fl.Name())
	}

	assert.NilError(t, m.Fini())

	// Callbacks are gone after unload
	for _, fl := range f.all() {
		fl.CancelInterrupt()
	}
	h.Dispatcher.Raise(os.Interrupt)
	assert.Assert(t, !f.lwgeom.Check())
	assert.Assert(t, h.Dispatcher.Pending())
}

func TestDeferredDispatch_RestoresPreviousCallback(t *testing.T) {
	h := newHost(t, true)
	f := newFlags()
	calls := 0
	f.geos.RegisterCallback(func() { calls++ })

	m := newModule(h, f,
		module.WithDeferredDispatch(h.Dispatcher),
		module.WithCallbackTargets(f.geos))
	assert.NilError(t, m.Init())
	f.geos.Check()
	assert.Equal(t, calls, 0)
	assert.NilError(t, m.Fini())

	f.geos.Check()
	assert.Equal(t, calls, 1)
}

func TestQueryInterruptedMidWorkload(t *testing.T) {
	h := newHost(t, false)
	f := newFlags()
	m := newModule(h, f)
	assert.NilError(t, m.Init())
	defer m.Fini()

	const steps = 1000
	var done int
	q := host.NewQuery("SELECT ST_Buffer(geom, 100)", func(ctx context.Context, x *host.Executor, q *host.QueryDesc) error {
		var err error
		done, err = workload.Run(ctx, f.geos, checkpoint.NewBatch(8), steps, func(i int) error {
			if i == 100 {
				h.Dispatcher.Raise(os.Interrupt)
			}
			return nil
		})
		return err
	})

	err := h.Executor.Execute(context.Background(), q, 0)
	assert.Assert(t, errors.Is(err, host.ErrQueryCanceled), "got %v", err)
	assert.Assert(t, errors.Is(err, workload.ErrInterrupted), "got %v", err)
	assert.Assert(t, done > 100 && done <= 100+8, "stopped at step %d", done)
	assert.Assert(t, strings.Contains(err.Error(), "canceling statement due to user request"))

	// The next query starts clean
	q2 := host.NewQuery("SELECT ST_Area(geom)", func(ctx context.Context, x *host.Executor, q *host.QueryDesc) error {
		_, err := workload.Run(ctx, f.geos, checkpoint.Always{}, 10, nil)
		return err
	})
	assert.NilError(t, h.Executor.Execute(context.Background(), q2, 0))
}
