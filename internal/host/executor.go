package host

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/randomizedcoder/geointerrupt/internal/cancel"
	"github.com/randomizedcoder/geointerrupt/internal/logging"
	"github.com/randomizedcoder/geointerrupt/internal/metrics"
)

var (
	// ErrQueryCanceled is returned when the host's own cancel handler fired
	// while the query ran.
	ErrQueryCanceled = errors.New("canceling statement due to user request")

	// ErrNotStarted is returned when the pre-execution hook chain returned
	// without reaching the standard start.
	ErrNotStarted = errors.New("host: executor start hook did not start the query")
)

// ExecFlags modify how a query is started.
type ExecFlags uint32

const (
	ExecFlagExplainOnly ExecFlags = 1 << iota
	ExecFlagRewind
	ExecFlagBackward
	ExecFlagMark
	ExecFlagSkipTriggers
	ExecFlagWithNoData
)

// Plan is the body of a query.
type Plan func(ctx context.Context, x *Executor, q *QueryDesc) error

var queryIDs atomic.Uint64

// QueryDesc describes one unit of work.
type QueryDesc struct {
	ID   uint64
	Text string
	Plan Plan

	started   bool
	flags     ExecFlags
	startedAt time.Time
}

// NewQuery creates a QueryDesc with a process-unique ID.
func NewQuery(text string, plan Plan) *QueryDesc {
	return &QueryDesc{
		ID:   queryIDs.Add(1),
		Text: text,
		Plan: plan,
	}
}

// Started reports whether the standard start ran for this query.
func (q *QueryDesc) Started() bool { return q.started }

// Flags returns the flags the query was started with.
func (q *QueryDesc) Flags() ExecFlags { return q.flags }

// StartedAt returns when the standard start ran.
func (q *QueryDesc) StartedAt() time.Time { return q.startedAt }

// StartHook runs before a query executes. Extensions chain hooks by saving
// the one they replace and calling it from their own ExecutorStart.
type StartHook interface {
	ExecutorStart(q *QueryDesc, flags ExecFlags)
}

// StartHookFunc adapts a function to a StartHook.
type StartHookFunc func(q *QueryDesc, flags ExecFlags)

// ExecutorStart calls f(q, flags).
func (f StartHookFunc) ExecutorStart(q *QueryDesc, flags ExecFlags) {
	f(q, flags)
}

// Executor runs queries one at a time.
type Executor struct {
	hookMu sync.RWMutex
	hook   StartHook

	active        atomic.Bool
	cancelPending *cancel.Flag
	onCancel      *cancelHandler
	log           *logrus.Entry
}

// NewExecutor creates an Executor with no start hook installed.
func NewExecutor(log *logrus.Entry) *Executor {
	if log == nil {
		log = logging.Discard()
	}
	x := &Executor{
		cancelPending: cancel.NewFlag("host"),
		log:           log,
	}
	x.onCancel = &cancelHandler{x: x}
	return x
}

// StartHook returns the installed start hook, or nil.
func (x *Executor) StartHook() StartHook {
	x.hookMu.RLock()
	defer x.hookMu.RUnlock()
	return x.hook
}

// SetStartHook installs h; nil removes any hook.
func (x *Executor) SetStartHook(h StartHook) {
	x.hookMu.Lock()
	defer x.hookMu.Unlock()
	x.hook = h
}

// StandardStart is the host's own start behavior, used when no hook is
// installed and by the innermost hook of a chain.
func (x *Executor) StandardStart(q *QueryDesc, flags ExecFlags) {
	q.started = true
	q.flags = flags
	q.startedAt = time.Now()
}

// Execute starts q through the hook chain and runs its plan.
func (x *Executor) Execute(ctx context.Context, q *QueryDesc, flags ExecFlags) error {
	if q == nil {
		return errors.New("host: nil query")
	}

	x.active.Store(true)
	defer x.active.Store(false)

	if h := x.StartHook(); h != nil {
		h.ExecutorStart(q, flags)
	} else {
		x.StandardStart(q, flags)
	}
	if !q.started {
		metrics.QueryFinished("error")
		return fmt.Errorf("query %d: %w", q.ID, ErrNotStarted)
	}

	log := x.log.WithField("query", q.ID)
	if flags&ExecFlagExplainOnly != 0 || q.Plan == nil {
		metrics.QueryFinished("explain")
		log.Debug("query started without execution")
		return nil
	}

	err := q.Plan(ctx, x, q)
	if cerr := x.CheckForInterrupts(); cerr != nil {
		metrics.QueryFinished("canceled")
		log.WithField("elapsed", time.Since(q.startedAt)).Info("query canceled")
		if err != nil {
			return fmt.Errorf("query %d: %w: %w", q.ID, cerr, err)
		}
		return fmt.Errorf("query %d: %w", q.ID, cerr)
	}
	if err != nil {
		metrics.QueryFinished("error")
		return fmt.Errorf("query %d: %w", q.ID, err)
	}
	metrics.QueryFinished("ok")
	return nil
}

// CheckForInterrupts returns ErrQueryCanceled if the host's cancel handler
// fired, consuming the request.
func (x *Executor) CheckForInterrupts() error {
	if x.cancelPending.Interrupted() {
		x.cancelPending.CancelInterrupt()
		return ErrQueryCanceled
	}
	return nil
}

// CancelPending reports whether a host-level cancel is waiting.
func (x *Executor) CancelPending() bool {
	return x.cancelPending.Interrupted()
}

// Active reports whether a query is executing.
func (x *Executor) Active() bool {
	return x.active.Load()
}

// CancelHandler returns the host's own interrupt handler. It marks the
// running query for cancellation; an interrupt while idle is ignored.
func (x *Executor) CancelHandler() Handler {
	return x.onCancel
}

type cancelHandler struct {
	x *Executor
}

func (h *cancelHandler) HandleSignal(os.Signal) {
	if h.x.active.Load() {
		h.x.cancelPending.RequestInterrupt()
	}
}
