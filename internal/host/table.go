package host

import (
	"errors"
	"fmt"
	"os"
	"sync"
)

// ErrUncatchable is returned when registering a handler for a signal the
// platform never delivers to the process.
var ErrUncatchable = errors.New("host: signal cannot be caught")

// SignalTable holds the active handler for each signal.
//
// SetHandler mirrors pqsignal/signal(2): it installs a handler and returns
// the one it replaced. Registration happens at module load and unload, which
// the host serializes; Dispatch may run concurrently with either.
type SignalTable struct {
	mu            sync.RWMutex
	handlers      map[os.Signal]Handler
	defaultAction func(os.Signal)
}

// NewSignalTable creates a table where every signal has SigDefault.
// defaultAction, if non-nil, runs when a signal with SigDefault is dispatched.
func NewSignalTable(defaultAction func(os.Signal)) *SignalTable {
	return &SignalTable{
		handlers:      make(map[os.Signal]Handler),
		defaultAction: defaultAction,
	}
}

// Handler returns the active handler for sig.
func (t *SignalTable) Handler(sig os.Signal) Handler {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if h, ok := t.handlers[sig]; ok {
		return h
	}
	return SigDefault
}

// SetHandler makes h the active handler for sig and returns the previous one.
// A nil h is stored as SigDefault.
func (t *SignalTable) SetHandler(sig os.Signal, h Handler) (Handler, error) {
	if sig == nil {
		return nil, fmt.Errorf("%w: nil signal", ErrUncatchable)
	}
	if uncatchable(sig) {
		return nil, fmt.Errorf("%w: %v", ErrUncatchable, sig)
	}
	if h == nil {
		h = SigDefault
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	prev, ok := t.handlers[sig]
	if !ok {
		prev = SigDefault
	}
	t.handlers[sig] = h
	return prev, nil
}

// Dispatch runs the active handler for sig on the calling goroutine.
func (t *SignalTable) Dispatch(sig os.Signal) {
	h := t.Handler(sig)
	switch {
	case IsIgnore(h):
	case IsDefault(h):
		if t.defaultAction != nil {
			t.defaultAction(sig)
		}
	default:
		h.HandleSignal(sig)
	}
}
