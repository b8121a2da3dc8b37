//go:build windows

package config

import (
	"fmt"
	"os"
	"syscall"
)

var signals = map[string]os.Signal{
	"SIGINT":  os.Interrupt,
	"SIGTERM": syscall.SIGTERM,
	"SIGHUP":  syscall.SIGHUP,
	"SIGQUIT": syscall.SIGQUIT,
}

// ParseSignal maps a signal name such as "SIGINT" or "term" to a signal.
// Only the console signals Go delivers on Windows are known.
func ParseSignal(name string) (os.Signal, error) {
	sig, ok := signals[normalizeSignalName(name)]
	if !ok {
		return nil, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
