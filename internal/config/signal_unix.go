//go:build !windows

package config

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ParseSignal maps a signal name such as "SIGINT" or "usr1" to a signal.
func ParseSignal(name string) (os.Signal, error) {
	n := normalizeSignalName(name)
	sig := unix.SignalNum(n)
	if sig == 0 {
		return nil, fmt.Errorf("unknown signal %q", name)
	}
	return sig, nil
}
