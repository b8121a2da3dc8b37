//go:build windows

package host

import (
	"os"
	"syscall"
)

func uncatchable(sig os.Signal) bool {
	return sig == syscall.SIGKILL
}
