//go:build !windows

package host_test

import (
	"os"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/randomizedcoder/geointerrupt/internal/host"
)

// TestDispatcher_RealSignal delivers a real SIGUSR1 to the test process.
func TestDispatcher_RealSignal(t *testing.T) {
	tbl := host.NewSignalTable(nil)
	h := newCountingHandler()
	if _, err := tbl.SetHandler(unix.SIGUSR1, h); err != nil {
		t.Fatal(err)
	}

	d := host.NewDispatcher(tbl, host.WithDeferred(false, nil))
	if err := d.Start(unix.SIGUSR1); err != nil {
		t.Fatal(err)
	}
	defer d.Stop()

	if err := unix.Kill(unix.Getpid(), unix.SIGUSR1); err != nil {
		t.Fatalf("kill: %v", err)
	}
	if sig := waitSignal(t, h); sig != os.Signal(unix.SIGUSR1) {
		t.Errorf("expected SIGUSR1, got %v", sig)
	}
}
