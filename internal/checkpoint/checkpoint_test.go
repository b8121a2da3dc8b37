package checkpoint_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/randomizedcoder/geointerrupt/internal/checkpoint"
)

func TestBatch(t *testing.T) {
	p := checkpoint.NewBatch(3)

	got := []bool{p.Due(), p.Due(), p.Due(), p.Due(), p.Due(), p.Due()}
	want := []bool{false, false, true, false, false, true}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("call %d: expected Due() = %v, got %v", i+1, want[i], got[i])
		}
	}
}

func TestBatch_Reset(t *testing.T) {
	p := checkpoint.NewBatch(2)
	p.Due()
	p.Reset()

	if p.Due() {
		t.Error("expected Due() = false on first call after Reset()")
	}
	if !p.Due() {
		t.Error("expected Due() = true on second call after Reset()")
	}
}

func TestBatch_MinimumOne(t *testing.T) {
	p := checkpoint.NewBatch(0)
	if p.Every() != 1 {
		t.Errorf("expected Every() = 1, got %d", p.Every())
	}
	if !p.Due() || !p.Due() {
		t.Error("expected every call due with batch size 1")
	}
}

func TestInterval(t *testing.T) {
	interval := 50 * time.Millisecond
	p := checkpoint.NewInterval(interval)

	// Should not be due immediately
	if p.Due() {
		t.Error("expected Due() = false immediately after creation")
	}

	// Wait for interval + buffer
	time.Sleep(interval + 20*time.Millisecond)

	if !p.Due() {
		t.Error("expected Due() = true after interval elapsed")
	}

	// Should not be due again immediately
	if p.Due() {
		t.Error("expected Due() = false immediately after checkpoint")
	}
}

func TestInterval_Reset(t *testing.T) {
	interval := 50 * time.Millisecond
	p := checkpoint.NewInterval(interval)

	time.Sleep(interval + 20*time.Millisecond)
	p.Reset()

	if p.Due() {
		t.Error("expected Due() = false after Reset()")
	}
	if p.Interval() != interval {
		t.Errorf("expected Interval() = %v, got %v", interval, p.Interval())
	}
}

// TestInterval_Race checks that concurrent pollers see one checkpoint per
// interval. Run with: go test -race ./internal/checkpoint
func TestInterval_Race(t *testing.T) {
	p := checkpoint.NewInterval(time.Hour)
	var due atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				if p.Due() {
					due.Add(1)
				}
			}
		}()
	}
	wg.Wait()

	if due.Load() != 0 {
		t.Errorf("expected no checkpoints within an hour, got %d", due.Load())
	}
}

// Test that all implementations satisfy the interface
func TestPacerInterface(t *testing.T) {
	testCases := []struct {
		name string
		p    checkpoint.Pacer
	}{
		{"Always", checkpoint.Always{}},
		{"Batch", checkpoint.NewBatch(1)},
		{"Interval", checkpoint.NewInterval(0)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			tc.p.Reset()
			if !tc.p.Due() {
				t.Error("expected Due() = true with zero pacing")
			}
		})
	}
}
