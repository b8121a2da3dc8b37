// Package workload runs a long subsystem computation as a loop of steps that
// polls its interrupt endpoint at paced checkpoints. It is the subsystem side
// of cooperative cancellation: the relay only sets the flag, this loop is
// where a computation notices it and stops.
package workload

import (
	"context"
	"errors"
	"fmt"

	"github.com/randomizedcoder/geointerrupt/internal/cancel"
	"github.com/randomizedcoder/geointerrupt/internal/checkpoint"
)

// ErrInterrupted is returned when the endpoint reported a pending interrupt
// at a checkpoint.
var ErrInterrupted = errors.New("workload: interrupted")

// StepFunc performs one unit of computation.
type StepFunc func(i int) error

// Run executes steps calls of step. At every checkpoint the pacer marks as
// due, it polls checker and ctx. It returns the number of completed steps.
func Run(ctx context.Context, checker cancel.Checker, pacer checkpoint.Pacer, steps int, step StepFunc) (int, error) {
	if pacer == nil {
		pacer = checkpoint.Always{}
	}
	pacer.Reset()

	for i := 0; i < steps; i++ {
		if pacer.Due() {
			if checker != nil && checker.Check() {
				return i, fmt.Errorf("%w at step %d", ErrInterrupted, i)
			}
			if err := ctx.Err(); err != nil {
				return i, err
			}
		}
		if step != nil {
			if err := step(i); err != nil {
				return i, fmt.Errorf("step %d: %w", i, err)
			}
		}
	}
	return steps, nil
}
