package cli

import (
	stdcontext "context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/randomizedcoder/geointerrupt/internal/broadcast"
	"github.com/randomizedcoder/geointerrupt/internal/cancel"
	"github.com/randomizedcoder/geointerrupt/internal/checkpoint"
	"github.com/randomizedcoder/geointerrupt/internal/host"
	"github.com/randomizedcoder/geointerrupt/internal/queue"
	"github.com/randomizedcoder/geointerrupt/internal/relay"
)

var (
	sinkBool bool
	sinkSig  os.Signal
)

func newBenchCmd() *cobra.Command {
	var iterations int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure interrupt polling and relay costs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if iterations < 1 {
				return fmt.Errorf("iterations must be positive, got %d", iterations)
			}
			out := cmd.OutOrStdout()
			benchPoll(out, iterations)
			benchRelay(out, iterations)
			return benchQueue(out, iterations)
		},
	}
	cmd.Flags().IntVarP(&iterations, "iterations", "n", 10_000_000, "Number of iterations")
	return cmd
}

func perOp(d time.Duration, n int) float64 {
	return float64(d.Nanoseconds()) / float64(n)
}

// benchPoll compares the subsystem's checkpoint poll with context polling.
func benchPoll(out io.Writer, n int) {
	fmt.Fprintf(out, "Benchmarking interrupt poll (%d iterations)\n", n)
	fmt.Fprintln(out, "─────────────────────────────────────────────────")

	ctx, cancelCtx := stdcontext.WithCancel(stdcontext.Background())
	defer cancelCtx()
	start := time.Now()
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			sinkBool = true
		default:
		}
	}
	ctxDur := time.Since(start)

	flag := cancel.NewFlag("geos")
	start = time.Now()
	for i := 0; i < n; i++ {
		sinkBool = flag.Check()
	}
	flagDur := time.Since(start)

	batch := checkpoint.NewBatch(1024)
	start = time.Now()
	for i := 0; i < n; i++ {
		if batch.Due() {
			sinkBool = flag.Check()
		}
	}
	batchDur := time.Since(start)

	ctxPerOp := perOp(ctxDur, n)
	flagPerOp := perOp(flagDur, n)
	batchPerOp := perOp(batchDur, n)

	fmt.Fprintf(out, "\nResults:\n")
	fmt.Fprintf(out, "  Context:       %v (%.2f ns/op)\n", ctxDur, ctxPerOp)
	fmt.Fprintf(out, "  Flag:          %v (%.2f ns/op)\n", flagDur, flagPerOp)
	fmt.Fprintf(out, "  Flag (batch):  %v (%.2f ns/op)\n", batchDur, batchPerOp)
	fmt.Fprintf(out, "\n  Speedup:  %.2fx (flag), %.2fx (batch)\n\n", ctxPerOp/flagPerOp, ctxPerOp/batchPerOp)
}

// benchRelay measures a full interrupt delivery through the relay against
// a plain broadcast.
func benchRelay(out io.Writer, n int) {
	fmt.Fprintf(out, "Benchmarking interrupt delivery (%d iterations)\n", n)
	fmt.Fprintln(out, "─────────────────────────────────────────────────")

	flags := []cancel.Endpoint{cancel.NewFlag("geos"), cancel.NewFlag("wagyu"), cancel.NewFlag("lwgeom")}
	bc := broadcast.New(flags...)

	start := time.Now()
	for i := 0; i < n; i++ {
		bc.RequestInterrupt()
		bc.CancelInterrupt()
	}
	bcDur := time.Since(start)

	table := host.NewSignalTable(nil)
	var prev cancel.Flag
	_, _ = table.SetHandler(os.Interrupt, host.HandlerFunc(func(os.Signal) { prev.RequestInterrupt() }))
	r := relay.New(table, os.Interrupt, bc)
	if err := r.Install(); err != nil {
		fmt.Fprintf(out, "  relay install failed: %v\n\n", err)
		return
	}
	defer r.Uninstall()

	start = time.Now()
	for i := 0; i < n; i++ {
		table.Dispatch(os.Interrupt)
		bc.CancelInterrupt()
	}
	relayDur := time.Since(start)

	fmt.Fprintf(out, "\nResults (request + cancel per iteration, %d endpoints):\n", bc.Len())
	fmt.Fprintf(out, "  Broadcast:        %v (%.2f ns/op)\n", bcDur, perOp(bcDur, n))
	fmt.Fprintf(out, "  Relay + chain:    %v (%.2f ns/op)\n\n", relayDur, perOp(relayDur, n))
}

// benchQueue compares the deferred signal queues.
func benchQueue(out io.Writer, n int) error {
	fmt.Fprintf(out, "Benchmarking deferred signal queue (%d iterations)\n", n)
	fmt.Fprintln(out, "─────────────────────────────────────────────────")

	ch := queue.NewChannel[os.Signal](64)
	start := time.Now()
	for i := 0; i < n; i++ {
		ch.Push(os.Interrupt)
		sinkSig, _ = ch.Pop()
	}
	chDur := time.Since(start)

	sharded, err := queue.NewSharded[os.Signal](64, 4)
	if err != nil {
		return err
	}
	start = time.Now()
	for i := 0; i < n; i++ {
		sharded.Push(os.Interrupt)
		sinkSig, _ = sharded.Pop()
	}
	shardedDur := time.Since(start)

	chPerOp := perOp(chDur, n)
	shardedPerOp := perOp(shardedDur, n)

	fmt.Fprintf(out, "\nResults (push + pop per iteration):\n")
	fmt.Fprintf(out, "  Channel:  %v (%.2f ns/op)\n", chDur, chPerOp)
	fmt.Fprintf(out, "  Sharded:  %v (%.2f ns/op)\n", shardedDur, shardedPerOp)
	if shardedPerOp < chPerOp {
		fmt.Fprintf(out, "\n  Speedup:  %.2fx (Sharded faster)\n", chPerOp/shardedPerOp)
	} else {
		fmt.Fprintf(out, "\n  Speedup:  %.2fx (Channel faster)\n", shardedPerOp/chPerOp)
	}
	return nil
}
