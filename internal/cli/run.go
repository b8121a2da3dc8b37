package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"math"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/randomizedcoder/geointerrupt/internal/checkpoint"
	"github.com/randomizedcoder/geointerrupt/internal/config"
	"github.com/randomizedcoder/geointerrupt/internal/host"
	"github.com/randomizedcoder/geointerrupt/internal/logging"
	"github.com/randomizedcoder/geointerrupt/internal/metrics"
	"github.com/randomizedcoder/geointerrupt/internal/module"
	"github.com/randomizedcoder/geointerrupt/internal/queue"
	"github.com/randomizedcoder/geointerrupt/internal/subsystem"
	"github.com/randomizedcoder/geointerrupt/internal/workload"
)

const metricsShutdownTimeout = 5 * time.Second

type runOptions struct {
	queries         int
	steps           int
	vertices        int
	checkpointEvery int
	checkpointAfter time.Duration
}

func newRunCmd(ctx *context) *cobra.Command {
	opts := runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run queries against a host with the interrupt relay loaded",
		Long: "Load the interrupt relay into a simulated host and execute a series of " +
			"queries, each running a long GEOS computation. The interrupt signal " +
			"(SIGINT by default) cancels the running query; SIGTERM exits.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadConfig()
			if err != nil {
				return err
			}
			return runHost(cmd, cfg, opts)
		},
	}
	cmd.Flags().IntVarP(&opts.queries, "queries", "n", 5, "Number of queries to execute")
	cmd.Flags().IntVar(&opts.steps, "steps", 2_000_000, "Computation steps per query")
	cmd.Flags().IntVar(&opts.vertices, "vertices", 64, "Ring size processed by each step")
	cmd.Flags().IntVar(&opts.checkpointEvery, "checkpoint-every", 1024, "Poll the interrupt flag every N steps")
	cmd.Flags().DurationVar(&opts.checkpointAfter, "checkpoint-interval", 0, "Poll the interrupt flag at most this often instead of every N steps")
	cmd.Flags().StringVar(ctx.metrics, "metrics-addr", "", "Serve Prometheus metrics on this address")
	return cmd
}

func runHost(cmd *cobra.Command, cfg *config.Config, opts runOptions) error {
	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	log := logging.Component(logger, "run")

	sig, err := cfg.InterruptSignal()
	if err != nil {
		return err
	}
	deferred := cfg.Deferred(host.DeferredDelivery)
	q, err := newSignalQueue(cfg)
	if err != nil {
		return err
	}

	h, err := host.New(host.Options{
		Signal:   sig,
		Deferred: &deferred,
		Queue:    q,
		Logger:   logger.WithField("component", "host"),
	})
	if err != nil {
		return err
	}

	modOpts := []module.Option{
		module.WithSignal(sig),
		module.WithLogger(logging.Component(logger, "module")),
		module.WithVersion(Version),
	}
	if deferred {
		modOpts = append(modOpts, module.WithDeferredDispatch(h.Dispatcher))
	}
	m := module.New(h.Signals, h.Executor, modOpts...)
	if err := m.Init(); err != nil {
		return err
	}
	defer func() {
		if err := m.Fini(); err != nil {
			log.WithError(err).Error("module unload failed")
		}
	}()

	runCtx, cancel := stdcontext.WithCancel(cmd.Context())
	defer cancel()

	if cfg.MetricsAddr != "" {
		ln, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return fmt.Errorf("metrics listener: %w", err)
		}
		go serveMetrics(runCtx, ln, log)
		log.WithField("addr", ln.Addr().String()).Info("serving metrics")
	}

	if err := h.Start(); err != nil {
		return err
	}
	defer h.Stop()

	log.WithFields(logrus.Fields{
		"signal":    sig,
		"deferred":  deferred,
		"queue":     cfg.DeferredQueue,
		"endpoints": len(subsystem.Endpoints()),
	}).Info("module loaded, executing queries")

	var ok, canceled int
	for i := 0; i < opts.queries; i++ {
		if runCtx.Err() != nil {
			break
		}
		qd := host.NewQuery(fmt.Sprintf("SELECT ST_Buffer(geom, %d) FROM parcels", i+1), bufferPlan(opts))
		err := h.Executor.Execute(runCtx, qd, 0)
		switch {
		case err == nil:
			ok++
			log.WithFields(logrus.Fields{"query": qd.ID, "elapsed": time.Since(qd.StartedAt())}).Info("query finished")
		case errors.Is(err, host.ErrQueryCanceled):
			canceled++
			log.WithField("query", qd.ID).Warn(err)
		case runCtx.Err() != nil:
			log.WithField("query", qd.ID).Info("terminating")
		default:
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "queries: %d ok, %d canceled\n", ok, canceled)
	return nil
}

func newSignalQueue(cfg *config.Config) (queue.Queue[os.Signal], error) {
	switch cfg.DeferredQueue {
	case config.QueueChannel:
		return queue.NewChannel[os.Signal](cfg.QueueCapacity), nil
	default:
		q, err := queue.NewSharded[os.Signal](cfg.QueueCapacity, cfg.QueueShards)
		if err != nil {
			return nil, fmt.Errorf("deferred signal queue: %w", err)
		}
		return q, nil
	}
}

func newPacer(opts runOptions) checkpoint.Pacer {
	if opts.checkpointAfter > 0 {
		return checkpoint.NewInterval(opts.checkpointAfter)
	}
	return checkpoint.NewBatch(opts.checkpointEvery)
}

var sinkArea float64

// bufferPlan stands in for a GEOS buffer operation: each step computes the
// area of a rotated ring.
func bufferPlan(opts runOptions) host.Plan {
	return func(ctx stdcontext.Context, x *host.Executor, q *host.QueryDesc) error {
		ring := regularRing(opts.vertices)
		var area float64
		_, err := workload.Run(ctx, subsystem.GEOS, newPacer(opts), opts.steps, func(i int) error {
			area += shoelace(ring, float64(i)*1e-6)
			return nil
		})
		sinkArea = area
		switch {
		case err == nil:
		case errors.Is(err, workload.ErrInterrupted):
			subsystem.Notice("geos", "buffer of query %d stopped: %v", q.ID, err)
		default:
			subsystem.Error("geos", fmt.Errorf("buffer of query %d: %w", q.ID, err))
		}
		return err
	}
}

func regularRing(n int) [][2]float64 {
	if n < 3 {
		n = 3
	}
	ring := make([][2]float64, n)
	for i := range ring {
		a := 2 * math.Pi * float64(i) / float64(n)
		ring[i] = [2]float64{math.Cos(a), math.Sin(a)}
	}
	return ring
}

func shoelace(ring [][2]float64, theta float64) float64 {
	sin, cos := math.Sincos(theta)
	var sum float64
	for i := range ring {
		j := (i + 1) % len(ring)
		x1 := ring[i][0]*cos - ring[i][1]*sin
		y1 := ring[i][0]*sin + ring[i][1]*cos
		x2 := ring[j][0]*cos - ring[j][1]*sin
		y2 := ring[j][0]*sin + ring[j][1]*cos
		sum += x1*y2 - x2*y1
	}
	return math.Abs(sum) / 2
}

func serveMetrics(ctx stdcontext.Context, ln net.Listener, log *logrus.Entry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), metricsShutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.WithError(err).Error("metrics server stopped")
	}
}
