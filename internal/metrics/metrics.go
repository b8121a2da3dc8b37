package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	signalsReceived = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geointerrupt",
		Name:      "signals_received_total",
		Help:      "Signals received by the host dispatcher, by delivery mode.",
	}, []string{"signal", "mode"})

	signalsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geointerrupt",
		Name:      "signals_dropped_total",
		Help:      "Deferred signals dropped because the queue was full.",
	})

	unitResets = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "geointerrupt",
		Name:      "unit_resets_total",
		Help:      "Interrupt flag resets performed at the start of a unit of work.",
	})

	moduleLoaded = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "geointerrupt",
		Name:      "module_loaded",
		Help:      "Whether the interrupt relay module is loaded (1=loaded, 0=unloaded).",
	})

	queries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "geointerrupt",
		Name:      "queries_total",
		Help:      "Units of work executed by the host, by outcome.",
	}, []string{"outcome"})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "geointerrupt",
		Name:      "build_info",
		Help:      "Build metadata for the running geointerrupt binary.",
	}, []string{"go_version", "vcs_revision", "wagyu"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(signalsReceived, signalsDropped, unitResets, moduleLoaded, queries, buildInfo)
}

// Registry returns the Prometheus registry containing all geointerrupt metrics.
func Registry() *prometheus.Registry {
	return registry
}

// SignalReceived counts a signal seen by the dispatcher.
func SignalReceived(signal, mode string) {
	signalsReceived.WithLabelValues(signal, mode).Inc()
}

// SignalDropped counts a deferred signal lost to a full queue.
func SignalDropped() {
	signalsDropped.Inc()
}

// UnitReset counts one interrupt reset at unit-of-work start.
func UnitReset() {
	unitResets.Inc()
}

// SetModuleLoaded records whether the module is loaded.
func SetModuleLoaded(loaded bool) {
	value := 0.0
	if loaded {
		value = 1.0
	}
	moduleLoaded.Set(value)
}

// QueryFinished counts a unit of work by outcome.
func QueryFinished(outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	queries.WithLabelValues(outcome).Inc()
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo(wagyu bool) {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs_revision": "",
			"wagyu":        "false",
		}
		if wagyu {
			labels["wagyu"] = "true"
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				if setting.Key == "vcs.revision" {
					labels["vcs_revision"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
