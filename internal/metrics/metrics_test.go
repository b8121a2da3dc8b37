package metrics_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/randomizedcoder/geointerrupt/internal/metrics"
)

func TestRegistryExposesMetrics(t *testing.T) {
	metrics.EmitBuildInfo(false)
	metrics.SignalReceived("interrupt", "sync")
	metrics.SignalDropped()
	metrics.UnitReset()
	metrics.SetModuleLoaded(true)
	metrics.QueryFinished("canceled")
	metrics.QueryFinished("")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("unexpected status code from metrics handler: %d", rec.Code)
	}

	body := rec.Body.String()
	for _, want := range []string{
		`geointerrupt_signals_received_total{mode="sync",signal="interrupt"}`,
		"geointerrupt_signals_dropped_total",
		"geointerrupt_unit_resets_total",
		"geointerrupt_module_loaded 1",
		`geointerrupt_queries_total{outcome="canceled"}`,
		`geointerrupt_queries_total{outcome="unknown"}`,
		"geointerrupt_build_info{",
		`wagyu="false"`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %q in body:\n%s", want, body)
		}
	}
}
