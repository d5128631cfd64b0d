// Package metrics exposes the Prometheus counters and gauges named in
// SPEC_FULL.md §4.14. These are an ambient concern, not a spec.md
// feature: the engine runs identically whether or not a collector is
// ever scraped, grounded on the teacher's internal/observability.Metrics
// (a private struct of promauto-registered vectors rather than the
// global default registry).
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the engine's private metrics surface. It is always
// constructed (New never fails); only the optional HTTP listener in
// Serve is gated on EGG_METRICS_ADDR.
type Metrics struct {
	registry *prometheus.Registry

	StreamChunks    *prometheus.CounterVec
	ToolDispatch    *prometheus.CounterVec
	ChildSpawned    prometheus.Counter
	ChildCompleted  *prometheus.CounterVec
	ChildrenActive  prometheus.Gauge
}

// New registers every metric against a private registry, never the
// global default one, so multiple engines in one process (or in tests)
// never collide on duplicate registration.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		StreamChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egg_stream_chunks_total",
			Help: "Streaming deltas received from the model, by kind (content|reasoning|tool_call|error).",
		}, []string{"kind"}),

		ToolDispatch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egg_tool_dispatch_total",
			Help: "Tool calls dispatched, by tool name and outcome (ok|error|declined).",
		}, []string{"tool", "outcome"}),

		ChildSpawned: factory.NewCounter(prometheus.CounterOpts{
			Name: "egg_child_spawned_total",
			Help: "Child agents spawned via spawn_agent/spawn_agent_auto/spawn_agents.",
		}),

		ChildCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "egg_child_completed_total",
			Help: "Child agents that finished, by terminal status (done|error).",
		}, []string{"status"}),

		ChildrenActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "egg_children_active",
			Help: "Child agents currently spawned but not yet completed.",
		}),
	}
}

// Serve starts an HTTP listener exposing /metrics on addr and blocks
// until ctx is canceled or the listener fails. Callers only invoke this
// when EGG_METRICS_ADDR is set; metrics collection itself (the fields
// above) works regardless of whether Serve ever runs.
func (m *Metrics) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))

	srv := &http.Server{Addr: addr, Handler: mux}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
