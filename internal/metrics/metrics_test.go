package metrics

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersWithoutPanicking(t *testing.T) {
	m := New()
	m.StreamChunks.WithLabelValues("content").Inc()
	m.ToolDispatch.WithLabelValues("bash", "ok").Inc()
	m.ChildSpawned.Inc()
	m.ChildCompleted.WithLabelValues("done").Inc()
	m.ChildrenActive.Set(2)

	if got := testutil.ToFloat64(m.ChildSpawned); got != 1 {
		t.Fatalf("ChildSpawned = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.ChildrenActive); got != 2 {
		t.Fatalf("ChildrenActive = %v, want 2", got)
	}
}

func TestServeShutsDownOnContextCancel(t *testing.T) {
	m := New()
	m.ChildSpawned.Inc()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Serve(ctx, "127.0.0.1:0") }()

	// Serve binds an ephemeral port only for this smoke test's sake; the
	// handler itself is exercised by TestServeHandlerServesRegisteredMetrics.
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not shut down after context cancellation")
	}
}

func TestServeHandlerServesRegisteredMetrics(t *testing.T) {
	m := New()
	m.ChildSpawned.Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "egg_child_spawned_total") {
		t.Fatalf("expected egg_child_spawned_total in body, got:\n%s", rec.Body.String())
	}
}
