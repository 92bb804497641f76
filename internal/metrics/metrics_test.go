package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(routeTotal.WithLabelValues("graph_rag"))
	IncRoute("graph_rag")
	IncRoute("graph_rag")
	assert.InDelta(t, before+2, testutil.ToFloat64(routeTotal.WithLabelValues("graph_rag")), 1e-9)

	before = testutil.ToFloat64(routerFallback.WithLabelValues("panic"))
	IncRouterFallback("panic")
	assert.InDelta(t, before+1, testutil.ToFloat64(routerFallback.WithLabelValues("panic")), 1e-9)

	before = testutil.ToFloat64(backendErrors.WithLabelValues("naive_rag", "missing"))
	IncBackendError("naive_rag", "missing")
	assert.InDelta(t, before+1, testutil.ToFloat64(backendErrors.WithLabelValues("naive_rag", "missing")), 1e-9)

	before = testutil.ToFloat64(cacheLookups.WithLabelValues("hit"))
	IncCache("hit")
	assert.InDelta(t, before+1, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")), 1e-9)
}

func TestHandler(t *testing.T) {
	ObservePipeline(time.Now().Add(-time.Second), 2)
	ObserveBackend("no_rag", 20*time.Millisecond)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	for _, name := range []string{
		"queryroute_pipeline_latency_ms",
		"queryroute_subqueries",
		"queryroute_backend_latency_ms",
	} {
		assert.Contains(t, string(body), name)
	}
}
