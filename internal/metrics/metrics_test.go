package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestItemsRecomputed(t *testing.T) {
	c := ItemsRecomputed.WithLabelValues("metrics_test_kind", TriggerSave)
	before := testutil.ToFloat64(c)
	c.Add(3)
	if got := testutil.ToFloat64(c) - before; got != 3 {
		t.Errorf("counter delta = %v, want 3", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	AggregatorFallbacks.Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "reviewd_aggregator_fallbacks_total") {
		t.Error("expected aggregator fallback counter in output")
	}
}
