package observability

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	metrics.DecisionsTotal.WithLabelValues("check", "allowed").Inc()
	metrics.DecisionsTotal.WithLabelValues("check", "allowed").Inc()
	metrics.DecisionsTotal.WithLabelValues("check", "denied").Inc()
	metrics.CacheHitsTotal.Inc()
	metrics.UnknownPermissionsTotal.WithLabelValues("warehouse").Inc()

	if got := testutil.ToFloat64(metrics.DecisionsTotal.WithLabelValues("check", "allowed")); got != 2 {
		t.Errorf("allowed decisions = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.CacheHitsTotal); got != 1 {
		t.Errorf("cache hits = %v, want 1", got)
	}

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if !strings.HasPrefix(f.GetName(), "mesauthz_") {
			t.Errorf("metric %s lacks the mesauthz_ prefix", f.GetName())
		}
	}
}

func TestNewMetrics_DoubleRegistrationPanics(t *testing.T) {
	registry := prometheus.NewRegistry()
	NewMetrics(registry)

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	NewMetrics(registry)
}

func TestHTTPMetricsMiddleware_UsesRouteTemplate(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(metrics))
	router.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/"+id, nil))
	}

	got := testutil.ToFloat64(metrics.HTTPRequestsTotal.WithLabelValues("GET", "/users/{id}", "403"))
	if got != 3 {
		t.Errorf("requests for /users/{id} = %v, want 3", got)
	}
}

func TestMetricsHandler(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := NewMetrics(registry)
	metrics.SnapshotReloadsTotal.Inc()

	server := httptest.NewServer(MetricsHandler(registry))
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "mesauthz_snapshot_reloads_total 1") {
		t.Errorf("metrics output missing reload counter:\n%s", body)
	}
}
