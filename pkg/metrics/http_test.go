package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestHTTPMetricsLabelsByRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Observe("/api/v1/cart/items/{id}", "DELETE", 200, 10*time.Millisecond)
	m.Observe("/api/v1/cart/items/{id}", "DELETE", 200, 20*time.Millisecond)
	m.Observe("", "GET", 404, time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "watchfi_http_requests_total", "route", "/api/v1/cart/items/{id}"); err != nil {
		t.Fatalf("fetch requests: %v", err)
	} else if got != 2 {
		t.Fatalf("expected 2 requests, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "watchfi_http_requests_total", "route", "unmatched"); err != nil {
		t.Fatalf("fetch unmatched: %v", err)
	} else if got != 1 {
		t.Fatalf("expected 1 unmatched request, got %f", got)
	}
	if got, err := fetchHistogramSum(mfs, "watchfi_http_request_duration_seconds", "route", "/api/v1/cart/items/{id}"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestNilHTTPMetricsAreSafe(t *testing.T) {
	var m *HTTPMetrics
	m.Observe("/", "GET", 200, time.Millisecond)
	NewHTTPMetrics(nil).Observe("/", "GET", 200, time.Millisecond)
}
