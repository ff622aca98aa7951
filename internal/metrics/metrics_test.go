package metrics

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/api/bets", 200, time.Millisecond)
	m.RateLimited()
	m.RecordEvent("record.created")
	m.PublishFailed()
	m.CacheLookup("records", true)
	m.Export("record.created", nil)
	m.AuthEvent("signed_in")
}

func TestCountersAndHandler(t *testing.T) {
	m := New()
	m.RecordEvent("record.created")
	m.RecordEvent("record.created")
	m.CacheLookup("records", false)
	m.Export("month.cleared", errors.New("boom"))

	if got := testutil.ToFloat64(m.recordEvents.WithLabelValues("record.created")); got != 2 {
		t.Fatalf("expected 2 created events, got %v", got)
	}
	if got := testutil.ToFloat64(m.exports.WithLabelValues("month.cleared", "error")); got != 1 {
		t.Fatalf("expected 1 failed export, got %v", got)
	}

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "bankroll_record_events_total") {
		t.Fatalf("metrics output missing counters: %d", rec.Code)
	}
}

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HealthHandler(func(context.Context) error { return errors.New("db down") }).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable || !strings.Contains(rec.Body.String(), "db down") {
		t.Fatalf("unexpected unhealthy response %d %q", rec.Code, rec.Body.String())
	}

	rec = httptest.NewRecorder()
	HealthHandler(nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
