package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	RetrainSubmissions.Inc()
	PollTicks.Inc()
	PollReadErrors.Inc()
	IncOutcome("matched")
	IncAPIRetry("/config")
	IncCommandRun("retrain")
	IncCommandError("retrain")
	ObserveReconcileDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"salescast_retrain_submissions_total",
		"salescast_reconcile_outcomes_total",
		"salescast_poll_ticks_total",
		"salescast_poll_read_errors_total",
		"salescast_reconcile_duration_seconds",
		"salescast_api_retries_total",
		"salescast_command_runs_total",
		"salescast_command_errors_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
