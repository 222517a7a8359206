package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RetrainSubmissions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "salescast_retrain_submissions_total",
		Help: "Total retrain requests sent to the server",
	})
	ReconcileOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salescast_reconcile_outcomes_total",
		Help: "Terminal reconciliation outcomes by phase",
	}, []string{"phase"})
	PollTicks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "salescast_poll_ticks_total",
		Help: "Total config samples taken while reconciling",
	})
	PollReadErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "salescast_poll_read_errors_total",
		Help: "Config samples that failed while reconciling",
	})
	ReconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "salescast_reconcile_duration_seconds",
		Help:    "Time from acknowledgment to a terminal phase",
		Buckets: []float64{1, 2, 5, 10, 15, 20, 30, 45, 60},
	})
	APIRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salescast_api_retries_total",
		Help: "Total API retry attempts",
	}, []string{"endpoint"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salescast_command_runs_total",
		Help: "Console command invocations",
	}, []string{"command"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "salescast_command_errors_total",
		Help: "Console command failures",
	}, []string{"command"})
)

func init() {
	prometheus.MustRegister(RetrainSubmissions, ReconcileOutcomes, PollTicks, PollReadErrors,
		ReconcileDuration, APIRetries, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090"). An empty
// addr disables it.
func StartServer(addr string) {
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveReconcileDuration records the time since start.
func ObserveReconcileDuration(start time.Time) {
	ReconcileDuration.Observe(time.Since(start).Seconds())
}

// IncOutcome counts a terminal reconciliation phase.
func IncOutcome(phase string) { ReconcileOutcomes.WithLabelValues(phase).Inc() }

// IncAPIRetry increments the retry counter for an endpoint.
func IncAPIRetry(endpoint string) { APIRetries.WithLabelValues(endpoint).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
