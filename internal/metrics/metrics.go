// Package metrics provides Prometheus metrics for the bulk-ops CLIs.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for a bulk run.
type Metrics struct {
	// Enrollment outcome metrics
	EnrollmentsSucceeded prometheus.Counter
	EnrollmentsFailed    prometheus.Counter
	EnrollmentsSkipped   *prometheus.CounterVec

	// Pipeline metrics
	UsersProcessed      prometheus.Counter
	BatchesProcessed    prometheus.Counter
	InFlightSubmissions prometheus.Gauge

	// Upstream API metrics
	APICallDuration *prometheus.HistogramVec
	APIErrors       *prometheus.CounterVec

	// Report metrics
	ReportRows   prometheus.Gauge
	ReportErrors *prometheus.CounterVec
}

// Config holds metrics configuration.
type Config struct {
	Enabled bool
	Address string // Address for metrics HTTP server (e.g., ":9090")
}

var defaultMetrics *Metrics

// Init initializes the metrics package with global metrics.
// Call this once at startup.
func Init(namespace string) *Metrics {
	if namespace == "" {
		namespace = "sunbird_bulk_ops"
	}

	m := &Metrics{
		EnrollmentsSucceeded: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrollments_succeeded_total",
				Help:      "Total number of successful enrollment submissions",
			},
		),
		EnrollmentsFailed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrollments_failed_total",
				Help:      "Total number of failed enrollment attempts",
			},
		),
		EnrollmentsSkipped: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "enrollments_skipped_total",
				Help:      "Total number of skipped enrollment attempts",
			},
			[]string{"reason"},
		),
		UsersProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "users_processed_total",
				Help:      "Total number of roster rows whose pipeline completed",
			},
		),
		BatchesProcessed: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batches_processed_total",
				Help:      "Total number of roster batches processed",
			},
		),
		InFlightSubmissions: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "in_flight_submissions",
				Help:      "Enrollment submissions currently in flight",
			},
		),
		APICallDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_call_duration_seconds",
				Help:      "Duration of upstream LMS API calls",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"operation"},
		),
		APIErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_errors_total",
				Help:      "Total number of upstream LMS API errors",
			},
			[]string{"operation"},
		),
		ReportRows: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "report_rows",
				Help:      "Number of rows in the final status report",
			},
		),
		ReportErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "report_errors_total",
				Help:      "Total number of report sink write errors",
			},
			[]string{"backend"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the global metrics instance.
// Returns nil if Init has not been called.
func Get() *Metrics {
	return defaultMetrics
}

// StartServer starts an HTTP server for Prometheus metrics scraping.
// Blocks until the server exits.
func StartServer(address string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	return http.ListenAndServe(address, mux)
}

// IncSkipped increments the skipped counter with a bounded reason label.
func (m *Metrics) IncSkipped(reason string) {
	m.EnrollmentsSkipped.WithLabelValues(reason).Inc()
}

// ObserveAPICall records an upstream call's duration and error outcome.
func (m *Metrics) ObserveAPICall(operation string, seconds float64, err error) {
	m.APICallDuration.WithLabelValues(operation).Observe(seconds)
	if err != nil {
		m.APIErrors.WithLabelValues(operation).Inc()
	}
}
