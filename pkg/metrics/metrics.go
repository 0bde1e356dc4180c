package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "bootstrapoor"

// Metrics contains all Prometheus metrics for bootstrapoor.
type Metrics struct {
	// HTTP.
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Throttle.
	ThrottleDecisionsTotal *prometheus.CounterVec
	ThrottleTrackedClients prometheus.Gauge

	// Uploads.
	UploadBytesTotal prometheus.Counter
	UploadFilesTotal prometheus.Counter

	// Logging.
	LogRotationsTotal *prometheus.CounterVec

	// Build info.
	BuildInfo *prometheus.GaugeVec
}

// New creates a new Metrics instance and registers all metrics with reg.
// A nil reg registers with the default Prometheus registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		// HTTP.
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		// Throttle.
		ThrottleDecisionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "throttle_decisions_total",
				Help:      "Total number of rate limiter decisions",
			},
			[]string{"decision"},
		),
		ThrottleTrackedClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "throttle_tracked_clients",
				Help:      "Number of clients with an open rate limit window",
			},
		),

		// Uploads.
		UploadBytesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_bytes_total",
				Help:      "Total number of bytes received in multipart uploads",
			},
		),
		UploadFilesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upload_files_total",
				Help:      "Total number of files received in multipart uploads",
			},
		),

		// Logging.
		LogRotationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "log_rotations_total",
				Help:      "Total number of log file rotations",
			},
			[]string{"sink"},
		),

		// Build info.
		BuildInfo: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "build_info",
				Help:      "Build information",
			},
			[]string{"version", "commit", "date", "instance"},
		),
	}

	return m
}

// SetBuildInfo sets the build info metric.
func (m *Metrics) SetBuildInfo(version, commit, date, instance string) {
	m.BuildInfo.WithLabelValues(version, commit, date, instance).Set(1)
}

// RecordHTTPRequest records an HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration float64) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// RecordThrottleDecision records whether the limiter allowed a request.
func (m *Metrics) RecordThrottleDecision(allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}

	m.ThrottleDecisionsTotal.WithLabelValues(decision).Inc()
}

// SetThrottleTrackedClients sets the tracked clients gauge.
func (m *Metrics) SetThrottleTrackedClients(n int) {
	m.ThrottleTrackedClients.Set(float64(n))
}

// RecordUpload records a received multipart file.
func (m *Metrics) RecordUpload(size int64) {
	m.UploadFilesTotal.Inc()
	m.UploadBytesTotal.Add(float64(size))
}

// RecordLogRotation records a log file rotation for the named sink.
func (m *Metrics) RecordLogRotation(sink string) {
	m.LogRotationsTotal.WithLabelValues(sink).Inc()
}
