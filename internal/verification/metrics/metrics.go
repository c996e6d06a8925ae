package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the verification module.
type Metrics struct {
	// Sessions initiated, including idempotent re-reads
	SessionsInitiated prometheus.Counter

	// Terminal session outcomes by status
	SessionsFinished *prometheus.CounterVec

	// Evidence uploads by kind
	Uploads *prometheus.CounterVec

	// OCR extraction latency
	ExtractionLatency prometheus.Histogram

	// Extractions that exhausted their retries
	ExtractionFailures prometheus.Counter

	// Biometric comparison latency
	BiometricLatency prometheus.Histogram
}

// New creates a Metrics instance with all verification metrics registered.
func New() *Metrics {
	return &Metrics{
		SessionsInitiated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verity_verification_sessions_initiated_total",
			Help: "Total verification sessions initiated",
		}),

		SessionsFinished: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_verification_sessions_finished_total",
			Help: "Total sessions reaching a terminal status",
		}, []string{"status"}), // status: "completed", "failed", "expired"

		Uploads: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_verification_uploads_total",
			Help: "Total evidence uploads by kind",
		}, []string{"kind"}), // kind: "document", "selfie"

		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verity_verification_extraction_duration_seconds",
			Help:    "Duration of document field extraction",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		ExtractionFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verity_verification_extraction_failures_total",
			Help: "Total extractions that exhausted their retries",
		}),

		BiometricLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "verity_verification_biometric_duration_seconds",
			Help:    "Duration of biometric comparisons",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

// IncrementInitiated records one initiate call that produced or returned a
// session.
func (m *Metrics) IncrementInitiated() {
	if m != nil {
		m.SessionsInitiated.Inc()
	}
}

// IncrementFinished records a terminal transition.
func (m *Metrics) IncrementFinished(status string) {
	if m != nil {
		m.SessionsFinished.WithLabelValues(status).Inc()
	}
}

// IncrementUpload records one evidence upload.
func (m *Metrics) IncrementUpload(kind string) {
	if m != nil {
		m.Uploads.WithLabelValues(kind).Inc()
	}
}

// ObserveExtraction records one extraction duration.
func (m *Metrics) ObserveExtraction(d time.Duration) {
	if m != nil {
		m.ExtractionLatency.Observe(d.Seconds())
	}
}

// IncrementExtractionFailure records an extraction that gave up.
func (m *Metrics) IncrementExtractionFailure() {
	if m != nil {
		m.ExtractionFailures.Inc()
	}
}

// ObserveBiometric records one comparison duration.
func (m *Metrics) ObserveBiometric(d time.Duration) {
	if m != nil {
		m.BiometricLatency.Observe(d.Seconds())
	}
}
