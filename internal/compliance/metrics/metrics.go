package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module.
type Metrics struct {
	// Compliance check outcomes by result
	ChecksTotal *prometheus.CounterVec

	// Requirement table lookups by jurisdiction
	RequirementLookups prometheus.Counter

	// Report jobs handed to the dispatcher
	ReportsScheduled prometheus.Counter
}

// New creates a Metrics instance with all compliance metrics registered.
func New() *Metrics {
	return &Metrics{
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_compliance_checks_total",
			Help: "Total compliance checks by result",
		}, []string{"result"}), // result: "passed", "failed"

		RequirementLookups: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verity_compliance_requirement_lookups_total",
			Help: "Total requirement table resolutions",
		}),

		ReportsScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "verity_compliance_reports_scheduled_total",
			Help: "Total regulatory report jobs scheduled",
		}),
	}
}

// IncrementCheck records a compliance check outcome.
func (m *Metrics) IncrementCheck(passed bool) {
	if m == nil {
		return
	}
	result := "failed"
	if passed {
		result = "passed"
	}
	m.ChecksTotal.WithLabelValues(result).Inc()
}

// IncrementLookup records one requirement resolution.
func (m *Metrics) IncrementLookup() {
	if m != nil {
		m.RequirementLookups.Inc()
	}
}

// IncrementReport records one scheduled report job.
func (m *Metrics) IncrementReport() {
	if m != nil {
		m.ReportsScheduled.Inc()
	}
}
