package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for delivery handoff verification.
type Metrics struct {
	// Handoff outcomes by result and proof method
	HandoffsTotal *prometheus.CounterVec
}

// New creates a Metrics instance with all delivery metrics registered.
func New() *Metrics {
	return &Metrics{
		HandoffsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "verity_delivery_handoffs_total",
			Help: "Total handoff verification attempts by result and method",
		}, []string{"result", "method"}), // result: "passed", "rejected"
	}
}

// IncrementHandoff records a handoff verification outcome.
func (m *Metrics) IncrementHandoff(passed bool, method string) {
	if m == nil {
		return
	}
	result := "rejected"
	if passed {
		result = "passed"
	}
	m.HandoffsTotal.WithLabelValues(result, method).Inc()
}
