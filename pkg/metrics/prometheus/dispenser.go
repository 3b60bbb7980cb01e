package prometheus

import (
	"github.com/jaguerra767/control-components/internal/dispenser"
	"github.com/jaguerra767/control-components/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// dispenserMetrics is the Prometheus implementation of dispenser.Metrics.
type dispenserMetrics struct {
	outcomes       *prometheus.CounterVec
	gramsDispensed prometheus.Histogram
}

// NewDispenserMetrics creates a new Prometheus-backed dispenser.Metrics
// instance. Returns nil if metrics are not enabled.
func NewDispenserMetrics() *dispenserMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &dispenserMetrics{
		outcomes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "dispense_outcome_total",
			Help: "Total dispense runs, labeled by terminal outcome.",
		}, []string{"outcome"}),
		gramsDispensed: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:    "dispense_grams_dispensed",
			Help:    "Grams dispensed per run, regardless of outcome.",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		}),
	}
}

func (m *dispenserMetrics) IncOutcome(kind dispenser.OutcomeKind) {
	if m == nil {
		return
	}
	m.outcomes.WithLabelValues(kind.String()).Inc()
}

func (m *dispenserMetrics) ObserveGramsDispensed(grams float64) {
	if m == nil {
		return
	}
	m.gramsDispensed.Observe(grams)
}
