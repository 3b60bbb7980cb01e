package prometheus

import (
	"time"

	"github.com/jaguerra767/control-components/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ethercatMetrics is the Prometheus implementation of ethercat.Metrics.
type ethercatMetrics struct {
	cycleDuration  prometheus.Histogram
	missedDeadline prometheus.Counter
}

// NewEtherCATMetrics creates a new Prometheus-backed ethercat.Metrics
// instance. Returns nil if metrics are not enabled.
func NewEtherCATMetrics() *ethercatMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &ethercatMetrics{
		cycleDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name: "ethercat_cycle_duration_seconds",
			Help: "Wall-clock duration of one EtherCAT process-data cycle.",
			Buckets: []float64{
				0.0005, 0.001, 0.0015, 0.002, 0.003, 0.005, 0.01,
			},
		}),
		missedDeadline: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Name: "ethercat_missed_deadline_total",
			Help: "Number of cycles whose TxRx+drain exceeded the configured cycle time.",
		}),
	}
}

func (m *ethercatMetrics) ObserveCycleDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.cycleDuration.Observe(d.Seconds())
}

func (m *ethercatMetrics) IncMissedDeadline() {
	if m == nil {
		return
	}
	m.missedDeadline.Inc()
}
