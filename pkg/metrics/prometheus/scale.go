package prometheus

import (
	"strconv"

	"github.com/jaguerra767/control-components/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// scaleMetrics is the Prometheus implementation of scale.Metrics.
type scaleMetrics struct {
	readErrors *prometheus.CounterVec
}

// NewScaleMetrics creates a new Prometheus-backed scale.Metrics
// instance. Returns nil if metrics are not enabled.
func NewScaleMetrics() *scaleMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &scaleMetrics{
		readErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "scale_read_error_total",
			Help: "Total load-cell read errors, labeled by cell index.",
		}, []string{"cell"}),
	}
}

func (m *scaleMetrics) IncReadError(cellIndex int) {
	if m == nil {
		return
	}
	m.readErrors.WithLabelValues(strconv.Itoa(cellIndex)).Inc()
}
