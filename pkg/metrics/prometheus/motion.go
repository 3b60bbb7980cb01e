package prometheus

import (
	"time"

	"github.com/jaguerra767/control-components/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// motionMetrics is the Prometheus implementation of motion.Metrics.
type motionMetrics struct {
	requestDuration prometheus.Histogram
	queueDepth      prometheus.Gauge
}

// NewMotionMetrics creates a new Prometheus-backed motion.Metrics
// instance for the named controller. Returns nil if metrics are not
// enabled (metrics.InitRegistry not called), in which case callers
// should pass nil through to motion.NewClient for zero overhead.
func NewMotionMetrics(controller string) *motionMetrics {
	if !metrics.IsEnabled() {
		return nil
	}
	reg := metrics.GetRegistry()
	return &motionMetrics{
		requestDuration: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Name:        "motion_client_request_duration_seconds",
			Help:        "Round-trip duration of a motion controller request.",
			ConstLabels: prometheus.Labels{"controller": controller},
			Buckets:     prometheus.DefBuckets,
		}),
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name:        "motion_client_queue_depth",
			Help:        "Number of requests currently queued for the motion client.",
			ConstLabels: prometheus.Labels{"controller": controller},
		}),
	}
}

func (m *motionMetrics) ObserveRequestDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.requestDuration.Observe(d.Seconds())
}

func (m *motionMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
