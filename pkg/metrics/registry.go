// Package metrics exposes a process-wide Prometheus registry, enabled
// on demand so that running without the metrics HTTP server costs
// nothing. Concrete collectors live in pkg/metrics/prometheus; each
// NewXMetrics constructor registers its collectors against this
// registry and returns nil if InitRegistry was never called, so every
// component's metrics hook is safe to invoke unconditionally.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	registry *prometheus.Registry
	enabled  bool
)

// InitRegistry creates the process-wide registry. Call once at startup
// before constructing any component's metrics collectors.
func InitRegistry() {
	registry = prometheus.NewRegistry()
	enabled = true
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled
}

// GetRegistry returns the process-wide registry. Only valid after
// InitRegistry.
func GetRegistry() *prometheus.Registry {
	return registry
}
