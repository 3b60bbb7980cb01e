package config

import (
	"strings"
	"time"
)

// ApplyDefaults fills unset fields with sensible defaults, mirroring the
// zero-value-means-unset convention: explicit values always win.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyMetricsDefaults(&cfg.Metrics)
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.EtherCAT.Cycle == 0 {
		cfg.EtherCAT.Cycle = 2 * time.Millisecond
	}
	if cfg.Scale.SampleRate == 0 {
		cfg.Scale.SampleRate = 50
	}
	for name, h := range cfg.Hatches {
		if h.Timeout == 0 {
			h.Timeout = 5 * time.Second
			cfg.Hatches[name] = h
		}
	}
	for name, s := range cfg.Sealers {
		if s.Dwell == 0 {
			s.Dwell = 3 * time.Second
		}
		if s.Timeout == 0 {
			s.Timeout = 5 * time.Second
		}
		cfg.Sealers[name] = s
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)
	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}
