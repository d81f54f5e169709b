package config

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ConfigMetrics tracks configuration loading for one component.
type ConfigMetrics struct {
	LoadTimestamp         prometheus.Gauge
	ValidationErrorsTotal *prometheus.CounterVec
	FallbacksTotal        *prometheus.CounterVec
	// FallbackActive is 1 while any setting runs on a fallback value.
	FallbackActive prometheus.Gauge
}

// NewConfigMetrics creates and registers the configuration metrics for one
// component. Every metric name starts with componentName, so the worker and
// any future binary can report side by side.
//
// Metrics created:
//   - <component>_config_load_timestamp: when the last load finished
//   - <component>_config_validation_errors_total{field}: rejected values
//   - <component>_config_fallbacks_total{field}: defaults applied
//   - <component>_config_fallback_active: 1 while any default is in use
//
// The metrics go to the default Prometheus registry through promauto, so
// calling this twice with the same componentName panics on the duplicate
// registration.
//
// Parameters:
//   - componentName: metric name prefix, e.g. "worker"
//
// Returns:
//   - *ConfigMetrics: registered metrics ready for use
//
// Example:
//
//	m := NewConfigMetrics("worker")
//	m.RecordFallback("CYCLE_SCHEDULE")
//	m.SetFallbackActive(true)
//	m.RecordLoadTimestamp()
func NewConfigMetrics(componentName string) *ConfigMetrics {
	return &ConfigMetrics{
		LoadTimestamp: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_load_timestamp", componentName),
			Help: fmt.Sprintf("Unix timestamp of last %s configuration load", componentName),
		}),
		ValidationErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_validation_errors_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration validation errors", componentName),
		}, []string{"field"}),
		FallbacksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_config_fallbacks_total", componentName),
			Help: fmt.Sprintf("Total number of %s configuration fallback operations", componentName),
		}, []string{"field"}),
		FallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_config_fallback_active", componentName),
			Help: fmt.Sprintf("1 if any %s configuration fallback is active, 0 otherwise", componentName),
		}),
	}
}

// RecordLoadTimestamp marks a completed load.
func (m *ConfigMetrics) RecordLoadTimestamp() {
	m.LoadTimestamp.SetToCurrentTime()
}

// RecordValidationError counts a rejected value for field. Call it once per
// invalid setting, before falling back to the default.
//
// Parameters:
//   - field: environment variable or setting name, e.g. "POST_DELAY"
func (m *ConfigMetrics) RecordValidationError(field string) {
	m.ValidationErrorsTotal.WithLabelValues(field).Inc()
}

// RecordFallback counts a default applied to field because its configured
// value was missing or invalid.
//
// Parameters:
//   - field: environment variable or setting name, e.g. "POST_DELAY"
func (m *ConfigMetrics) RecordFallback(field string) {
	m.FallbacksTotal.WithLabelValues(field).Inc()
}

// SetFallbackActive sets the FallbackActive gauge to 1 when active is true
// and to 0 otherwise. Call it once after all settings are loaded.
func (m *ConfigMetrics) SetFallbackActive(active bool) {
	if active {
		m.FallbackActive.Set(1)
	} else {
		m.FallbackActive.Set(0)
	}
}
