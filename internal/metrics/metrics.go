// Package metrics provides the Prometheus instruments shared by the runtime
// loop and the local tooling.
package metrics

import (
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pre-built instrument set, prefixed with the service
// name. Callers record against operation names such as "invocation",
// "fetch_next", "post_response" or "invoke".
type Metrics struct {
	processedTotal  *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	durationSeconds *prometheus.HistogramVec
	inProgress      *prometheus.GaugeVec
}

// New creates and registers the instrument set on reg. Binaries pass
// prometheus.DefaultRegisterer; tests pass a private registry so parallel
// packages never collide. Dashes in the service name are normalized to
// underscores to keep metric names valid.
func New(serviceName string, reg prometheus.Registerer) *Metrics {
	name := strings.ReplaceAll(serviceName, "-", "_")

	m := &Metrics{
		processedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_processed_total", name),
			Help: fmt.Sprintf("Total operations processed by %s", serviceName),
		}, []string{"status", "operation"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: fmt.Sprintf("%s_errors_total", name),
			Help: fmt.Sprintf("Total errors in %s by type", serviceName),
		}, []string{"error_type", "operation"}),
		durationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    fmt.Sprintf("%s_duration_seconds", name),
			Help:    fmt.Sprintf("Operation duration in %s", serviceName),
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		inProgress: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: fmt.Sprintf("%s_in_progress", name),
			Help: fmt.Sprintf("Operations currently in progress in %s", serviceName),
		}, []string{"operation"}),
	}

	reg.MustRegister(m.processedTotal, m.errorsTotal, m.durationSeconds, m.inProgress)
	return m
}

// RecordSuccess increments the success counter for an operation.
func (m *Metrics) RecordSuccess(operation string) {
	m.processedTotal.WithLabelValues("success", operation).Inc()
}

// RecordError increments the processed counter and the detailed error
// counter.
func (m *Metrics) RecordError(operation, errorType string) {
	m.processedTotal.WithLabelValues("error", operation).Inc()
	m.errorsTotal.WithLabelValues(errorType, operation).Inc()
}

// RecordDuration observes an operation duration in seconds.
func (m *Metrics) RecordDuration(operation string, seconds float64) {
	m.durationSeconds.WithLabelValues(operation).Observe(seconds)
}

// StartOperation increments the in-progress gauge. Pair with EndOperation.
func (m *Metrics) StartOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Inc()
}

// EndOperation decrements the in-progress gauge.
func (m *Metrics) EndOperation(operation string) {
	m.inProgress.WithLabelValues(operation).Dec()
}
