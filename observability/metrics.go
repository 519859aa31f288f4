package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// RegistryMetrics records JSON-RPC activity against the escrow registry,
// segmented by method and outcome.
type RegistryMetrics struct {
	requests *prometheus.CounterVec
	errors   *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

var (
	registryMetricsOnce sync.Once
	registryMetrics     *RegistryMetrics
)

// Registry returns the lazily-initialised metrics used to record registry RPC
// activity. Collectors register against the default prometheus registry on
// first use.
func Registry() *RegistryMetrics {
	registryMetricsOnce.Do(func() {
		registryMetrics = &RegistryMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "estate",
				Subsystem: "registry",
				Name:      "requests_total",
				Help:      "Total JSON-RPC registry requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			errors: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "estate",
				Subsystem: "registry",
				Name:      "errors_total",
				Help:      "Total JSON-RPC registry errors segmented by method and error code.",
			}, []string{"method", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "estate",
				Subsystem: "registry",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC registry handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
		}
		prometheus.MustRegister(registryMetrics.requests, registryMetrics.errors, registryMetrics.latency)
	})
	return registryMetrics
}

// ObserveRequest records one handled request.
func (m *RegistryMetrics) ObserveRequest(method, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// ObserveError records one failed request with its JSON-RPC error code.
func (m *RegistryMetrics) ObserveError(method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, code).Inc()
}
