package prometheus

import (
	"time"

	"github.com/filefighter/ftpfighter/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// remoteMetrics is the Prometheus implementation of metrics.RemoteMetrics.
type remoteMetrics struct {
	callsTotal   *prometheus.CounterVec
	callDuration *prometheus.HistogramVec
}

// NewRemoteMetrics creates a Prometheus-backed RemoteMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled.
func NewRemoteMetrics() metrics.RemoteMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopRemoteMetrics()
	}

	return newRemoteMetrics(metrics.GetRegistry())
}

func newRemoteMetrics(reg prometheus.Registerer) *remoteMetrics {
	return &remoteMetrics{
		callsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpfighter_remote_calls_total",
				Help: "Total number of calls to the FileSystem and FileHandler services",
			},
			[]string{"service", "operation", "outcome"},
		),
		callDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ftpfighter_remote_call_duration_milliseconds",
				Help:    "Latency of remote service calls until response headers, in milliseconds",
				Buckets: []float64{1, 5, 25, 100, 500, 2500, 10000},
			},
			[]string{"service", "operation"},
		),
	}
}

func (m *remoteMetrics) ObserveCall(service, operation, outcome string, duration time.Duration) {
	m.callsTotal.WithLabelValues(service, operation, outcome).Inc()
	m.callDuration.WithLabelValues(service, operation).Observe(float64(duration.Microseconds()) / 1000.0)
}
