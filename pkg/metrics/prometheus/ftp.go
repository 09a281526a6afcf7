package prometheus

import (
	"time"

	"github.com/filefighter/ftpfighter/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ftpMetrics is the Prometheus implementation of metrics.FTPMetrics.
type ftpMetrics struct {
	operationsTotal     *prometheus.CounterVec
	operationDuration   *prometheus.HistogramVec
	bytesTransferred    *prometheus.CounterVec
	authentications     *prometheus.CounterVec
	activeConnections   prometheus.Gauge
	connectionsAccepted prometheus.Counter
	connectionsRejected prometheus.Counter
	connectionsClosed   prometheus.Counter
}

// NewFTPMetrics creates a Prometheus-backed FTPMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry not called).
func NewFTPMetrics() metrics.FTPMetrics {
	if !metrics.IsEnabled() {
		return metrics.NewNoopFTPMetrics()
	}

	return newFTPMetrics(metrics.GetRegistry())
}

func newFTPMetrics(reg prometheus.Registerer) *ftpMetrics {
	return &ftpMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpfighter_ftp_operations_total",
				Help: "Total number of FTP filesystem operations by operation and status",
			},
			[]string{"operation", "status", "error_code"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "ftpfighter_ftp_operation_duration_milliseconds",
				Help: "Duration of FTP filesystem operations in milliseconds",
				Buckets: []float64{
					1,      // 1ms
					10,     // 10ms
					100,    // 100ms
					1000,   // 1s
					10000,  // 10s
					100000, // 100s, long transfers
				},
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpfighter_ftp_bytes_transferred_total",
				Help: "Total payload bytes moved over FTP data connections",
			},
			[]string{"direction"},
		),
		authentications: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "ftpfighter_ftp_authentications_total",
				Help: "Total number of FTP login attempts by result",
			},
			[]string{"result"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "ftpfighter_ftp_active_connections",
				Help: "Current number of FTP control connections",
			},
		),
		connectionsAccepted: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftpfighter_ftp_connections_accepted_total",
				Help: "Total number of accepted FTP control connections",
			},
		),
		connectionsRejected: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftpfighter_ftp_connections_rejected_total",
				Help: "Total number of FTP connections refused at the connection limit",
			},
		),
		connectionsClosed: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "ftpfighter_ftp_connections_closed_total",
				Help: "Total number of closed FTP control connections",
			},
		),
	}
}

func (m *ftpMetrics) RecordOperation(operation string, duration time.Duration, errorCode string) {
	status := "success"
	if errorCode != "" {
		status = "error"
	}
	m.operationsTotal.WithLabelValues(operation, status, errorCode).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(float64(duration.Microseconds()) / 1000.0)
}

func (m *ftpMetrics) RecordBytesTransferred(direction string, bytes int64) {
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *ftpMetrics) RecordAuthentication(success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	m.authentications.WithLabelValues(result).Inc()
}

func (m *ftpMetrics) SetActiveConnections(count int32) {
	m.activeConnections.Set(float64(count))
}

func (m *ftpMetrics) RecordConnectionAccepted() {
	m.connectionsAccepted.Inc()
}

func (m *ftpMetrics) RecordConnectionRejected() {
	m.connectionsRejected.Inc()
}

func (m *ftpMetrics) RecordConnectionClosed() {
	m.connectionsClosed.Inc()
}
