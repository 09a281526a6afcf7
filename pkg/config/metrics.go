package config

import (
	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/filefighter/ftpfighter/pkg/metrics"
	promMetrics "github.com/filefighter/ftpfighter/pkg/metrics/prometheus"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the HTTP server exposing Prometheus metrics and the journal
	// (nil if disabled)
	Server *metrics.Server

	// FTPMetrics is the collector for the FTP adapter (noop if disabled)
	FTPMetrics metrics.FTPMetrics

	// RemoteMetrics is the collector for remote service calls (noop if disabled)
	RemoteMetrics metrics.RemoteMetrics
}

// InitializeMetrics creates all metrics components based on configuration.
//
// When metrics are disabled it returns a nil server and no-op collectors.
// store is served at /journal on the metrics server.
func InitializeMetrics(cfg *Config, store journal.Store) *MetricsResult {
	if !cfg.Server.Metrics.Enabled {
		return &MetricsResult{
			FTPMetrics:    metrics.NewNoopFTPMetrics(),
			RemoteMetrics: metrics.NewNoopRemoteMetrics(),
		}
	}

	metrics.InitRegistry()

	server := metrics.NewServer(metrics.ServerConfig{
		Port:    cfg.Server.Metrics.Port,
		Journal: store,
	})

	return &MetricsResult{
		Server:        server,
		FTPMetrics:    promMetrics.NewFTPMetrics(),
		RemoteMetrics: promMetrics.NewRemoteMetrics(),
	}
}
