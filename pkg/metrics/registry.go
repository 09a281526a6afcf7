// Package metrics provides Prometheus metrics collection for FTPFighter components.
//
// All metrics are optional. When the registry is not initialized, components
// fall back to no-op implementations, so the gateway runs the same way with or
// without a scrape endpoint.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	ftpMetrics := prometheus.NewFTPMetrics()
//	remoteMetrics := prometheus.NewRemoteMetrics()
//
//	// Or use nil for no-op behavior
//	adapter, err := ftp.New(cfg, nil, nil)
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// registry is the global Prometheus registry for all FTPFighter metrics.
	// Written once under registryOnce.
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry initializes the global Prometheus registry.
//
// It must be called before creating Prometheus-backed metrics. Subsequent
// calls are ignored.
//
// Thread safety:
// sync.Once provides the memory barrier that makes the registry visible to
// every later GetRegistry call.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
	})
}

// GetRegistry returns the global Prometheus registry, or nil when metrics
// are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled returns true once InitRegistry has been called.
func IsEnabled() bool {
	return GetRegistry() != nil
}
