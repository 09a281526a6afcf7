package config

import (
	"fmt"

	"github.com/filefighter/ftpfighter/pkg/adapter"
	"github.com/filefighter/ftpfighter/pkg/adapter/ftp"
	"github.com/filefighter/ftpfighter/pkg/journal"
	"github.com/filefighter/ftpfighter/pkg/metrics"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// The backend (filesystem factory and authenticator) is injected later by
// server.Server through SetBackend.
//
// Parameters:
//   - cfg: The complete FTPFighter configuration
//   - ftpMetrics: Optional FTP metrics collector (nil = no metrics)
//   - store: Journal receiving completed operations (nil = none)
//
// Returns:
//   - []adapter.Adapter: List of enabled adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config, ftpMetrics metrics.FTPMetrics, store journal.Store) ([]adapter.Adapter, error) {
	var adapters []adapter.Adapter

	if cfg.Adapters.FTP.Enabled {
		ftpAdapter, err := ftp.New(cfg.Adapters.FTP, ftpMetrics, store)
		if err != nil {
			return nil, fmt.Errorf("failed to create FTP adapter: %w", err)
		}
		adapters = append(adapters, ftpAdapter)
	}

	if len(adapters) == 0 {
		return nil, fmt.Errorf("no adapters enabled in configuration")
	}

	return adapters, nil
}
