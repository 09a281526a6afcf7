package config

import (
	"strings"
	"time"

	"github.com/filefighter/ftpfighter/pkg/journal/memory"
	"github.com/filefighter/ftpfighter/pkg/metrics"
)

const (
	// DefaultFileSystemURL is where a local FileSystem service listens
	DefaultFileSystemURL = "http://localhost:8080/api"

	// DefaultFileHandlerURL is where a local FileHandler service listens
	DefaultFileHandlerURL = "http://localhost:5000/data"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// Zero values are replaced with defaults and explicit values are preserved.
// Journal store options are defaulted by the store constructors, except for
// the keys written into generated config files.
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyRemoteDefaults(&cfg.Remote)
	applyJournalDefaults(&cfg.Journal)
	cfg.Adapters.FTP.ApplyDefaults()
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	// Levels accepted by earlier deployments
	switch cfg.Level {
	case "TRACE":
		cfg.Level = "DEBUG"
	case "WARNING":
		cfg.Level = "WARN"
	}

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = metrics.DefaultPort
	}
}

func applyRemoteDefaults(cfg *RemoteConfig) {
	if cfg.FileSystemURL == "" {
		cfg.FileSystemURL = DefaultFileSystemURL
	}
	if cfg.FileHandlerURL == "" {
		cfg.FileHandlerURL = DefaultFileHandlerURL
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "ftpfighter"
	}
}

func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Type == "" {
		cfg.Type = "none"
	}

	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if _, ok := cfg.Memory["max_entries"]; !ok {
		cfg.Memory["max_entries"] = memory.DefaultMaxEntries
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Journal: JournalConfig{
			Badger: map[string]any{
				"path":        "/var/lib/ftpfighter/journal",
				"sync_writes": false,
				"retention":   "720h",
			},
		},
	}
	cfg.Adapters.FTP.Enabled = true
	cfg.Adapters.FTP.LoginRatePerMinute = 30
	cfg.Adapters.FTP.LoginBurst = 10

	ApplyDefaults(cfg)
	return cfg
}
