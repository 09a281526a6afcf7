package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/filefighter/ftpfighter/pkg/adapter/ftp"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable, e.g.
// FTPFIGHTER_REMOTE_FILESYSTEM_URL.
const EnvPrefix = "FTPFIGHTER"

// Config represents the complete FTPFighter configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (FTPFIGHTER_* and the legacy FTP_SERVICE_* names)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// The journal section follows the store pattern: Journal.Type selects an
// implementation and only the matching type-specific map is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`

	// Server contains process-wide settings
	Server ServerConfig `mapstructure:"server" yaml:"server"`

	// Remote locates the FileSystem and FileHandler services
	Remote RemoteConfig `mapstructure:"remote" yaml:"remote"`

	// Journal selects where completed operations are recorded
	Journal JournalConfig `mapstructure:"journal" yaml:"journal"`

	// Adapters contains protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters" yaml:"adapters"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output"`
}

// ServerConfig contains process-wide settings.
type ServerConfig struct {
	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// MetricsConfig configures the metrics HTTP server.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Port serves /metrics, /health and /journal
	Port int `mapstructure:"port" validate:"min=0,max=65535" yaml:"port"`
}

// RemoteConfig locates the FileFighter services.
type RemoteConfig struct {
	// FileSystemURL is the base URL of the FileSystem service (users,
	// inodes, folder operations)
	FileSystemURL string `mapstructure:"filesystem_url" validate:"required,url" yaml:"filesystem_url"`

	// FileHandlerURL is the base URL of the FileHandler service (uploads and
	// downloads)
	FileHandlerURL string `mapstructure:"filehandler_url" validate:"required,url" yaml:"filehandler_url"`

	// RequestTimeout bounds metadata calls. Content streams are only bounded
	// by the connection.
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0" yaml:"request_timeout"`

	// UserAgent is sent with every request
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
}

// JournalConfig specifies the operation journal.
type JournalConfig struct {
	// Type selects the implementation
	// Valid values: none, memory, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=none memory badger s3" yaml:"type"`

	// Memory is only used when Type = "memory"
	Memory map[string]any `mapstructure:"memory" yaml:"memory,omitempty"`

	// Badger is only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger" yaml:"badger,omitempty"`

	// S3 is only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3" yaml:"s3,omitempty"`
}

// AdaptersConfig contains all protocol adapter configurations.
type AdaptersConfig struct {
	// FTP uses the adapter's own configuration type directly.
	FTP ftp.FTPConfig `mapstructure:"ftp" yaml:"ftp"`
}

// envKeys lists every scalar key that can be set from the environment.
// viper only unmarshals environment values for keys it knows about.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.shutdown_timeout",
	"server.metrics.enabled",
	"server.metrics.port",
	"remote.filesystem_url",
	"remote.filehandler_url",
	"remote.request_timeout",
	"remote.user_agent",
	"journal.type",
	"adapters.ftp.enabled",
	"adapters.ftp.listen_addr",
	"adapters.ftp.public_host",
	"adapters.ftp.passive_port_start",
	"adapters.ftp.passive_port_end",
	"adapters.ftp.max_connections",
	"adapters.ftp.idle_timeout",
	"adapters.ftp.connection_timeout",
	"adapters.ftp.shutdown_timeout",
	"adapters.ftp.banner",
	"adapters.ftp.login_rate_per_minute",
	"adapters.ftp.login_burst",
}

// legacyEnv maps keys to the variable names of earlier deployments.
var legacyEnv = map[string]string{
	"adapters.ftp.listen_addr":        "FTP_SERVICE_URL",
	"adapters.ftp.passive_port_start": "FTP_SERVICE_PASSIVE_START",
	"adapters.ftp.passive_port_end":   "FTP_SERVICE_PASSIVE_END",
	"logging.level":                   "FTP_SERVICE_LOG_LEVEL",
	"remote.filesystem_url":           "FTP_SERVICE_BACKEND_URL",
	"remote.filehandler_url":          "FTP_SERVICE_FILEHANDLER_URL",
}

// flagKeys maps command line flags to configuration keys.
var flagKeys = map[string]string{
	"url":                "adapters.ftp.listen_addr",
	"passive-start-port": "adapters.ftp.passive_port_start",
	"passive-end-port":   "adapters.ftp.passive_port_end",
	"log-level":          "logging.level",
	"backend-url":        "remote.filesystem_url",
	"filehandler-url":    "remote.filehandler_url",
}

// RegisterFlags defines the configuration flags on fs. Flags left unset do
// not override the file or the environment.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.StringP("url", "u", "", "address to listen on, e.g. 0.0.0.0:2121")
	fs.IntP("passive-start-port", "s", 0, "passive port range start used for file transfers")
	fs.IntP("passive-end-port", "e", 0, "passive port range end used for file transfers")
	fs.StringP("log-level", "l", "", "log level (DEBUG, INFO, WARN, ERROR)")
	fs.StringP("backend-url", "b", "", "base URL of the FileSystem service, e.g. http://localhost:8080/api")
	fs.StringP("filehandler-url", "f", "", "base URL of the FileHandler service, e.g. http://localhost:5000/data")
}

// Load loads configuration from file, environment, and defaults.
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	return LoadWithFlags(configPath, nil)
}

// LoadWithFlags is Load with command line flags (registered through
// RegisterFlags) taking precedence over every other source.
func LoadWithFlags(configPath string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()

	if err := setupViper(v, configPath, flags); err != nil {
		return nil, err
	}

	// Read configuration file if it exists
	if err := readConfigFile(v, configPath); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// setupViper configures environment variables, flags and config file search.
func setupViper(v *viper.Viper, configPath string, flags *pflag.FlagSet) error {
	// Example: FTPFIGHTER_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Booleans cannot be defaulted after unmarshalling without losing an
	// explicit false.
	v.SetDefault("adapters.ftp.enabled", true)

	for _, key := range envKeys {
		names := []string{key, envName(key)}
		if legacy, ok := legacyEnv[key]; ok {
			names = append(names, legacy)
		}
		if err := v.BindEnv(names...); err != nil {
			return fmt.Errorf("failed to bind environment for %s: %w", key, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", name, err)
			}
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// $XDG_CONFIG_HOME/ftpfighter/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	return nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper, configPath string) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		// An explicit path that does not exist also falls back to defaults
		if configPath != "" && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to the
// current directory if the home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "ftpfighter")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "ftpfighter")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
