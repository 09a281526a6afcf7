package ftp

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// FTPConfig holds configuration parameters for the FTP server.
//
// Default values (applied by New if zero):
//   - ListenAddr: 0.0.0.0:2121
//   - PassivePortStart..PassivePortEnd: 10000..10010
//   - MaxConnections: 0 (unlimited)
//   - IdleTimeout: 15m
//   - ConnectionTimeout: 30s
//   - ShutdownTimeout: 30s
//   - LoginRatePerMinute: 0 (unlimited)
type FTPConfig struct {
	// Enabled controls whether the FTP adapter is started.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// ListenAddr is the host:port of the control connection listener.
	ListenAddr string `mapstructure:"listen_addr" validate:"required" yaml:"listen_addr"`

	// PublicHost is the address announced in PASV replies. Empty lets the
	// engine use the control connection's local address.
	PublicHost string `mapstructure:"public_host" yaml:"public_host"`

	// PassivePortStart and PassivePortEnd bound the passive data ports
	// (inclusive).
	PassivePortStart int `mapstructure:"passive_port_start" validate:"min=1,max=65535" yaml:"passive_port_start"`
	PassivePortEnd   int `mapstructure:"passive_port_end" validate:"min=1,max=65535" yaml:"passive_port_end"`

	// MaxConnections limits concurrent control connections.
	// 0 means unlimited.
	MaxConnections int `mapstructure:"max_connections" validate:"min=0" yaml:"max_connections"`

	// IdleTimeout disconnects a client that sends no command for this long.
	IdleTimeout time.Duration `mapstructure:"idle_timeout" validate:"min=0" yaml:"idle_timeout"`

	// ConnectionTimeout bounds the establishment of data connections.
	ConnectionTimeout time.Duration `mapstructure:"connection_timeout" validate:"min=0" yaml:"connection_timeout"`

	// ShutdownTimeout is how long Stop waits for in-flight transfers before
	// closing every connection.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout"`

	// Banner is the greeting sent on connect.
	Banner string `mapstructure:"banner" yaml:"banner"`

	// LoginRatePerMinute throttles login attempts per client host.
	// 0 means unlimited.
	LoginRatePerMinute int `mapstructure:"login_rate_per_minute" validate:"min=0" yaml:"login_rate_per_minute"`

	// LoginBurst is the number of attempts a host may make back to back.
	LoginBurst int `mapstructure:"login_burst" validate:"min=0" yaml:"login_burst"`
}

// applyDefaults fills in zero values.
func (c *FTPConfig) applyDefaults() {
	// Enabled is defaulted in pkg/config so an explicit false survives.
	if c.ListenAddr == "" {
		c.ListenAddr = "0.0.0.0:2121"
	}
	if c.PassivePortStart == 0 {
		c.PassivePortStart = 10000
	}
	if c.PassivePortEnd == 0 {
		c.PassivePortEnd = 10010
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 15 * time.Minute
	}
	if c.ConnectionTimeout == 0 {
		c.ConnectionTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
	if c.Banner == "" {
		c.Banner = "FileFighter FTP Server"
	}
}

// ApplyDefaults is applyDefaults for callers outside the package.
func (c *FTPConfig) ApplyDefaults() {
	c.applyDefaults()
}

// validate checks the configuration after defaults have been applied.
func (c *FTPConfig) validate() error {
	if _, err := c.port(); err != nil {
		return err
	}
	if c.PassivePortStart < 1 || c.PassivePortEnd > 65535 {
		return fmt.Errorf("invalid passive port range %d-%d: ports must be 1-65535",
			c.PassivePortStart, c.PassivePortEnd)
	}
	if c.PassivePortStart > c.PassivePortEnd {
		return fmt.Errorf("invalid passive port range %d-%d: start exceeds end",
			c.PassivePortStart, c.PassivePortEnd)
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("invalid MaxConnections %d: must be >= 0", c.MaxConnections)
	}
	if c.IdleTimeout < 0 || c.ConnectionTimeout < 0 {
		return fmt.Errorf("invalid timeouts: idle=%v connection=%v must be >= 0",
			c.IdleTimeout, c.ConnectionTimeout)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid ShutdownTimeout %v: must be > 0", c.ShutdownTimeout)
	}
	if c.LoginRatePerMinute < 0 || c.LoginBurst < 0 {
		return fmt.Errorf("invalid login rate %d/min burst %d: must be >= 0",
			c.LoginRatePerMinute, c.LoginBurst)
	}
	return nil
}

// Validate is validate for callers outside the package.
func (c *FTPConfig) Validate() error {
	return c.validate()
}

func (c *FTPConfig) port() (int, error) {
	_, portStr, err := net.SplitHostPort(c.ListenAddr)
	if err != nil {
		return 0, fmt.Errorf("invalid listen address %q: %w", c.ListenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 0 || port > 65535 {
		return 0, fmt.Errorf("invalid listen port %q", portStr)
	}
	return port, nil
}
