package config

import "time"

// Config represents the complete application configuration.
// Values are layered: built-in defaults, then the config file, then
// NOTIFYD_* environment variables, then command-line flags.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Store     StoreConfig     `mapstructure:"store"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Health    HealthConfig    `mapstructure:"health"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AdminToken      string        `mapstructure:"admin_token"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated Prometheus exporter port.
	// The main HTTP port proxies it at /metrics.
	Port int `mapstructure:"port"`
}

// StoreConfig describes the relational database whose health is tracked.
type StoreConfig struct {
	// Driver is libsql (default) or postgres.
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// CacheConfig describes the shared expiring key-value store.
type CacheConfig struct {
	// Driver is redis (default) or memory.
	Driver      string        `mapstructure:"driver"`
	Address     string        `mapstructure:"address"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	IOTimeout   time.Duration `mapstructure:"io_timeout"`
}

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Capacity int           `mapstructure:"capacity"`
	Window   time.Duration `mapstructure:"window"`
}

// HealthConfig configures dependency health memoization.
type HealthConfig struct {
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
}

// MonitorConfig configures the background reconnect monitors.
type MonitorConfig struct {
	CheckInterval          time.Duration `mapstructure:"check_interval"`
	MaxConsecutiveFailures int           `mapstructure:"max_consecutive_failures"`
	MaxBackoff             time.Duration `mapstructure:"max_backoff"`
	StopTimeout            time.Duration `mapstructure:"stop_timeout"`
}
