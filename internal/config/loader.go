// Package config provides centralized configuration management for notifyd.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Application identity used for paths, env vars and telemetry.
const (
	BinaryName         = "notifyd"
	ConfigName         = "notifyd"
	EnvPrefix          = "NOTIFYD"
	TelemetryNamespace = "notifyd"
	Description        = "Health and rate-limit control plane for the notification dispatch service"
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// SetDefaults registers every default on v. Keys registered here are also the
// keys AutomaticEnv can override, e.g. NOTIFYD_RATE_LIMIT_CAPACITY.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.admin_token", "")

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Shared cache defaults
	v.SetDefault("cache.driver", "redis")
	v.SetDefault("cache.address", "127.0.0.1:6379")
	v.SetDefault("cache.password", "")
	v.SetDefault("cache.db", 0)
	v.SetDefault("cache.dial_timeout", "2s")
	v.SetDefault("cache.io_timeout", "1s")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.capacity", 100)
	v.SetDefault("rate_limit.window", "60s")

	v.SetDefault("health.cache_ttl", "5s")
	v.SetDefault("health.probe_timeout", "3s")

	v.SetDefault("monitor.check_interval", "30s")
	v.SetDefault("monitor.max_consecutive_failures", 3)
	v.SetDefault("monitor.max_backoff", "300s")
	v.SetDefault("monitor.stop_timeout", "5s")
}

// BindEnv enables NOTIFYD_* environment overrides on v.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// Load decodes the settings held by v into a validated Config and stores it
// as the current configuration. A nil v uses the global viper instance.
//
// This function is safe to call multiple times (e.g., for config reload)
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.GetViper()
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate rejects settings the control plane cannot run with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port out of range: %d", c.Server.Port))
	}
	if c.RateLimit.Capacity <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.capacity must be positive, got %d", c.RateLimit.Capacity))
	}
	if c.RateLimit.Window <= 0 {
		errs = append(errs, fmt.Errorf("rate_limit.window must be positive, got %s", c.RateLimit.Window))
	}
	if c.Health.CacheTTL <= 0 {
		errs = append(errs, fmt.Errorf("health.cache_ttl must be positive, got %s", c.Health.CacheTTL))
	}
	if c.Health.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("health.probe_timeout must be positive, got %s", c.Health.ProbeTimeout))
	}
	if c.Monitor.CheckInterval <= 0 {
		errs = append(errs, fmt.Errorf("monitor.check_interval must be positive, got %s", c.Monitor.CheckInterval))
	}
	if c.Monitor.MaxConsecutiveFailures < 0 {
		errs = append(errs, fmt.Errorf("monitor.max_consecutive_failures must not be negative, got %d", c.Monitor.MaxConsecutiveFailures))
	}
	if c.Monitor.MaxBackoff < c.Monitor.CheckInterval {
		errs = append(errs, fmt.Errorf("monitor.max_backoff (%s) must be at least monitor.check_interval (%s)", c.Monitor.MaxBackoff, c.Monitor.CheckInterval))
	}
	if c.Monitor.StopTimeout <= 0 {
		errs = append(errs, fmt.Errorf("monitor.stop_timeout must be positive, got %s", c.Monitor.StopTimeout))
	}

	switch strings.ToLower(strings.TrimSpace(c.Store.Driver)) {
	case "", "libsql", "postgres":
	default:
		errs = append(errs, fmt.Errorf("unsupported store.driver: %s", c.Store.Driver))
	}
	switch strings.ToLower(strings.TrimSpace(c.Cache.Driver)) {
	case "", "redis", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported cache.driver: %s", c.Cache.Driver))
	}

	return errors.Join(errs...)
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigDir returns the XDG-compliant config directory for the app.
func DefaultConfigDir() string {
	return gfconfig.GetAppConfigDir(ConfigName)
}

// DefaultStorePath returns the XDG-compliant path to the local database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(ConfigName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + BinaryName + ".db"
	}
	return filepath.Join(dataDir, BinaryName+".db")
}
