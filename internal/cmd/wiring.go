package cmd

import (
	"errors"
	"strings"

	"github.com/fulmenhq/gofulmen/logging"

	"github.com/notifyd/notifyd/internal/config"
	"github.com/notifyd/notifyd/internal/health"
	"github.com/notifyd/notifyd/internal/kvstore"
	"github.com/notifyd/notifyd/internal/ratelimit"
	"github.com/notifyd/notifyd/internal/store"
)

// Dependency names reported by the readiness endpoint.
const (
	dependencyDatabase = "database"
	dependencyCache    = "cache"
)

type closableKV interface {
	kvstore.Store
	kvstore.Deleter
	Close() error
}

// dependencies holds the external clients shared by the limiter and the
// health orchestrator.
type dependencies struct {
	db *store.Store
	kv closableKV
}

// openDependencies builds clients without contacting either backend, so an
// unreachable dependency surfaces as degraded readiness rather than a failed
// start.
func openDependencies(cfg *config.Config) (*dependencies, error) {
	db, err := store.Open(cfg.Store)
	if err != nil {
		return nil, err
	}
	return &dependencies{db: db, kv: openKVStore(cfg.Cache)}, nil
}

func openKVStore(cfg config.CacheConfig) closableKV {
	if strings.EqualFold(strings.TrimSpace(cfg.Driver), "memory") {
		return kvstore.NewMemory()
	}
	return kvstore.NewRedis(kvstore.RedisOptions{
		Address:     cfg.Address,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		IOTimeout:   cfg.IOTimeout,
	})
}

func (d *dependencies) Close() error {
	if d == nil {
		return nil
	}
	var errs []error
	if d.kv != nil {
		errs = append(errs, d.kv.Close())
	}
	if d.db != nil {
		errs = append(errs, d.db.Close())
	}
	return errors.Join(errs...)
}

func buildOrchestrator(cfg *config.Config, deps *dependencies, logger *logging.Logger) *health.Orchestrator {
	return health.NewOrchestrator(health.OrchestratorConfig{
		CacheTTL:               cfg.Health.CacheTTL,
		ProbeTimeout:           cfg.Health.ProbeTimeout,
		CheckInterval:          cfg.Monitor.CheckInterval,
		MaxConsecutiveFailures: cfg.Monitor.MaxConsecutiveFailures,
		MaxBackoff:             cfg.Monitor.MaxBackoff,
		StopTimeout:            cfg.Monitor.StopTimeout,
		Logger:                 logger,
	},
		health.Check{Name: dependencyDatabase, Probe: health.PingProbe(deps.db)},
		health.Check{Name: dependencyCache, Probe: health.KVProbe(deps.kv)},
	)
}

// buildLimiter returns nil when rate limiting is disabled.
func buildLimiter(cfg *config.Config, kv kvstore.Store, logger *logging.Logger) *ratelimit.TokenBucket {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return &ratelimit.TokenBucket{
		Store:    kv,
		Capacity: cfg.RateLimit.Capacity,
		Window:   cfg.RateLimit.Window,
		Logger:   logger,
	}
}
