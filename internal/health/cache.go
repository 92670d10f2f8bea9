package health

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/notifyd/notifyd/internal/metrics"
)

// Cache defaults.
const (
	DefaultCacheTTL     = 5 * time.Second
	DefaultProbeTimeout = 3 * time.Second
)

// Reconnector is signaled on health transitions. Both calls must be idempotent.
type Reconnector interface {
	Start() bool
	Stop() bool
}

// Dependency is one tracked external system.
type Dependency struct {
	Name  string
	Probe Probe
	// Monitor is optional.
	Monitor Reconnector
}

// CacheConfig configures a DependencyCache.
type CacheConfig struct {
	TTL          time.Duration
	ProbeTimeout time.Duration
	Logger       *logging.Logger
	Clock        func() time.Time
}

// DependencyCache memoizes probe results per dependency for TTL and signals
// the dependency's monitor when its health flips.
type DependencyCache struct {
	ttl          time.Duration
	probeTimeout time.Duration
	logger       optionalLogger
	clock        func() time.Time

	// entries is fixed at construction and read without locking.
	entries map[string]*cacheEntry
	names   []string
}

type cacheEntry struct {
	dep Dependency

	// mu guards record only. It is never held while probing.
	mu     sync.Mutex
	record *Record
}

// NewDependencyCache tracks deps. Later duplicates of a name replace earlier ones.
func NewDependencyCache(cfg CacheConfig, deps ...Dependency) *DependencyCache {
	c := &DependencyCache{
		ttl:          cfg.TTL,
		probeTimeout: cfg.ProbeTimeout,
		logger:       optionalLogger{cfg.Logger},
		clock:        cfg.Clock,
		entries:      make(map[string]*cacheEntry, len(deps)),
	}
	if c.ttl <= 0 {
		c.ttl = DefaultCacheTTL
	}
	if c.probeTimeout <= 0 {
		c.probeTimeout = DefaultProbeTimeout
	}
	if c.clock == nil {
		c.clock = func() time.Time { return time.Now().UTC() }
	}

	for _, dep := range deps {
		if _, exists := c.entries[dep.Name]; !exists {
			c.names = append(c.names, dep.Name)
		}
		c.entries[dep.Name] = &cacheEntry{dep: dep}
	}
	sort.Strings(c.names)
	return c
}

// Names returns the tracked dependency names in sorted order.
func (c *DependencyCache) Names() []string {
	return append([]string(nil), c.names...)
}

// Check returns the memoized record for name while it is younger than the
// TTL, and probes the dependency otherwise. Unknown names yield a
// disconnected record that is not cached.
func (c *DependencyCache) Check(ctx context.Context, name string) Record {
	entry, ok := c.entries[name]
	if !ok {
		return newRecord(StatusDisconnected, fmt.Sprintf("%s is not a tracked dependency", name), nil, c.clock())
	}

	entry.mu.Lock()
	cached := entry.record
	entry.mu.Unlock()

	if cached != nil && c.clock().Sub(cached.CheckedAt) < c.ttl {
		return *cached
	}

	record := c.probe(ctx, entry.dep)

	entry.mu.Lock()
	previous := entry.record
	stale := previous != nil && record.CheckedAt.Before(previous.CheckedAt)
	if !stale {
		entry.record = &record
	}
	entry.mu.Unlock()

	if !stale {
		c.signal(entry.dep, previous, record)
	}
	return record
}

// Peek returns the memoized record without probing.
func (c *DependencyCache) Peek(name string) (Record, bool) {
	entry, ok := c.entries[name]
	if !ok {
		return Record{}, false
	}
	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.record == nil {
		return Record{}, false
	}
	return *entry.record, true
}

// Invalidate drops the memoized record so the next Check probes again.
func (c *DependencyCache) Invalidate(name string) {
	entry, ok := c.entries[name]
	if !ok {
		return
	}
	entry.mu.Lock()
	entry.record = nil
	entry.mu.Unlock()
}

func (c *DependencyCache) probe(ctx context.Context, dep Dependency) Record {
	if ctx == nil {
		ctx = context.Background()
	}
	probeCtx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	err := runProbe(probeCtx, dep.Probe)
	elapsed := time.Since(start)
	checkedAt := c.clock()

	var record Record
	switch {
	case err == nil:
		ms := float64(elapsed.Microseconds()) / 1000
		record = newRecord(StatusHealthy, dep.Name+" connection healthy", &ms, checkedAt)
	case KindOf(err) == KindConnectivity:
		record = newRecord(StatusUnhealthy, "connection failed: "+err.Error(), nil, checkedAt)
	default:
		record = newRecord(StatusError, "unexpected error: "+err.Error(), nil, checkedAt)
	}

	metrics.RecordHealthCheck(dep.Name, string(record.Status), elapsed)
	return record
}

// signal notifies the monitor about healthy<->unhealthy flips. An absent
// previous record counts as healthy.
func (c *DependencyCache) signal(dep Dependency, previous *Record, current Record) {
	wasHealthy := previous == nil || previous.Healthy

	switch {
	case wasHealthy && !current.Healthy:
		metrics.RecordHealthTransition(dep.Name, "down")
		c.logger.Warn("Dependency became unhealthy",
			zap.String("dependency", dep.Name),
			zap.String("status", string(current.Status)),
			zap.String("message", current.Message))
		if dep.Monitor != nil {
			dep.Monitor.Start()
		}
	case !wasHealthy && current.Healthy:
		metrics.RecordHealthTransition(dep.Name, "up")
		c.logger.Info("Dependency healthy again", zap.String("dependency", dep.Name))
		if dep.Monitor != nil {
			dep.Monitor.Stop()
		}
	}
}

func runProbe(ctx context.Context, probe Probe) (err error) {
	if probe == nil {
		return UnexpectedError(fmt.Errorf("no probe configured"))
	}
	defer func() {
		if r := recover(); r != nil {
			err = UnexpectedError(fmt.Errorf("probe panicked: %v", r))
		}
	}()
	return probe(ctx)
}
