package health

import (
	"context"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"golang.org/x/sync/errgroup"

	"github.com/notifyd/notifyd/internal/metrics"
)

// Readiness status values.
const (
	ReadinessReady    = "ready"
	ReadinessDegraded = "degraded"
)

// LivenessReport answers "is the process alive". It never touches dependencies.
type LivenessReport struct {
	Status string `json:"status"`
}

// Readiness aggregates dependency records. Ready is always true: a degraded
// dependency is reported, not used to pull the instance out of rotation.
type Readiness struct {
	Ready        bool              `json:"ready"`
	Status       string            `json:"status"`
	Degraded     bool              `json:"degraded"`
	Dependencies map[string]Record `json:"dependencies"`
}

// Check names a dependency and how to probe it.
type Check struct {
	Name  string
	Probe Probe
}

// OrchestratorConfig configures an Orchestrator and the components it builds.
type OrchestratorConfig struct {
	CacheTTL     time.Duration
	ProbeTimeout time.Duration

	CheckInterval          time.Duration
	MaxConsecutiveFailures int
	MaxBackoff             time.Duration
	StopTimeout            time.Duration

	Logger *logging.Logger
	Clock  func() time.Time
}

// Orchestrator owns the dependency cache and one reconnect monitor per
// dependency.
type Orchestrator struct {
	cache    *DependencyCache
	monitors map[string]*Monitor

	closeOnce sync.Once
}

// NewOrchestrator wires a cache and monitors for checks. A monitor that sees
// its dependency recover invalidates the cached record so the next readiness
// query reprobes.
func NewOrchestrator(cfg OrchestratorConfig, checks ...Check) *Orchestrator {
	o := &Orchestrator{monitors: make(map[string]*Monitor, len(checks))}

	deps := make([]Dependency, 0, len(checks))
	for _, check := range checks {
		name := check.Name
		monitor := NewMonitor(MonitorConfig{
			Name:         name,
			Probe:        check.Probe,
			BackOff:      NewReconnectBackOff(cfg.CheckInterval, cfg.MaxConsecutiveFailures, cfg.MaxBackoff),
			ProbeTimeout: cfg.ProbeTimeout,
			StopTimeout:  cfg.StopTimeout,
			Logger:       cfg.Logger,
			Clock:        cfg.Clock,
			OnRecover:    func() { o.cache.Invalidate(name) },
		})
		o.monitors[name] = monitor
		deps = append(deps, Dependency{Name: name, Probe: check.Probe, Monitor: monitor})
	}

	o.cache = NewDependencyCache(CacheConfig{
		TTL:          cfg.CacheTTL,
		ProbeTimeout: cfg.ProbeTimeout,
		Logger:       cfg.Logger,
		Clock:        cfg.Clock,
	}, deps...)
	return o
}

// Liveness reports the process as alive.
func (o *Orchestrator) Liveness() LivenessReport {
	return LivenessReport{Status: "alive"}
}

// Readiness checks every dependency concurrently and reports degraded when
// any of them is unhealthy.
func (o *Orchestrator) Readiness(ctx context.Context) Readiness {
	names := o.cache.Names()
	records := make([]Record, len(names))

	g, gctx := errgroup.WithContext(ctx)
	for i, name := range names {
		g.Go(func() error {
			records[i] = o.cache.Check(gctx, name)
			return nil
		})
	}
	_ = g.Wait()

	report := Readiness{
		Ready:        true,
		Status:       ReadinessReady,
		Dependencies: make(map[string]Record, len(names)),
	}
	for i, name := range names {
		report.Dependencies[name] = records[i]
		if !records[i].Healthy {
			report.Degraded = true
		}
	}
	if report.Degraded {
		report.Status = ReadinessDegraded
	}

	metrics.SetReadinessDegraded(report.Degraded)
	return report
}

// Check returns the record for a single dependency.
func (o *Orchestrator) Check(ctx context.Context, name string) Record {
	return o.cache.Check(ctx, name)
}

// Monitor returns the reconnect monitor for name.
func (o *Orchestrator) Monitor(name string) (*Monitor, bool) {
	m, ok := o.monitors[name]
	return m, ok
}

// Monitors returns a snapshot of every monitor keyed by dependency name.
func (o *Orchestrator) Monitors() map[string]MonitorSnapshot {
	out := make(map[string]MonitorSnapshot, len(o.monitors))
	for name, m := range o.monitors {
		out[name] = m.Snapshot()
	}
	return out
}

// Close stops every running monitor. Safe to call more than once.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		var wg sync.WaitGroup
		for _, m := range o.monitors {
			wg.Add(1)
			go func(m *Monitor) {
				defer wg.Done()
				m.Stop()
			}(m)
		}
		wg.Wait()
	})
}
