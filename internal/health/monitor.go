package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/notifyd/notifyd/internal/metrics"
)

// DefaultStopTimeout bounds how long Stop waits for the loop to exit.
const DefaultStopTimeout = 5 * time.Second

// escalateEvery is how often a run of failures is logged at error level.
const escalateEvery = 10

// MonitorConfig configures a Monitor.
type MonitorConfig struct {
	// Name identifies the dependency in logs and metrics.
	Name  string
	Probe Probe

	// BackOff yields the wait after each failed attempt. Returning
	// backoff.Stop ends the loop. Defaults to NewReconnectBackOff(0, 3, 0).
	BackOff backoff.BackOff

	// ProbeTimeout bounds each attempt. Zero means no per-attempt deadline.
	ProbeTimeout time.Duration
	StopTimeout  time.Duration

	Logger *logging.Logger

	// OnRecover runs on the loop goroutine after the dependency recovers.
	OnRecover func()

	Clock func() time.Time
}

// MonitorSnapshot is a read-only view of a monitor's state.
type MonitorSnapshot struct {
	Running             bool       `json:"running"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastCheckTime       *time.Time `json:"last_check_time,omitempty"`
}

// Monitor polls an unhealthy dependency until it recovers. It runs only while
// started and exits on its own after the first successful probe.
type Monitor struct {
	name         string
	probe        Probe
	backOff      backoff.BackOff
	probeTimeout time.Duration
	stopTimeout  time.Duration
	logger       *logging.Logger
	onRecover    func()
	clock        func() time.Time

	running atomic.Bool

	// mu guards the fields below and the backOff schedule.
	mu        sync.Mutex
	stop      chan struct{}
	done      chan struct{}
	failures  int
	lastCheck time.Time
}

// NewMonitor builds a stopped monitor.
func NewMonitor(cfg MonitorConfig) *Monitor {
	m := &Monitor{
		name:         cfg.Name,
		probe:        cfg.Probe,
		backOff:      cfg.BackOff,
		probeTimeout: cfg.ProbeTimeout,
		stopTimeout:  cfg.StopTimeout,
		logger:       cfg.Logger,
		onRecover:    cfg.OnRecover,
		clock:        cfg.Clock,
	}
	if m.backOff == nil {
		m.backOff = NewReconnectBackOff(0, DefaultMaxConsecutiveFailures, 0)
	}
	if m.stopTimeout <= 0 {
		m.stopTimeout = DefaultStopTimeout
	}
	if m.clock == nil {
		m.clock = func() time.Time { return time.Now().UTC() }
	}
	return m
}

// Name returns the monitored dependency name.
func (m *Monitor) Name() string {
	return m.name
}

// Start launches the poll loop. It returns false if a loop is already running.
func (m *Monitor) Start() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running.CompareAndSwap(false, true) {
		return false
	}

	m.failures = 0
	m.backOff.Reset()
	stop := make(chan struct{})
	done := make(chan struct{})
	m.stop, m.done = stop, done

	metrics.SetMonitorRunning(m.name, true)
	m.log().Info("Starting reconnect monitor", zap.String("dependency", m.name))

	go m.loop(stop, done)
	return true
}

// Stop signals the loop to exit and waits up to the stop timeout for it.
// It returns false if no loop was running.
func (m *Monitor) Stop() bool {
	m.mu.Lock()
	if !m.running.CompareAndSwap(true, false) {
		m.mu.Unlock()
		return false
	}
	close(m.stop)
	done := m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()

	metrics.SetMonitorRunning(m.name, false)

	timer := time.NewTimer(m.stopTimeout)
	defer timer.Stop()
	select {
	case <-done:
		m.log().Info("Reconnect monitor stopped", zap.String("dependency", m.name))
	case <-timer.C:
		m.log().Warn("Reconnect monitor did not stop in time",
			zap.String("dependency", m.name),
			zap.Duration("timeout", m.stopTimeout))
	}
	return true
}

// Running reports whether a poll loop is active.
func (m *Monitor) Running() bool {
	return m.running.Load()
}

// Snapshot returns the current state.
func (m *Monitor) Snapshot() MonitorSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := MonitorSnapshot{
		Running:             m.running.Load(),
		ConsecutiveFailures: m.failures,
	}
	if !m.lastCheck.IsZero() {
		last := m.lastCheck
		snap.LastCheckTime = &last
	}
	return snap
}

func (m *Monitor) loop(stop, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-stop:
			return
		default:
		}

		err := m.attempt(stop)

		// A loop abandoned by a timed-out Stop must not touch the state of
		// the loop that replaced it.
		m.mu.Lock()
		if m.stop != stop {
			m.mu.Unlock()
			return
		}

		if err == nil {
			failures := m.failures
			m.failures = 0
			m.lastCheck = m.clock()
			m.release(stop)
			m.mu.Unlock()

			m.log().Info("Dependency recovered",
				zap.String("dependency", m.name),
				zap.Int("failed_attempts", failures))
			if m.onRecover != nil {
				m.onRecover()
			}
			return
		}

		m.failures++
		failures := m.failures
		m.lastCheck = m.clock()
		wait := m.backOff.NextBackOff()
		if wait == backoff.Stop {
			m.release(stop)
		}
		m.mu.Unlock()

		metrics.RecordMonitorFailure(m.name)

		fields := []zap.Field{
			zap.String("dependency", m.name),
			zap.Int("consecutive_failures", failures),
			zap.String("kind", KindOf(err).String()),
			zap.Error(err),
		}
		if failures%escalateEvery == 0 {
			m.log().Error("Dependency still unreachable", fields...)
		} else {
			m.log().Info("Reconnect attempt failed", fields...)
		}

		if wait == backoff.Stop {
			m.log().Warn("Reconnect monitor giving up", zap.String("dependency", m.name))
			return
		}

		timer := time.NewTimer(wait)
		select {
		case <-stop:
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// release marks the loop owning stop as finished. Caller holds m.mu.
func (m *Monitor) release(stop chan struct{}) {
	if m.stop != stop {
		return
	}
	m.running.Store(false)
	m.stop, m.done = nil, nil
	metrics.SetMonitorRunning(m.name, false)
}

// attempt runs one probe. The probe context is canceled when stop closes, and
// panics are reported as unexpected failures.
func (m *Monitor) attempt(stop chan struct{}) error {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if m.probeTimeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), m.probeTimeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	defer cancel()

	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	return runProbe(ctx, m.probe)
}

func (m *Monitor) log() optionalLogger {
	return optionalLogger{m.logger}
}
