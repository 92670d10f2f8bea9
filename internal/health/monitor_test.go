package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastBackOff() backoff.BackOff {
	return NewReconnectBackOff(5*time.Millisecond, 3, 20*time.Millisecond)
}

func TestMonitor_RecoversAndStopsItself(t *testing.T) {
	var calls, recoveries atomic.Int32
	recovered := make(chan struct{}, 2)

	m := NewMonitor(MonitorConfig{
		Name: "database",
		Probe: func(ctx context.Context) error {
			if calls.Add(1) < 3 {
				return ConnectivityError(errors.New("refused"))
			}
			return nil
		},
		BackOff: fastBackOff(),
		OnRecover: func() {
			recoveries.Add(1)
			recovered <- struct{}{}
		},
	})

	require.True(t, m.Start())

	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not recover")
	}

	require.Eventually(t, func() bool { return !m.Running() }, time.Second, 5*time.Millisecond)
	snap := m.Snapshot()
	assert.False(t, snap.Running)
	assert.Zero(t, snap.ConsecutiveFailures)
	require.NotNil(t, snap.LastCheckTime)
	assert.EqualValues(t, 3, calls.Load())

	// a later Start launches a fresh loop
	require.True(t, m.Start())
	require.Eventually(t, func() bool { return recoveries.Load() == 2 }, time.Second, 5*time.Millisecond)
	assert.False(t, m.Running())
}

func TestMonitor_ConcurrentStartLaunchesOneLoop(t *testing.T) {
	var active, peak atomic.Int32
	release := make(chan struct{})

	m := NewMonitor(MonitorConfig{
		Name: "cache",
		Probe: func(ctx context.Context) error {
			n := active.Add(1)
			defer active.Add(-1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			select {
			case <-release:
			case <-ctx.Done():
			}
			return ConnectivityError(errors.New("down"))
		},
		BackOff:     fastBackOff(),
		StopTimeout: time.Second,
	})

	var started atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if m.Start() {
				started.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 1, started.Load())
	assert.True(t, m.Running())

	close(release)
	require.True(t, m.Stop())
	assert.False(t, m.Running())
	assert.EqualValues(t, 1, peak.Load())
}

func TestMonitor_StopInterruptsWait(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(MonitorConfig{
		Name: "database",
		Probe: func(ctx context.Context) error {
			calls.Add(1)
			return ConnectivityError(errors.New("refused"))
		},
		BackOff: NewReconnectBackOff(time.Hour, 3, time.Hour),
	})

	require.True(t, m.Start())
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, time.Millisecond)

	start := time.Now()
	require.True(t, m.Stop())
	assert.Less(t, time.Since(start), time.Second)
	assert.False(t, m.Running())
	assert.EqualValues(t, 1, calls.Load())

	assert.False(t, m.Stop(), "second Stop is a no-op")
}

func TestMonitor_StopIsBoundedWhenProbeHangs(t *testing.T) {
	unblock := make(chan struct{})
	defer close(unblock)

	entered := make(chan struct{})
	var once sync.Once
	m := NewMonitor(MonitorConfig{
		Name: "database",
		Probe: func(ctx context.Context) error {
			once.Do(func() { close(entered) })
			<-unblock
			return nil
		},
		StopTimeout: 50 * time.Millisecond,
	})

	require.True(t, m.Start())
	<-entered

	start := time.Now()
	require.True(t, m.Stop())
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, time.Second)
	assert.False(t, m.Running())
}

func TestMonitor_PanicCountsAsFailure(t *testing.T) {
	var calls atomic.Int32
	recovered := make(chan struct{})

	m := NewMonitor(MonitorConfig{
		Name: "database",
		Probe: func(ctx context.Context) error {
			if calls.Add(1) == 1 {
				panic("driver bug")
			}
			return nil
		},
		BackOff:   fastBackOff(),
		OnRecover: func() { close(recovered) },
	})

	require.True(t, m.Start())
	select {
	case <-recovered:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not survive the panic")
	}
	assert.EqualValues(t, 2, calls.Load())
}

func TestMonitor_FailuresAccumulate(t *testing.T) {
	var calls atomic.Int32
	m := NewMonitor(MonitorConfig{
		Name: "database",
		Probe: func(ctx context.Context) error {
			calls.Add(1)
			return errors.New("unexpected")
		},
		BackOff: NewReconnectBackOff(time.Millisecond, 100, time.Millisecond),
	})

	require.True(t, m.Start())
	require.Eventually(t, func() bool { return m.Snapshot().ConsecutiveFailures >= 12 }, 2*time.Second, time.Millisecond)
	require.True(t, m.Stop())

	// Start resets the counter
	m.probe = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	require.True(t, m.Start())
	assert.Zero(t, m.Snapshot().ConsecutiveFailures)
	require.True(t, m.Stop())
}

type stopAfter struct {
	n     int
	calls int
}

func (s *stopAfter) NextBackOff() time.Duration {
	s.calls++
	if s.calls >= s.n {
		return backoff.Stop
	}
	return time.Millisecond
}

func (s *stopAfter) Reset() { s.calls = 0 }

func TestMonitor_BackOffStopEndsLoop(t *testing.T) {
	m := NewMonitor(MonitorConfig{
		Name:    "database",
		Probe:   func(ctx context.Context) error { return ConnectivityError(errors.New("down")) },
		BackOff: &stopAfter{n: 2},
	})

	require.True(t, m.Start())
	require.Eventually(t, func() bool { return !m.Running() }, time.Second, time.Millisecond)
	assert.Equal(t, 2, m.Snapshot().ConsecutiveFailures)
	assert.False(t, m.Stop())
}

func TestMonitor_ProbeContextCanceledOnStop(t *testing.T) {
	canceled := make(chan struct{})
	entered := make(chan struct{})

	m := NewMonitor(MonitorConfig{
		Name: "database",
		Probe: func(ctx context.Context) error {
			close(entered)
			<-ctx.Done()
			close(canceled)
			return ctx.Err()
		},
		StopTimeout: time.Second,
	})

	require.True(t, m.Start())
	<-entered
	require.True(t, m.Stop())

	select {
	case <-canceled:
	default:
		t.Fatal("probe context was not canceled by Stop")
	}
}

func TestMonitor_AbandonedLoopDoesNotTouchRestartedLoop(t *testing.T) {
	tests := []struct {
		name     string
		staleErr error
	}{
		{name: "stale success", staleErr: nil},
		{name: "stale failure", staleErr: ConnectivityError(errors.New("late refusal"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls, recoveries atomic.Int32
			entered := make(chan struct{})
			unblock := make(chan struct{})

			m := NewMonitor(MonitorConfig{
				Name: "database",
				// the first call ignores its context, like a blocking driver ping
				Probe: func(ctx context.Context) error {
					if calls.Add(1) == 1 {
						close(entered)
						<-unblock
						return tt.staleErr
					}
					return ConnectivityError(errors.New("still down"))
				},
				BackOff:     NewReconnectBackOff(time.Hour, 3, time.Hour),
				StopTimeout: 20 * time.Millisecond,
				OnRecover:   func() { recoveries.Add(1) },
			})
			t.Cleanup(func() { m.Stop() })

			require.True(t, m.Start())
			<-entered
			require.True(t, m.Stop(), "Stop gives up after the timeout")

			require.True(t, m.Start())
			require.Eventually(t, func() bool { return m.Snapshot().ConsecutiveFailures == 1 }, time.Second, time.Millisecond)

			close(unblock)

			assert.Never(t, func() bool {
				snap := m.Snapshot()
				return recoveries.Load() > 0 || !snap.Running || snap.ConsecutiveFailures != 1
			}, 100*time.Millisecond, 5*time.Millisecond)
			assert.EqualValues(t, 2, calls.Load())
		})
	}
}
