package integration

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notifyd/notifyd/internal/health"
	"github.com/notifyd/notifyd/internal/kvstore"
	"github.com/notifyd/notifyd/internal/observability"
	"github.com/notifyd/notifyd/internal/ratelimit"
	"github.com/notifyd/notifyd/internal/server"
)

// instance is one service replica wired to the shared cache.
type instance struct {
	url    string
	client *http.Client
	health *health.Orchestrator
}

func newInstance(t *testing.T, mr *miniredis.Miniredis, capacity int) instance {
	t.Helper()

	kv := kvstore.NewRedis(kvstore.RedisOptions{
		Address:     mr.Addr(),
		DialTimeout: 200 * time.Millisecond,
		IOTimeout:   200 * time.Millisecond,
	})
	t.Cleanup(func() { _ = kv.Close() })

	orchestrator := health.NewOrchestrator(health.OrchestratorConfig{
		CacheTTL:      50 * time.Millisecond,
		ProbeTimeout:  time.Second,
		CheckInterval: time.Hour,
		StopTimeout:   time.Second,
	}, health.Check{Name: "cache", Probe: health.KVProbe(kv)})
	t.Cleanup(orchestrator.Close)

	limiter := &ratelimit.TokenBucket{Store: kv, Capacity: capacity, Window: time.Minute}

	ts, client := newTestServer(t, server.Options{Health: orchestrator, Limiter: limiter}, func(r chi.Router) {
		r.Post("/v1/notifications", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})
	})
	return instance{url: ts.URL, client: client, health: orchestrator}
}

func post(t *testing.T, inst instance, path string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, inst.url+path, nil)
	require.NoError(t, err)
	req.Header.Set("X-Forwarded-For", "203.0.113.7")
	resp, err := inst.client.Do(req)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	return resp
}

func readiness(t *testing.T, inst instance) health.Readiness {
	t.Helper()
	resp, err := inst.client.Get(inst.url + "/health/ready")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var report health.Readiness
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	return report
}

func TestRateLimitSharedAcrossInstances(t *testing.T) {
	observability.InitServerLogger("test", "error")

	mr := miniredis.RunT(t)
	a := newInstance(t, mr, 3)
	b := newInstance(t, mr, 3)

	assert.Equal(t, http.StatusAccepted, post(t, a, "/v1/notifications").StatusCode)
	assert.Equal(t, http.StatusAccepted, post(t, b, "/v1/notifications").StatusCode)
	assert.Equal(t, http.StatusAccepted, post(t, a, "/v1/notifications").StatusCode)

	denied := post(t, b, "/v1/notifications")
	require.Equal(t, http.StatusTooManyRequests, denied.StatusCode)
	assert.Equal(t, "20", denied.Header.Get("Retry-After"))

	// probes are never limited
	assert.True(t, readiness(t, a).Ready)
}

func TestCacheOutageFailsOpenAndDegrades(t *testing.T) {
	observability.InitServerLogger("test", "error")

	mr := miniredis.RunT(t)
	inst := newInstance(t, mr, 1)

	report := readiness(t, inst)
	assert.False(t, report.Degraded)
	assert.Equal(t, health.StatusHealthy, report.Dependencies["cache"].Status)

	mr.Close()
	time.Sleep(60 * time.Millisecond)

	// the limiter admits every request while the cache is down
	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusAccepted, post(t, inst, "/v1/notifications").StatusCode)
	}

	report = readiness(t, inst)
	assert.True(t, report.Ready)
	assert.True(t, report.Degraded)
	assert.Equal(t, health.StatusUnhealthy, report.Dependencies["cache"].Status)

	monitor, ok := inst.health.Monitor("cache")
	require.True(t, ok)
	assert.True(t, monitor.Running())
}
