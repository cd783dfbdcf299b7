package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusBody struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func passing(context.Context) error { return nil }

func failing(msg string) CheckFunc {
	return func(context.Context) error { return errors.New(msg) }
}

func probeHTTP(t *testing.T, handler http.HandlerFunc) (int, statusBody) {
	t.Helper()
	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body statusBody
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func runN(p *probe, n int) {
	for range n {
		p.run(context.Background())
	}
}

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestLiveEndpoint(t *testing.T) {
	t.Run("NoChecks", func(t *testing.T) {
		code, body := probeHTTP(t, New().LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body.Status)
	})
	t.Run("BelowThreshold", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("flaky", time.Second, failing("temporary"))
		runN(h.liveness[0], 2)

		code, _ := probeHTTP(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusOK, code)
	})
	t.Run("Failing", func(t *testing.T) {
		h := New()
		h.AddLivenessCheck("goroutines", time.Second, passing)
		h.AddLivenessCheck("gc", time.Second, failing("GC pause too long"))
		runN(h.liveness[1], 3)

		code, body := probeHTTP(t, h.LiveEndpoint)
		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, "unhealthy", body.Status)
		assert.Equal(t, map[string]string{"gc": "GC pause too long"}, body.Checks)
	})
}

func TestReadyEndpoint(t *testing.T) {
	h := New()
	h.AddReadinessCheckWith("storage", time.Second, Thresholds{Failure: 1}, failing("disk full"))

	code, body := probeHTTP(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	h.SetReady(true)
	code, _ = probeHTTP(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, h.IsReady())

	runN(h.readiness[0], 1)
	code, body = probeHTTP(t, h.ReadyEndpoint)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "disk full", body.Checks["storage"])
	assert.NotContains(t, body.Checks, "_readiness")
	assert.False(t, h.IsReady())

	// Draining.
	h.readiness[0].check = passing
	runN(h.readiness[0], 1)
	require.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}

func TestProbe_Recovery(t *testing.T) {
	h := New()
	h.AddLivenessCheckWith("flaky", time.Second, Thresholds{Failure: 2, Success: 2}, failing("down"))
	p := h.liveness[0]
	assert.Nil(t, p.err())

	runN(p, 2)
	assert.False(t, p.healthy.Load())
	assert.EqualError(t, p.err(), "down")

	p.check = passing
	runN(p, 1)
	assert.False(t, p.healthy.Load(), "one pass is below the success threshold")
	runN(p, 1)
	assert.True(t, p.healthy.Load())
}

func TestProbe_Timeout(t *testing.T) {
	h := New()
	h.AddReadinessCheckWith("slow", 10*time.Millisecond, Thresholds{Failure: 1}, func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	runN(h.readiness[0], 1)
	assert.ErrorIs(t, h.readiness[0].err(), context.DeadlineExceeded)
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("live", time.Second, failing("err"))
	h.AddReadinessCheck("ready", time.Second, passing)
	h.SetReady(true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Start(ctx, 5*time.Millisecond)

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				h.IsReady()
				h.LiveEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/livez", nil))
				h.ReadyEndpoint(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/readyz", nil))
			}
		}()
	}
	wg.Wait()

	assert.Eventually(t, func() bool {
		w := httptest.NewRecorder()
		h.LiveEndpoint(w, httptest.NewRequest(http.MethodGet, "/livez", nil))
		return w.Code == http.StatusServiceUnavailable
	}, time.Second, 10*time.Millisecond)

	h.Stop()
	h.Stop()
}

func TestCheckers(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))
	assert.ErrorContains(t, GoroutineCountCheck(0)(context.Background()), "exceeds threshold")
	assert.NoError(t, GCMaxPauseCheck(time.Hour)(context.Background()))

	ok := PingCheck(pingerFunc(func(context.Context) error { return nil }))
	assert.NoError(t, ok(context.Background()))

	down := PingCheck(pingerFunc(func(context.Context) error { return errors.New("stat orders.json: permission denied") }))
	assert.ErrorContains(t, down(context.Background()), "ping: stat orders.json")
}
