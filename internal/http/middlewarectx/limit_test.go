package middlewarectx

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingThrottleMetrics struct {
	throttled atomic.Int32
}

func (m *countingThrottleMetrics) LoginThrottled() { m.throttled.Add(1) }

func newNoopLoggerLimit() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestLoginThrottle_Middleware(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	m := &countingThrottleMetrics{}
	throttle := NewLoginThrottle(1, 2, m)
	throttle.now = func() time.Time { return now }

	handler := throttle.Middleware(newNoopLoggerLimit())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	do := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	t.Run("burst then throttled", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do("10.0.0.1:1111"))
		assert.Equal(t, http.StatusOK, do("10.0.0.1:2222"))
		assert.Equal(t, http.StatusTooManyRequests, do("10.0.0.1:3333"))
		assert.Equal(t, int32(1), m.throttled.Load())
	})

	t.Run("other clients are not affected", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, do("10.0.0.2:1111"))
	})

	t.Run("tokens come back over time", func(t *testing.T) {
		now = now.Add(time.Second)
		assert.Equal(t, http.StatusOK, do("10.0.0.1:4444"))
	})
}

func TestLoginThrottle_Cleanup(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	throttle := NewLoginThrottle(5, 10, &countingThrottleMetrics{})
	throttle.now = func() time.Time { return now }

	throttle.Allow("10.0.0.1")
	now = now.Add(10 * time.Minute)
	throttle.Allow("10.0.0.2")

	assert.Equal(t, 1, throttle.Cleanup(5*time.Minute))
	assert.Len(t, throttle.clients, 1)
	assert.Contains(t, throttle.clients, "10.0.0.2")
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.5:5555"
	assert.Equal(t, "192.168.1.5", clientIP(req))

	req.RemoteAddr = "192.168.1.5"
	assert.Equal(t, "192.168.1.5", clientIP(req))
}
