package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sparkline-service/internal/infrastructure/clock"
	"sparkline-service/internal/infrastructure/config"
)

func TestTokenBucket_AllowAndRefill(t *testing.T) {
	fc := clock.NewFake(time.Unix(1_700_000_000, 0))
	tb := NewTokenBucketWithClock(3, 2, fc)

	assert.True(t, tb.Allow())
	assert.True(t, tb.AllowN(2))
	assert.False(t, tb.Allow())
	assert.Equal(t, 0, tb.Tokens())

	fc.Advance(500 * time.Millisecond)
	assert.Equal(t, 1, tb.Tokens())

	fc.Advance(10 * time.Second)
	assert.Equal(t, 3, tb.Tokens(), "refill is capped at capacity")
}

func TestTokenBucket_FractionalRefillIsKept(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tb := NewTokenBucketWithClock(1, 1, fc)
	require.True(t, tb.Allow())

	for i := 0; i < 4; i++ {
		fc.Advance(250 * time.Millisecond)
		tb.Tokens()
	}
	assert.True(t, tb.Allow())
}

func TestTokenBucket_WaitBlocksUntilRefill(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tb := NewTokenBucketWithClock(1, 1, fc)
	require.True(t, tb.Allow())

	done := make(chan error, 1)
	go func() { done <- tb.Wait(context.Background(), 1) }()

	require.True(t, fc.BlockUntil(1, time.Second))
	select {
	case <-done:
		t.Fatal("Wait returned before a token was available")
	default:
	}

	fc.Advance(time.Second)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Wait did not return after refill")
	}
}

func TestTokenBucket_WaitHonoursContext(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	tb := NewTokenBucketWithClock(1, 1, fc)
	require.True(t, tb.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, tb.Wait(ctx, 1), context.Canceled)
}

func TestRateLimiterCollection_PerClient(t *testing.T) {
	fc := clock.NewFake(time.Unix(0, 0))
	rlc := NewRateLimiterCollectionWithClock(1, 1, fc)

	assert.True(t, rlc.Allow("a"))
	assert.False(t, rlc.Allow("a"))
	assert.True(t, rlc.Allow("b"))
	assert.Equal(t, 2, rlc.Stats()["total_clients"])

	fc.Advance(time.Hour)
	rlc.Allow("c") // triggers cleanup of idle buckets
	assert.Equal(t, 1, rlc.Stats()["total_clients"])
}

func TestRateLimitMiddleware(t *testing.T) {
	mw := NewRateLimitMiddlewareWithConfig(config.RateLimitConfig{Enabled: true, Capacity: 1, RefillRate: 1})
	handler := mw.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	// health checks and docs are never limited
	for _, path := range []string{"/health", "/docs", "/swagger/doc.json", "/swagger/index.html"} {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestGetClientID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "[::1]:5000"
	assert.Equal(t, "::1", getClientID(req))

	req.Header.Set("X-Real-IP", "192.168.1.9")
	assert.Equal(t, "192.168.1.9", getClientID(req))
}
