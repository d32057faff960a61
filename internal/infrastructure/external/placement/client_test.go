package placement

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/pace-notifier/config"
	"github.com/alem-hub/pace-notifier/internal/domain/shared"
	"github.com/alem-hub/pace-notifier/pkg/circuitbreaker"
)

func testConfig(url string) config.PlacementConfig {
	return config.PlacementConfig{
		BaseURL:                   url,
		APIKey:                    "secret",
		RequestTimeout:            time.Second,
		MaxRetries:                2,
		RetryBaseDelay:            time.Millisecond,
		RetryMaxDelay:             2 * time.Millisecond,
		CircuitBreakerThreshold:   2,
		CircuitBreakerTimeout:     time.Hour,
		CircuitBreakerHalfOpenMax: 1,
	}
}

func TestRemainingAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/students/830000001/placement-attempts", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"student_id":"830000001","remaining_attempts":1}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL+"/"), nil)
	n, err := c.RemainingAttempts(context.Background(), "830000001")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRemainingAttempts_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"remaining_attempts":2}`))
	}))
	defer srv.Close()

	n, err := NewClient(testConfig(srv.URL), nil).RemainingAttempts(context.Background(), "830000002")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, int32(3), calls.Load())
}

func TestRemainingAttempts_NotFoundDoesNotTrip(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"code":"NOT_FOUND","message":"no such student"}`))
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	for i := 0; i < 3; i++ {
		_, err := c.RemainingAttempts(context.Background(), "839999999")
		assert.True(t, shared.IsNotFound(err))
	}
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, circuitbreaker.StateClosed, c.State())
}

func TestRemainingAttempts_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(testConfig(srv.URL), nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := c.RemainingAttempts(ctx, "830000003")
		assert.ErrorIs(t, err, shared.ErrExternalService)
	}
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, circuitbreaker.StateOpen, c.State())

	_, err := c.RemainingAttempts(ctx, "830000003")
	assert.ErrorIs(t, err, shared.ErrServiceUnavailable)
	assert.Equal(t, int32(6), calls.Load())
}

func TestRemainingAttempts_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "1")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.MaxRetries = 0
	_, err := NewClient(cfg, nil).RemainingAttempts(context.Background(), "830000004")
	assert.ErrorIs(t, err, shared.ErrRateLimited)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, time.Second, se.RetryAfter)
}

func TestRemainingAttempts_RateLimited_ClientSide(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"remaining_attempts":1}`))
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.RateLimit = 0.01
	cfg.RateBurst = 1
	c := NewClient(cfg, nil)

	_, err := c.RemainingAttempts(context.Background(), "830000001")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.RemainingAttempts(ctx, "830000001")
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}
