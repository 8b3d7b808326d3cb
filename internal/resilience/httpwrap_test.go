package resilience

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestHTTPClientDoOpensBreakerAfterFailures(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	breaker := NewBreaker(2, 0.5, time.Minute)
	cl := HTTPClient{
		Client:      srv.Client(),
		Breaker:     breaker,
		MaxAttempts: 2,
		BaseBackoff: time.Millisecond,
	}

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = cl.Do(ctx, req)
	require.Error(t, err)
	require.False(t, breaker.Allow(ctx), "breaker should open after repeated 5xx reports")
}

func TestHTTPClientDoShortCircuitsWhenOpen(t *testing.T) {
	ctx := context.Background()
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	breaker := NewBreaker(1, 0.5, time.Minute)
	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx))

	cl := HTTPClient{Client: srv.Client(), Breaker: breaker, MaxAttempts: 1}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	_, err = cl.Do(ctx, req)
	require.True(t, errors.Is(err, ErrOpenCircuit))
	require.Equal(t, 0, hits, "open breaker must not reach the server")
}

func TestHTTPClientDoSuccessKeepsBreakerClosed(t *testing.T) {
	ctx := context.Background()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	breaker := NewBreaker(2, 0.5, time.Minute)
	cl := HTTPClient{Client: srv.Client(), Breaker: breaker, MaxAttempts: 1}
	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	resp, err := cl.Do(ctx, req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, breaker.Allow(ctx))
}
