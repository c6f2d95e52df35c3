package adminhttp_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/medusa-ds9/medusad/internal/adminhttp"
	"github.com/stretchr/testify/require"
)

func TestHealthzReflectsReadiness(t *testing.T) {
	s := adminhttp.New()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	s.SetReady(true)
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpointServes(t *testing.T) {
	s := adminhttp.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

// TestShutdownUnblocksListenAndServe pins that Shutdown, called
// concurrently with ListenAndServe, always reaches the same *http.Server
// (constructed eagerly in New) and causes ListenAndServe to return nil
// rather than hang.
func TestShutdownUnblocksListenAndServe(t *testing.T) {
	s := adminhttp.New()

	errCh := make(chan error, 1)
	go func() { errCh <- s.ListenAndServe("127.0.0.1:0") }()

	// Shutdown may race ahead of the listener actually binding; that's
	// fine, it only needs to race ahead of nothing nil-able.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, s.Shutdown(context.Background()))

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("ListenAndServe did not return after Shutdown")
	}
}
