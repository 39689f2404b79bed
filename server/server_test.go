package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hrygo/bizcache/internal/profile"
	apierrors "github.com/hrygo/bizcache/server/internal/errors"
	teststore "github.com/hrygo/bizcache/store/test"
)

func newTestServer(t *testing.T, p *profile.Profile) *Server {
	t.Helper()
	ts := teststore.NewTestingStore(context.Background(), t)
	srv, err := NewServer(p, ts, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return srv
}

func serve(srv *Server, method, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func TestServer_Healthz(t *testing.T) {
	srv := newTestServer(t, &profile.Profile{Mode: "dev", Version: "1.2.3"})

	rec := serve(srv, http.MethodGet, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"1.2.3"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_Metrics(t *testing.T) {
	srv := newTestServer(t, &profile.Profile{Mode: "dev"})

	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/v1/products").Code)

	rec := serve(srv, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `bizcache_cache_misses_total{cache="app",policy="fifo"} 1`)
	assert.Contains(t, body, `bizcache_http_requests_total{method="GET",route="/api/v1/products",status="2xx"} 1`)
}

func TestServer_RateLimit(t *testing.T) {
	srv := newTestServer(t, &profile.Profile{Mode: "dev", RateLimitRPS: 0.001, RateLimitBurst: 1})

	require.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/api/v1/products").Code)

	rec := serve(srv, http.MethodGet, "/api/v1/products")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	var body struct {
		Code apierrors.ErrorCode `json:"code"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, apierrors.ErrCodeRateLimitExceeded, body.Code)

	// Health and metrics are not limited.
	assert.Equal(t, http.StatusOK, serve(srv, http.MethodGet, "/healthz").Code)
	metrics := serve(srv, http.MethodGet, "/metrics")
	assert.Contains(t, metrics.Body.String(), "bizcache_http_rate_limited_total 1")
}

func TestServer_StartShutdown(t *testing.T) {
	srv := newTestServer(t, &profile.Profile{Mode: "dev", Addr: "127.0.0.1", Port: 0})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	require.Eventually(t, func() bool { return srv.echoServer.ListenerAddr() != nil }, 2*time.Second, 10*time.Millisecond)

	resp, err := http.Get("http://" + srv.echoServer.ListenerAddr().String() + "/healthz")
	require.NoError(t, err)
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer shutdownCancel()
	require.NoError(t, srv.Shutdown(shutdownCtx))
	require.NoError(t, <-errCh)
}
