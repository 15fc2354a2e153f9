package server

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mrecommender/internal/metrics"
	"mrecommender/pkg/config"
	"mrecommender/pkg/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestServer builds a server bound to an ephemeral loopback port unless the
// overrides say otherwise.
func newTestServer(t *testing.T, overrides map[string]interface{}) (*Server, *metrics.Metrics) {
	t.Helper()
	cfg := config.Empty()
	require.NoError(t, cfg.Set("server.host", "127.0.0.1"))
	require.NoError(t, cfg.Set("server.port", 0))
	for k, v := range overrides {
		require.NoError(t, cfg.Set(k, v))
	}
	m := metrics.New()
	return New(cfg.GetSubConfig("server"), cfg, m, testLogger()), m
}

func startTestServer(t *testing.T, srv *Server) string {
	t.Helper()
	require.NoError(t, srv.Listen())

	done := make(chan error, 1)
	go func() { done <- srv.Serve() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		assert.NoError(t, srv.Shutdown(ctx))
		assert.NoError(t, <-done)
	})
	return "http://" + srv.Addr()
}

func TestDefaultAddress(t *testing.T) {
	srv := New(config.Empty(), config.Empty(), metrics.New(), testLogger())
	assert.Equal(t, "localhost:3000", srv.Addr())
}

func TestPostAnyPathReturnsFixedBody(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	tests := []struct {
		name        string
		path        string
		body        string
		contentType string
	}{
		{"root empty body", "/", "", ""},
		{"anything path", "/anything", "", ""},
		{"json body ignored", "/", `{"x":1}`, "application/json"},
		{"recommendation path", "/test_recommendation", "[1,2,3]", "application/json"},
		{"unclean path", "//a/../b", "", ""},
		{"query string", "/x?y=1", "garbage", "text/plain"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, req)

			assert.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, []byte("[12345]"), w.Body.Bytes())
		})
	}
}

func TestPostSetsNoExplicitHeaders(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.Empty(t, w.Header())
}

func TestPostIsIdempotent(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	var bodies [][]byte
	for range 2 {
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("[1]")))
		require.Equal(t, http.StatusOK, w.Code)
		bodies = append(bodies, w.Body.Bytes())
	}
	assert.Equal(t, bodies[0], bodies[1])
}

func TestOtherMethodsNotImplemented(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete, http.MethodPatch, http.MethodOptions} {
		t.Run(method, func(t *testing.T) {
			w := httptest.NewRecorder()
			srv.Handler().ServeHTTP(w, httptest.NewRequest(method, "/", nil))

			assert.Equal(t, http.StatusNotImplemented, w.Code)
			assert.NotContains(t, w.Body.String(), models.FixedResponseBody)
			assert.Contains(t, w.Body.String(), method)
		})
	}
}

func TestConfiguredBody(t *testing.T) {
	srv, _ := newTestServer(t, map[string]interface{}{"response.body": "[1,2]"})

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, "[1,2]", w.Body.String())
}

func TestMetricsObserved(t *testing.T) {
	srv, m := newTestServer(t, nil)

	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/", nil))
	srv.Handler().ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal().WithLabelValues("POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal().WithLabelValues("GET", "501")))
}

func TestLatencyDelaysButKeepsBody(t *testing.T) {
	srv, _ := newTestServer(t, map[string]interface{}{
		"latency.enabled": true,
		"latency.min-ms":  20,
		"latency.max-ms":  20,
	})
	assert.True(t, srv.LatencyEnabled())

	start := time.Now()
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))

	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	assert.Equal(t, "[12345]", w.Body.String())
}

func TestServeOverLoopback(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	baseURL := startTestServer(t, srv)

	resp, err := http.Post(baseURL+"/anything", "", nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "[12345]", string(body))
	assert.Equal(t, "7", resp.Header.Get("Content-Length"))

	resp, err = http.Get(baseURL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotImplemented, resp.StatusCode)
}

func TestRawHTTP11Request(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	startTestServer(t, srv)

	conn, err := net.Dial("tcp", srv.Addr())
	require.NoError(t, err)
	defer conn.Close()

	_, err = fmt.Fprintf(conn, "POST /anything HTTP/1.1\r\nHost: localhost\r\nContent-Length: 0\r\nConnection: close\r\n\r\n")
	require.NoError(t, err)

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "200 OK", resp.Status)
	assert.Equal(t, "[12345]", string(body))
}

func TestSecondInstanceFailsToBind(t *testing.T) {
	first, _ := newTestServer(t, nil)
	startTestServer(t, first)

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	second, _ := newTestServer(t, map[string]interface{}{"server.port": port})
	err = second.Listen()
	require.Error(t, err)
	assert.ErrorIs(t, err, syscall.EADDRINUSE)
}

func TestServeWithoutListen(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	assert.Error(t, srv.Serve())
}
