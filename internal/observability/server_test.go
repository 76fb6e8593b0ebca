// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

package observability_test

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/chafer-dev/chafer/internal/observability"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func startServer(t *testing.T, ready observability.ReadinessChecker) *observability.Server {
	t.Helper()
	srv := observability.NewServer("127.0.0.1:0", ready)
	_, err := srv.Start()
	require.NoError(t, err)
	t.Cleanup(http.DefaultClient.CloseIdleConnections)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		require.NoError(t, srv.Stop(ctx))
	})
	return srv
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:gosec // test-local URL
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestServer_Liveness(t *testing.T) {
	srv := startServer(t, nil)

	status, body := get(t, fmt.Sprintf("http://%s/healthz/liveness", srv.Addr()))
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok\n", body)
}

func TestServer_Readiness(t *testing.T) {
	ready := false
	srv := startServer(t, func() bool { return ready })

	status, _ := get(t, fmt.Sprintf("http://%s/healthz/readiness", srv.Addr()))
	assert.Equal(t, http.StatusServiceUnavailable, status)

	ready = true
	status, _ = get(t, fmt.Sprintf("http://%s/healthz/readiness", srv.Addr()))
	assert.Equal(t, http.StatusOK, status)
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := startServer(t, nil)
	srv.Metrics().PluginLoaded("Plugin", "greeter")

	status, body := get(t, fmt.Sprintf("http://%s/metrics", srv.Addr()))
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "chafer_plugin_loads_total")
}

func TestServer_DoubleStart(t *testing.T) {
	srv := startServer(t, nil)

	_, err := srv.Start()
	assert.Error(t, err)
}

func TestServer_StopIdempotent(t *testing.T) {
	srv := observability.NewServer("127.0.0.1:0", nil)
	_, err := srv.Start()
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, srv.Stop(ctx))
	require.NoError(t, srv.Stop(ctx))
}
