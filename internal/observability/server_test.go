// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Forgechat Contributors

package observability

import (
	"context"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestServer(t *testing.T) *Server {
	t.Helper()

	srv := NewServer("127.0.0.1:0", func() bool { return true })
	_, err := srv.Start()
	require.NoError(t, err)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	})
	return srv
}

func TestServer_Liveness(t *testing.T) {
	srv := startTestServer(t)

	resp, err := http.Get("http://" + srv.Addr() + "/healthz/liveness")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestServer_ReadinessNotReady(t *testing.T) {
	srv := NewServer("127.0.0.1:0", func() bool { return false })
	_, err := srv.Start()
	require.NoError(t, err)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Stop(ctx)
	}()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz/readiness")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestServer_MetricsIncludeCounters(t *testing.T) {
	srv := startTestServer(t)

	RecordPluginLoad("ok")
	RecordMessage("broadcast")

	resp, err := http.Get("http://" + srv.Addr() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "forgechat_plugin_loads_total")
	assert.Contains(t, string(body), "forgechat_messages_routed_total")
}

func TestServer_StartTwiceFails(t *testing.T) {
	srv := startTestServer(t)

	_, err := srv.Start()
	assert.Error(t, err)
}
