package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ConnectionLifecycle(t *testing.T) {
	m := New()

	m.ConnectionAccepted()
	m.ConnectionAccepted()
	m.ConnectionClosed()
	m.ConnectionRejected()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.connectionsAccepted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.connectionsRejected))
}

func TestMetrics_ResponseWritten(t *testing.T) {
	m := New()

	m.ResponseWritten(200, 100, 10*time.Millisecond)
	m.ResponseWritten(200, 50, time.Millisecond)
	m.ResponseWritten(404, 20, time.Millisecond)
	m.MalformedRequest()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("404")))
	assert.Equal(t, 170.0, testutil.ToFloat64(m.bytesWritten))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.parseFailures))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ConnectionAccepted()
		m.ConnectionClosed()
		m.ConnectionRejected()
		m.MalformedRequest()
		m.ResponseWritten(200, 1, time.Millisecond)
	})
}

func TestServer_ServesMetrics(t *testing.T) {
	m := New()
	m.ConnectionAccepted()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(m).Serve(ctx, ln) }()

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + ln.Addr().String() + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "static_server_connections_accepted_total 1")

	resp, err = client.Get("http://" + ln.Addr().String() + "/health")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))

	resp, err = client.Get("http://" + ln.Addr().String() + "/other")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("metrics server did not stop")
	}
}
