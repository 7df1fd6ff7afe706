package metrics

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewServer_UsesAddress(t *testing.T) {
	server := NewServer(":9999")

	require.NotNil(t, server.server)
	assert.Equal(t, ":9999", server.server.Addr)
	assert.Equal(t, 5*time.Second, server.server.ReadHeaderTimeout)
}

func TestHandler_MetricsEndpoint(t *testing.T) {
	SchemaExecutionsTotal.WithLabelValues("handler-test", "applied").Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")
	assert.Contains(t, string(body), "sharding_orchestrator_schema_executions_total")
}

func TestHandler_Healthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())
}

func TestServer_StartAndShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:19998")
	server.Start()

	time.Sleep(100 * time.Millisecond)
	assert.NoError(t, server.Err())

	resp, err := http.Get("http://127.0.0.1:19998/healthz")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, server.Shutdown(ctx))
}

func TestServer_ErrReportsPortInUse(t *testing.T) {
	first := NewServer("127.0.0.1:19994")
	first.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = first.Shutdown(ctx)
	}()
	time.Sleep(100 * time.Millisecond)

	second := NewServer("127.0.0.1:19994")
	second.Start()
	time.Sleep(100 * time.Millisecond)

	assert.Error(t, second.Err())
}
