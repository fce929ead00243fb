package httpserver

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/ruteri/dice-device-identity/api"
	"github.com/ruteri/dice-device-identity/api/identityhandler"
	"github.com/ruteri/dice-device-identity/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dev, err := device.Create(device.Config{Log: logger})
	require.NoError(t, err)
	t.Cleanup(dev.Destroy)

	srv, err := New(&api.HTTPServerConfig{
		ListenAddr:               "127.0.0.1:0",
		Log:                      logger,
		DrainDuration:            time.Millisecond,
		GracefulShutdownDuration: time.Second,
	}, identityhandler.NewHandler(dev, logger))
	require.NoError(t, err)
	return srv
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestHealthAndDrain(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, "/livez").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)

	w := get(t, h, "/drain")
	assert.Contains(t, w.Body.String(), `"draining"`)
	assert.Contains(t, get(t, h, "/drain").Body.String(), "already draining")
	assert.Equal(t, http.StatusServiceUnavailable, get(t, h, "/readyz").Code)

	assert.Contains(t, get(t, h, "/undrain").Body.String(), `"ready"`)
	assert.Contains(t, get(t, h, "/undrain").Body.String(), "already ready")
	assert.Equal(t, http.StatusOK, get(t, h, "/readyz").Code)
}

func TestRequestID(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	w := get(t, h, "/livez")
	assert.Len(t, w.Header().Get(api.RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/livez", nil)
	req.Header.Set(api.RequestIDHeader, "caller-id")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.Equal(t, "caller-id", w.Header().Get(api.RequestIDHeader))
}

func TestIdentityRoutesAndMetrics(t *testing.T) {
	srv := newTestServer(t)
	h := srv.Handler()

	assert.Equal(t, http.StatusOK, get(t, h, api.IdentityPath).Code)
	assert.Equal(t, http.StatusOK, get(t, h, api.ChainPath).Code)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, api.LeafCSRPath, strings.NewReader(`{"common_name":"leaf"}`)))
	require.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, api.LeafCSRPath, strings.NewReader(`{"common_name":""}`)))
	require.Equal(t, http.StatusBadRequest, w.Code)

	count, err := testutil.GatherAndCount(srv.Metrics().Registry(), "dice_device_identity_leaf_csr_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(srv.Metrics().Registry(), "dice_device_identity_http_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}
