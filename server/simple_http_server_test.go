package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mfkey/pkg"
)

func TestMetricsEndpoint(t *testing.T) {
	metrics := pkg.NewMetrics()
	metrics.KeysFound.Inc()
	metrics.Sessions.WithLabelValues("found").Inc()

	s := NewMetricsServer(":0", metrics, zap.NewNop())

	req, err := http.NewRequest(http.MethodGet, "/metrics", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "mfkey_keys_found_total 1")
	assert.Contains(t, rr.Body.String(), `mfkey_sessions_total{result="found"} 1`)
}

func TestHealthz(t *testing.T) {
	s := NewMetricsServer(":0", pkg.NewMetrics(), zap.NewNop())

	req, err := http.NewRequest(http.MethodGet, "/healthz", nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req, err = http.NewRequest(http.MethodPost, "/healthz", nil)
	require.NoError(t, err)
	rr = httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}
