package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/same-codec/internal/adapter/http"
	"github.com/couchcryptid/same-codec/internal/same"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockAlertLog struct {
	alerts []same.Alert
}

func (m *mockAlertLog) Recent() []same.Alert { return m.alerts }

func newTestServer(readyErr error, alerts httpadapter.AlertLog) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, alerts, slog.Default())
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("demodulator not started"), nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "demodulator not started", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAlertsEndpoint(t *testing.T) {
	log := &mockAlertLog{alerts: []same.Alert{{
		Raw:        "ZCZC-WXR-TOR-039173+0045-0121415-KEAS    -",
		Confidence: 1.0,
		BurstCount: 3,
	}}}
	srv := newTestServer(nil, log)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Alerts []same.Alert `json:"alerts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Alerts, 1)
	assert.Equal(t, 3, body.Alerts[0].BurstCount)
}

func TestAlertsEndpoint_NilLog(t *testing.T) {
	srv := newTestServer(nil, nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/alerts", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"alerts":[]`)
}

func TestValidateEndpoint(t *testing.T) {
	srv := newTestServer(nil, nil)

	t.Run("valid header", func(t *testing.T) {
		body := `{"originator":"WXR","event_code":"TOR","location_codes":["039173"],"valid_minutes":45,"issue_time":{"Day":12,"Hour":14,"Minute":15},"station_id":"KEAS"}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/headers/validate", strings.NewReader(body))

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "valid", resp["status"])
		assert.Equal(t, "ZCZC-WXR-TOR-039173+0045-0121415-KEAS    -", resp["wire"])
	})

	t.Run("invalid event code", func(t *testing.T) {
		body := `{"originator":"WXR","event_code":"QQQ","location_codes":["039173"],"valid_minutes":45,"station_id":"KEAS"}`
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/headers/validate", strings.NewReader(body))

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		var resp map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "invalid", resp["status"])
		assert.Equal(t, "event_code", resp["field"])
	})

	t.Run("malformed body", func(t *testing.T) {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/v1/headers/validate", strings.NewReader("{not json"))

		srv.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
