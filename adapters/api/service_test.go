package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screwdiag/adapters/filestore"
	"screwdiag/domain/core"
	"screwdiag/internal"
	"screwdiag/internal/config"
	"screwdiag/internal/engine"
	"screwdiag/internal/testkit"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	cfg := config.Default()
	cfg.Store.ModelsDir = t.TempDir()
	cfg.Server.GinMode = "test"

	logger := internal.NewLogger(internal.LogLevelError)
	store, err := filestore.NewStore(cfg.Store.ModelsDir, logger)
	require.NoError(t, err)
	eng, err := engine.New(cfg, store, logger)
	require.NoError(t, err)

	return NewService(eng, cfg.Server, logger)
}

func TestDiagnoseEndpoint(t *testing.T) {
	svc := newTestService(t)
	kit := testkit.NewKit(21)

	c := kit.NormalCurve()
	payload := DiagnoseRequest{
		"CARRIER_1": {
			"H1": CurvePayload{Torque: c.Torque, Angle: c.Angle, Time: c.Time},
		},
	}
	body, err := json.Marshal(payload)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	svc.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp DiagnoseResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.BatchID)
	require.Contains(t, resp.Results, core.CarrierID("CARRIER_1"))
	hole := resp.Results[core.CarrierID("CARRIER_1")][core.HoleID("H1")]
	assert.Equal(t, "OK", string(hole.Status))
	assert.InDelta(t, 5.0, hole.Features.PeakTorque, 0.2)
}

func TestDiagnoseRejectsMalformedBody(t *testing.T) {
	svc := newTestService(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDiagnoseRejectsEmptyPayload(t *testing.T) {
	svc := newTestService(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/diagnose", bytes.NewReader([]byte("{}")))
	req.Header.Set("Content-Type", "application/json")
	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCarriersEndpoint(t *testing.T) {
	svc := newTestService(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/carriers", nil)
	svc.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "carriers")
}
