package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func withChiAction(r *http.Request, action string) *http.Request {
	return withChiParam(r, "action", action)
}

func TestPing(t *testing.T) {
	h := NewHealthHandler(nil)
	rr := httptest.NewRecorder()
	h.Ping(rr, withChiAction(httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil), "ping"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, "pong", env.Message)
}

func TestStatus_ReportsConnections(t *testing.T) {
	h := NewHealthHandler(func() int { return 7 })
	rr := httptest.NewRecorder()
	h.Ping(rr, withChiAction(httptest.NewRequest(http.MethodGet, "/v1/health-check/status", nil), "status"))

	assert.Equal(t, http.StatusOK, rr.Code)
	var env healthEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&env))
	assert.Equal(t, 7, env.Connections)
}

func TestPing_UnknownAction(t *testing.T) {
	h := NewHealthHandler(nil)
	rr := httptest.NewRecorder()
	h.Ping(rr, withChiAction(httptest.NewRequest(http.MethodGet, "/v1/health-check/nope", nil), "nope"))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
