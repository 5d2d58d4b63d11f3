package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveryWritesInternalError(t *testing.T) {
	collector := setupTelemetry(t)

	handler := RequestID(Recovery(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/blacklist", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "Internal server error", body.Error)
	assert.Equal(t, "INTERNAL_ERROR", body.Code)
	assert.Equal(t, "req-1", body.RequestID)
	assert.NotContains(t, rec.Body.String(), "boom")

	assert.Equal(t, 1, collector.CountMetricsByName("panics_total"))
}

func TestClientIDMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		trustHeaders bool
		forwarded    string
		remoteAddr   string
		want         string
	}{
		{"forwarded header trusted", true, "203.0.113.7, 10.0.0.1", "10.0.0.1:4000", "203.0.113.7"},
		{"forwarded header ignored", false, "203.0.113.7", "198.51.100.2:4000", "198.51.100.2"},
		{"loopback remote", true, "", "127.0.0.1:5555", "localhost"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := ClientID(tt.trustHeaders)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = GetClientID(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/blacklist", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			assert.Equal(t, tt.want, got)
		})
	}
}
