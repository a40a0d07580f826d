package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/soyeahso/concierge/internal/config"
	"github.com/soyeahso/concierge/internal/logging"
	"github.com/soyeahso/concierge/internal/metrics"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func TestLoggingMiddleware_RecordsRoutePattern(t *testing.T) {
	m := metrics.New()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/reservations/{id}", okHandler)

	handler := loggingMiddleware(mux, logging.New(nil, "silent"), m)

	for _, path := range []string{"/v1/reservations/1", "/v1/reservations/2", "/nowhere"} {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest("GET", path, nil))
	}

	assert.Equal(t, 2.0, counterValue(t, m, "concierge_http_requests_total",
		map[string]string{"method": "GET", "path": "GET /v1/reservations/{id}", "status": "200"}))
	assert.Equal(t, 1.0, counterValue(t, m, "concierge_http_requests_total",
		map[string]string{"method": "GET", "path": "unmatched", "status": "404"}))
}

func TestLoggingMiddleware_NilMetrics(t *testing.T) {
	handler := loggingMiddleware(http.HandlerFunc(okHandler), logging.New(nil, "silent"), nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())
}

func TestRequestIDMiddleware(t *testing.T) {
	handler := requestIDMiddleware(http.HandlerFunc(okHandler))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/test", nil))
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("X-Request-ID", "custom-id-123")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, "custom-id-123", rr.Header().Get("X-Request-ID"))
}

func TestCORSMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    string
	}{
		{"deny when unconfigured", nil, "http://localhost:3000", ""},
		{"wildcard", []string{"*"}, "http://localhost:3000", "http://localhost:3000"},
		{"specific allowed", []string{"http://allowed.com"}, "http://allowed.com", "http://allowed.com"},
		{"specific denied", []string{"http://allowed.com"}, "http://evil.com", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := corsMiddleware(http.HandlerFunc(okHandler), tt.allowed)
			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Origin", tt.origin)
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.want, rr.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	handler := corsMiddleware(http.HandlerFunc(okHandler), nil)

	req := httptest.NewRequest("OPTIONS", "/v1/turns", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestRequireAuth(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Auth = config.GatewayAuth{Mode: "token", Token: "secret"}
	s := New(cfg, logging.New(nil, "silent"))
	handler := s.requireAuth(okHandler)

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/reservations", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Contains(t, rr.Header().Get("WWW-Authenticate"), "Bearer")

	req := httptest.NewRequest("GET", "/v1/reservations", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestRequireAuth_ThrottlesRepeatedFailures(t *testing.T) {
	cfg := config.Defaults()
	cfg.Gateway.Auth = config.GatewayAuth{Mode: "token", Token: "secret"}
	s := New(cfg, logging.New(nil, "silent"))
	handler := s.requireAuth(okHandler)

	bad := func() int {
		req := httptest.NewRequest("GET", "/v1/reservations", nil)
		req.RemoteAddr = "10.1.1.1:4000"
		req.Header.Set("Authorization", "Bearer wrong")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr.Code
	}
	for i := 0; i < authRateMaxFails; i++ {
		require.Equal(t, http.StatusUnauthorized, bad())
	}
	assert.Equal(t, http.StatusTooManyRequests, bad())
}

func TestWithMiddleware(t *testing.T) {
	handler := withMiddleware(http.HandlerFunc(okHandler), logging.New(nil, "silent"), nil, []string{"http://test.com"})

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Origin", "http://test.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
	assert.Equal(t, "http://test.com", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestStatusWriterUnwrap(t *testing.T) {
	rr := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rr, status: http.StatusOK}
	assert.Same(t, rr, sw.Unwrap())
	sw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, sw.status)
	assert.Equal(t, http.StatusTeapot, rr.Code)
}
