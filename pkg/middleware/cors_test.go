package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func corsProbe(t *testing.T, cfg CORSConfig, method, origin string) *httptest.ResponseRecorder {
	t.Helper()

	handler := CORS(cfg)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(method, "/", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestCORS_OriginMatrix(t *testing.T) {
	prod := CORSConfig{
		AllowedOrigins: []string{"https://example.com", "https://admin.example.com"},
		Environment:    "production",
	}
	dev := CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	}

	tests := []struct {
		name        string
		cfg         CORSConfig
		origin      string
		wantAllow   string
		wantVarySet bool
	}{
		{"dev wildcard any origin", dev, "https://evil.com", "*", false},
		{"dev wildcard no origin", dev, "", "*", false},
		{"prod first origin", prod, "https://example.com", "https://example.com", true},
		{"prod second origin", prod, "https://admin.example.com", "https://admin.example.com", true},
		{"prod unknown origin", prod, "https://evil.com", "", false},
		{"prod no origin", prod, "", "", false},
		{
			"prod wildcard in list",
			CORSConfig{AllowedOrigins: []string{"https://example.com", "*"}, Environment: "production"},
			"https://anything.com", "*", false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := corsProbe(t, tt.cfg, http.MethodGet, tt.origin)

			assert.Equal(t, tt.wantAllow, rr.Header().Get("Access-Control-Allow-Origin"))
			if tt.wantVarySet {
				assert.Equal(t, "Origin", rr.Header().Get("Vary"))
			}
			// A disallowed origin is not an HTTP error; the browser enforces it.
			assert.Equal(t, http.StatusOK, rr.Code)
		})
	}
}

func TestCORS_PreflightShortCircuits(t *testing.T) {
	reached := false
	handler := CORS(CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
	}))

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://example.com")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())
	assert.False(t, reached, "preflight must not reach the next handler")
}

func TestCORS_HeaderConfiguration(t *testing.T) {
	rr := corsProbe(t, CORSConfig{
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"Accept", "Authorization", "X-Custom"},
		ExposedHeaders: []string{"X-Correlation-ID", "X-Total-Count"},
		MaxAge:         7200,
		Environment:    "development",
	}, http.MethodGet, "")

	assert.Equal(t, "Accept, Authorization, X-Custom", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "X-Correlation-ID, X-Total-Count", rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Equal(t, "7200", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORS_AllowCredentials(t *testing.T) {
	rr := corsProbe(t, CORSConfig{
		AllowedOrigins:   []string{"https://example.com"},
		AllowCredentials: true,
		Environment:      "production",
	}, http.MethodGet, "https://example.com")

	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
}

func TestCORS_EmptyFieldsGetDefaults(t *testing.T) {
	rr := corsProbe(t, CORSConfig{
		AllowedOrigins: []string{"*"},
		Environment:    "development",
	}, http.MethodGet, "")

	assert.Equal(t, "GET, POST, PUT, PATCH, DELETE, OPTIONS", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Contains(t, rr.Header().Get("Access-Control-Allow-Headers"), "X-Correlation-ID")
	assert.Equal(t, "3600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestDefaultCORSConfig(t *testing.T) {
	cfg := DefaultCORSConfig()

	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Contains(t, cfg.AllowedMethods, "GET")
	assert.Contains(t, cfg.AllowedMethods, "DELETE")
	assert.Contains(t, cfg.AllowedHeaders, "X-Correlation-ID")
	assert.Equal(t, []string{"X-Correlation-ID"}, cfg.ExposedHeaders)
	assert.Equal(t, 3600, cfg.MaxAge)
	assert.Equal(t, "development", cfg.Environment)
}
