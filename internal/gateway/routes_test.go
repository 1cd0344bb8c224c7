package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"hostelpass/internal/shared"
)

func TestSetupRoutesUsesConfiguredCORS(t *testing.T) {
	corsCfg := shared.CORSConfig{
		AllowedOrigins:   []string{"https://portal.example.com"},
		AllowedMethods:   []string{"GET", "POST"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	}
	router := SetupRoutes(&Services{}, corsCfg)

	preflight := func(origin, method string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodOptions, "/api/auth/login", nil)
		req.Header.Set("Origin", origin)
		req.Header.Set("Access-Control-Request-Method", method)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	t.Run("Configured Origin And Method Are Allowed", func(t *testing.T) {
		rec := preflight("https://portal.example.com", http.MethodPost)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example.com" {
			t.Errorf("Expected the configured origin to be allowed, got %q", got)
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Expected credentials to be allowed, got %q", got)
		}
		if got := rec.Header().Get("Access-Control-Max-Age"); got != "600" {
			t.Errorf("Expected the configured max age, got %q", got)
		}
	})

	t.Run("Unconfigured Method Is Refused", func(t *testing.T) {
		rec := preflight("https://portal.example.com", http.MethodDelete)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("DELETE is not in the configured methods, got allow-origin %q", got)
		}
	})

	t.Run("Unconfigured Origin Is Refused", func(t *testing.T) {
		rec := preflight("https://evil.example.com", http.MethodGet)
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Unknown origins must not be allowed, got %q", got)
		}
	})
}
