package gateway

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"hostelpass/internal/auth"
	"hostelpass/internal/gateway/util"
	"hostelpass/internal/shared"
)

func TestRequireRole(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireRole(shared.RoleWarden)(next)

	t.Run("Matching Role Passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/warden/stats", nil)
		req = req.WithContext(util.WithPrincipal(req.Context(), util.Principal{ID: "abc", Role: shared.RoleWarden}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("Role Mismatch Is Forbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/warden/stats", nil)
		req = req.WithContext(util.WithPrincipal(req.Context(), util.Principal{ID: "abc", Role: shared.RoleStudent}))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Missing Principal Is Unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/warden/stats", nil)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401, got %d", rec.Code)
		}
	})
}

func TestAuthMiddlewareRejectsUnknownRoleClaim(t *testing.T) {
	const secret = "test-secret"
	authSvc := auth.NewService(nil, shared.SecurityConfig{JWTSecret: secret, JWTExpirationHours: 1}, nil)

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	handler := AuthMiddleware(authSvc)(next)

	mint := func(t *testing.T, role string) string {
		t.Helper()
		claims := auth.Claims{
			UserID: "abc",
			Role:   role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("Failed to sign token: %v", err)
		}
		return token
	}

	t.Run("Known Role Passes", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/student/stats", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, shared.RoleStudent))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("Unknown Role Is Unauthorized", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/student/stats", nil)
		req.Header.Set("Authorization", "Bearer "+mint(t, "faculty"))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("Expected 401 for an unrecognized role claim, got %d", rec.Code)
		}
	})
}
