package shared

import (
	"testing"
	"time"
)

func TestGetEnv(t *testing.T) {
	t.Setenv("TEST_STRING_VAR", "hello")
	if got := GetEnv("TEST_STRING_VAR", "fallback"); got != "hello" {
		t.Errorf("Expected hello, got %s", got)
	}
	if got := GetEnv("TEST_MISSING_VAR", "fallback"); got != "fallback" {
		t.Errorf("Expected fallback, got %s", got)
	}
}

func TestGetIntEnv(t *testing.T) {
	t.Setenv("TEST_INT_VAR", "42")
	if got := GetIntEnv("TEST_INT_VAR", 7); got != 42 {
		t.Errorf("Expected 42, got %d", got)
	}

	t.Setenv("TEST_BAD_INT_VAR", "not-a-number")
	if got := GetIntEnv("TEST_BAD_INT_VAR", 7); got != 7 {
		t.Errorf("Expected default 7 for invalid value, got %d", got)
	}
}

func TestGetBoolEnv(t *testing.T) {
	t.Setenv("TEST_BOOL_VAR", "true")
	if !GetBoolEnv("TEST_BOOL_VAR", false) {
		t.Error("Expected true")
	}
	if GetBoolEnv("TEST_MISSING_BOOL", false) {
		t.Error("Expected default false")
	}
}

func TestGetDurationEnv(t *testing.T) {
	t.Setenv("TEST_DURATION_VAR", "90s")
	if got := GetDurationEnv("TEST_DURATION_VAR", time.Minute); got != 90*time.Second {
		t.Errorf("Expected 90s, got %v", got)
	}

	t.Setenv("TEST_BAD_DURATION_VAR", "soon")
	if got := GetDurationEnv("TEST_BAD_DURATION_VAR", time.Minute); got != time.Minute {
		t.Errorf("Expected default 1m for invalid value, got %v", got)
	}
}

func TestGetStringSliceEnv(t *testing.T) {
	t.Setenv("TEST_SLICE_VAR", "a, b ,c")
	got := GetStringSliceEnv("TEST_SLICE_VAR", []string{"x"})
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("Expected [a b c], got %v", got)
	}

	got = GetStringSliceEnv("TEST_MISSING_SLICE", []string{"x"})
	if len(got) != 1 || got[0] != "x" {
		t.Errorf("Expected default [x], got %v", got)
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("MONGO_URI", "")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when MONGO_URI is missing")
	}

	t.Setenv("MONGO_URI", "mongodb://localhost:27017")
	t.Setenv("JWT_SECRET", "")
	if _, err := LoadConfig(); err == nil {
		t.Error("Expected error when JWT_SECRET is missing")
	}

	t.Setenv("JWT_SECRET", "test-secret")
	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if cfg.Security.JWTExpirationHours != 30*24 {
		t.Errorf("Expected 30-day default token lifetime, got %d hours", cfg.Security.JWTExpirationHours)
	}
	if cfg.Sweep.Interval != time.Hour {
		t.Errorf("Expected hourly default sweep interval, got %v", cfg.Sweep.Interval)
	}
}
