package config

import (
	"os"
	"testing"
	"time"
)

func setRequiredEnv() {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("GATEWAY_SECRET", "gateway-secret-32-characters-ok!")
	os.Setenv("DB_PASSWORD", "test")
}

func TestLoad_GatewayDefaults(t *testing.T) {
	setRequiredEnv()
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Gateway.WindowDuration != 60*time.Second {
		t.Errorf("WindowDuration: got %v, want 60s", cfg.Gateway.WindowDuration)
	}
	if cfg.Gateway.MaxRequests != 120 {
		t.Errorf("MaxRequests: got %d, want 120", cfg.Gateway.MaxRequests)
	}
	if cfg.Gateway.RedisURL != "" {
		t.Errorf("RedisURL: got %q, want empty (process-local default)", cfg.Gateway.RedisURL)
	}
}

func TestLoad_GatewayCustomValues(t *testing.T) {
	setRequiredEnv()
	os.Setenv("GATEWAY_WINDOW_DURATION", "30s")
	os.Setenv("GATEWAY_MAX_REQUESTS", "10")
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Gateway.WindowDuration != 30*time.Second {
		t.Errorf("WindowDuration: got %v, want 30s", cfg.Gateway.WindowDuration)
	}
	if cfg.Gateway.MaxRequests != 10 {
		t.Errorf("MaxRequests: got %d, want 10", cfg.Gateway.MaxRequests)
	}
}

func TestLoad_MissingGatewaySecret(t *testing.T) {
	os.Setenv("JWT_SECRET", "test-secret-32-characters-long!")
	os.Setenv("DB_PASSWORD", "test")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for missing GATEWAY_SECRET")
	}
}

func TestLoad_WeakSecretRejected(t *testing.T) {
	setRequiredEnv()
	os.Setenv("GATEWAY_SECRET", "changeme")
	defer os.Clearenv()

	if _, err := Load(); err == nil {
		t.Fatal("Load() = nil, want error for weak GATEWAY_SECRET")
	}
}

func TestLoad_LockoutPolicyFallbacks(t *testing.T) {
	setRequiredEnv()
	defer os.Clearenv()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Auth.DefaultMaxAttempts != 5 {
		t.Errorf("DefaultMaxAttempts: got %d, want 5", cfg.Auth.DefaultMaxAttempts)
	}
	if cfg.Auth.DefaultBlockDuration != 15*time.Minute {
		t.Errorf("DefaultBlockDuration: got %v, want 15m", cfg.Auth.DefaultBlockDuration)
	}
}
