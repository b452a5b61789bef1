package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scoring.FraudThreshold != 4 {
		t.Errorf("expected fraud threshold 4, got %d", cfg.Scoring.FraudThreshold)
	}
	if cfg.Scoring.SuspiciousThreshold != 2 {
		t.Errorf("expected suspicious threshold 2, got %d", cfg.Scoring.SuspiciousThreshold)
	}
	if cfg.Monitor.PollInterval != 3*time.Second {
		t.Errorf("expected poll interval 3s, got %v", cfg.Monitor.PollInterval)
	}
	if cfg.Repository.Driver != "sqlite" {
		t.Errorf("expected sqlite driver, got %s", cfg.Repository.Driver)
	}
	if cfg.EventBus.Type != "channel" {
		t.Errorf("expected channel bus, got %s", cfg.EventBus.Type)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	data := `
scoring:
  fraudThreshold: 6
  suspiciousThreshold: 3
monitor:
  pollInterval: 5s
  errorBackoff: 30s
source:
  liveUrl: http://feed.example.com
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scoring.FraudThreshold != 6 || cfg.Scoring.SuspiciousThreshold != 3 {
		t.Errorf("file values not applied: %+v", cfg.Scoring)
	}
	if cfg.Monitor.PollInterval != 5*time.Second {
		t.Errorf("expected poll interval 5s, got %v", cfg.Monitor.PollInterval)
	}
	if cfg.Source.LiveURL != "http://feed.example.com" {
		t.Errorf("expected live URL from file, got %q", cfg.Source.LiveURL)
	}

	// Untouched keys keep their defaults.
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
}

func TestLoadExpandsEnvInFile(t *testing.T) {
	t.Setenv("TEST_FEED_URL", "http://expanded.example.com")

	path := filepath.Join(t.TempDir(), "kestrel.yaml")
	data := "source:\n  liveUrl: ${TEST_FEED_URL}\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Source.LiveURL != "http://expanded.example.com" {
		t.Errorf("expected env expansion, got %q", cfg.Source.LiveURL)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("KESTREL_FRAUD_THRESHOLD", "7")
	t.Setenv("KESTREL_POLL_INTERVAL", "10s")
	t.Setenv("KESTREL_ERROR_BACKOFF", "1m")
	t.Setenv("KESTREL_LIVE_URL", "http://env.example.com")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Scoring.FraudThreshold != 7 {
		t.Errorf("expected env threshold 7, got %d", cfg.Scoring.FraudThreshold)
	}
	if cfg.Monitor.PollInterval != 10*time.Second {
		t.Errorf("expected env poll interval 10s, got %v", cfg.Monitor.PollInterval)
	}
	if cfg.Source.LiveURL != "http://env.example.com" {
		t.Errorf("expected env live URL, got %q", cfg.Source.LiveURL)
	}
}

func TestLoadRejectsInvalidThresholds(t *testing.T) {
	// Suspicious above fraud is a configuration contradiction: fatal.
	t.Setenv("KESTREL_FRAUD_THRESHOLD", "2")
	t.Setenv("KESTREL_SUSPICIOUS_THRESHOLD", "5")

	if _, err := Load(""); err == nil {
		t.Error("expected error for suspicious > fraud")
	}
}

func TestLoadRejectsBadBackoff(t *testing.T) {
	t.Setenv("KESTREL_POLL_INTERVAL", "10s")
	t.Setenv("KESTREL_ERROR_BACKOFF", "1s")

	if _, err := Load(""); err == nil {
		t.Error("expected error for backoff shorter than poll interval")
	}
}

func TestLoadRejectsAuthWithoutPrincipal(t *testing.T) {
	t.Setenv("KESTREL_AUTH_ENABLED", "true")

	if _, err := Load(""); err == nil {
		t.Error("expected error for enabled auth without principal")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestLoadMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("scoring: ["), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}
