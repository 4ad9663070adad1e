package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Port != 3001 {
		t.Fatalf("default port = %d", cfg.Port)
	}
	if cfg.SessionID == "" {
		t.Fatal("default session id empty")
	}
	if cfg.InactivityTimeout() != 5*time.Minute {
		t.Fatalf("default inactivity timeout = %v", cfg.InactivityTimeout())
	}
	if cfg.InactivityCheckInterval() != 30*time.Second {
		t.Fatalf("default check interval = %v", cfg.InactivityCheckInterval())
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("SESSION_ID", "sess-42")
	t.Setenv("APP_ID", "blockduel")
	t.Setenv("LOBBY_URL", "https://lobby.example")
	t.Setenv("INACTIVITY_TIMEOUT_MS", "5000")
	t.Setenv("INACTIVITY_CHECK_INTERVAL_MS", "1000")

	cfg, path, err := Load(nil, filepath.Join(t.TempDir(), "session.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if path == "" {
		t.Fatal("empty config path")
	}
	if cfg.Port != 8080 || cfg.SessionID != "sess-42" || cfg.AppID != "blockduel" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.LobbyURL != "https://lobby.example" {
		t.Fatalf("lobby url = %q", cfg.LobbyURL)
	}
	if cfg.InactivityTimeout() != 5*time.Second {
		t.Fatalf("timeout override = %v", cfg.InactivityTimeout())
	}
	if cfg.InactivityCheckInterval() != time.Second {
		t.Fatalf("check interval override = %v", cfg.InactivityCheckInterval())
	}
}

func TestNonPositiveOverridesFallBack(t *testing.T) {
	cfg := Default()
	cfg.InactivityTimeoutMS = -1
	cfg.InactivityCheckIntervalMS = 0
	if cfg.InactivityTimeout() != 5*time.Minute {
		t.Fatalf("negative timeout accepted: %v", cfg.InactivityTimeout())
	}
	if cfg.InactivityCheckInterval() != 30*time.Second {
		t.Fatalf("zero interval accepted: %v", cfg.InactivityCheckInterval())
	}
}

func TestLoadWritesDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.yaml")

	cfg, gotPath, err := Load(nil, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if gotPath != path {
		t.Fatalf("path = %q", gotPath)
	}
	if cfg.Port != 3001 {
		t.Fatalf("unexpected port: %d", cfg.Port)
	}

	// Second load reads the file written by the first.
	again, _, err := Load(nil, path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again.Port != cfg.Port || again.AppID != cfg.AppID {
		t.Fatalf("reload mismatch: %+v vs %+v", again, cfg)
	}
}
