package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "earnbuddy-test")
	t.Setenv("ROOM_CACHE_TTL", "300s")
	t.Setenv("MESSAGE_COOLDOWN", "1s")
	t.Setenv("RECONCILE_INTERVAL", "1h")
	t.Setenv("ALLOWED_ORIGINS", "http://localhost:3000, https://earnbuddy.app")
	t.Setenv("MEILISEARCH_HOST", "meili")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.RoomCacheTTL != 300*time.Second {
		t.Errorf("RoomCacheTTL: got %v, want 300s", cfg.RoomCacheTTL)
	}
	if cfg.MessageCooldown != time.Second {
		t.Errorf("MessageCooldown: got %v, want 1s", cfg.MessageCooldown)
	}
	if cfg.ReconcileInterval != time.Hour {
		t.Errorf("ReconcileInterval: got %v, want 1h", cfg.ReconcileInterval)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://earnbuddy.app" {
		t.Errorf("AllowedOrigins: got %q", cfg.AllowedOrigins)
	}
	if cfg.MeiliSearchHost != "http://meili:7700" {
		t.Errorf("MeiliSearchHost: got %q, want %q", cfg.MeiliSearchHost, "http://meili:7700")
	}
}

func TestLoad_RequiresProjectID(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected error without FIREBASE_PROJECT_ID")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "earnbuddy-test")
	t.Setenv("MESSAGE_COOLDOWN", "soon")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for invalid MESSAGE_COOLDOWN")
	}
}

func TestLoad_ZeroDisablesReconcile(t *testing.T) {
	t.Setenv("FIREBASE_PROJECT_ID", "earnbuddy-test")
	t.Setenv("MESSAGE_COOLDOWN", "1s")
	t.Setenv("RECONCILE_INTERVAL", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ReconcileInterval != 0 {
		t.Errorf("ReconcileInterval: got %v, want 0", cfg.ReconcileInterval)
	}
}
