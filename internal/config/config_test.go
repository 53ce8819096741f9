package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := FromEnv()

	if cfg.Addr != ":8080" {
		t.Errorf("Expected addr ':8080', got %q", cfg.Addr)
	}
	if cfg.Retention != 24*time.Hour {
		t.Errorf("Expected 24h retention, got %v", cfg.Retention)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("Expected 1h sweep interval, got %v", cfg.SweepInterval)
	}
	if cfg.CursorInterval != 16*time.Millisecond {
		t.Errorf("Expected 16ms cursor interval, got %v", cfg.CursorInterval)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("FRESCO_DB_PATH", "/tmp/other.db")
	t.Setenv("FRESCO_RETENTION_HOURS", "48")
	t.Setenv("FRESCO_CURSOR_INTERVAL_MS", "33")

	cfg := FromEnv()

	if cfg.Addr != ":9000" {
		t.Errorf("Expected addr ':9000', got %q", cfg.Addr)
	}
	if cfg.DBPath != "/tmp/other.db" {
		t.Errorf("Expected overridden db path, got %q", cfg.DBPath)
	}
	if cfg.Retention != 48*time.Hour {
		t.Errorf("Expected 48h retention, got %v", cfg.Retention)
	}
	if cfg.CursorInterval != 33*time.Millisecond {
		t.Errorf("Expected 33ms cursor interval, got %v", cfg.CursorInterval)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("FRESCO_RETENTION_HOURS", "not-a-number")
	t.Setenv("FRESCO_SWEEP_INTERVAL_MINUTES", "-5")

	cfg := FromEnv()

	if cfg.Retention != 24*time.Hour {
		t.Errorf("Invalid retention should fall back to 24h, got %v", cfg.Retention)
	}
	if cfg.SweepInterval != time.Hour {
		t.Errorf("Invalid sweep interval should fall back to 1h, got %v", cfg.SweepInterval)
	}
}
