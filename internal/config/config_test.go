package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.IntervalUnit != time.Minute {
		t.Fatalf("expected one minute interval unit, got %s", cfg.IntervalUnit)
	}
	if cfg.FetchRetries != 1 {
		t.Fatalf("expected one fetch retry, got %d", cfg.FetchRetries)
	}
	if len(cfg.DefaultEndpoints) != 3 {
		t.Fatalf("expected 3 default endpoints, got %v", cfg.DefaultEndpoints)
	}
	if len(cfg.BlossomServers) != 1 || cfg.BlossomServers[0] != "https://blossom.primal.net/" {
		t.Fatalf("unexpected blossom servers %v", cfg.BlossomServers)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BROADCAST_TIMEOUT_SECONDS", "3")
	t.Setenv("DEFAULT_ENDPOINTS", "wss://a.example, wss://b.example")
	t.Setenv("STORAGE_TYPE", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BroadcastTimeout != 3*time.Second {
		t.Fatalf("BroadcastTimeout = %s", cfg.BroadcastTimeout)
	}
	if cfg.StorageType != "memory" {
		t.Fatalf("StorageType = %q", cfg.StorageType)
	}
	if len(cfg.DefaultEndpoints) != 2 || cfg.DefaultEndpoints[1] != "wss://b.example" {
		t.Fatalf("DefaultEndpoints = %v", cfg.DefaultEndpoints)
	}
}

func TestLoadRejectsNonPositiveTimeout(t *testing.T) {
	t.Setenv("FETCH_TIMEOUT_SECONDS", "0")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for zero fetch timeout")
	}
}

func TestSplitList(t *testing.T) {
	got := SplitList(" a,,b \n c ")
	if len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("SplitList = %v", got)
	}
	if SplitList("  ") != nil {
		t.Fatalf("expected nil for blank input")
	}
}
