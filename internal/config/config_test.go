package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, k := range []string{
		"PORT", "CACHE_BACKEND", "ROUTE_CACHE_TTL", "DIRECTIONS_TIMEOUT",
		"LEG_CONCURRENCY", "FALLBACK_SPEED_MPH", "ORS_PROFILE",
	} {
		t.Setenv(k, "")
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("port = %q, want 8080", cfg.Port)
	}
	if cfg.CacheBackend != BackendSQLite {
		t.Errorf("backend = %q, want sqlite", cfg.CacheBackend)
	}
	if cfg.RouteCacheTTL != 24*time.Hour {
		t.Errorf("ttl = %v, want 24h", cfg.RouteCacheTTL)
	}
	if cfg.DirectionsTimeout != 10*time.Second {
		t.Errorf("timeout = %v, want 10s", cfg.DirectionsTimeout)
	}
	if cfg.LegConcurrency != 4 {
		t.Errorf("concurrency = %d, want 4", cfg.LegConcurrency)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	cases := map[string][2]string{
		"bad ttl":          {"ROUTE_CACHE_TTL", "soon"},
		"zero concurrency": {"LEG_CONCURRENCY", "0"},
		"unknown backend":  {"CACHE_BACKEND", "dynamo"},
		"redis no url":     {"CACHE_BACKEND", "redis"},
	}

	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("REDIS_URL", "")
			t.Setenv(kv[0], kv[1])
			if _, err := Load(); err == nil {
				t.Fatalf("expected error for %s=%q", kv[0], kv[1])
			}
		})
	}
}
