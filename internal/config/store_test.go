package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestResolveStoreDefaults(t *testing.T) {
	ep := ResolveStore(StoreConfig{}, StoreOverride{})
	if ep.Addr != "localhost" || ep.Port != 10088 || ep.Scope != "nba_jam" {
		t.Fatalf("unexpected endpoint: %+v", ep)
	}
	if ep.Timeout != 2*time.Second || ep.Backoff != 10*time.Second {
		t.Fatalf("unexpected timings: %+v", ep)
	}
	if ep.Backend != BackendWebsocket {
		t.Fatalf("Backend = %q, want ws", ep.Backend)
	}
}

func TestResolveStoreLayering(t *testing.T) {
	cfg := StoreConfig{Addr: "explicit.host", BackoffMS: 500}
	discovered := StoreOverride{Addr: "found.host", Port: 9999, Scope: "other", BackoffMS: 7000}

	ep := ResolveStore(cfg, discovered)
	if ep.Addr != "explicit.host" {
		t.Fatalf("Addr = %q, want explicit.host", ep.Addr)
	}
	if ep.Port != 9999 || ep.Scope != "other" {
		t.Fatalf("discovered layer not applied: %+v", ep)
	}
	if ep.Backoff != 500*time.Millisecond {
		t.Fatalf("Backoff = %v, want 500ms", ep.Backoff)
	}
	if ep.Timeout != 2*time.Second {
		t.Fatalf("Timeout = %v, want default", ep.Timeout)
	}
}

func TestLoadStoreEnv(t *testing.T) {
	t.Setenv("STORE_ADDR", "db.local")
	t.Setenv("STORE_PORT", "7000")
	t.Setenv("LIVE_CHALLENGES_ENABLED", "false")

	cfg, err := LoadStore()
	if err != nil {
		t.Fatalf("LoadStore() error = %v", err)
	}
	if cfg.Addr != "db.local" || cfg.Port != 7000 {
		t.Fatalf("unexpected store config: %+v", cfg)
	}
	if cfg.LiveChallengesEnabled {
		t.Fatal("expected kill switch to be off")
	}
	if cfg.LocalVersion != "unknown" {
		t.Fatalf("LocalVersion = %q, want unknown", cfg.LocalVersion)
	}
}

func TestLoadDiscoveryJSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "store.jsonc")
	body := `{
  // written by the service locator
  "addr": "10.0.0.5",
  "port": 12000,
  "timeoutMs": 1500, /* trailing comma below */
}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := LoadDiscovery(path)
	if err != nil {
		t.Fatalf("LoadDiscovery() error = %v", err)
	}
	if got.Addr != "10.0.0.5" || got.Port != 12000 || got.TimeoutMS != 1500 {
		t.Fatalf("unexpected override: %+v", got)
	}
}

func TestLoadDiscoveryMissingFile(t *testing.T) {
	got, err := LoadDiscovery(filepath.Join(t.TempDir(), "absent.jsonc"))
	if err != nil {
		t.Fatalf("LoadDiscovery() error = %v", err)
	}
	if got != (StoreOverride{}) {
		t.Fatalf("expected empty override, got %+v", got)
	}
}
