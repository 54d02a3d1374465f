package config

import (
	"testing"
	"time"
)

func TestLoadChallengeDefaults(t *testing.T) {
	cfg, err := LoadChallenge()
	if err != nil {
		t.Fatalf("LoadChallenge() error = %v", err)
	}
	if cfg.TTL() != 5*time.Minute {
		t.Fatalf("TTL = %v", cfg.TTL())
	}
	if cfg.LobbyStale() != 90*time.Second || cfg.PresenceInterval() != 30*time.Second {
		t.Fatalf("unexpected durations: %+v", cfg)
	}
	if cfg.ExpiryPolicy != "keep" {
		t.Fatalf("ExpiryPolicy = %q, want keep", cfg.ExpiryPolicy)
	}
}

func TestLoadLobbyRequiresPlayer(t *testing.T) {
	t.Setenv("PLAYER_ID", "")
	if _, err := LoadLobby(); err == nil {
		t.Fatal("expected error for missing PLAYER_ID")
	}
	t.Setenv("PLAYER_ID", "p-1")
	t.Setenv("PLAYER_CASH", "300")
	cfg, err := LoadLobby()
	if err != nil {
		t.Fatalf("LoadLobby() error = %v", err)
	}
	if cfg.PlayerID != "p-1" || cfg.Cash != 300 {
		t.Fatalf("unexpected lobby config: %+v", cfg)
	}
}
