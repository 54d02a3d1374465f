package main

import (
	"testing"

	"rimcity-link/internal/config"

	"github.com/spf13/pflag"
)

func TestApplyFlagsOverridesEnvironment(t *testing.T) {
	cfg := config.AppConfig{
		Store: config.StoreConfig{Backend: "ws", Addr: "env-host", LiveChallengesEnabled: true},
		Lobby: config.LobbyConfig{HTTPAddr: "127.0.0.1:8090", MCPEnabled: true},
	}
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	applyFlags(fs, &cfg)
	if err := fs.Parse([]string{"--store-addr=flag-host", "--store-port=7000", "--live=false", "--expiry-policy=expire"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Store.Addr != "flag-host" || cfg.Store.Port != 7000 {
		t.Fatalf("store flags not applied: %+v", cfg.Store)
	}
	if cfg.Store.LiveChallengesEnabled {
		t.Fatal("--live=false should disable live challenges")
	}
	if cfg.Challenge.ExpiryPolicy != "expire" {
		t.Fatalf("expiry policy = %q", cfg.Challenge.ExpiryPolicy)
	}
	if cfg.Store.Backend != "ws" || cfg.Lobby.HTTPAddr != "127.0.0.1:8090" {
		t.Fatalf("untouched values changed: %+v", cfg)
	}

	ep := config.ResolveStore(cfg.Store, config.StoreOverride{Addr: "discovered", Port: 1})
	if ep.Addr != "flag-host" || ep.Port != 7000 {
		t.Fatalf("explicit layer should win: %+v", ep)
	}
}
