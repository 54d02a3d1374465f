package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"rimcity-link/internal/app/participant"
	"rimcity-link/internal/challenge"
	"rimcity-link/internal/config"
	"rimcity-link/internal/logging"
	"rimcity-link/internal/mcpserver"
	"rimcity-link/internal/notify"
	httptransport "rimcity-link/internal/transport/http"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	cfg, err := config.LoadApp()
	if err != nil {
		panic(err)
	}
	logging.Init(cfg.Log)

	flags := pflag.NewFlagSet("lobbyd", pflag.ExitOnError)
	applyFlags(flags, &cfg)
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("parse flags failed")
	}

	p, err := participant.New(participant.Options{
		Store:     cfg.Store,
		Challenge: cfg.Challenge,
		Session: challenge.Session{
			GlobalID: cfg.Lobby.PlayerID,
			Name:     cfg.Lobby.PlayerName,
			BBSName:  cfg.Lobby.BBSName,
			Cash:     cfg.Lobby.Cash,
			Rep:      cfg.Lobby.Rep,
		},
	})
	if err != nil {
		log.Fatal().Err(err).Msg("participant init failed")
	}
	defer p.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	presenceDone := make(chan struct{})
	go func() {
		defer close(presenceDone)
		if err := p.Presence.Run(ctx); err != nil {
			log.Warn().Err(err).Msg("presence loop stopped")
		}
	}()

	notifyCfg, err := notify.ConfigFrom(cfg.Notify)
	if err != nil {
		log.Fatal().Err(err).Msg("notify config invalid")
	}
	if notifyCfg.Enabled && len(notifyCfg.Targets) > 0 {
		notifier := notify.New(notifyCfg)
		notifier.Start(ctx)
		defer notifier.Close()
		go notifier.Watch(ctx, p.Lobby, cfg.Lobby.PlayerID)
		log.Info().Int("targets", len(notifyCfg.Targets)).Msg("challenge notifications enabled")
	}

	deps := httptransport.Deps{Lobby: p.Lobby, Presence: p.Presence, Store: p.Helper}
	if cfg.Lobby.MCPEnabled {
		deps.MCP = mcpserver.New(p.Lobby, p.Presence, cfg.Store.LocalVersion).Handler()
	}
	r := httptransport.NewRouter(deps)
	httptransport.LogRoutes(r)

	server := &http.Server{
		Addr:              cfg.Lobby.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info().
		Str("addr", cfg.Lobby.HTTPAddr).
		Str("player_id", cfg.Lobby.PlayerID).
		Str("backend", cfg.Store.Backend).
		Bool("live", cfg.Store.LiveChallengesEnabled).
		Msg("lobby listening")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal().Err(err).Msg("server stopped")
	}
	<-presenceDone
	log.Info().Msg("lobby stopped")
}

// applyFlags binds command-line overrides on top of the environment. Flags
// form the explicit layer of the store endpoint resolution.
func applyFlags(fs *pflag.FlagSet, cfg *config.AppConfig) {
	fs.StringVar(&cfg.Lobby.HTTPAddr, "http-addr", cfg.Lobby.HTTPAddr, "local API listen address")
	fs.StringVar(&cfg.Store.Backend, "store-backend", cfg.Store.Backend, "ws|postgres|memory")
	fs.StringVar(&cfg.Store.Addr, "store-addr", cfg.Store.Addr, "document store host")
	fs.IntVar(&cfg.Store.Port, "store-port", cfg.Store.Port, "document store port")
	fs.StringVar(&cfg.Store.Scope, "store-scope", cfg.Store.Scope, "document store scope")
	fs.IntVar(&cfg.Store.TimeoutMS, "store-timeout-ms", cfg.Store.TimeoutMS, "per-call store timeout")
	fs.IntVar(&cfg.Store.BackoffMS, "store-backoff-ms", cfg.Store.BackoffMS, "reconnect backoff after a failure")
	fs.StringVar(&cfg.Store.DiscoveryFile, "discovery-file", cfg.Store.DiscoveryFile, "JSONC file with discovered store settings")
	fs.BoolVar(&cfg.Store.LiveChallengesEnabled, "live", cfg.Store.LiveChallengesEnabled, "enable live challenges")
	fs.StringVar(&cfg.Challenge.ExpiryPolicy, "expiry-policy", cfg.Challenge.ExpiryPolicy, "keep|expire")
	fs.BoolVar(&cfg.Lobby.MCPEnabled, "mcp", cfg.Lobby.MCPEnabled, "serve MCP tools at /mcp")
}
