package main

import (
	"encoding/json"
	"expvar"
	"net/http"
	"time"

	"rimcity-link/internal/config"
	"rimcity-link/internal/logging"
	"rimcity-link/internal/store/memstore"
	"rimcity-link/internal/store/wsstore"
	httptransport "rimcity-link/internal/transport/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func main() {
	logCfg, err := config.LoadLog()
	if err != nil {
		panic(err)
	}
	logging.Init(logCfg)
	cfg, err := config.LoadDocstoreDev()
	if err != nil {
		log.Fatal().Err(err).Msg("load docstore config failed")
	}

	srv := wsstore.NewServer(memstore.New())
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(srv),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	log.Info().Str("addr", cfg.Addr).Str("path", wsstore.DefaultPath).Msg("docstore listening")
	log.Fatal().Err(server.ListenAndServe()).Msg("server stopped")
}

func newRouter(srv *wsstore.Server) *chi.Mux {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.Get(wsstore.DefaultPath, srv.HandleWS)
	r.With(httptransport.APILogMiddleware()).Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "subscriptions": srv.Subscriptions()})
	})
	r.With(httptransport.APILogMiddleware()).Get("/api/debug/vars", expvar.Handler().ServeHTTP)
	return r
}
