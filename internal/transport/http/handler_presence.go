package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"rimcity-link/internal/presence"
	"rimcity-link/internal/store"

	"github.com/go-chi/chi/v5"
)

// StoreProbe is satisfied by *store.Helper.
type StoreProbe interface {
	EnsureClient(ctx context.Context, opts store.EnsureOptions) store.Conn
}

type PresenceHandlers struct {
	tracker *presence.Tracker
}

func NewPresenceHandlers(tracker *presence.Tracker) *PresenceHandlers {
	return &PresenceHandlers{tracker: tracker}
}

func (h *PresenceHandlers) Online() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricPresenceQueriesTotal.Add(1)
		writeJSON(w, map[string]any{"players": h.tracker.OnlinePlayers(r.Context())})
	}
}

func (h *PresenceHandlers) Player() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		metricPresenceQueriesTotal.Add(1)
		gid := chi.URLParam(r, "global_id")
		writeJSON(w, map[string]any{"global_id": gid, "online": h.tracker.IsPlayerOnline(r.Context(), gid)})
	}
}

func Health(probe StoreProbe) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if probe == nil || probe.EnsureClient(r.Context(), store.EnsureOptions{SkipVersionCheck: true}) == nil {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusServiceUnavailable)
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": false, "store": "down"})
			return
		}
		writeJSON(w, map[string]any{"ok": true, "store": "up"})
	}
}
