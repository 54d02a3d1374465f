package httptransport

import (
	"expvar"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"rimcity-link/internal/lobby"
	"rimcity-link/internal/presence"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

type Deps struct {
	Lobby    *lobby.Service
	Presence *presence.Tracker
	Store    StoreProbe
	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

func NewRouter(d Deps) *chi.Mux {
	challenges := NewChallengeHandlers(d.Lobby)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)

	r.With(APILogMiddleware()).Get("/healthz", Health(d.Store))
	if d.MCP != nil {
		r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
			w.WriteHeader(http.StatusNoContent)
		})
		r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", d.MCP)
		r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", d.MCP)
		r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", d.MCP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())
		r.Get("/session", challenges.Session())

		r.Route("/challenges", func(r chi.Router) {
			r.Use(OfferCaptureMiddleware(2048))
			r.Get("/", challenges.List())
			r.Post("/", challenges.Send())
			r.Get("/{challenge_id}", challenges.Get())
			r.Get("/{challenge_id}/wager", challenges.Wager())
			r.Post("/{challenge_id}/accept", challenges.Accept())
			r.Post("/{challenge_id}/decline", challenges.Decline())
			r.Post("/{challenge_id}/cancel", challenges.Cancel())
			r.Post("/{challenge_id}/ready", challenges.Ready())
			r.Post("/{challenge_id}/counter", challenges.Counter())
			r.Post("/{challenge_id}/accept-wager", challenges.AcceptWager())
			r.Post("/{challenge_id}/wait", challenges.Wait())
			r.Post("/{challenge_id}/launch", challenges.Launch())
		})

		if d.Presence != nil {
			players := NewPresenceHandlers(d.Presence)
			r.Get("/presence/online", players.Online())
			r.Get("/presence/{global_id}", players.Player())
		}

		r.Get("/debug/vars", expvar.Handler().ServeHTTP)
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 32)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
