// Package participant assembles the per-process object graph for one local
// player: store helper, challenge repository, presence tracker, ledger and
// lobby facade.
package participant

import (
	"fmt"
	"strings"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/clock"
	"rimcity-link/internal/config"
	"rimcity-link/internal/game"
	"rimcity-link/internal/ledger"
	"rimcity-link/internal/lobby"
	"rimcity-link/internal/presence"
	"rimcity-link/internal/store"
	"rimcity-link/internal/store/memstore"
	"rimcity-link/internal/store/pgstore"
	"rimcity-link/internal/store/wsstore"

	"github.com/rs/zerolog/log"
)

type Options struct {
	Store     config.StoreConfig
	Challenge config.ChallengeConfig
	Session   challenge.Session
	// Engine defaults to game.QuickSim.
	Engine game.Engine
	// Dialer overrides the backend chosen from Store.Backend.
	Dialer store.Dialer
	Clock  clock.Clock
}

type Participant struct {
	Helper   *store.Helper
	Repo     *challenge.Repository
	Presence *presence.Tracker
	Ledger   *ledger.Ledger
	Lobby    *lobby.Service
}

func New(opts Options) (*Participant, error) {
	session := opts.Session
	session.GlobalID = strings.TrimSpace(session.GlobalID)
	if session.GlobalID == "" {
		return nil, challenge.ErrMissingGlobalID
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	dialer := opts.Dialer
	if dialer == nil {
		d, err := NewDialer(opts.Store.Backend)
		if err != nil {
			return nil, err
		}
		dialer = d
	}
	engine := opts.Engine
	if engine == nil {
		engine = game.QuickSim{}
	}

	publishedBy := opts.Store.PublishedBy
	if publishedBy == "" {
		publishedBy = session.BBSName
	}
	helper := store.NewHelper(store.HelperOptions{
		Dialer:       dialer,
		Resolve:      Resolver(opts.Store),
		Clock:        clk,
		Enabled:      opts.Store.LiveChallengesEnabled,
		LocalVersion: opts.Store.LocalVersion,
		PublishedBy:  publishedBy,
	})
	repo := challenge.NewRepository(session.GlobalID, helper, challenge.Options{
		Clock:      clk,
		TTL:        opts.Challenge.TTL(),
		LobbyStale: opts.Challenge.LobbyStale(),
		Expiry:     challenge.ParseExpiryPolicy(opts.Challenge.ExpiryPolicy),
	})
	tracker := presence.NewTracker(session.GlobalID, session.Name, helper, presence.Options{
		Clock:    clk,
		Stale:    opts.Challenge.PresenceStale(),
		Interval: opts.Challenge.PresenceInterval(),
	})
	led := ledger.New(helper, clk)
	svc := lobby.NewService(session, repo, lobby.Options{
		TickInterval: opts.Challenge.WaitTick(),
		Engine:       engine,
		Ledger:       led,
	})
	return &Participant{Helper: helper, Repo: repo, Presence: tracker, Ledger: led, Lobby: svc}, nil
}

// Close drops the store connection.
func (p *Participant) Close() {
	p.Helper.Disconnect()
}

func NewDialer(backend string) (store.Dialer, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", config.BackendWebsocket:
		return wsstore.Dialer{}, nil
	case config.BackendPostgres:
		return pgstore.Dialer{}, nil
	case config.BackendMemory:
		return memstore.New(), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}

// Resolver re-reads the discovery file on every call, layering it under the
// explicit settings.
func Resolver(cfg config.StoreConfig) func() config.StoreEndpoint {
	return func() config.StoreEndpoint {
		var discovered config.StoreOverride
		if cfg.DiscoveryFile != "" {
			d, err := config.LoadDiscovery(cfg.DiscoveryFile)
			if err != nil {
				log.Warn().Err(err).Str("path", cfg.DiscoveryFile).Msg("store discovery file unreadable")
			} else {
				discovered = d
			}
		}
		return config.ResolveStore(cfg, discovered)
	}
}
