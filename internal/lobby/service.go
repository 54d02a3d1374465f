// Package lobby is the surface the rest of the game calls to challenge,
// negotiate, ready up and launch a match.
package lobby

import (
	"context"
	"errors"
	"expvar"
	"sync"
	"time"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/clock"
	"rimcity-link/internal/game"
	"rimcity-link/internal/ledger"
	"rimcity-link/internal/wager"

	"github.com/rs/zerolog/log"
)

var (
	metricCounterOffersTotal = expvar.NewInt("lobby_counter_offers_total")
	metricTurnRejectedTotal  = expvar.NewInt("lobby_turn_rejected_total")
	metricMatchesTotal       = expvar.NewInt("lobby_matches_total")
	metricWaitOutcomes       = expvar.NewMap("lobby_wait_outcomes")
)

const (
	DefaultTickInterval = 1200 * time.Millisecond
	// readyRefresh is how old our own heartbeat may get while waiting
	// before it is rewritten.
	readyRefresh = 15 * time.Second
)

type Options struct {
	TickInterval time.Duration
	Engine       game.Engine
	Ledger       *ledger.Ledger
}

// Service acts for one local participant.
type Service struct {
	repo   *challenge.Repository
	engine game.Engine
	ledger *ledger.Ledger
	tick   time.Duration

	mu      sync.Mutex
	session challenge.Session
}

func NewService(session challenge.Session, repo *challenge.Repository, opts Options) *Service {
	tick := opts.TickInterval
	if tick <= 0 {
		tick = DefaultTickInterval
	}
	return &Service{
		repo:    repo,
		engine:  opts.Engine,
		ledger:  opts.Ledger,
		tick:    tick,
		session: session,
	}
}

// Session returns the current snapshot of the local participant.
func (s *Service) Session() challenge.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

func (s *Service) me() string {
	return s.Session().GlobalID
}

func (s *Service) SendChallenge(ctx context.Context, to challenge.PlayerRef, meta map[string]any, offer wager.Offer) (*challenge.Challenge, error) {
	return s.repo.Create(ctx, s.Session(), to, meta, offer)
}

func (s *Service) Incoming(ctx context.Context) []*challenge.Challenge {
	return s.repo.ListIncoming(ctx)
}

func (s *Service) Outgoing(ctx context.Context) []*challenge.Challenge {
	return s.repo.ListOutgoing(ctx)
}

func (s *Service) Challenge(ctx context.Context, id string) (*challenge.Challenge, error) {
	return s.load(ctx, id)
}

func (s *Service) WagerDetails(ctx context.Context, id string) (wager.Details, error) {
	ch, err := s.load(ctx, id)
	if err != nil {
		return wager.Details{}, err
	}
	d, ok := wager.DetailsOf(ch.Wager)
	if !ok {
		return wager.Details{}, ErrNoWager
	}
	return d, nil
}

// IsOtherReady reports whether the counterpart is ready with a fresh
// heartbeat.
func (s *Service) IsOtherReady(ch *challenge.Challenge) bool {
	return s.repo.IsOtherReady(ch, s.me())
}

func (s *Service) IsMyTurn(ch *challenge.Challenge) bool {
	return challenge.IsMyTurnToRespond(ch, s.me())
}

// Accept takes the challenge as it stands and marks us ready. Accepting an
// already accepted challenge only refreshes the heartbeat.
func (s *Service) Accept(ctx context.Context, id string) (*challenge.Challenge, error) {
	ch, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Status.Terminal() {
		return nil, ErrChallengeClosed
	}
	if ch.Status != challenge.StatusAccepted {
		if ch.Wager != nil && !challenge.IsMyTurnToRespond(ch, s.me()) {
			metricTurnRejectedTotal.Add(1)
			return nil, ErrNotYourTurn
		}
		if ch.Wager == nil && ch.From.GlobalID == s.me() {
			return nil, ErrInvalidTransition
		}
	}
	return s.repo.MarkAccepted(ctx, id)
}

func (s *Service) Decline(ctx context.Context, id string) (*challenge.Challenge, error) {
	if _, err := s.open(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.MarkDeclined(ctx, id)
}

func (s *Service) Cancel(ctx context.Context, id string) (*challenge.Challenge, error) {
	if _, err := s.open(ctx, id); err != nil {
		return nil, err
	}
	return s.repo.MarkCancelled(ctx, id)
}

// Ready sets our lobby flag on an accepted challenge.
func (s *Service) Ready(ctx context.Context, id string, ready bool) (*challenge.Challenge, error) {
	ch, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Status != challenge.StatusAccepted {
		return nil, ErrInvalidTransition
	}
	return s.repo.MarkReady(ctx, id, ready)
}

// SubmitCounterOffer proposes new stakes. The first offer on a challenge
// without a wager fixes the absolute max from our balances and the
// counterpart's snapshot; later offers go through the ceiling ratchet. Two
// offers in a row from the same side are rejected.
func (s *Service) SubmitCounterOffer(ctx context.Context, id string, offer wager.Offer) (*challenge.Challenge, error) {
	ch, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ch.Status.Negotiable() {
		return nil, ErrInvalidTransition
	}
	me := s.me()
	if ch.Wager != nil && !challenge.IsMyTurnToRespond(ch, me) {
		metricTurnRejectedTotal.Add(1)
		return nil, ErrNotYourTurn
	}
	balances := s.Session().Balances()
	now := clock.UnixMilli(s.repo.Clock())

	updated, err := s.repo.Update(ctx, id, func(c *challenge.Challenge) error {
		role := c.RoleOf(me)
		if c.Wager == nil {
			absMax := wager.CalculateAbsoluteMax(balances, c.Counterpart(me).Balances())
			c.Wager = wager.New(offer, absMax, role, now)
		} else {
			if c.Wager.ProposedBy == role {
				return ErrNotYourTurn
			}
			wager.ApplyCounterOffer(c.Wager, offer, role, now)
		}
		c.Status = challenge.StatusNegotiating
		return nil
	})
	if err != nil {
		return nil, err
	}
	metricCounterOffersTotal.Add(1)
	log.Debug().Str("challenge_id", id).Int64("cash", updated.Wager.Cash).Int64("rep", updated.Wager.Rep).Int("revision", updated.Wager.Revision).Msg("counter offer submitted")
	return updated, nil
}

// AcceptWager agrees to the counterpart's current offer.
func (s *Service) AcceptWager(ctx context.Context, id string) (*challenge.Challenge, error) {
	ch, err := s.open(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Wager == nil {
		return nil, ErrNoWager
	}
	if ch.Status == challenge.StatusAccepted {
		return ch, nil
	}
	if !challenge.IsMyTurnToRespond(ch, s.me()) {
		metricTurnRejectedTotal.Add(1)
		return nil, ErrNotYourTurn
	}
	return s.repo.Update(ctx, id, func(c *challenge.Challenge) error {
		c.Status = challenge.StatusAccepted
		return nil
	})
}

type Outcome string

const (
	OutcomeReady     Outcome = "ready"
	OutcomeDeclined  Outcome = "declined"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeExpired   Outcome = "expired"
	OutcomeTimeout   Outcome = "timeout"
)

// WaitForReady polls the challenge every tick until both sides are ready,
// it is closed, or ctx ends (reported as OutcomeTimeout). While accepted it
// keeps our own ready heartbeat fresh.
func (s *Service) WaitForReady(ctx context.Context, id string) (Outcome, *challenge.Challenge) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()
	me := s.me()
	var last *challenge.Challenge
	for {
		if ch, err := s.repo.Get(ctx, id); err == nil {
			last = ch
			if outcome, done := s.step(ctx, ch, me); done {
				metricWaitOutcomes.Add(string(outcome), 1)
				return outcome, last
			}
		}
		select {
		case <-ctx.Done():
			metricWaitOutcomes.Add(string(OutcomeTimeout), 1)
			return OutcomeTimeout, last
		case <-ticker.C:
		}
	}
}

func (s *Service) step(ctx context.Context, ch *challenge.Challenge, me string) (Outcome, bool) {
	now := clock.UnixMilli(s.repo.Clock())
	switch ch.Status {
	case challenge.StatusDeclined:
		return OutcomeDeclined, true
	case challenge.StatusCancelled:
		return OutcomeCancelled, true
	case challenge.StatusExpired:
		return OutcomeExpired, true
	case challenge.StatusAccepted:
		ping := ch.Lobby.LastPing[me]
		if !ch.Lobby.Ready[me] || now-ping >= readyRefresh.Milliseconds() {
			if updated, err := s.repo.MarkReady(ctx, ch.ID, true); err == nil {
				ch = updated
			}
		}
		if s.repo.IsOtherReady(ch, me) {
			return OutcomeReady, true
		}
	default:
		if ch.ExpiredAt(now) {
			return OutcomeExpired, true
		}
	}
	return "", false
}

type MatchReport struct {
	ChallengeID string        `json:"challengeId"`
	Completed   bool          `json:"completed"`
	IWon        bool          `json:"iWon"`
	Draw        bool          `json:"draw"`
	Score       game.Score    `json:"score"`
	Settlement  *ledger.Entry `json:"settlement,omitempty"`
}

// LaunchMatch runs the match for an accepted challenge and settles the
// wager for the local participant. Both sides must be ready and the
// counterpart's heartbeat must be fresh.
func (s *Service) LaunchMatch(ctx context.Context, id string) (MatchReport, error) {
	if s.engine == nil {
		return MatchReport{}, ErrNoEngine
	}
	ch, err := s.open(ctx, id)
	if err != nil {
		return MatchReport{}, err
	}
	if ch.Status != challenge.StatusAccepted {
		return MatchReport{}, ErrInvalidTransition
	}
	me := s.me()
	if !ch.Lobby.Ready[me] || !s.repo.IsOtherReady(ch, me) {
		return MatchReport{}, ErrNotReady
	}
	res, err := s.engine.RunMatch(ctx, game.MatchConfig{
		ChallengeID: ch.ID,
		TeamA:       teamOf(ch.From),
		TeamB:       teamOf(ch.To),
		Meta:        ch.Meta,
	})
	if err != nil {
		return MatchReport{}, err
	}
	if !res.Completed {
		return MatchReport{ChallengeID: ch.ID}, ErrMatchIncomplete
	}
	metricMatchesTotal.Add(1)

	winner := res.Score.Winner()
	iWon := (ch.RoleOf(me) == wager.SideFrom && winner == "teamA") ||
		(ch.RoleOf(me) == wager.SideTo && winner == "teamB")
	report := MatchReport{ChallengeID: ch.ID, Completed: true, IWon: iWon, Draw: winner == "", Score: res.Score}

	// A draw is a push: nobody pays.
	if s.ledger == nil || ch.Wager == nil || report.Draw {
		return report, nil
	}
	cash, rep := ledger.Delta(ch.Wager, iWon)
	entry, err := s.ledger.Settle(ctx, ledger.Entry{
		ChallengeID: ch.ID,
		GlobalID:    me,
		Cash:        cash,
		Rep:         rep,
		Won:         iWon,
		Score:       res.Score,
	})
	switch {
	case err == nil:
		s.mu.Lock()
		s.session.Cash += entry.Cash
		s.session.Rep += entry.Rep
		if s.session.Cash < 0 {
			s.session.Cash = 0
		}
		if s.session.Rep < 0 {
			s.session.Rep = 0
		}
		s.mu.Unlock()
		report.Settlement = &entry
	case errors.Is(err, ledger.ErrAlreadySettled):
		report.Settlement = &entry
	default:
		log.Warn().Err(err).Str("challenge_id", ch.ID).Msg("wager settlement deferred")
	}
	return report, nil
}

func (s *Service) load(ctx context.Context, id string) (*challenge.Challenge, error) {
	ch, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !ch.Involves(s.me()) {
		return nil, ErrNotParticipant
	}
	return ch, nil
}

// open loads a challenge that still accepts transitions.
func (s *Service) open(ctx context.Context, id string) (*challenge.Challenge, error) {
	ch, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if ch.Status.Terminal() {
		return nil, ErrChallengeClosed
	}
	return ch, nil
}

func teamOf(p challenge.PlayerRef) game.Team {
	t := game.Team{GlobalID: p.GlobalID, Name: p.Name}
	if p.ActiveTeammate != nil {
		t.Teammate = p.ActiveTeammate.Name
	}
	return t
}
