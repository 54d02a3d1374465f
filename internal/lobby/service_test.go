package lobby

import (
	"context"
	"errors"
	"testing"
	"time"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/clock"
	"rimcity-link/internal/config"
	"rimcity-link/internal/game"
	"rimcity-link/internal/ledger"
	"rimcity-link/internal/store"
	"rimcity-link/internal/store/memstore"
	"rimcity-link/internal/wager"
)

type world struct {
	ms  *memstore.Store
	clk *clock.Fake
}

func newWorld() *world {
	return &world{ms: memstore.New(), clk: clock.NewFake(time.UnixMilli(1_700_000_000_000))}
}

func (w *world) join(session challenge.Session) *Service {
	h := store.NewHelper(store.HelperOptions{
		Dialer: w.ms,
		Resolve: func() config.StoreEndpoint {
			return config.ResolveStore(config.StoreConfig{Scope: "lobby_test"}, config.StoreOverride{})
		},
		Clock:   w.clk,
		Enabled: true,
	})
	repo := challenge.NewRepository(session.GlobalID, h, challenge.Options{Clock: w.clk})
	return NewService(session, repo, Options{
		TickInterval: 5 * time.Millisecond,
		Engine:       game.QuickSim{},
		Ledger:       ledger.New(h, w.clk),
	})
}

var (
	aliceSession = challenge.Session{GlobalID: "alice", Name: "Alice", Cash: 500, Rep: 20}
	bobSession   = challenge.Session{GlobalID: "bob", Name: "Bob", Cash: 200, Rep: 5}
	bobRef       = challenge.PlayerRef{GlobalID: "bob", Name: "Bob", Cash: 200, Rep: 5}
)

func TestNegotiationRatchetAndAlternation(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, err := alice.SendChallenge(ctx, bobRef, map[string]any{"mode": "street"}, wager.Offer{Cash: 300})
	if err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	if ch.Wager.Cash != 200 {
		t.Fatalf("opening cash = %d, want 200", ch.Wager.Cash)
	}

	if _, err := alice.SubmitCounterOffer(ctx, ch.ID, wager.Offer{Cash: 100}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn for second sender offer, got %v", err)
	}

	countered, err := bob.SubmitCounterOffer(ctx, ch.ID, wager.Offer{Cash: 150})
	if err != nil {
		t.Fatalf("bob counter: %v", err)
	}
	if countered.Status != challenge.StatusNegotiating || countered.Wager.Cash != 150 {
		t.Fatalf("unexpected counter: %+v", countered.Wager)
	}
	if !countered.Wager.Ceiling.Locked || countered.Wager.Ceiling.Cash != 200 || countered.Wager.ProposedBy != wager.SideTo {
		t.Fatalf("unexpected ceiling: %+v", countered.Wager)
	}

	if _, err := bob.SubmitCounterOffer(ctx, ch.ID, wager.Offer{Cash: 120}); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected ErrNotYourTurn for consecutive receiver offer, got %v", err)
	}
	if _, err := bob.AcceptWager(ctx, ch.ID); !errors.Is(err, ErrNotYourTurn) {
		t.Fatalf("expected bob unable to accept own offer, got %v", err)
	}

	raised, err := alice.SubmitCounterOffer(ctx, ch.ID, wager.Offer{Cash: 250})
	if err != nil {
		t.Fatalf("alice counter: %v", err)
	}
	if raised.Wager.Cash != 200 || raised.Wager.Revision != 3 {
		t.Fatalf("expected clamp to ceiling, got %+v", raised.Wager)
	}

	accepted, err := bob.AcceptWager(ctx, ch.ID)
	if err != nil {
		t.Fatalf("AcceptWager: %v", err)
	}
	if accepted.Status != challenge.StatusAccepted {
		t.Fatalf("status = %s", accepted.Status)
	}
	if _, err := alice.AcceptWager(ctx, ch.ID); err != nil {
		t.Fatalf("repeat accept should be harmless: %v", err)
	}

	details, err := alice.WagerDetails(ctx, ch.ID)
	if err != nil {
		t.Fatalf("WagerDetails: %v", err)
	}
	if details.Cash != 200 || !details.CeilingLocked || len(details.History) != 3 {
		t.Fatalf("unexpected details: %+v", details)
	}
}

func TestCounterOfferSeedsMissingWager(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, err := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{})
	if err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	if _, err := alice.WagerDetails(ctx, ch.ID); !errors.Is(err, ErrNoWager) {
		t.Fatalf("expected ErrNoWager, got %v", err)
	}
	_ = bob.Incoming(ctx)
	got, err := bob.SubmitCounterOffer(ctx, ch.ID, wager.Offer{Cash: 1000, Rep: 3})
	if err != nil {
		t.Fatalf("SubmitCounterOffer: %v", err)
	}
	if got.Wager.AbsoluteMax != (wager.Balances{Cash: 200, Rep: 5}) {
		t.Fatalf("absoluteMax = %+v", got.Wager.AbsoluteMax)
	}
	if got.Wager.Cash != 200 || got.Wager.Rep != 3 || got.Wager.ProposedBy != wager.SideTo || got.Wager.Revision != 1 {
		t.Fatalf("unexpected wager: %+v", got.Wager)
	}
}

func TestClosedChallengeRejectsTransitions(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, err := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{Cash: 50})
	if err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	_ = bob.Incoming(ctx)
	if _, err := bob.Decline(ctx, ch.ID); err != nil {
		t.Fatalf("Decline: %v", err)
	}
	if _, err := bob.Accept(ctx, ch.ID); !errors.Is(err, ErrChallengeClosed) {
		t.Fatalf("expected ErrChallengeClosed, got %v", err)
	}
	if _, err := alice.SubmitCounterOffer(ctx, ch.ID, wager.Offer{Cash: 10}); !errors.Is(err, ErrChallengeClosed) {
		t.Fatalf("expected ErrChallengeClosed for alice, got %v", err)
	}
	if _, err := alice.Cancel(ctx, ch.ID); !errors.Is(err, ErrChallengeClosed) {
		t.Fatalf("expected cancel after decline to fail, got %v", err)
	}
}

func TestSenderCannotAcceptOwnChallenge(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	ch, err := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{})
	if err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	if _, err := alice.Accept(ctx, ch.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := alice.Ready(ctx, ch.ID, true); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected Ready before accept to fail, got %v", err)
	}
}

func TestWaitForReadyBothSides(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, err := alice.SendChallenge(ctx, bobRef, map[string]any{"mode": "playoff"}, wager.Offer{})
	if err != nil {
		t.Fatalf("SendChallenge: %v", err)
	}
	_ = bob.Incoming(ctx)
	if _, err := bob.Accept(ctx, ch.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	outcome, got := alice.WaitForReady(waitCtx, ch.ID)
	if outcome != OutcomeReady {
		t.Fatalf("alice outcome = %s", outcome)
	}
	if !got.Lobby.Ready["alice"] {
		t.Fatal("alice ready flag not written")
	}
	if outcome, _ := bob.WaitForReady(waitCtx, ch.ID); outcome != OutcomeReady {
		t.Fatalf("bob outcome = %s", outcome)
	}
}

func TestWaitForReadyOutcomes(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	declined, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{})
	_ = bob.Incoming(ctx)
	_, _ = bob.Decline(ctx, declined.ID)
	if outcome, _ := alice.WaitForReady(ctx, declined.ID); outcome != OutcomeDeclined {
		t.Fatalf("declined outcome = %s", outcome)
	}

	pending, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{})
	shortCtx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
	defer cancel()
	if outcome, _ := alice.WaitForReady(shortCtx, pending.ID); outcome != OutcomeTimeout {
		t.Fatalf("pending outcome = %s", outcome)
	}

	w.clk.Advance(5 * time.Minute)
	if outcome, _ := alice.WaitForReady(ctx, pending.ID); outcome != OutcomeExpired {
		t.Fatalf("expired outcome = %s", outcome)
	}
}

func TestWaitForReadyStaleCounterpart(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{})
	_ = bob.Incoming(ctx)
	if _, err := bob.Accept(ctx, ch.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	w.clk.Advance(90 * time.Second)

	waitCtx, cancel := context.WithTimeout(ctx, 40*time.Millisecond)
	defer cancel()
	if outcome, _ := alice.WaitForReady(waitCtx, ch.ID); outcome != OutcomeTimeout {
		t.Fatalf("outcome = %s, want timeout on stale heartbeat", outcome)
	}
}

func readyBoth(t *testing.T, ctx context.Context, a, b *Service, id string) {
	t.Helper()
	if _, err := b.Ready(ctx, id, true); err != nil {
		t.Fatalf("Ready(%s): %v", b.me(), err)
	}
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if outcome, _ := a.WaitForReady(waitCtx, id); outcome != OutcomeReady {
		t.Fatalf("WaitForReady(%s) = %s", a.me(), outcome)
	}
}

func TestLaunchMatchSettlesOnce(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{Cash: 100, Rep: 2})
	_ = bob.Incoming(ctx)
	if _, err := alice.LaunchMatch(ctx, ch.ID); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected launch before accept to fail, got %v", err)
	}
	if _, err := bob.AcceptWager(ctx, ch.ID); err != nil {
		t.Fatalf("AcceptWager: %v", err)
	}
	readyBoth(t, ctx, alice, bob, ch.ID)

	a, err := alice.LaunchMatch(ctx, ch.ID)
	if err != nil {
		t.Fatalf("alice LaunchMatch: %v", err)
	}
	b, err := bob.LaunchMatch(ctx, ch.ID)
	if err != nil {
		t.Fatalf("bob LaunchMatch: %v", err)
	}
	if a.Score != b.Score || a.IWon == b.IWon || a.Draw {
		t.Fatalf("participants disagree: alice=%+v bob=%+v", a, b)
	}
	if a.Settlement == nil || b.Settlement == nil {
		t.Fatal("expected both settlements")
	}
	if a.Settlement.Cash+b.Settlement.Cash != 0 {
		t.Fatalf("stake not conserved: alice %d bob %d", a.Settlement.Cash, b.Settlement.Cash)
	}

	wantAlice := int64(400)
	if a.IWon {
		wantAlice = 600
	}
	if got := alice.Session().Cash; got != wantAlice {
		t.Fatalf("alice cash = %d, want %d", got, wantAlice)
	}

	again, err := alice.LaunchMatch(ctx, ch.ID)
	if err != nil {
		t.Fatalf("second LaunchMatch: %v", err)
	}
	if again.Settlement == nil || again.Settlement.SettledAt != a.Settlement.SettledAt {
		t.Fatalf("expected original settlement, got %+v", again.Settlement)
	}
	if got := alice.Session().Cash; got != wantAlice {
		t.Fatalf("cash changed on replay: %d", got)
	}
}

func TestLaunchMatchRequiresBothReady(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)

	ch, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{Cash: 100})
	_ = bob.Incoming(ctx)
	if _, err := bob.AcceptWager(ctx, ch.ID); err != nil {
		t.Fatalf("AcceptWager: %v", err)
	}

	if _, err := alice.LaunchMatch(ctx, ch.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("nobody ready: got %v, want ErrNotReady", err)
	}
	if _, err := alice.Ready(ctx, ch.ID, true); err != nil {
		t.Fatalf("alice Ready: %v", err)
	}
	if _, err := alice.LaunchMatch(ctx, ch.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("bob not ready: got %v, want ErrNotReady", err)
	}

	if _, err := bob.Ready(ctx, ch.ID, true); err != nil {
		t.Fatalf("bob Ready: %v", err)
	}
	w.clk.Advance(90 * time.Second)
	if _, err := alice.LaunchMatch(ctx, ch.ID); !errors.Is(err, ErrNotReady) {
		t.Fatalf("bob heartbeat 90000ms old: got %v, want ErrNotReady", err)
	}
	if got := alice.Session().Cash; got != 500 {
		t.Fatalf("refused launch moved money: cash = %d", got)
	}

	if _, err := bob.Ready(ctx, ch.ID, true); err != nil {
		t.Fatalf("bob Ready refresh: %v", err)
	}
	report, err := alice.LaunchMatch(ctx, ch.ID)
	if err != nil {
		t.Fatalf("LaunchMatch with fresh heartbeat: %v", err)
	}
	if !report.Completed || report.Settlement == nil {
		t.Fatalf("unexpected report: %+v", report)
	}
}

func TestLaunchMatchDrawIsPush(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)
	tie := game.EngineFunc(func(context.Context, game.MatchConfig) (game.Result, error) {
		return game.Result{Completed: true, Score: game.Score{TeamA: 40, TeamB: 40}}, nil
	})
	alice.engine = tie
	bob.engine = tie

	ch, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{Cash: 100, Rep: 2})
	_ = bob.Incoming(ctx)
	if _, err := bob.AcceptWager(ctx, ch.ID); err != nil {
		t.Fatalf("AcceptWager: %v", err)
	}
	readyBoth(t, ctx, alice, bob, ch.ID)

	for _, svc := range []*Service{alice, bob} {
		report, err := svc.LaunchMatch(ctx, ch.ID)
		if err != nil {
			t.Fatalf("%s LaunchMatch: %v", svc.me(), err)
		}
		if !report.Draw || report.IWon || report.Settlement != nil {
			t.Fatalf("%s report = %+v, want an unsettled draw", svc.me(), report)
		}
	}
	if alice.Session().Cash != 500 || bob.Session().Cash != 200 {
		t.Fatalf("draw moved money: alice %d bob %d", alice.Session().Cash, bob.Session().Cash)
	}
}

func TestLaunchMatchIncomplete(t *testing.T) {
	w := newWorld()
	ctx := context.Background()
	alice := w.join(aliceSession)
	bob := w.join(bobSession)
	alice.engine = game.EngineFunc(func(context.Context, game.MatchConfig) (game.Result, error) {
		return game.Result{Completed: false}, nil
	})

	ch, _ := alice.SendChallenge(ctx, bobRef, nil, wager.Offer{})
	_ = bob.Incoming(ctx)
	if _, err := bob.Accept(ctx, ch.ID); err != nil {
		t.Fatalf("Accept: %v", err)
	}
	if _, err := alice.Ready(ctx, ch.ID, true); err != nil {
		t.Fatalf("Ready: %v", err)
	}
	if _, err := alice.LaunchMatch(ctx, ch.ID); !errors.Is(err, ErrMatchIncomplete) {
		t.Fatalf("expected ErrMatchIncomplete, got %v", err)
	}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{challenge.ErrNotFound, 404, "challenge_not_found"},
		{ErrNotYourTurn, 409, "not_your_turn"},
		{ErrChallengeClosed, 409, "challenge_closed"},
		{ErrNotReady, 409, "not_ready"},
		{challenge.ErrNoClient, 503, "store_unavailable"},
		{challenge.ErrMissingGlobalID, 400, "missing_global_id"},
		{errors.New("boom"), 500, "internal_error"},
	}
	for _, tt := range tests {
		status, code := MapError(tt.err)
		if status != tt.status || code != tt.code {
			t.Fatalf("MapError(%v) = %d %q, want %d %q", tt.err, status, code, tt.status, tt.code)
		}
	}
}
