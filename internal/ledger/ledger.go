// Package ledger records the outcome of a wagered match for one
// participant. Each challenge settles at most once per participant.
package ledger

import (
	"context"
	"errors"
	"expvar"

	"rimcity-link/internal/clock"
	"rimcity-link/internal/game"
	"rimcity-link/internal/store"
	"rimcity-link/internal/wager"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoClient        = errors.New("store_unavailable")
	ErrInvalidEntry    = errors.New("invalid_ledger_entry")
	ErrAlreadySettled  = errors.New("already_settled")
	metricSettledTotal = expvar.NewInt("ledger_settled_total")
	metricDuplicate    = expvar.NewInt("ledger_duplicate_total")
)

type Client interface {
	EnsureClient(ctx context.Context, opts store.EnsureOptions) store.Conn
	MarkFailure()
	Scope() string
}

// Entry is a signed balance change: positive for a win, negative for a loss.
type Entry struct {
	ChallengeID string     `json:"challengeId"`
	GlobalID    string     `json:"globalId"`
	Cash        int64      `json:"cash"`
	Rep         int64      `json:"rep"`
	Won         bool       `json:"won"`
	Score       game.Score `json:"score"`
	SettledAt   int64      `json:"settledAt"`
}

type Ledger struct {
	client Client
	clock  clock.Clock
}

func New(client Client, clk clock.Clock) *Ledger {
	if clk == nil {
		clk = clock.Real()
	}
	return &Ledger{client: client, clock: clk}
}

// Delta is what the winner gains and the loser gives up. No wager, no
// change.
func Delta(w *wager.Wager, won bool) (cash, rep int64) {
	if w == nil {
		return 0, 0
	}
	if won {
		return w.Cash, w.Rep
	}
	return -w.Cash, -w.Rep
}

// Settle stores e unless an entry for the same challenge already exists.
// The stored entry is returned with ErrAlreadySettled in that case.
func (l *Ledger) Settle(ctx context.Context, e Entry) (Entry, error) {
	if e.ChallengeID == "" || e.GlobalID == "" {
		return Entry{}, ErrInvalidEntry
	}
	conn := l.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return Entry{}, ErrNoClient
	}
	scope := l.client.Scope()
	path := store.LedgerPath(e.GlobalID, e.ChallengeID)

	var existing Entry
	err := store.Decode(ctx, conn, scope, path, store.LockWrite, &existing)
	switch {
	case err == nil:
		metricDuplicate.Add(1)
		return existing, ErrAlreadySettled
	case !errors.Is(err, store.ErrNotFound):
		l.client.MarkFailure()
		return Entry{}, err
	}

	e.SettledAt = clock.UnixMilli(l.clock)
	if err := conn.Write(ctx, scope, path, e, store.LockWrite); err != nil {
		log.Warn().Err(err).Str("challenge_id", e.ChallengeID).Str("path", path).Msg("ledger write failed")
		l.client.MarkFailure()
		return Entry{}, err
	}
	metricSettledTotal.Add(1)
	log.Info().
		Str("challenge_id", e.ChallengeID).
		Str("global_id", e.GlobalID).
		Int64("cash", e.Cash).
		Int64("rep", e.Rep).
		Bool("won", e.Won).
		Msg("wager settled")
	return e, nil
}

// Get returns the settlement for gid on challengeID.
func (l *Ledger) Get(ctx context.Context, gid, challengeID string) (Entry, error) {
	conn := l.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return Entry{}, ErrNoClient
	}
	var e Entry
	if err := store.Decode(ctx, conn, l.client.Scope(), store.LedgerPath(gid, challengeID), store.LockRead, &e); err != nil {
		return Entry{}, err
	}
	return e, nil
}
