// Package challenge keeps the local cache of challenge records and writes
// every change into both participants' mailboxes.
package challenge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"rimcity-link/internal/clock"
	"rimcity-link/internal/store"
	"rimcity-link/internal/wager"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoClient        = errors.New("store_unavailable")
	ErrMissingGlobalID = errors.New("missing_global_id")
	ErrNotFound        = errors.New("challenge_not_found")
)

const (
	DefaultTTL                = 5 * time.Minute
	DefaultLobbyStale         = 90 * time.Second
	DefaultDivergenceInterval = 30 * time.Second
	// evictGrace protects cached records whose mailbox write may not be
	// visible to a read yet.
	evictGrace = 10 * time.Second
)

type ExpiryPolicy string

const (
	// ExpiryKeep returns records past expiresAt unchanged.
	ExpiryKeep ExpiryPolicy = "keep"
	// ExpirySynthesize reports pending or negotiating records past
	// expiresAt as expired. The stored copies are never touched.
	ExpirySynthesize ExpiryPolicy = "expire"
)

func ParseExpiryPolicy(v string) ExpiryPolicy {
	if strings.EqualFold(strings.TrimSpace(v), string(ExpirySynthesize)) {
		return ExpirySynthesize
	}
	return ExpiryKeep
}

// Client is the part of store.Helper the repository needs.
type Client interface {
	EnsureClient(ctx context.Context, opts store.EnsureOptions) store.Conn
	MarkFailure()
	Scope() string
}

// DivergenceFunc is called by Cycle when the counterpart's copy of a
// challenge no longer matches ours. Nothing is written back.
type DivergenceFunc func(own, other *Challenge)

type Options struct {
	Clock        clock.Clock
	TTL          time.Duration
	LobbyStale   time.Duration
	Expiry       ExpiryPolicy
	OnDivergence DivergenceFunc
	// DivergenceInterval spaces out the counterpart mailbox reads Cycle
	// makes to detect divergence.
	DivergenceInterval time.Duration
}

// Repository is one participant's view of their challenges.
type Repository struct {
	owner        string
	client       Client
	clock        clock.Clock
	ttl          time.Duration
	lobbyStale   time.Duration
	expiry       ExpiryPolicy
	onDivergence DivergenceFunc
	divergeEvery time.Duration

	mu            sync.Mutex
	cache         map[string]*Challenge
	lastDivergeAt time.Time
}

func NewRepository(owner string, client Client, opts Options) *Repository {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	stale := opts.LobbyStale
	if stale <= 0 {
		stale = DefaultLobbyStale
	}
	expiry := opts.Expiry
	if expiry == "" {
		expiry = ExpiryKeep
	}
	onDivergence := opts.OnDivergence
	if onDivergence == nil {
		onDivergence = logDivergence
	}
	divergeEvery := opts.DivergenceInterval
	if divergeEvery <= 0 {
		divergeEvery = DefaultDivergenceInterval
	}
	return &Repository{
		divergeEvery: divergeEvery,
		owner:        strings.TrimSpace(owner),
		client:       client,
		clock:        clk,
		ttl:          ttl,
		lobbyStale:   stale,
		expiry:       expiry,
		onDivergence: onDivergence,
		cache:        map[string]*Challenge{},
	}
}

func (r *Repository) Owner() string { return r.owner }

func (r *Repository) Clock() clock.Clock { return r.clock }

// Create writes a new challenge from the session owner to `to` into both
// mailboxes. A non-zero offer seeds the wager, capped by both balances.
// Nothing is written when either participant lacks a global id or the
// store is unavailable.
func (r *Repository) Create(ctx context.Context, from Session, to PlayerRef, meta map[string]any, offer wager.Offer) (*Challenge, error) {
	fromRef := from.Ref()
	toRef := normalizeRef(to)
	if fromRef.GlobalID == "" || toRef.GlobalID == "" {
		log.Debug().Str("from", fromRef.GlobalID).Str("to", toRef.GlobalID).Msg("create challenge: missing global id")
		return nil, ErrMissingGlobalID
	}
	conn := r.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return nil, ErrNoClient
	}

	now := r.clock.Now()
	ts := now.UnixMilli()
	ch := &Challenge{
		ID:        fmt.Sprintf("ch_%s_%s_%d_%s", store.Key(fromRef.GlobalID), store.Key(toRef.GlobalID), ts, store.NewIDAt(now)),
		From:      fromRef,
		To:        toRef,
		Status:    StatusPending,
		CreatedAt: ts,
		UpdatedAt: ts,
		ExpiresAt: ts + r.ttl.Milliseconds(),
		Lobby:     newLobby(),
		Meta:      copyMeta(meta),
	}
	if !offer.IsZero() {
		absMax := wager.CalculateAbsoluteMax(fromRef.Balances(), toRef.Balances())
		ch.Wager = wager.New(offer, absMax, wager.SideFrom, ts)
	}

	r.writeBoth(ctx, conn, ch)
	r.put(ch)

	scope := r.client.Scope()
	if err := conn.Subscribe(ctx, scope, store.ChallengeBucket(toRef.GlobalID)); err != nil {
		log.Debug().Err(err).Str("global_id", toRef.GlobalID).Msg("subscribe to counterpart mailbox failed")
	}
	metricCreatedTotal.Add(1)
	log.Info().Str("challenge_id", ch.ID).Str("from", fromRef.GlobalID).Str("to", toRef.GlobalID).Msg("challenge created")
	return ch.Clone(), nil
}

// Get refreshes the cache and returns the record with id.
func (r *Repository) Get(ctx context.Context, id string) (*Challenge, error) {
	_ = r.Cycle(ctx)
	ch := r.Peek(id)
	if ch == nil {
		return nil, ErrNotFound
	}
	return ch, nil
}

// Peek returns the cached record without touching the store.
func (r *Repository) Peek(id string) *Challenge {
	r.mu.Lock()
	ch := r.cache[id]
	r.mu.Unlock()
	if ch == nil {
		return nil
	}
	return r.view(ch)
}

// ListIncoming returns challenges addressed to the owner, newest first.
func (r *Repository) ListIncoming(ctx context.Context) []*Challenge {
	_ = r.Cycle(ctx)
	return r.filter(func(ch *Challenge) bool { return ch.To.GlobalID == r.owner })
}

// ListOutgoing returns challenges the owner sent, newest first.
func (r *Repository) ListOutgoing(ctx context.Context) []*Challenge {
	_ = r.Cycle(ctx)
	return r.filter(func(ch *Challenge) bool { return ch.From.GlobalID == r.owner })
}

func (r *Repository) filter(keep func(*Challenge) bool) []*Challenge {
	r.mu.Lock()
	out := make([]*Challenge, 0, len(r.cache))
	for _, ch := range r.cache {
		if keep(ch) {
			out = append(out, ch)
		}
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	for i, ch := range out {
		out[i] = r.view(ch)
	}
	return out
}

// Update applies mutate to a copy of the cached record, stamps updatedAt and
// writes the result to both mailboxes. Without a live store the change is
// dropped and ErrNoClient is returned; the caller should retry after a
// later Cycle.
func (r *Repository) Update(ctx context.Context, id string, mutate func(*Challenge) error) (*Challenge, error) {
	conn := r.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		metricDroppedTotal.Add(1)
		return nil, ErrNoClient
	}
	r.mu.Lock()
	cached := r.cache[id]
	r.mu.Unlock()
	if cached == nil {
		return nil, ErrNotFound
	}

	next := cached.Clone()
	if mutate != nil {
		if err := mutate(next); err != nil {
			return nil, err
		}
	}
	next.ID = cached.ID
	next.UpdatedAt = clock.UnixMilli(r.clock)

	r.writeBoth(ctx, conn, next)
	r.put(next)
	metricUpdatedTotal.Add(1)
	return next.Clone(), nil
}

// MarkAccepted accepts the challenge and marks the owner ready.
func (r *Repository) MarkAccepted(ctx context.Context, id string) (*Challenge, error) {
	return r.Update(ctx, id, func(ch *Challenge) error {
		ch.Status = StatusAccepted
		r.touchLobby(ch, true)
		return nil
	})
}

func (r *Repository) MarkDeclined(ctx context.Context, id string) (*Challenge, error) {
	return r.Update(ctx, id, func(ch *Challenge) error {
		ch.Status = StatusDeclined
		return nil
	})
}

func (r *Repository) MarkCancelled(ctx context.Context, id string) (*Challenge, error) {
	return r.Update(ctx, id, func(ch *Challenge) error {
		ch.Status = StatusCancelled
		return nil
	})
}

// MarkReady records the owner's ready flag and refreshes their heartbeat.
func (r *Repository) MarkReady(ctx context.Context, id string, ready bool) (*Challenge, error) {
	return r.Update(ctx, id, func(ch *Challenge) error {
		r.touchLobby(ch, ready)
		return nil
	})
}

func (r *Repository) touchLobby(ch *Challenge, ready bool) {
	if r.owner == "" {
		return
	}
	ch.ensureMaps()
	ch.Lobby.Ready[r.owner] = ready
	ch.Lobby.LastPing[r.owner] = clock.UnixMilli(r.clock)
}

// IsOtherReady reports whether the counterpart of myID is ready with a
// heartbeat younger than the lobby staleness window.
func (r *Repository) IsOtherReady(ch *Challenge, myID string) bool {
	return OtherReadyAt(ch, myID, clock.UnixMilli(r.clock), r.lobbyStale)
}

// Cycle pulls the owner's mailbox into the cache. Cached records newer than
// the stored copy are kept; records gone from the mailbox are dropped. Without
// a live store the cache is left as is. A failed read arms the store backoff.
func (r *Repository) Cycle(ctx context.Context) error {
	if r.owner == "" {
		return ErrMissingGlobalID
	}
	conn := r.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return ErrNoClient
	}
	metricCycleTotal.Add(1)
	scope := r.client.Scope()

	readAt := clock.UnixMilli(r.clock)
	raw, err := conn.Read(ctx, scope, store.ChallengeBucket(r.owner), store.LockRead)
	switch {
	case errors.Is(err, store.ErrNotFound):
		r.mergeBucket(nil, readAt)
	case err != nil:
		log.Warn().Err(err).Str("global_id", r.owner).Msg("challenge cycle read failed")
		r.client.MarkFailure()
		return err
	default:
		var bucket map[string]json.RawMessage
		if err := json.Unmarshal(raw, &bucket); err != nil {
			log.Warn().Err(err).Str("global_id", r.owner).Msg("challenge mailbox is not an object")
			return nil
		}
		r.mergeBucket(bucket, readAt)
	}
	if !r.divergenceDue() {
		return nil
	}
	return r.checkDivergence(ctx, conn, scope)
}

func (r *Repository) divergenceDue() bool {
	now := r.clock.Now()
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.lastDivergeAt.IsZero() && now.Sub(r.lastDivergeAt) < r.divergeEvery {
		return false
	}
	r.lastDivergeAt = now
	return true
}

func (r *Repository) mergeBucket(bucket map[string]json.RawMessage, readAt int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := make(map[string]bool, len(bucket))
	for key, doc := range bucket {
		ch, err := decodeDocument(doc)
		if err != nil {
			metricInvalidDocumentsTotal.Add(1)
			log.Warn().Err(err).Str("key", key).Msg("skip malformed challenge")
			continue
		}
		if !ch.Involves(r.owner) {
			metricInvalidDocumentsTotal.Add(1)
			continue
		}
		seen[ch.ID] = true
		if cached := r.cache[ch.ID]; cached != nil && cached.UpdatedAt > ch.UpdatedAt {
			continue
		}
		r.cache[ch.ID] = ch
	}
	cutoff := readAt - evictGrace.Milliseconds()
	for id, cached := range r.cache {
		if !seen[id] && cached.UpdatedAt < cutoff {
			delete(r.cache, id)
			metricEvictedTotal.Add(1)
		}
	}
}

// checkDivergence compares open cached records with the counterpart's copy.
// The first failed read arms the backoff and ends the pass.
func (r *Repository) checkDivergence(ctx context.Context, conn store.Conn, scope string) error {
	r.mu.Lock()
	open := make([]*Challenge, 0, len(r.cache))
	for _, ch := range r.cache {
		if !ch.Status.Terminal() {
			open = append(open, ch)
		}
	}
	r.mu.Unlock()

	for _, own := range open {
		other := own.Counterpart(r.owner).GlobalID
		if other == "" {
			continue
		}
		raw, err := conn.Read(ctx, scope, store.ChallengePath(other, own.ID), store.LockNone)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Str("challenge_id", own.ID).Msg("counterpart copy read failed")
			r.client.MarkFailure()
			return err
		}
		theirs, err := decodeDocument(raw)
		if err != nil {
			continue
		}
		if diverged(own, theirs) {
			metricDivergenceTotal.Add(1)
			r.onDivergence(own.Clone(), theirs)
		}
	}
	return nil
}

func diverged(a, b *Challenge) bool {
	if a.Status != b.Status || a.UpdatedAt != b.UpdatedAt {
		return true
	}
	if (a.Wager == nil) != (b.Wager == nil) {
		return true
	}
	return a.Wager != nil && a.Wager.Revision != b.Wager.Revision
}

func logDivergence(own, other *Challenge) {
	log.Warn().
		Str("challenge_id", own.ID).
		Str("own_status", string(own.Status)).
		Str("other_status", string(other.Status)).
		Int64("own_updated_at", own.UpdatedAt).
		Int64("other_updated_at", other.UpdatedAt).
		Msg("challenge mailboxes diverged")
}

// writeBoth sends ch to the sender's and the receiver's mailbox. Writes are
// fire-and-forget; a failure arms the store backoff.
func (r *Repository) writeBoth(ctx context.Context, conn store.Conn, ch *Challenge) {
	scope := r.client.Scope()
	failed := false
	for _, gid := range []string{ch.From.GlobalID, ch.To.GlobalID} {
		if gid == "" {
			continue
		}
		path := store.ChallengePath(gid, ch.ID)
		if err := conn.Write(ctx, scope, path, ch, store.LockWrite); err != nil {
			metricWriteErrorsTotal.Add(1)
			log.Warn().Err(err).Str("challenge_id", ch.ID).Str("path", path).Msg("challenge write failed")
			failed = true
		}
	}
	if failed {
		r.client.MarkFailure()
	}
}

func (r *Repository) put(ch *Challenge) {
	r.mu.Lock()
	r.cache[ch.ID] = ch.Clone()
	r.mu.Unlock()
}

// view applies the expiry policy to a copy of ch.
func (r *Repository) view(ch *Challenge) *Challenge {
	out := ch.Clone()
	if r.expiry == ExpirySynthesize && out.Status.Negotiable() && out.ExpiredAt(clock.UnixMilli(r.clock)) {
		out.Status = StatusExpired
	}
	return out
}

func copyMeta(meta map[string]any) map[string]any {
	out := make(map[string]any, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}
