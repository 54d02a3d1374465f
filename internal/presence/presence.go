// Package presence publishes this participant's heartbeat and reads
// everyone else's.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"expvar"
	"sort"
	"strings"
	"sync"
	"time"

	"rimcity-link/internal/clock"
	"rimcity-link/internal/store"

	"github.com/rs/zerolog/log"
)

var (
	ErrNoClient        = errors.New("store_unavailable")
	ErrMissingGlobalID = errors.New("missing_global_id")
)

var (
	metricHeartbeatTotal       = expvar.NewInt("presence_heartbeat_total")
	metricHeartbeatErrorsTotal = expvar.NewInt("presence_heartbeat_errors_total")
)

const (
	DefaultStale    = 90 * time.Second
	DefaultInterval = 30 * time.Second
	// DefaultRosterTTL is how long a pulled roster answers online checks
	// before IsPlayerOnline pulls it again.
	DefaultRosterTTL = 5 * time.Second
)

type Record struct {
	GlobalID string `json:"globalId"`
	Name     string `json:"name"`
	LastSeen int64  `json:"lastSeen"`
}

type Client interface {
	EnsureClient(ctx context.Context, opts store.EnsureOptions) store.Conn
	MarkFailure()
	Scope() string
}

type Options struct {
	Clock    clock.Clock
	Stale     time.Duration
	Interval  time.Duration
	RosterTTL time.Duration
}

type Tracker struct {
	self     Record
	client   Client
	clock    clock.Clock
	stale    time.Duration
	interval time.Duration
	ttl      time.Duration

	mu       sync.Mutex
	roster   map[string]Record
	cycledAt time.Time
}

func NewTracker(globalID, name string, client Client, opts Options) *Tracker {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	stale := opts.Stale
	if stale <= 0 {
		stale = DefaultStale
	}
	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	ttl := opts.RosterTTL
	if ttl <= 0 {
		ttl = DefaultRosterTTL
	}
	return &Tracker{
		ttl:      ttl,
		self:     Record{GlobalID: strings.TrimSpace(globalID), Name: name},
		client:   client,
		clock:    clk,
		stale:    stale,
		interval: interval,
		roster:   map[string]Record{},
	}
}

// SetPresence writes a fresh heartbeat for this participant.
func (t *Tracker) SetPresence(ctx context.Context) error {
	if t.self.GlobalID == "" {
		return ErrMissingGlobalID
	}
	conn := t.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return ErrNoClient
	}
	rec := t.self
	rec.LastSeen = clock.UnixMilli(t.clock)
	if err := conn.Write(ctx, t.client.Scope(), store.PresencePath(rec.GlobalID), rec, store.LockWrite); err != nil {
		metricHeartbeatErrorsTotal.Add(1)
		log.Warn().Err(err).Str("global_id", rec.GlobalID).Msg("presence write failed")
		t.client.MarkFailure()
		return err
	}
	metricHeartbeatTotal.Add(1)
	t.remember(rec)
	return nil
}

// ClearPresence removes this participant's heartbeat.
func (t *Tracker) ClearPresence(ctx context.Context) error {
	if t.self.GlobalID == "" {
		return ErrMissingGlobalID
	}
	conn := t.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return ErrNoClient
	}
	if err := conn.Write(ctx, t.client.Scope(), store.PresencePath(t.self.GlobalID), nil, store.LockWrite); err != nil {
		log.Warn().Err(err).Str("global_id", t.self.GlobalID).Msg("presence clear failed")
		t.client.MarkFailure()
		return err
	}
	t.mu.Lock()
	delete(t.roster, store.Key(t.self.GlobalID))
	t.mu.Unlock()
	return nil
}

// Cycle reloads the whole roster.
func (t *Tracker) Cycle(ctx context.Context) error {
	conn := t.client.EnsureClient(ctx, store.EnsureOptions{})
	if conn == nil {
		return ErrNoClient
	}
	raw, err := conn.Read(ctx, t.client.Scope(), store.RootPresence, store.LockRead)
	if errors.Is(err, store.ErrNotFound) {
		t.mu.Lock()
		t.roster = map[string]Record{}
		t.cycledAt = t.clock.Now()
		t.mu.Unlock()
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("presence roster read failed")
		t.client.MarkFailure()
		return err
	}
	var entries map[string]json.RawMessage
	if err := json.Unmarshal(raw, &entries); err != nil {
		return err
	}
	roster := make(map[string]Record, len(entries))
	for key, doc := range entries {
		var rec Record
		if err := json.Unmarshal(doc, &rec); err != nil || rec.LastSeen <= 0 {
			continue
		}
		if rec.GlobalID == "" {
			rec.GlobalID = key
		}
		roster[key] = rec
	}
	t.mu.Lock()
	t.roster = roster
	t.cycledAt = t.clock.Now()
	t.mu.Unlock()
	return nil
}

// IsPlayerOnline answers from the roster Cycle keeps. The roster is pulled
// again only once it is older than the roster TTL, so repeated checks cost
// at most one store read per TTL.
func (t *Tracker) IsPlayerOnline(ctx context.Context, gid string) bool {
	gid = strings.TrimSpace(gid)
	if gid == "" {
		return false
	}
	if t.rosterExpired() {
		if err := t.Cycle(ctx); err != nil {
			log.Debug().Err(err).Msg("presence roster refresh failed")
		}
	}
	t.mu.Lock()
	rec, ok := t.roster[store.Key(gid)]
	t.mu.Unlock()
	return ok && t.fresh(rec)
}

func (t *Tracker) rosterExpired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cycledAt.IsZero() || t.clock.Now().Sub(t.cycledAt) >= t.ttl
}

// OnlinePlayers refreshes the roster and returns everyone with a fresh
// heartbeat, sorted by global id.
func (t *Tracker) OnlinePlayers(ctx context.Context) []Record {
	_ = t.Cycle(ctx)
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, 0, len(t.roster))
	for _, rec := range t.roster {
		if t.fresh(rec) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GlobalID < out[j].GlobalID })
	return out
}

// Run heartbeats and refreshes the roster every interval until ctx ends,
// then clears presence.
func (t *Tracker) Run(ctx context.Context) error {
	if t.self.GlobalID == "" {
		return ErrMissingGlobalID
	}
	_ = t.SetPresence(ctx)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			clearCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = t.ClearPresence(clearCtx)
			cancel()
			return nil
		case <-ticker.C:
			_ = t.SetPresence(ctx)
			_ = t.Cycle(ctx)
		}
	}
}

func (t *Tracker) fresh(rec Record) bool {
	return clock.UnixMilli(t.clock)-rec.LastSeen < t.stale.Milliseconds()
}

func (t *Tracker) remember(rec Record) {
	t.mu.Lock()
	t.roster[store.Key(rec.GlobalID)] = rec
	t.mu.Unlock()
}
