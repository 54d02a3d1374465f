package store

import (
	"context"
	"strings"
	"sync"
	"time"

	"rimcity-link/internal/clock"
	"rimcity-link/internal/config"

	"github.com/rs/zerolog/log"
)

// VersionInfo is what gets published at VersionPath after the first
// successful connection.
type VersionInfo struct {
	Commit      string `json:"commit"`
	PublishedAt int64  `json:"publishedAt"`
	PublishedBy string `json:"publishedBy"`
}

type HelperOptions struct {
	Dialer Dialer
	// Resolve is consulted on every dial so a changed discovery file is
	// picked up without a restart.
	Resolve func() config.StoreEndpoint
	Clock   clock.Clock
	// Enabled is the live-challenge kill switch.
	Enabled      bool
	LocalVersion string
	PublishedBy  string
}

type EnsureOptions struct {
	// Force ignores an armed backoff window.
	Force            bool
	SkipVersionCheck bool
}

// Helper owns the single shared connection used by presence and challenge
// code. It never blocks callers longer than one dial timeout and refuses to
// dial at all while a failure backoff is armed.
type Helper struct {
	dialer       Dialer
	resolve      func() config.StoreEndpoint
	clock        clock.Clock
	enabled      bool
	localVersion string
	publishedBy  string

	mu               sync.Mutex
	conn             Conn
	endpoint         config.StoreEndpoint
	resolved         bool
	backoffUntil     time.Time
	versionPublished bool
}

func NewHelper(opts HelperOptions) *Helper {
	resolve := opts.Resolve
	if resolve == nil {
		resolve = func() config.StoreEndpoint {
			return config.ResolveStore(config.StoreConfig{}, config.StoreOverride{})
		}
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}
	version := strings.TrimSpace(opts.LocalVersion)
	if version == "" {
		version = "unknown"
	}
	publishedBy := strings.TrimSpace(opts.PublishedBy)
	if publishedBy == "" {
		publishedBy = "unknown"
	}
	return &Helper{
		dialer:       opts.Dialer,
		resolve:      resolve,
		clock:        clk,
		enabled:      opts.Enabled,
		localVersion: version,
		publishedBy:  publishedBy,
	}
}

// EnsureClient returns a connected Conn or nil. A nil result means the
// store is unavailable right now; callers degrade instead of failing.
func (h *Helper) EnsureClient(ctx context.Context, opts EnsureOptions) Conn {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.clock.Now()
	if !opts.Force && !h.backoffUntil.IsZero() && now.Before(h.backoffUntil) {
		metricBackoffSkipTotal.Add(1)
		return nil
	}

	h.endpoint = h.resolve()
	h.resolved = true

	if !h.enabled {
		h.backoffUntil = now.Add(h.endpoint.Backoff)
		return nil
	}
	if h.conn != nil && h.conn.Connected() {
		return h.conn
	}
	if h.dialer == nil {
		h.backoffUntil = now.Add(h.endpoint.Backoff)
		return nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, h.endpoint.Timeout)
	defer cancel()
	conn, err := h.dialer.Dial(dialCtx, h.endpoint)
	if err != nil || conn == nil || !conn.Connected() {
		metricConnectErrorsTotal.Add(1)
		log.Warn().Err(err).
			Str("addr", h.endpoint.Addr).
			Int("port", h.endpoint.Port).
			Dur("backoff", h.endpoint.Backoff).
			Msg("store connect failed")
		if conn != nil {
			_ = conn.Disconnect()
		}
		h.conn = nil
		h.backoffUntil = now.Add(h.endpoint.Backoff)
		return nil
	}

	metricConnectTotal.Add(1)
	log.Debug().
		Str("addr", h.endpoint.Addr).
		Int("port", h.endpoint.Port).
		Dur("timeout", h.endpoint.Timeout).
		Msg("store connected")
	h.conn = conn
	h.backoffUntil = time.Time{}
	if !opts.SkipVersionCheck {
		h.publishVersion(ctx, conn)
	}
	return conn
}

// publishVersion runs once per Helper. It is advisory only: a failed
// publish never blocks the connection.
func (h *Helper) publishVersion(ctx context.Context, conn Conn) {
	if h.versionPublished {
		return
	}
	h.versionPublished = true
	if h.localVersion == "unknown" {
		log.Debug().Msg("version publish skipped for development build")
		return
	}
	info := VersionInfo{
		Commit:      h.localVersion,
		PublishedAt: clock.UnixMilli(h.clock),
		PublishedBy: h.publishedBy,
	}
	if err := conn.Write(ctx, h.endpoint.Scope, VersionPath, info, LockWrite); err != nil {
		log.Warn().Err(err).Str("commit", info.Commit).Msg("version publish failed")
		return
	}
	metricVersionPublished.Add(1)
	log.Info().Str("commit", info.Commit).Msg("version published")
}

func (h *Helper) Disconnect() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.disconnectLocked()
}

func (h *Helper) disconnectLocked() {
	if h.conn == nil {
		return
	}
	if err := h.conn.Disconnect(); err != nil {
		log.Debug().Err(err).Msg("store disconnect")
	}
	h.conn = nil
}

// MarkFailure arms the backoff window and drops the connection. Callers use
// it after a read or write error so the next few cycles skip I/O.
func (h *Helper) MarkFailure() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.resolved {
		h.endpoint = h.resolve()
		h.resolved = true
	}
	metricFailureTotal.Add(1)
	h.backoffUntil = h.clock.Now().Add(h.endpoint.Backoff)
	h.disconnectLocked()
}

// Scope is the scope of the most recently resolved endpoint.
func (h *Helper) Scope() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.resolved {
		h.endpoint = h.resolve()
		h.resolved = true
	}
	return h.endpoint.Scope
}

func (h *Helper) BackoffUntil() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.backoffUntil
}

func (h *Helper) VersionChecked() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.versionPublished
}

func (h *Helper) LocalVersion() string {
	return h.localVersion
}
