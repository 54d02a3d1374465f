// Package pgstore keeps documents in Postgres. Each write lands as one row
// keyed by (scope, path); reads of an inner path assemble the rows below it.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"rimcity-link/internal/config"
	"rimcity-link/internal/store"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
  scope TEXT NOT NULL,
  path TEXT NOT NULL,
  value JSONB NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (scope, path)
);
`

type Dialer struct {
	DSN string
}

func (d Dialer) Dial(ctx context.Context, ep config.StoreEndpoint) (store.Conn, error) {
	dsn := strings.TrimSpace(d.DSN)
	if dsn == "" {
		dsn = ep.PostgresDSN
	}
	if dsn == "" {
		return nil, errors.New("postgres dsn is empty")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	c := New(pool, ep.Timeout)
	if err := c.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := c.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return c, nil
}

type Conn struct {
	Pool    *pgxpool.Pool
	timeout time.Duration

	mu        sync.Mutex
	connected bool
	subs      map[string]bool
}

func New(pool *pgxpool.Pool, timeout time.Duration) *Conn {
	if timeout <= 0 {
		timeout = config.DefaultStoreTimeout
	}
	return &Conn{Pool: pool, timeout: timeout, connected: true}
}

func (c *Conn) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return c.Pool.Ping(ctx)
}

func (c *Conn) EnsureSchema(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	_, err := c.Pool.Exec(ctx, schemaSQL)
	return err
}

type row struct {
	path  string
	value []byte
}

func (c *Conn) Read(ctx context.Context, scope, path string, lock store.LockMode) (json.RawMessage, error) {
	segs := store.SplitPath(path)
	if segs == nil {
		return nil, store.ErrInvalidPath
	}
	if !c.Connected() {
		return nil, store.ErrDisconnected
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	suffix := lockClause(lock)
	// An exact or ancestor row wins: the value lives inside it.
	covering, err := queryRows(ctx, tx, `SELECT path, value FROM documents WHERE scope = $1 AND path = ANY($2) ORDER BY length(path) DESC LIMIT 1`+suffix,
		scope, selfAndAncestors(segs))
	if err != nil {
		return nil, err
	}
	if len(covering) == 1 {
		r := covering[0]
		tree, err := decodeTree(r.value)
		if err != nil {
			return nil, err
		}
		rel := segs[len(store.SplitPath(r.path)):]
		out, err := tree.Encode(append([]string{"v"}, rel...))
		if err != nil {
			return nil, err
		}
		return out, tx.Commit(ctx)
	}

	below, err := queryRows(ctx, tx, `SELECT path, value FROM documents WHERE scope = $1 AND left(path, length($2) + 1) = $2 || '.'`+suffix,
		scope, path)
	if err != nil {
		return nil, err
	}
	if len(below) == 0 {
		return nil, store.ErrNotFound
	}
	assembled := store.Tree{}
	for _, r := range below {
		var v any
		if err := json.Unmarshal(r.value, &v); err != nil {
			return nil, fmt.Errorf("decode %s: %w", r.path, err)
		}
		assembled.Set(store.SplitPath(r.path)[len(segs):], v)
	}
	out, err := json.Marshal(map[string]any(assembled))
	if err != nil {
		return nil, err
	}
	return out, tx.Commit(ctx)
}

func (c *Conn) Write(ctx context.Context, scope, path string, value any, lock store.LockMode) error {
	segs := store.SplitPath(path)
	if segs == nil {
		return store.ErrInvalidPath
	}
	if !c.Connected() {
		return store.ErrDisconnected
	}
	v, err := store.Normalize(value)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	tx, err := c.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ancestors := selfAndAncestors(segs)
	ancestors = ancestors[:len(ancestors)-1]
	covering, err := queryRows(ctx, tx, `SELECT path, value FROM documents WHERE scope = $1 AND path = ANY($2) ORDER BY length(path) DESC LIMIT 1 FOR UPDATE`,
		scope, ancestors)
	if err != nil {
		return err
	}
	if len(covering) == 1 {
		if err := mergeIntoAncestor(ctx, tx, scope, covering[0], segs, v); err != nil {
			return err
		}
		return tx.Commit(ctx)
	}

	if _, err := tx.Exec(ctx, `DELETE FROM documents WHERE scope = $1 AND (path = $2 OR left(path, length($2) + 1) = $2 || '.')`, scope, path); err != nil {
		return err
	}
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `INSERT INTO documents (scope, path, value, updated_at) VALUES ($1, $2, $3::jsonb, now())`, scope, path, string(b)); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func mergeIntoAncestor(ctx context.Context, tx pgx.Tx, scope string, anc row, segs []string, v any) error {
	tree, err := decodeTree(anc.value)
	if err != nil {
		return err
	}
	rel := segs[len(store.SplitPath(anc.path)):]
	tree.Set(append([]string{"v"}, rel...), v)
	root, ok := tree.Get([]string{"v"})
	if !ok {
		_, err := tx.Exec(ctx, `DELETE FROM documents WHERE scope = $1 AND path = $2`, scope, anc.path)
		return err
	}
	b, err := json.Marshal(root)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE documents SET value = $3::jsonb, updated_at = now() WHERE scope = $1 AND path = $2`, scope, anc.path, string(b))
	return err
}

// Subscribe only records interest; this backend has no push channel.
func (c *Conn) Subscribe(ctx context.Context, scope, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return store.ErrDisconnected
	}
	if c.subs == nil {
		c.subs = map[string]bool{}
	}
	c.subs[scope+":"+path] = true
	return nil
}

func (c *Conn) Subscriptions() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subs)
}

func (c *Conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	c.subs = nil
	if c.Pool != nil {
		c.Pool.Close()
	}
	return nil
}

func lockClause(lock store.LockMode) string {
	switch lock {
	case store.LockWrite:
		return " FOR UPDATE"
	case store.LockRead:
		return " FOR SHARE"
	default:
		return ""
	}
}

func selfAndAncestors(segs []string) []string {
	out := make([]string, 0, len(segs))
	for i := 1; i <= len(segs); i++ {
		out = append(out, strings.Join(segs[:i], "."))
	}
	return out
}

// decodeTree wraps a row value under "v" so scalars and objects share the
// same Tree helpers.
func decodeTree(raw []byte) (store.Tree, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return store.Tree{"v": v}, nil
}

func queryRows(ctx context.Context, tx pgx.Tx, sql string, args ...any) ([]row, error) {
	rows, err := tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []row
	for rows.Next() {
		var r row
		if err := rows.Scan(&r.path, &r.value); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
