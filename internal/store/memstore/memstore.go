// Package memstore is an in-process document store. It backs the dev
// websocket server and stands in for the real store in tests.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"rimcity-link/internal/config"
	"rimcity-link/internal/store"
)

type Store struct {
	mu     sync.Mutex
	scopes map[string]store.Tree
	subs   map[string]int

	dials  int
	reads  int
	writes int

	dialErr  error
	readErr  error
	writeErr error
}

func New() *Store {
	return &Store{
		scopes: map[string]store.Tree{},
		subs:   map[string]int{},
	}
}

func (s *Store) Dial(ctx context.Context, _ config.StoreEndpoint) (store.Conn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dials++
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.dialErr != nil {
		return nil, s.dialErr
	}
	return &conn{s: s, connected: true}, nil
}

// Get reads path from scope without going through a Conn.
func (s *Store) Get(scope, path string) (json.RawMessage, error) {
	segs := store.SplitPath(path)
	if segs == nil {
		return nil, store.ErrInvalidPath
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.scopes[scope]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tree.Encode(segs)
}

// Put writes value at path in scope; nil removes it.
func (s *Store) Put(scope, path string, value any) error {
	segs := store.SplitPath(path)
	if segs == nil {
		return store.ErrInvalidPath
	}
	v, err := store.Normalize(value)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tree, ok := s.scopes[scope]
	if !ok {
		tree = store.Tree{}
		s.scopes[scope] = tree
	}
	tree.Set(segs, v)
	return nil
}

func (s *Store) SetDialError(err error) {
	s.mu.Lock()
	s.dialErr = err
	s.mu.Unlock()
}

func (s *Store) SetReadError(err error) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

func (s *Store) SetWriteError(err error) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

func (s *Store) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

func (s *Store) Reads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

func (s *Store) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Subscriptions lists active "scope:path" subscriptions, sorted.
func (s *Store) Subscriptions() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.subs))
	for k, n := range s.subs {
		if n > 0 {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

type conn struct {
	s *Store

	mu        sync.Mutex
	connected bool
	subs      map[string]bool
}

func (c *conn) Read(ctx context.Context, scope, path string, _ store.LockMode) (json.RawMessage, error) {
	if !c.Connected() {
		return nil, store.ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	c.s.reads++
	err := c.s.readErr
	c.s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return c.s.Get(scope, path)
}

func (c *conn) Write(ctx context.Context, scope, path string, value any, _ store.LockMode) error {
	if !c.Connected() {
		return store.ErrDisconnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	c.s.mu.Lock()
	c.s.writes++
	err := c.s.writeErr
	c.s.mu.Unlock()
	if err != nil {
		return err
	}
	return c.s.Put(scope, path, value)
}

func (c *conn) Subscribe(ctx context.Context, scope, path string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return store.ErrDisconnected
	}
	key := scope + ":" + path
	if c.subs == nil {
		c.subs = map[string]bool{}
	}
	if c.subs[key] {
		return nil
	}
	c.subs[key] = true
	c.s.mu.Lock()
	c.s.subs[key]++
	c.s.mu.Unlock()
	return nil
}

func (c *conn) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *conn) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return nil
	}
	c.connected = false
	c.s.mu.Lock()
	for key := range c.subs {
		c.s.subs[key]--
		if c.s.subs[key] <= 0 {
			delete(c.s.subs, key)
		}
	}
	c.s.mu.Unlock()
	c.subs = nil
	return nil
}
