// Package store is the shared client for the eventually consistent document
// store: a scope-partitioned tree of JSON values addressed by dotted paths.
package store

import (
	"context"
	"encoding/json"
	"errors"

	"rimcity-link/internal/config"
)

var (
	ErrNotFound     = errors.New("not_found")
	ErrDisconnected = errors.New("store_disconnected")
	ErrInvalidPath  = errors.New("invalid_path")
)

// LockMode is passed through to the backend untouched.
type LockMode int

const (
	LockNone  LockMode = 0
	LockRead  LockMode = 1
	LockWrite LockMode = 2
)

// Conn is one live connection to a document store.
//
// Read returns ErrNotFound when nothing is stored at path. Reading an inner
// node returns the assembled subtree. Writing a nil value removes the path;
// writing any other value replaces the whole subtree below it.
type Conn interface {
	Read(ctx context.Context, scope, path string, lock LockMode) (json.RawMessage, error)
	Write(ctx context.Context, scope, path string, value any, lock LockMode) error
	Subscribe(ctx context.Context, scope, path string) error
	Connected() bool
	Disconnect() error
}

// Dialer opens connections. Implementations must honor ctx for the dial
// itself and apply ep.Timeout to every later call.
type Dialer interface {
	Dial(ctx context.Context, ep config.StoreEndpoint) (Conn, error)
}

type DialerFunc func(ctx context.Context, ep config.StoreEndpoint) (Conn, error)

func (f DialerFunc) Dial(ctx context.Context, ep config.StoreEndpoint) (Conn, error) {
	return f(ctx, ep)
}

// Decode reads path and unmarshals it into out.
func Decode(ctx context.Context, c Conn, scope, path string, lock LockMode, out any) error {
	raw, err := c.Read(ctx, scope, path, lock)
	if err != nil {
		return err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return ErrNotFound
	}
	return json.Unmarshal(raw, out)
}
