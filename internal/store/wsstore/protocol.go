// Package wsstore speaks the document store protocol over a websocket: one
// JSON frame per request, replies correlated by id.
package wsstore

import "encoding/json"

const (
	OpRead      = "read"
	OpWrite     = "write"
	OpSubscribe = "subscribe"
)

type Request struct {
	ID    string          `json:"id"`
	Op    string          `json:"op"`
	Scope string          `json:"scope"`
	Path  string          `json:"path"`
	Lock  int             `json:"lock"`
	Value json.RawMessage `json:"value,omitempty"`
}

type Reply struct {
	ID    string          `json:"id"`
	Ok    bool            `json:"ok"`
	Error string          `json:"error,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

const (
	errCodeNotFound    = "not_found"
	errCodeInvalidPath = "invalid_path"
	errCodeBadRequest  = "bad_request"
	errCodeInternal    = "internal_error"
)
