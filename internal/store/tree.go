package store

import (
	"encoding/json"
	"fmt"
)

// Tree is a decoded JSON document tree. Backends that hold a whole scope in
// one document (memstore, pgstore) share these helpers.
type Tree map[string]any

// Normalize turns an arbitrary Go value into plain JSON types.
func Normalize(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	var raw []byte
	switch v := value.(type) {
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(value)
		if err != nil {
			return nil, fmt.Errorf("encode value: %w", err)
		}
		raw = b
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode value: %w", err)
	}
	return out, nil
}

// Get walks segs and returns the node found there.
func (t Tree) Get(segs []string) (any, bool) {
	var node any = map[string]any(t)
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		node, ok = m[s]
		if !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// Set stores value at segs, creating inner objects on the way. A nil value
// deletes the leaf and prunes objects left empty.
func (t Tree) Set(segs []string, value any) {
	if len(segs) == 0 {
		return
	}
	if value == nil {
		t.remove(map[string]any(t), segs)
		return
	}
	m := map[string]any(t)
	for _, s := range segs[:len(segs)-1] {
		next, ok := m[s].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[s] = next
		}
		m = next
	}
	m[segs[len(segs)-1]] = value
}

func (t Tree) remove(m map[string]any, segs []string) bool {
	if len(segs) == 1 {
		delete(m, segs[0])
		return len(m) == 0
	}
	child, ok := m[segs[0]].(map[string]any)
	if !ok {
		return false
	}
	if t.remove(child, segs[1:]) {
		delete(m, segs[0])
	}
	return len(m) == 0
}

// Encode marshals the node at segs, or returns ErrNotFound.
func (t Tree) Encode(segs []string) (json.RawMessage, error) {
	node, ok := t.Get(segs)
	if !ok {
		return nil, ErrNotFound
	}
	b, err := json.Marshal(node)
	if err != nil {
		return nil, err
	}
	return b, nil
}
