package pgstore_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"rimcity-link/internal/store"
	"rimcity-link/internal/testutil"
)

func TestReadAssemblesBucket(t *testing.T) {
	conn, cleanup := testutil.OpenTestDocStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := conn.Write(ctx, "nba_jam", "rimcity.challenges.p1.ch_1", map[string]any{"status": "pending"}, store.LockWrite); err != nil {
		t.Fatalf("write 1: %v", err)
	}
	if err := conn.Write(ctx, "nba_jam", "rimcity.challenges.p1.ch_2", map[string]any{"status": "accepted"}, store.LockWrite); err != nil {
		t.Fatalf("write 2: %v", err)
	}

	raw, err := conn.Read(ctx, "nba_jam", "rimcity.challenges.p1", store.LockRead)
	if err != nil {
		t.Fatalf("read bucket: %v", err)
	}
	var bucket map[string]map[string]string
	if err := json.Unmarshal(raw, &bucket); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(bucket) != 2 || bucket["ch_1"]["status"] != "pending" {
		t.Fatalf("unexpected bucket: %+v", bucket)
	}
}

func TestWriteInsideAncestorRow(t *testing.T) {
	conn, cleanup := testutil.OpenTestDocStore(t)
	defer cleanup()
	ctx := context.Background()

	if err := conn.Write(ctx, "sc", "server_info", map[string]any{"name": "rim"}, store.LockWrite); err != nil {
		t.Fatalf("write parent: %v", err)
	}
	if err := conn.Write(ctx, "sc", "server_info.version", map[string]any{"commit": "abc"}, store.LockWrite); err != nil {
		t.Fatalf("write child: %v", err)
	}
	raw, err := conn.Read(ctx, "sc", "server_info.version.commit", store.LockNone)
	if err != nil {
		t.Fatalf("read child: %v", err)
	}
	if string(raw) != `"abc"` {
		t.Fatalf("commit = %s", raw)
	}
	raw, err = conn.Read(ctx, "sc", "server_info.name", store.LockNone)
	if err != nil || string(raw) != `"rim"` {
		t.Fatalf("sibling lost: %s, %v", raw, err)
	}
}

func TestWriteNilRemoves(t *testing.T) {
	conn, cleanup := testutil.OpenTestDocStore(t)
	defer cleanup()
	ctx := context.Background()

	_ = conn.Write(ctx, "sc", "rimcity.presence.p1", map[string]any{"globalId": "p1"}, store.LockWrite)
	if err := conn.Write(ctx, "sc", "rimcity.presence.p1", nil, store.LockWrite); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := conn.Read(ctx, "sc", "rimcity.presence.p1", store.LockRead); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
