package wsstore

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"rimcity-link/internal/config"
	"rimcity-link/internal/store"
	"rimcity-link/internal/store/memstore"
)

func startServer(t *testing.T) (*Server, *memstore.Store, config.StoreEndpoint) {
	t.Helper()
	docs := memstore.New()
	srv := NewServer(docs)
	mux := http.NewServeMux()
	mux.HandleFunc(DefaultPath, srv.HandleWS)
	ts := httptest.NewServer(mux)
	t.Cleanup(ts.Close)

	u, err := url.Parse(ts.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	host, portStr, _ := net.SplitHostPort(u.Host)
	port, _ := strconv.Atoi(portStr)
	return srv, docs, config.StoreEndpoint{Addr: host, Port: port, Scope: "nba_jam", Timeout: 2 * time.Second}
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	_, docs, ep := startServer(t)
	ctx := context.Background()
	conn, err := Dialer{}.Dial(ctx, ep)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Disconnect()

	if err := conn.Write(ctx, "nba_jam", "rimcity.presence.p1", map[string]any{"globalId": "p1", "lastSeen": 10}, store.LockWrite); err != nil {
		t.Fatalf("write: %v", err)
	}
	raw, err := conn.Read(ctx, "nba_jam", "rimcity.presence", store.LockRead)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var roster map[string]map[string]any
	if err := json.Unmarshal(raw, &roster); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if roster["p1"]["globalId"] != "p1" {
		t.Fatalf("unexpected roster: %+v", roster)
	}
	if _, err := docs.Get("nba_jam", "rimcity.presence.p1"); err != nil {
		t.Fatalf("backing store missing write: %v", err)
	}
}

func TestReadMissingPath(t *testing.T) {
	_, _, ep := startServer(t)
	conn, err := Dialer{}.Dial(context.Background(), ep)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Disconnect()

	if _, err := conn.Read(context.Background(), "nba_jam", "rimcity.challenges.nobody", store.LockRead); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteNullClears(t *testing.T) {
	_, docs, ep := startServer(t)
	ctx := context.Background()
	conn, err := Dialer{}.Dial(ctx, ep)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Disconnect()

	_ = docs.Put("nba_jam", "rimcity.presence.p2", map[string]any{"globalId": "p2"})
	if err := conn.Write(ctx, "nba_jam", "rimcity.presence.p2", nil, store.LockWrite); err != nil {
		t.Fatalf("write nil: %v", err)
	}
	if _, err := conn.Read(ctx, "nba_jam", "rimcity.presence.p2", store.LockRead); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected cleared path, got %v", err)
	}
}

func TestSubscriptionsTrackedAndDropped(t *testing.T) {
	srv, _, ep := startServer(t)
	ctx := context.Background()
	conn, err := Dialer{}.Dial(ctx, ep)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	if err := conn.Subscribe(ctx, "nba_jam", "rimcity.challenges.p1"); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	// frames are handled in order, so this read acts as a barrier
	_, _ = conn.Read(ctx, "nba_jam", "rimcity.challenges.p1", store.LockNone)
	if got := srv.Subscriptions(); got != 1 {
		t.Fatalf("Subscriptions = %d, want 1", got)
	}

	_ = conn.Disconnect()
	if conn.Connected() {
		t.Fatal("expected disconnected")
	}
	deadline := time.Now().Add(2 * time.Second)
	for srv.Subscriptions() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("subscriptions not released: %d", srv.Subscriptions())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestDialFailsWithoutServer(t *testing.T) {
	ep := config.StoreEndpoint{Addr: "127.0.0.1", Port: 1, Timeout: 200 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), ep.Timeout)
	defer cancel()
	if _, err := (Dialer{}).Dial(ctx, ep); err == nil {
		t.Fatal("expected dial error")
	}
}
