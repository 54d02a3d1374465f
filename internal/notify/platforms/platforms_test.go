package platforms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func capture(t *testing.T, status int) (*httptest.Server, *map[string]any, *http.Header) {
	t.Helper()
	var body map[string]any
	var headers http.Header
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&body)
		w.WriteHeader(status)
	}))
	t.Cleanup(srv.Close)
	return srv, &body, &headers
}

var sample = Message{
	Title:       "New challenge",
	Description: "Alice challenged you",
	Color:       0x3498db,
	Fields:      []Field{{Name: "Cash", Value: "200", Inline: true}},
}

func TestDiscordPayload(t *testing.T) {
	srv, body, _ := capture(t, http.StatusNoContent)
	a := NewDiscordAdapter(NewHTTPClient(time.Second))
	if err := a.Send(context.Background(), srv.URL, "", sample); err != nil {
		t.Fatalf("send: %v", err)
	}
	embeds, _ := (*body)["embeds"].([]any)
	if len(embeds) != 1 {
		t.Fatalf("embeds = %v", *body)
	}
	embed := embeds[0].(map[string]any)
	if embed["title"] != "New challenge" {
		t.Fatalf("embed = %v", embed)
	}
}

func TestFeishuSignatureHeader(t *testing.T) {
	srv, body, headers := capture(t, http.StatusOK)
	a := NewFeishuAdapter(NewHTTPClient(time.Second))
	if err := a.Send(context.Background(), srv.URL, "sig-123", sample); err != nil {
		t.Fatalf("send: %v", err)
	}
	if headers.Get("X-Lark-Signature") != "sig-123" {
		t.Fatalf("signature header = %q", headers.Get("X-Lark-Signature"))
	}
	if (*body)["msg_type"] != "interactive" {
		t.Fatalf("payload = %v", *body)
	}
}

func TestWebhookErrorStatus(t *testing.T) {
	srv, _, headers := capture(t, http.StatusBadGateway)
	a := NewWebhookAdapter(NewHTTPClient(time.Second))
	if err := a.Send(context.Background(), srv.URL, "tok", sample); err == nil {
		t.Fatal("expected error on 502")
	}
	if headers.Get("Authorization") != "Bearer tok" {
		t.Fatalf("auth header = %q", headers.Get("Authorization"))
	}
}
