package store

import (
	"errors"
	"testing"
)

func TestKeySanitizesDots(t *testing.T) {
	if got := Key(" user.42 "); got != "user_42" {
		t.Fatalf("Key = %q, want user_42", got)
	}
	if got := ChallengePath("a.b", "ch_1"); got != "rimcity.challenges.a_b.ch_1" {
		t.Fatalf("ChallengePath = %q", got)
	}
	if got := PresencePath("p1"); got != "rimcity.presence.p1" {
		t.Fatalf("PresencePath = %q", got)
	}
}

func TestSplitPathRejectsEmptySegments(t *testing.T) {
	if SplitPath("a..b") != nil || SplitPath("") != nil {
		t.Fatal("expected nil for malformed paths")
	}
	if got := SplitPath("a.b.c"); len(got) != 3 {
		t.Fatalf("SplitPath = %v", got)
	}
}

func TestTreeReplaceSubtree(t *testing.T) {
	tree := Tree{}
	tree.Set([]string{"a", "b", "c"}, 1.0)
	tree.Set([]string{"a", "b"}, map[string]any{"d": 2.0})

	if _, ok := tree.Get([]string{"a", "b", "c"}); ok {
		t.Fatal("expected old child replaced")
	}
	got, ok := tree.Get([]string{"a", "b", "d"})
	if !ok || got != 2.0 {
		t.Fatalf("Get = %v, %v", got, ok)
	}
	if _, err := tree.Encode([]string{"missing"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNormalizeStruct(t *testing.T) {
	v, err := Normalize(struct {
		Cash int64 `json:"cash"`
	}{Cash: 7})
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	m, ok := v.(map[string]any)
	if !ok || m["cash"] != 7.0 {
		t.Fatalf("unexpected normalized value: %#v", v)
	}
}
