package game

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestQuickSimRangeAndNoTies(t *testing.T) {
	for i := 0; i < 200; i++ {
		res, err := QuickSim{}.RunMatch(context.Background(), MatchConfig{ChallengeID: fmt.Sprintf("ch_a_b_%d_x", i)})
		if err != nil {
			t.Fatalf("RunMatch: %v", err)
		}
		if !res.Completed {
			t.Fatal("expected completed match")
		}
		for _, s := range []int{res.Score.TeamA, res.Score.TeamB} {
			if s < 35 || s > 55 {
				t.Fatalf("score %d out of range", s)
			}
		}
		if res.Score.Winner() == "" {
			t.Fatalf("tie: %+v", res.Score)
		}
	}
}

func TestQuickSimDeterministicPerChallenge(t *testing.T) {
	cfg := MatchConfig{ChallengeID: "ch_alice_bob_1_01h"}
	a, _ := QuickSim{}.RunMatch(context.Background(), cfg)
	b, _ := QuickSim{}.RunMatch(context.Background(), cfg)
	if a != b {
		t.Fatalf("results differ: %+v vs %+v", a, b)
	}
}

func TestQuickSimRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (QuickSim{}).RunMatch(ctx, MatchConfig{ChallengeID: "x"}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := (QuickSim{}).RunMatch(context.Background(), MatchConfig{}); !errors.Is(err, ErrMatchAborted) {
		t.Fatalf("expected ErrMatchAborted, got %v", err)
	}
}
