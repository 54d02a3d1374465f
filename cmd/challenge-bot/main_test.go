package main

import (
	"math/rand"
	"testing"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/wager"
)

func botChallenge(status challenge.Status, w *wager.Wager) *challenge.Challenge {
	return &challenge.Challenge{
		ID:     "ch_alice_bot_1_x",
		From:   challenge.PlayerRef{GlobalID: "alice"},
		To:     challenge.PlayerRef{GlobalID: "bot"},
		Status: status,
		Wager:  w,
	}
}

func TestDecide(t *testing.T) {
	rnd := rand.New(rand.NewSource(1))

	if got := decide(rnd, botChallenge(challenge.StatusPending, nil), "bot", 50); got.Kind != actAccept {
		t.Fatalf("no wager: got %v", got.Kind)
	}
	if got := decide(rnd, botChallenge(challenge.StatusAccepted, nil), "bot", 50); got.Kind != actLaunch {
		t.Fatalf("accepted: got %v", got.Kind)
	}
	if got := decide(rnd, botChallenge(challenge.StatusDeclined, nil), "bot", 50); got.Kind != actNone {
		t.Fatalf("declined: got %v", got.Kind)
	}

	mine := &wager.Wager{Cash: 100, Rep: 10, ProposedBy: wager.SideTo, Revision: 2}
	if got := decide(rnd, botChallenge(challenge.StatusNegotiating, mine), "bot", 50); got.Kind != actNone {
		t.Fatalf("own offer pending: got %v", got.Kind)
	}

	late := &wager.Wager{Cash: 100, Rep: 10, ProposedBy: wager.SideFrom, Revision: maxRounds}
	if got := decide(rnd, botChallenge(challenge.StatusNegotiating, late), "bot", 50); got.Kind != actAcceptWager {
		t.Fatalf("last round: got %v", got.Kind)
	}

	open := &wager.Wager{Cash: 100, Rep: 10, ProposedBy: wager.SideFrom, Revision: 1}
	sawCounter := false
	for i := 0; i < 50; i++ {
		got := decide(rnd, botChallenge(challenge.StatusPending, open), "bot", 40)
		switch got.Kind {
		case actCounter:
			sawCounter = true
			if got.Offer != (wager.Offer{Cash: 40, Rep: 4}) {
				t.Fatalf("counter offer = %+v", got.Offer)
			}
		case actAcceptWager:
		default:
			t.Fatalf("unexpected action %v", got.Kind)
		}
	}
	if !sawCounter {
		t.Fatal("bot never countered")
	}
}
