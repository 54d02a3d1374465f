package notify

import (
	"testing"

	"rimcity-link/internal/challenge"
	"rimcity-link/internal/wager"
)

func mkChallenge(id, from, to string, status challenge.Status) *challenge.Challenge {
	return &challenge.Challenge{
		ID:        id,
		From:      challenge.PlayerRef{GlobalID: from, Name: from + "-name"},
		To:        challenge.PlayerRef{GlobalID: to, Name: to + "-name"},
		Status:    status,
		UpdatedAt: 1_700_000_000_000,
	}
}

func kinds(events []Event) []EventKind {
	out := make([]EventKind, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Kind)
	}
	return out
}

func TestDiffReportsNewIncomingOnly(t *testing.T) {
	in := mkChallenge("c1", "bob", "alice", challenge.StatusPending)
	out := mkChallenge("c2", "alice", "bob", challenge.StatusPending)
	events, snap := Diff(map[string]snapshot{}, []*challenge.Challenge{in, out}, "alice")
	if len(events) != 1 || events[0].Kind != EventReceived || events[0].ChallengeID != "c1" {
		t.Fatalf("events = %+v", events)
	}
	if events[0].Opponent != "bob-name" {
		t.Fatalf("opponent = %q", events[0].Opponent)
	}
	if len(snap) != 2 {
		t.Fatalf("snapshot size = %d", len(snap))
	}
}

func TestDiffCounterOfferFromOtherSide(t *testing.T) {
	ch := mkChallenge("c1", "alice", "bob", challenge.StatusPending)
	prev := map[string]snapshot{"c1": {Status: challenge.StatusPending}}

	ch.Status = challenge.StatusNegotiating
	ch.Wager = &wager.Wager{Cash: 150, Rep: 5, ProposedBy: wager.SideTo, Revision: 1}
	events, snap := Diff(prev, []*challenge.Challenge{ch}, "alice")
	if got := kinds(events); len(got) != 1 || got[0] != EventCounterOffer {
		t.Fatalf("kinds = %v", got)
	}
	if events[0].Cash != 150 || events[0].Revision != 1 {
		t.Fatalf("event = %+v", events[0])
	}

	// Our own counter is not news.
	ch.Wager = &wager.Wager{Cash: 120, ProposedBy: wager.SideFrom, Revision: 2}
	events, _ = Diff(snap, []*challenge.Challenge{ch}, "alice")
	if len(events) != 0 {
		t.Fatalf("own offer reported: %+v", events)
	}
}

func TestDiffStatusChanges(t *testing.T) {
	cases := []struct {
		name   string
		from   string
		status challenge.Status
		want   []EventKind
	}{
		{"accepted by them", "alice", challenge.StatusAccepted, []EventKind{EventAccepted}},
		{"declined by them", "alice", challenge.StatusDeclined, []EventKind{EventDeclined}},
		{"declined by me", "bob", challenge.StatusDeclined, nil},
		{"cancelled by them", "bob", challenge.StatusCancelled, []EventKind{EventCancelled}},
		{"cancelled by me", "alice", challenge.StatusCancelled, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			to := "bob"
			if tc.from == "bob" {
				to = "alice"
			}
			ch := mkChallenge("c1", tc.from, to, tc.status)
			prev := map[string]snapshot{"c1": {Status: challenge.StatusPending}}
			events, _ := Diff(prev, []*challenge.Challenge{ch}, "alice")
			got := kinds(events)
			if len(got) != len(tc.want) {
				t.Fatalf("kinds = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("kinds = %v, want %v", got, tc.want)
				}
			}
		})
	}
}

func TestFormatIncludesStakes(t *testing.T) {
	msg := Format(Event{Kind: EventCounterOffer, ChallengeID: "c1", Opponent: "Bob", Cash: 150, Rep: 5, Revision: 2, At: 1_700_000_000_000})
	if msg.Title != "Counter offer" || msg.Footer != "c1" {
		t.Fatalf("msg = %+v", msg)
	}
	if len(msg.Fields) != 3 || msg.Fields[0].Value != "150" || msg.Fields[2].Value != "2" {
		t.Fatalf("fields = %+v", msg.Fields)
	}
	if msg.Timestamp != "2023-11-14T22:13:20Z" {
		t.Fatalf("timestamp = %q", msg.Timestamp)
	}
}
