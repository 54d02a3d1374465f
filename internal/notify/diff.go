package notify

import "rimcity-link/internal/challenge"

type snapshot struct {
	Status   challenge.Status
	Revision int
}

// Diff compares the mailbox with the previous snapshot and reports changes
// the counterpart is responsible for. Our own declines and cancels, and our
// own offers, are not reported.
func Diff(prev map[string]snapshot, current []*challenge.Challenge, me string) ([]Event, map[string]snapshot) {
	next := make(map[string]snapshot, len(current))
	var events []Event
	for _, ch := range current {
		snap := snapshot{Status: ch.Status}
		if ch.Wager != nil {
			snap.Revision = ch.Wager.Revision
		}
		next[ch.ID] = snap

		old, seen := prev[ch.ID]
		if !seen {
			if ch.To.GlobalID == me && ch.Status.Negotiable() {
				events = append(events, eventOf(EventReceived, ch, me))
			}
			continue
		}
		if old.Status != ch.Status {
			switch ch.Status {
			case challenge.StatusAccepted:
				events = append(events, eventOf(EventAccepted, ch, me))
			case challenge.StatusDeclined:
				if ch.From.GlobalID == me {
					events = append(events, eventOf(EventDeclined, ch, me))
				}
			case challenge.StatusCancelled:
				if ch.To.GlobalID == me {
					events = append(events, eventOf(EventCancelled, ch, me))
				}
			}
		}
		if snap.Revision > old.Revision && ch.Wager.ProposedBy != ch.RoleOf(me) && ch.Status.Negotiable() {
			events = append(events, eventOf(EventCounterOffer, ch, me))
		}
	}
	return events, next
}

func eventOf(kind EventKind, ch *challenge.Challenge, me string) Event {
	other := ch.Counterpart(me)
	name := other.Name
	if name == "" {
		name = other.GlobalID
	}
	ev := Event{
		Kind:        kind,
		ChallengeID: ch.ID,
		Opponent:    name,
		Status:      string(ch.Status),
		At:          ch.UpdatedAt,
	}
	if ch.Wager != nil {
		ev.Cash = ch.Wager.Cash
		ev.Rep = ch.Wager.Rep
		ev.Revision = ch.Wager.Revision
	}
	return ev
}
