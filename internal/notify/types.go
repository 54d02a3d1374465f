// Package notify pushes challenge activity for the local player to chat
// webhooks.
package notify

import "time"

type EventKind string

const (
	EventReceived     EventKind = "challenge_received"
	EventCounterOffer EventKind = "counter_offer"
	EventAccepted     EventKind = "challenge_accepted"
	EventDeclined     EventKind = "challenge_declined"
	EventCancelled    EventKind = "challenge_cancelled"
)

type Target struct {
	Platform       string   `json:"platform"`
	Endpoint       string   `json:"endpoint"`
	Secret         string   `json:"secret"`
	EventAllowlist []string `json:"event_allowlist"`
	Enabled        bool     `json:"enabled"`
}

func (t Target) allows(kind EventKind) bool {
	if len(t.EventAllowlist) == 0 {
		return true
	}
	for _, k := range t.EventAllowlist {
		if k == string(kind) {
			return true
		}
	}
	return false
}

func (t Target) key() string {
	return t.Platform + "|" + t.Endpoint
}

type Config struct {
	Enabled             bool
	Targets             []Target
	Workers             int
	RetryMax            int
	RetryBase           time.Duration
	PollInterval        time.Duration
	FailureThreshold    int
	CircuitOpenDuration time.Duration
	RequestTimeout      time.Duration
	DispatchBuffer      int
}

// Event is one observed change on a challenge, told from the local
// player's point of view.
type Event struct {
	Kind        EventKind
	ChallengeID string
	Opponent    string
	Status      string
	Cash        int64
	Rep         int64
	Revision    int
	At          int64
}

type pushJob struct {
	Target  Target
	Event   Event
	Attempt int
}
