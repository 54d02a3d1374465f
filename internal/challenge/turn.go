package challenge

import "time"

// OtherReadyAt is IsOtherReady against an explicit clock reading. It fails
// closed: a missing ready flag, a missing heartbeat or one at least stale
// old all mean "not ready".
func OtherReadyAt(ch *Challenge, myID string, nowMS int64, stale time.Duration) bool {
	if ch == nil {
		return false
	}
	otherID := ch.From.GlobalID
	if otherID == myID {
		otherID = ch.To.GlobalID
	}
	if otherID == "" || !ch.Lobby.Ready[otherID] {
		return false
	}
	ping, ok := ch.Lobby.LastPing[otherID]
	if !ok || ping <= 0 {
		return false
	}
	return nowMS-ping < stale.Milliseconds()
}

// IsMyTurnToRespond is true when the last offer on the wager was made by the
// other side. Without a wager there is nothing to respond to.
func IsMyTurnToRespond(ch *Challenge, myID string) bool {
	if ch == nil || ch.Wager == nil {
		return false
	}
	return ch.Wager.ProposedBy != ch.RoleOf(myID)
}
