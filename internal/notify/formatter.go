package notify

import (
	"strconv"
	"time"

	"rimcity-link/internal/notify/platforms"
)

const (
	colorInfo    = 0x3498db
	colorSuccess = 0x2ecc71
	colorWarn    = 0xe67e22
	colorMuted   = 0x95a5a6
)

func Format(ev Event) platforms.Message {
	msg := platforms.Message{Footer: ev.ChallengeID}
	if ev.At > 0 {
		msg.Timestamp = time.UnixMilli(ev.At).UTC().Format(time.RFC3339)
	}
	switch ev.Kind {
	case EventReceived:
		msg.Title = "New challenge"
		msg.Description = ev.Opponent + " challenged you."
		msg.Color = colorInfo
	case EventCounterOffer:
		msg.Title = "Counter offer"
		msg.Description = ev.Opponent + " proposed new stakes. Your move."
		msg.Color = colorWarn
	case EventAccepted:
		msg.Title = "Challenge accepted"
		msg.Description = "Match against " + ev.Opponent + " is on. Head to the lobby."
		msg.Color = colorSuccess
	case EventDeclined:
		msg.Title = "Challenge declined"
		msg.Description = ev.Opponent + " declined."
		msg.Color = colorMuted
	case EventCancelled:
		msg.Title = "Challenge withdrawn"
		msg.Description = ev.Opponent + " withdrew the challenge."
		msg.Color = colorMuted
	default:
		msg.Title = string(ev.Kind)
		msg.Color = colorMuted
	}
	if ev.Revision > 0 {
		msg.Fields = []platforms.Field{
			{Name: "Cash", Value: strconv.FormatInt(ev.Cash, 10), Inline: true},
			{Name: "Rep", Value: strconv.FormatInt(ev.Rep, 10), Inline: true},
			{Name: "Round", Value: strconv.Itoa(ev.Revision), Inline: true},
		}
	}
	return msg
}
