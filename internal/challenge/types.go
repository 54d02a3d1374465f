package challenge

import (
	"encoding/json"
	"strings"

	"rimcity-link/internal/wager"
)

type Status string

const (
	StatusPending     Status = "pending"
	StatusNegotiating Status = "negotiating"
	StatusAccepted    Status = "accepted"
	StatusDeclined    Status = "declined"
	StatusCancelled   Status = "cancelled"
	// StatusExpired is never stored; it is synthesized on read when the
	// expiry policy asks for it.
	StatusExpired Status = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusDeclined, StatusCancelled, StatusExpired:
		return true
	default:
		return false
	}
}

// Negotiable reports whether a counter-offer may still be made.
func (s Status) Negotiable() bool {
	return s == StatusPending || s == StatusNegotiating
}

type Teammate struct {
	ID     string         `json:"id"`
	Name   string         `json:"name"`
	Skin   string         `json:"skin,omitempty"`
	Jersey any            `json:"jersey,omitempty"`
	Stats  map[string]any `json:"stats,omitempty"`
}

// PlayerRef is the snapshot of a participant copied into both mailboxes.
type PlayerRef struct {
	GlobalID       string         `json:"globalId"`
	Name           string         `json:"name"`
	BBSName        string         `json:"bbsName,omitempty"`
	Appearance     map[string]any `json:"appearance,omitempty"`
	ActiveTeammate *Teammate      `json:"activeTeammate,omitempty"`
	Cash           int64          `json:"cash"`
	Rep            int64          `json:"rep"`
}

func (p PlayerRef) Balances() wager.Balances {
	return wager.Balances{Cash: p.Cash, Rep: p.Rep}
}

func normalizeRef(p PlayerRef) PlayerRef {
	p.GlobalID = strings.TrimSpace(p.GlobalID)
	if strings.TrimSpace(p.Name) == "" {
		p.Name = "Player"
	}
	if p.Cash < 0 {
		p.Cash = 0
	}
	if p.Rep < 0 {
		p.Rep = 0
	}
	return p
}

// Session is the local participant as seen by this process.
type Session struct {
	GlobalID       string
	Name           string
	BBSName        string
	Appearance     map[string]any
	ActiveTeammate *Teammate
	Cash           int64
	Rep            int64
}

func (s Session) Ref() PlayerRef {
	return normalizeRef(PlayerRef{
		GlobalID:       s.GlobalID,
		Name:           s.Name,
		BBSName:        s.BBSName,
		Appearance:     s.Appearance,
		ActiveTeammate: s.ActiveTeammate,
		Cash:           s.Cash,
		Rep:            s.Rep,
	})
}

func (s Session) Balances() wager.Balances {
	return wager.Balances{Cash: s.Cash, Rep: s.Rep}
}

type Lobby struct {
	Ready    map[string]bool  `json:"ready"`
	LastPing map[string]int64 `json:"lastPing"`
}

func newLobby() Lobby {
	return Lobby{Ready: map[string]bool{}, LastPing: map[string]int64{}}
}

// Challenge is one copy of a challenge record. Both mailboxes hold a copy
// under the same ID.
type Challenge struct {
	ID        string         `json:"id"`
	From      PlayerRef      `json:"from"`
	To        PlayerRef      `json:"to"`
	Status    Status         `json:"status"`
	CreatedAt int64          `json:"createdAt"`
	UpdatedAt int64          `json:"updatedAt"`
	ExpiresAt int64          `json:"expiresAt"`
	Lobby     Lobby          `json:"lobby"`
	Meta      map[string]any `json:"meta"`
	Wager     *wager.Wager   `json:"wager"`
}

// RoleOf is SideFrom when gid sent the challenge, SideTo otherwise.
func (c *Challenge) RoleOf(gid string) wager.Side {
	if c.From.GlobalID == gid {
		return wager.SideFrom
	}
	return wager.SideTo
}

// Counterpart returns the participant who is not gid.
func (c *Challenge) Counterpart(gid string) PlayerRef {
	if c.From.GlobalID == gid {
		return c.To
	}
	return c.From
}

func (c *Challenge) Involves(gid string) bool {
	return gid != "" && (c.From.GlobalID == gid || c.To.GlobalID == gid)
}

func (c *Challenge) ExpiredAt(nowMS int64) bool {
	return c.ExpiresAt > 0 && nowMS >= c.ExpiresAt
}

// Clone deep-copies c through its JSON form.
func (c *Challenge) Clone() *Challenge {
	if c == nil {
		return nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		cp := *c
		return &cp
	}
	var out Challenge
	if err := json.Unmarshal(b, &out); err != nil {
		cp := *c
		return &cp
	}
	out.ensureMaps()
	return &out
}

func (c *Challenge) ensureMaps() {
	if c.Lobby.Ready == nil {
		c.Lobby.Ready = map[string]bool{}
	}
	if c.Lobby.LastPing == nil {
		c.Lobby.LastPing = map[string]int64{}
	}
	if c.Meta == nil {
		c.Meta = map[string]any{}
	}
}
