// Package game is the boundary to the match engine. The lobby hands it a
// config and gets back a final score; how the match is played is the
// engine's business.
package game

import (
	"context"
	"errors"
	"hash/fnv"
	"math/rand"
)

var ErrMatchAborted = errors.New("match_aborted")

type Team struct {
	GlobalID string `json:"globalId"`
	Name     string `json:"name"`
	Teammate string `json:"teammate,omitempty"`
}

// MatchConfig describes one match. TeamA is always the challenge sender.
type MatchConfig struct {
	ChallengeID string         `json:"challengeId"`
	TeamA       Team           `json:"teamA"`
	TeamB       Team           `json:"teamB"`
	Meta        map[string]any `json:"meta,omitempty"`
}

type Score struct {
	TeamA int `json:"teamA"`
	TeamB int `json:"teamB"`
}

// Winner is "teamA" or "teamB", or "" for an unfinished or tied score.
func (s Score) Winner() string {
	switch {
	case s.TeamA > s.TeamB:
		return "teamA"
	case s.TeamB > s.TeamA:
		return "teamB"
	default:
		return ""
	}
}

type Result struct {
	Completed bool  `json:"completed"`
	Score     Score `json:"score"`
}

type Engine interface {
	RunMatch(ctx context.Context, cfg MatchConfig) (Result, error)
}

type EngineFunc func(ctx context.Context, cfg MatchConfig) (Result, error)

func (f EngineFunc) RunMatch(ctx context.Context, cfg MatchConfig) (Result, error) {
	return f(ctx, cfg)
}

// QuickSim settles a match instantly with scores between 35 and 55 and no
// ties. The outcome is seeded by the challenge id, so both participants
// simulating the same challenge agree on the score.
type QuickSim struct{}

func (QuickSim) RunMatch(ctx context.Context, cfg MatchConfig) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if cfg.ChallengeID == "" {
		return Result{}, ErrMatchAborted
	}
	h := fnv.New64a()
	_, _ = h.Write([]byte(cfg.ChallengeID))
	rnd := rand.New(rand.NewSource(int64(h.Sum64())))

	a := 35 + rnd.Intn(21)
	b := 35 + rnd.Intn(21)
	for b == a {
		b = 35 + rnd.Intn(21)
	}
	return Result{Completed: true, Score: Score{TeamA: a, TeamB: b}}, nil
}
