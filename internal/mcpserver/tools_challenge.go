package mcpserver

import (
	"context"
	"strings"

	"rimcity-link/internal/challenge"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerChallengeTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_challenges",
			mcp.WithDescription("List challenges in the local mailbox"),
			mcp.WithString("box", mcp.Description("incoming|outgoing|all, default all")),
		),
		s.handleListChallenges,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_challenge",
			mcp.WithDescription("Fetch one challenge with turn and readiness hints"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.handleGetChallenge,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"send_challenge",
			mcp.WithDescription("Challenge another player, optionally with an opening wager"),
			mcp.WithString("to_global_id", mcp.Required(), mcp.Description("Opponent global id")),
			mcp.WithString("to_name", mcp.Description("Opponent display name")),
			mcp.WithNumber("to_cash", mcp.Description("Opponent cash snapshot")),
			mcp.WithNumber("to_rep", mcp.Description("Opponent rep snapshot")),
			mcp.WithNumber("cash", mcp.Description("Opening cash stake")),
			mcp.WithNumber("rep", mcp.Description("Opening rep stake")),
			mcp.WithString("mode", mcp.Description("Free-form match mode stored in meta")),
		),
		s.handleSendChallenge,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"accept_challenge",
			mcp.WithDescription("Accept a challenge as it stands and mark ready"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.transitionTool(s.lobby.Accept),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"decline_challenge",
			mcp.WithDescription("Decline a challenge"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.transitionTool(s.lobby.Decline),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"cancel_challenge",
			mcp.WithDescription("Withdraw a challenge"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.transitionTool(s.lobby.Cancel),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"set_ready",
			mcp.WithDescription("Set the lobby ready flag on an accepted challenge"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
			mcp.WithBoolean("ready", mcp.Description("Default true")),
		),
		s.handleSetReady,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"wait_for_ready",
			mcp.WithDescription("Block until both players are ready or the challenge closes"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
			mcp.WithNumber("timeout_ms", mcp.Description("Upper bound, default 30000, max 120000")),
		),
		s.handleWaitForReady,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"launch_match",
			mcp.WithDescription("Play an accepted challenge once both sides are ready and settle the wager. A draw settles nothing"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.handleLaunchMatch,
	)
}

func (s *Server) challengeView(ch *challenge.Challenge) map[string]any {
	return map[string]any{
		"challenge":   ch,
		"my_turn":     s.lobby.IsMyTurn(ch),
		"other_ready": s.lobby.IsOtherReady(ch),
	}
}

func (s *Server) handleListChallenges(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	box := normalizeBox(request.GetString("box", ""))
	if !isAllowedBox(box) {
		return toolError("invalid_request", "box must be incoming, outgoing or all"), nil
	}
	out := map[string]any{}
	if box != "outgoing" {
		out["incoming"] = s.lobby.Incoming(ctx)
	}
	if box != "incoming" {
		out["outgoing"] = s.lobby.Outgoing(ctx)
	}
	return toolResult(out), nil
}

func (s *Server) handleGetChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("challenge_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	ch, svcErr := s.lobby.Challenge(ctx, id)
	if svcErr != nil {
		return lobbyError(svcErr), nil
	}
	return toolResult(s.challengeView(ch)), nil
}

func (s *Server) handleSendChallenge(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	to, err := request.RequireString("to_global_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	to = strings.TrimSpace(to)
	if to == "" {
		return toolError("missing_global_id", "to_global_id is empty"), nil
	}
	offer, ok := offerFromRequest(request)
	if !ok {
		return toolError("invalid_offer", "cash and rep must be non-negative"), nil
	}
	ref := challenge.PlayerRef{
		GlobalID: to,
		Name:     request.GetString("to_name", to),
		Cash:     int64(request.GetFloat("to_cash", 0)),
		Rep:      int64(request.GetFloat("to_rep", 0)),
	}
	var meta map[string]any
	if mode := request.GetString("mode", ""); mode != "" {
		meta = map[string]any{"mode": mode}
	}
	ch, svcErr := s.lobby.SendChallenge(ctx, ref, meta, offer)
	if svcErr != nil {
		return lobbyError(svcErr), nil
	}
	return toolResult(s.challengeView(ch)), nil
}

func (s *Server) transitionTool(fn func(context.Context, string) (*challenge.Challenge, error)) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("challenge_id")
		if err != nil {
			return toolError("invalid_request", err.Error()), nil
		}
		ch, svcErr := fn(ctx, id)
		if svcErr != nil {
			return lobbyError(svcErr), nil
		}
		return toolResult(s.challengeView(ch)), nil
	}
}

func (s *Server) handleSetReady(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	ready := request.GetBool("ready", true)
	return s.transitionTool(func(ctx context.Context, id string) (*challenge.Challenge, error) {
		return s.lobby.Ready(ctx, id, ready)
	})(ctx, request)
}

func (s *Server) handleWaitForReady(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("challenge_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	if _, svcErr := s.lobby.Challenge(ctx, id); svcErr != nil {
		return lobbyError(svcErr), nil
	}
	waitCtx, cancel := context.WithTimeout(ctx, clampWaitTimeout(request.GetFloat("timeout_ms", 0)))
	defer cancel()
	outcome, ch := s.lobby.WaitForReady(waitCtx, id)
	return toolResult(map[string]any{"outcome": outcome, "challenge": ch}), nil
}

func (s *Server) handleLaunchMatch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("challenge_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	report, svcErr := s.lobby.LaunchMatch(ctx, id)
	if svcErr != nil {
		return lobbyError(svcErr), nil
	}
	return toolResult(report), nil
}
