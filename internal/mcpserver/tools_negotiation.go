package mcpserver

import (
	"context"

	"rimcity-link/internal/challenge"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerNegotiationTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"counter_offer",
			mcp.WithDescription("Propose new stakes. Clamped to both balances and, after the second offer, to the locked ceiling."),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
			mcp.WithNumber("cash", mcp.Description("Cash stake")),
			mcp.WithNumber("rep", mcp.Description("Rep stake")),
		),
		s.handleCounterOffer,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"accept_wager",
			mcp.WithDescription("Agree to the opponent's current offer"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.transitionTool(s.lobby.AcceptWager),
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"get_wager",
			mcp.WithDescription("Current stakes, ceiling and offer history"),
			mcp.WithString("challenge_id", mcp.Required(), mcp.Description("Challenge id")),
		),
		s.handleGetWager,
	)
}

func (s *Server) handleCounterOffer(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	offer, ok := offerFromRequest(request)
	if !ok {
		return toolError("invalid_offer", "cash and rep must be non-negative"), nil
	}
	return s.transitionTool(func(ctx context.Context, id string) (*challenge.Challenge, error) {
		return s.lobby.SubmitCounterOffer(ctx, id, offer)
	})(ctx, request)
}

func (s *Server) handleGetWager(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("challenge_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	d, svcErr := s.lobby.WagerDetails(ctx, id)
	if svcErr != nil {
		return lobbyError(svcErr), nil
	}
	return toolResult(d), nil
}
