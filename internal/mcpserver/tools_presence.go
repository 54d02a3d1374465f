package mcpserver

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

func (s *Server) registerPresenceTools() {
	if s.presence == nil {
		return
	}
	s.mcpServer.AddTool(
		mcp.NewTool(
			"player_online",
			mcp.WithDescription("Whether a player has a fresh heartbeat"),
			mcp.WithString("global_id", mcp.Required(), mcp.Description("Player global id")),
		),
		s.handlePlayerOnline,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_online_players",
			mcp.WithDescription("Players with a fresh heartbeat"),
		),
		s.handleListOnlinePlayers,
	)
}

func (s *Server) handlePlayerOnline(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	gid, err := request.RequireString("global_id")
	if err != nil {
		return toolError("invalid_request", err.Error()), nil
	}
	return toolResult(map[string]any{"global_id": gid, "online": s.presence.IsPlayerOnline(ctx, gid)}), nil
}

func (s *Server) handleListOnlinePlayers(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return toolResult(map[string]any{"players": s.presence.OnlinePlayers(ctx)}), nil
}
