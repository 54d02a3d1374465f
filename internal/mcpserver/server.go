package mcpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"rimcity-link/internal/lobby"
	"rimcity-link/internal/presence"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// Server exposes the local participant's lobby as MCP tools so an agent can
// play on their behalf.
type Server struct {
	lobby    *lobby.Service
	presence *presence.Tracker

	mcpServer  *server.MCPServer
	httpServer *server.StreamableHTTPServer
}

func New(svc *lobby.Service, tracker *presence.Tracker, version string) *Server {
	if version == "" {
		version = "0.1.0"
	}
	mcpSrv := server.NewMCPServer(
		"rimcity-link",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
		server.WithResourceRecovery(),
	)
	s := &Server{
		lobby:      svc,
		presence:   tracker,
		mcpServer:  mcpSrv,
		httpServer: server.NewStreamableHTTPServer(mcpSrv, server.WithStateLess(true), server.WithDisableStreaming(true)),
	}
	s.registerChallengeTools()
	s.registerNegotiationTools()
	s.registerPresenceTools()
	s.registerResources()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.httpServer
}

func (s *Server) registerResources() {
	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(
			"challenge://{challenge_id}",
			"challenge",
			mcp.WithTemplateDescription("Challenge document as seen from the local mailbox"),
			mcp.WithTemplateMIMEType("application/json"),
		),
		func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
			raw := string(request.Params.URI)
			id := strings.TrimPrefix(raw, "challenge://")
			if id == "" || id == raw {
				return nil, nil
			}
			ch, err := s.lobby.Challenge(ctx, id)
			if err != nil {
				return nil, err
			}
			payload, err := json.Marshal(ch)
			if err != nil {
				return nil, err
			}
			return []mcp.ResourceContents{
				mcp.TextResourceContents{
					URI:      raw,
					MIMEType: "application/json",
					Text:     string(payload),
				},
			}, nil
		},
	)
}
