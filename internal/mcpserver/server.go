package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/raggio-engine/raggio/internal/rag"
	"github.com/raggio-engine/raggio/pkg/logger_i"
)

const Version = "1.0.0"

// Server exposes the retrieval engine as MCP tools so agents can query the
// same corpus the HTTP API ingests.
type Server struct {
	rag    rag.Service
	server *mcp.Server
	logger *logger_i.Logger
}

func NewServer(ragService rag.Service) (*Server, error) {
	if ragService == nil {
		return nil, fmt.Errorf("rag service is required")
	}

	impl := &mcp.Implementation{
		Name:    "raggio",
		Version: Version,
	}

	s := &Server{
		rag:    ragService,
		server: mcp.NewServer(impl, nil),
		logger: logger_i.NewLogger("MCPServer"),
	}
	s.registerTools()

	return s, nil
}

// Run serves the tools over stdio. It blocks until the context is cancelled
// or the transport closes.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("MCP server listening on stdio")
	return s.server.Run(ctx, &mcp.StdioTransport{})
}
