// Package mcp exposes the invocation gateway over the Model Context
// Protocol, so MCP-compatible agents can call tenant routines and scan
// relations through the same pipeline as the HTTP API.
package mcp

import (
	"context"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/cloudwinks/dispatch/internal/gateway"
	"github.com/cloudwinks/dispatch/internal/model"
)

// Invoker is the slice of the gateway the MCP tools need.
type Invoker interface {
	Execute(ctx context.Context, req model.ExecuteRequest) (any, error)
	Classify(ctx context.Context, tenantID int64, name string) (gateway.Kind, error)
}

// Server wraps the MCP server with the gateway.
type Server struct {
	mcpServer *mcpserver.MCPServer
	gw        Invoker
	logger    *slog.Logger
}

// New creates and configures a new MCP server with all tools registered.
func New(gw Invoker, logger *slog.Logger, version string) *Server {
	s := &Server{
		gw:     gw,
		logger: logger,
	}

	s.mcpServer = mcpserver.NewMCPServer(
		"dispatch",
		version,
		mcpserver.WithToolCapabilities(true),
	)

	s.registerTools()

	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}
