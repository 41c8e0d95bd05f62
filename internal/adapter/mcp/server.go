// Package mcp exposes the agent over the Model Context Protocol so other
// MCP-capable clients can issue queries and inspect the tool surface.
package mcp

import (
	"context"
	"log/slog"

	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/finch-ai/finch/internal/domain/agent"
	"github.com/finch-ai/finch/internal/domain/tool"
	"github.com/finch-ai/finch/internal/port/cache"
)

// QueryRunner runs one agent query to completion.
type QueryRunner interface {
	Run(ctx context.Context, query agent.Query) (*agent.RunResult, error)
}

// RunReader fetches persisted runs.
type RunReader interface {
	GetRun(ctx context.Context, id string) (*agent.RunResult, error)
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Addr    string
	Name    string
	Version string
}

// ServerDeps are the collaborators the MCP tools call into. Nil fields
// disable the corresponding tools gracefully.
type ServerDeps struct {
	Runner    QueryRunner
	Registry  *tool.Registry
	Recorder  *cache.Recorder
	CacheSize func() int
	Runs      RunReader
}

// Server wraps an mcp-go server with finch tools and resources.
type Server struct {
	cfg        ServerConfig
	deps       ServerDeps
	mcpServer  *mcpserver.MCPServer
	httpServer *mcpserver.StreamableHTTPServer
}

// NewServer creates the MCP server and registers all tools and resources.
func NewServer(cfg ServerConfig, deps ServerDeps) *Server {
	s := &Server{
		cfg:  cfg,
		deps: deps,
		mcpServer: mcpserver.NewMCPServer(cfg.Name, cfg.Version,
			mcpserver.WithToolCapabilities(false),
			mcpserver.WithResourceCapabilities(false, false),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer exposes the underlying mcp-go server.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

// Start serves MCP over streamable HTTP in a background goroutine.
func (s *Server) Start() error {
	s.httpServer = mcpserver.NewStreamableHTTPServer(s.mcpServer)
	go func() {
		slog.Info("mcp server listening", "addr", s.cfg.Addr)
		if err := s.httpServer.Start(s.cfg.Addr); err != nil {
			slog.Error("mcp server stopped", "error", err)
		}
	}()
	return nil
}

// Stop gracefully shuts the MCP HTTP listener down.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}
