package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
)

// registerResources registers all MCP resources on the server.
func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcplib.NewResource(
			"finch://tools",
			"Tool Catalog",
			mcplib.WithResourceDescription("The tools the agent can call"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleToolsResource,
	)

	s.mcpServer.AddResource(
		mcplib.NewResource(
			"finch://cache/stats",
			"Cache Statistics",
			mcplib.WithResourceDescription("Process-wide result cache counters"),
			mcplib.WithMIMEType("application/json"),
		),
		s.handleCacheStatsResource,
	)
}

func (s *Server) handleToolsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	if s.deps.Registry == nil {
		return []mcplib.ResourceContents{
			mcplib.TextResourceContents{
				URI:      req.Params.URI,
				MIMEType: "application/json",
				Text:     `{"error":"registry not configured"}`,
			},
		}, nil
	}
	data, err := json.Marshal(s.deps.Registry.List())
	if err != nil {
		return nil, err
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

func (s *Server) handleCacheStatsResource(_ context.Context, req mcplib.ReadResourceRequest) ([]mcplib.ResourceContents, error) {
	size := 0
	if s.deps.CacheSize != nil {
		size = s.deps.CacheSize()
	}
	stats := `{"error":"cache stats not configured"}`
	if s.deps.Recorder != nil {
		if data, err := json.Marshal(s.deps.Recorder.Snapshot(size)); err == nil {
			stats = string(data)
		}
	}
	return []mcplib.ResourceContents{
		mcplib.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     stats,
		},
	}, nil
}
