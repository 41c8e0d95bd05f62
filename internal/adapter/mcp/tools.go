package mcp

import (
	"context"
	"encoding/json"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/finch-ai/finch/internal/domain/agent"
)

// registerTools registers all MCP tools on the server.
func (s *Server) registerTools() {
	s.mcpServer.AddTools(
		s.askAgentTool(),
		s.listToolsTool(),
		s.cacheStatsTool(),
		s.getRunTool(),
	)
}

func (s *Server) askAgentTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("ask_agent",
		mcplib.WithDescription("Run a research query through the agent and return the full run result"),
		mcplib.WithString("query",
			mcplib.Required(),
			mcplib.Description("The question to answer"),
		),
		mcplib.WithNumber("max_iterations",
			mcplib.Description("Override the iteration ceiling for this run"),
		),
		mcplib.WithBoolean("use_cache",
			mcplib.Description("Toggle result caching for this run"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleAskAgent,
	}
}

func (s *Server) listToolsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("list_tools",
		mcplib.WithDescription("List the tools the agent can call, with their argument schemas"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleListTools,
	}
}

func (s *Server) cacheStatsTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("cache_stats",
		mcplib.WithDescription("Get process-wide result cache statistics"),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleCacheStats,
	}
}

func (s *Server) getRunTool() mcpserver.ServerTool {
	tool := mcplib.NewTool("get_run",
		mcplib.WithDescription("Fetch a completed agent run by ID, including its execution trace"),
		mcplib.WithString("run_id",
			mcplib.Required(),
			mcplib.Description("The run ID to fetch"),
		),
	)
	return mcpserver.ServerTool{
		Tool:    tool,
		Handler: s.handleGetRun,
	}
}

func (s *Server) handleAskAgent(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runner == nil {
		return mcplib.NewToolResultError("agent not configured"), nil
	}
	args := req.GetArguments()
	query, ok := args["query"].(string)
	if !ok || query == "" {
		return mcplib.NewToolResultError("query is required"), nil
	}

	var opts agent.Options
	if n, ok := args["max_iterations"].(float64); ok && n > 0 {
		opts.MaxIterations = int(n)
	}
	if b, ok := args["use_cache"].(bool); ok {
		opts.UseCache = &b
	}

	result, err := s.deps.Runner.Run(ctx, agent.Query{Text: query, Options: opts})
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("agent run failed", err), nil
	}
	data, err := json.Marshal(result)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal run result", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleListTools(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Registry == nil {
		return mcplib.NewToolResultError("registry not configured"), nil
	}
	data, err := json.Marshal(s.deps.Registry.List())
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal tools", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleCacheStats(_ context.Context, _ mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Recorder == nil {
		return mcplib.NewToolResultError("cache stats not configured"), nil
	}
	size := 0
	if s.deps.CacheSize != nil {
		size = s.deps.CacheSize()
	}
	data, err := json.Marshal(s.deps.Recorder.Snapshot(size))
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal cache stats", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}

func (s *Server) handleGetRun(ctx context.Context, req mcplib.CallToolRequest) (*mcplib.CallToolResult, error) { //nolint:gocritic // hugeParam: mcp-go handler signature
	if s.deps.Runs == nil {
		return mcplib.NewToolResultError("run history not configured"), nil
	}
	args := req.GetArguments()
	runID, ok := args["run_id"].(string)
	if !ok || runID == "" {
		return mcplib.NewToolResultError("run_id is required"), nil
	}
	r, err := s.deps.Runs.GetRun(ctx, runID)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to get run", err), nil
	}
	data, err := json.Marshal(r)
	if err != nil {
		return mcplib.NewToolResultErrorFromErr("failed to marshal run", err), nil
	}
	return mcplib.NewToolResultText(string(data)), nil
}
