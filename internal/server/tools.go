package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/j4ng5y/al-go-mcp-server/internal/classifier"
	"github.com/j4ng5y/al-go-mcp-server/internal/index"
	"github.com/j4ng5y/al-go-mcp-server/internal/repository"
)

const refreshSuccessMessage = "AL-Go documentation cache refreshed successfully."

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("search-al-go-docs",
		mcp.WithDescription("Search through AL-Go documentation for specific queries"),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Search query for AL-Go documentation"),
		),
		mcp.WithNumber("limit",
			mcp.DefaultNumber(index.DefaultSearchLimit),
			mcp.Description("Maximum number of results to return"),
		),
	), s.handleSearchTool)

	types := make([]string, 0, len(classifier.Types()))
	for _, wt := range classifier.Types() {
		types = append(types, wt.String())
	}
	s.mcpServer.AddTool(mcp.NewTool("get-al-go-workflows",
		mcp.WithDescription("Get examples of AL-Go GitHub workflows"),
		mcp.WithString("workflowType",
			mcp.Enum(types...),
			mcp.DefaultString(classifier.TypeAll.String()),
			mcp.Description("Type of workflows to retrieve"),
		),
	), s.handleWorkflowsTool)

	s.mcpServer.AddTool(mcp.NewTool("refresh-al-go-cache",
		mcp.WithDescription("Refresh the cached AL-Go documentation from the repository"),
		mcp.WithBoolean("force",
			mcp.DefaultBool(false),
			mcp.Description("Force refresh even if cache is recent"),
		),
	), s.handleRefreshTool)

	s.mcpServer.AddTool(mcp.NewTool("get-al-go-server-version",
		mcp.WithDescription("Get the version and build information of this AL-Go MCP server"),
	), s.handleVersionTool)
}

// handleSearchTool handles the search-al-go-docs tool invocation
func (s *Server) handleSearchTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil || strings.TrimSpace(query) == "" {
		return mcp.NewToolResultError("query parameter is required and must be a non-empty string"), nil
	}

	limit := request.GetInt("limit", index.DefaultSearchLimit)

	results, err := s.index.Search(ctx, query, limit)
	if err != nil {
		s.logger.Error("Search failed", "query", query, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error searching AL-Go documentation: %v", err)), nil
	}

	s.logger.Info("Search completed", "query", query, "results", len(results))
	return mcp.NewToolResultText(formatSearchResults(query, results)), nil
}

// handleWorkflowsTool handles the get-al-go-workflows tool invocation
func (s *Server) handleWorkflowsTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	wt := classifier.ParseWorkflowType(request.GetString("workflowType", classifier.TypeAll.String()))
	if !validWorkflowType(wt) {
		return mcp.NewToolResultError(fmt.Sprintf("invalid workflowType %q (must be one of: cicd, deployment, testing, all)", wt)), nil
	}

	workflows, err := s.repo.WorkflowExamples(ctx, wt)
	if err != nil {
		s.logger.Error("Workflow lookup failed", "type", wt, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error retrieving AL-Go workflows: %v", err)), nil
	}

	s.logger.Info("Workflows retrieved", "type", wt, "count", len(workflows))
	return mcp.NewToolResultText(formatWorkflows(wt, workflows)), nil
}

// handleRefreshTool handles the refresh-al-go-cache tool invocation
func (s *Server) handleRefreshTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	force := request.GetBool("force", false)

	if err := s.index.Refresh(ctx, force); err != nil {
		s.logger.Error("Cache refresh failed", "force", force, "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Error refreshing AL-Go cache: %v", err)), nil
	}

	stats := s.index.Stats()
	s.logger.Info("Cache refreshed",
		"force", force,
		"documents", stats.Documents,
		"last_refresh", stats.LastRefresh,
	)
	return mcp.NewToolResultText(refreshSuccessMessage), nil
}

// handleVersionTool handles the get-al-go-server-version tool invocation
func (s *Server) handleVersionTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(formatVersion(s.info)), nil
}

func validWorkflowType(wt classifier.WorkflowType) bool {
	for _, known := range classifier.Types() {
		if wt == known {
			return true
		}
	}
	return false
}

func formatSearchResults(query string, results []index.SearchResult) string {
	entries := make([]string, len(results))
	for i, r := range results {
		entries[i] = fmt.Sprintf("%d. **%s** (%s)\n   %s\n   Score: %.2f\n", i+1, r.Title, r.Path, r.Excerpt, r.Score)
	}
	return fmt.Sprintf("Found %d results for %q:\n\n%s", len(results), query, strings.Join(entries, "\n"))
}

func formatWorkflows(wt classifier.WorkflowType, workflows []repository.WorkflowExample) string {
	header := fmt.Sprintf("AL-Go Workflow Examples (%s):\n\n", wt)
	if len(workflows) == 0 {
		return header + "No workflows found."
	}

	sections := make([]string, len(workflows))
	for i, w := range workflows {
		var b strings.Builder
		fmt.Fprintf(&b, "## %s\n", w.Name)
		fmt.Fprintf(&b, "**Path:** %s\n", w.Path)
		fmt.Fprintf(&b, "**Description:** %s\n", w.Description)
		if w.Title != "" {
			fmt.Fprintf(&b, "**Title:** %s\n", w.Title)
		}
		if len(w.Triggers) > 0 {
			fmt.Fprintf(&b, "**Triggers:** %s\n", strings.Join(w.Triggers, ", "))
		}
		fmt.Fprintf(&b, "\n```yaml\n%s\n```\n", w.Content)
		sections[i] = b.String()
	}
	return header + strings.Join(sections, "\n---\n\n")
}

func formatVersion(info Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s v%s\n", info.Name, info.Version)
	if info.Commit != "" {
		fmt.Fprintf(&b, "Commit: %s\n", info.Commit)
	}
	if info.Date != "" {
		fmt.Fprintf(&b, "Built: %s\n", info.Date)
	}
	if info.Author != "" {
		fmt.Fprintf(&b, "Author: %s\n", info.Author)
	}
	if info.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", info.Description)
	}
	if info.RepositoryURL != "" {
		fmt.Fprintf(&b, "Repository: %s\n", info.RepositoryURL)
	}
	return b.String()
}
