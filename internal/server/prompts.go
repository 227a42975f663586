package server

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const setupPromptName = "al-go-setup-help"

// Project types accepted by the setup prompt
var projectTypes = []string{"per-tenant-extension", "app-source", "template"}

func (s *Server) registerPrompts() {
	s.mcpServer.AddPrompt(mcp.NewPrompt(setupPromptName,
		mcp.WithPromptDescription("Get help setting up AL-Go for a Business Central project"),
		mcp.WithArgument("projectType",
			mcp.ArgumentDescription("Type of project: per-tenant-extension, app-source or template"),
			mcp.RequiredArgument(),
		),
		mcp.WithArgument("scenario",
			mcp.ArgumentDescription("Specific scenario or use case"),
		),
	), s.handleSetupPrompt)
}

func (s *Server) handleSetupPrompt(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	projectType := strings.TrimSpace(request.Params.Arguments["projectType"])
	if projectType == "" {
		return nil, fmt.Errorf("projectType argument is required")
	}
	if !validProjectType(projectType) {
		return nil, fmt.Errorf("invalid projectType %q (must be one of: %s)", projectType, strings.Join(projectTypes, ", "))
	}

	text := setupPromptText(projectType, strings.TrimSpace(request.Params.Arguments["scenario"]))
	return mcp.NewGetPromptResult(
		"AL-Go setup guidance",
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser, mcp.NewTextContent(text)),
		},
	), nil
}

func validProjectType(projectType string) bool {
	for _, known := range projectTypes {
		if projectType == known {
			return true
		}
	}
	return false
}

func setupPromptText(projectType, scenario string) string {
	var b strings.Builder
	b.WriteString("You are an expert in AL-Go for GitHub, Microsoft's development framework for Business Central extensions. Help the user set up an AL-Go project.\n\n")
	fmt.Fprintf(&b, "Project Type: %s\n", projectType)
	if scenario != "" {
		fmt.Fprintf(&b, "Scenario: %s\n", scenario)
	}
	b.WriteString("\nPlease provide step-by-step guidance including:\n")
	b.WriteString("1. Repository setup and structure\n")
	b.WriteString("2. Required configuration files\n")
	b.WriteString("3. Workflow configuration\n")
	b.WriteString("4. Best practices and common pitfalls\n\n")
	b.WriteString("Use the AL-Go documentation and examples available through the MCP tools to provide accurate, up-to-date information.")
	return b.String()
}
