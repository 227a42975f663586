package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

const (
	repoInfoURI      = "al-go://repo/info"
	docsURIPrefix    = "al-go://docs/"
	docsURITemplate  = docsURIPrefix + "{+path}"
	serverVersionURI = "al-go://server/version"
)

func (s *Server) registerResources() {
	s.mcpServer.AddResource(
		mcp.NewResource(repoInfoURI, "AL-Go Repository Information",
			mcp.WithResourceDescription("Basic information about the AL-Go repository"),
			mcp.WithMIMEType("application/json"),
		),
		s.readRepoInfo,
	)

	s.mcpServer.AddResourceTemplate(
		mcp.NewResourceTemplate(docsURITemplate, "AL-Go Documentation File",
			mcp.WithTemplateDescription("Get content from a specific AL-Go documentation file, e.g. al-go://docs/Scenarios/settings.md"),
			mcp.WithTemplateMIMEType("text/markdown"),
		),
		s.readDocument,
	)

	s.mcpServer.AddResource(
		mcp.NewResource(serverVersionURI, "AL-Go MCP Server Version",
			mcp.WithResourceDescription("Name, version, description and author of this server"),
			mcp.WithMIMEType("application/json"),
		),
		s.readServerVersion,
	)
}

func (s *Server) readRepoInfo(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	info, err := s.repo.RepositoryInfo(ctx)
	if err != nil {
		s.logger.Error("Failed to read repository info", "error", err)
		return nil, err
	}

	body, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode repository info: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(body),
		},
	}, nil
}

func (s *Server) readDocument(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	path, err := documentPath(request.Params.URI)
	if err != nil {
		return nil, err
	}

	content, err := s.repo.DocumentContent(ctx, path)
	if err != nil {
		s.logger.Warn("Failed to read document", "path", path, "error", err)
		return nil, fmt.Errorf("failed to fetch document %s: %w", path, err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "text/markdown",
			Text:     content,
		},
	}, nil
}

func (s *Server) readServerVersion(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	body, err := json.MarshalIndent(map[string]string{
		"name":        s.info.Name,
		"version":     s.info.Version,
		"description": s.info.Description,
		"author":      s.info.Author,
	}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode server version: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      request.Params.URI,
			MIMEType: "application/json",
			Text:     string(body),
		},
	}, nil
}

// documentPath extracts the repository path from an al-go://docs/ URI
func documentPath(uri string) (string, error) {
	if !strings.HasPrefix(uri, docsURIPrefix) {
		return "", fmt.Errorf("unsupported document URI: %s", uri)
	}

	path, err := url.PathUnescape(strings.TrimPrefix(uri, docsURIPrefix))
	if err != nil {
		return "", fmt.Errorf("invalid document URI %s: %w", uri, err)
	}

	path = strings.Trim(path, "/")
	if path == "" {
		return "", errors.New("document path cannot be empty")
	}
	return path, nil
}
