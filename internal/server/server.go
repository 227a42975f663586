// Package server provides the MCP server core implementation, registering the
// AL-Go resources, tools and prompt and serving them over the configured transport.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/j4ng5y/al-go-mcp-server/internal/classifier"
	"github.com/j4ng5y/al-go-mcp-server/internal/config"
	"github.com/j4ng5y/al-go-mcp-server/internal/index"
	"github.com/j4ng5y/al-go-mcp-server/internal/repository"
)

// RepositoryService reads repository data on behalf of the handlers
type RepositoryService interface {
	RepositoryInfo(ctx context.Context) (*repository.Info, error)
	DocumentContent(ctx context.Context, path string) (string, error)
	WorkflowExamples(ctx context.Context, wt classifier.WorkflowType) ([]repository.WorkflowExample, error)
}

// DocumentSearcher is the document index as seen by the handlers
type DocumentSearcher interface {
	Initialize(ctx context.Context) error
	Refresh(ctx context.Context, force bool) error
	Search(ctx context.Context, query string, limit int) ([]index.SearchResult, error)
	Stats() index.Stats
}

// Info describes this server build
type Info struct {
	Name          string
	Version       string
	Commit        string
	Date          string
	Description   string
	Author        string
	RepositoryURL string
}

// Dependencies are the collaborators injected into the server
type Dependencies struct {
	Repository RepositoryService
	Index      DocumentSearcher
	Info       Info
}

// Server represents the MCP server instance with all its dependencies.
type Server struct {
	config      *config.Config
	repo        RepositoryService
	index       DocumentSearcher
	info        Info
	logger      *slog.Logger
	mcpServer   *server.MCPServer
	transport   TransportStarter
	initialized bool
}

// NewServer creates a new MCP server instance. The server is not started
// until Start() is called.
func NewServer(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if deps.Repository == nil {
		return nil, errors.New("repository service cannot be nil")
	}
	if deps.Index == nil {
		return nil, errors.New("document index cannot be nil")
	}
	if deps.Info.Name == "" {
		deps.Info.Name = "al-go-mcp-server"
	}
	if deps.Info.Version == "" {
		deps.Info.Version = "dev"
	}

	transport, err := NewTransport(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport: %w", err)
	}

	mcpServer := server.NewMCPServer(
		deps.Info.Name,
		deps.Info.Version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithPromptCapabilities(false),
		server.WithRecovery(),
	)

	return &Server{
		config:    cfg,
		repo:      deps.Repository,
		index:     deps.Index,
		info:      deps.Info,
		logger:    logger,
		mcpServer: mcpServer,
		transport: transport,
	}, nil
}

// Initialize registers resources, tools and prompts, and warms the document
// index when configured to. A failed warm-up is logged; the index loads
// lazily on the first search instead.
func (s *Server) Initialize(ctx context.Context) error {
	if s.initialized {
		return errors.New("server already initialized")
	}

	s.registerResources()
	s.registerTools()
	s.registerPrompts()

	if s.config.WarmCache {
		s.logger.Info("Warming documentation cache")
		if err := s.index.Initialize(ctx); err != nil {
			s.logger.Warn("Cache warm-up failed, continuing with lazy loading", "error", err)
		} else {
			stats := s.index.Stats()
			s.logger.Info("Documentation cache warmed", "documents", stats.Documents)
		}
	}

	s.initialized = true
	return nil
}

// Start starts the MCP server on its transport. It blocks until the context
// is cancelled or the transport stops.
func (s *Server) Start(ctx context.Context) error {
	if !s.initialized {
		return errors.New("server not initialized, call Initialize() first")
	}

	s.logger.Info("Starting MCP server",
		"transport", s.transport.Type(),
		"version", s.info.Version,
		"repository", s.config.RepositoryURL(),
	)
	if addr := s.config.GetTransportAddress(); addr != "" {
		s.logger.Info("Transport address", "address", addr)
	}

	if err := s.transport.Start(ctx, s.mcpServer); err != nil {
		s.logger.Error("MCP server error", "error", err, "transport", s.transport.Type())
		return fmt.Errorf("MCP server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the transport.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server", "transport", s.transport.Type())

	if err := s.transport.Shutdown(ctx); err != nil {
		s.logger.Error("Error during transport shutdown", "error", err, "transport", s.transport.Type())
		return fmt.Errorf("transport shutdown error: %w", err)
	}

	s.logger.Info("Server shutdown complete", "transport", s.transport.Type())
	return nil
}
