package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/mark3labs/mcp-go/server"
)

// Transport type names accepted in configuration
const (
	TransportStdio          = "stdio"
	TransportSSE            = "sse"
	TransportStreamableHTTP = "streamablehttp"
)

// TransportStarter is implemented by every transport the MCP server can be served over.
type TransportStarter interface {
	// Start binds the transport to mcpServer and blocks until the transport
	// stops, ctx is cancelled or an error occurs.
	Start(ctx context.Context, mcpServer *server.MCPServer) error

	// Shutdown stops accepting new connections and closes active ones.
	Shutdown(ctx context.Context) error

	// Type returns the transport type name for logging.
	Type() string
}

// StdioTransport serves MCP over standard input/output. Logs must go to stderr.
type StdioTransport struct {
	in     io.Reader
	out    io.Writer
	logger *slog.Logger
}

// Start listens on stdin until the client disconnects or ctx is cancelled.
func (s *StdioTransport) Start(ctx context.Context, mcpServer *server.MCPServer) error {
	stdio := server.NewStdioServer(mcpServer)
	if s.logger != nil {
		stdio.SetErrorLogger(slog.NewLogLogger(s.logger.Handler(), slog.LevelError))
	}

	in, out := s.in, s.out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}

	err := stdio.Listen(ctx, in, out)
	if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Shutdown is a no-op; stdin/stdout are owned by the process.
func (s *StdioTransport) Shutdown(ctx context.Context) error {
	return nil
}

// Type returns "stdio".
func (s *StdioTransport) Type() string {
	return TransportStdio
}

// SSETransport serves MCP over HTTP with Server-Sent Events.
type SSETransport struct {
	address string

	mu     sync.Mutex
	server *server.SSEServer
	closed bool
}

// Start creates the SSE server and blocks serving on the configured address.
// It returns nil without serving when Shutdown already ran.
func (s *SSETransport) Start(ctx context.Context, mcpServer *server.MCPServer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := server.NewSSEServer(mcpServer)
	s.server = srv
	s.mu.Unlock()

	err := srv.Start(s.address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and closes client connections.
func (s *SSETransport) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Type returns "sse".
func (s *SSETransport) Type() string {
	return TransportSSE
}

// StreamableHTTPTransport serves MCP over the streamable HTTP transport.
type StreamableHTTPTransport struct {
	address string

	mu     sync.Mutex
	server *server.StreamableHTTPServer
	closed bool
}

// Start creates the streamable HTTP server and blocks serving on the configured address.
// It returns nil without serving when Shutdown already ran.
func (s *StreamableHTTPTransport) Start(ctx context.Context, mcpServer *server.MCPServer) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	srv := server.NewStreamableHTTPServer(mcpServer)
	s.server = srv
	s.mu.Unlock()

	err := srv.Start(s.address)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the HTTP server and closes client connections.
func (s *StreamableHTTPTransport) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.server
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// Type returns "streamablehttp".
func (s *StreamableHTTPTransport) Type() string {
	return TransportStreamableHTTP
}

// transportConfig is the part of the configuration NewTransport reads.
type transportConfig interface {
	GetTransportType() string
	GetPort() int
	GetTransportAddress() string
}

// NewTransport creates the transport selected by cfg. Network transports
// require a port.
func NewTransport(cfg transportConfig, logger *slog.Logger) (TransportStarter, error) {
	switch cfg.GetTransportType() {
	case TransportStdio:
		return &StdioTransport{logger: logger}, nil
	case TransportSSE:
		if cfg.GetPort() == 0 {
			return nil, fmt.Errorf("port must be configured for SSE transport")
		}
		return &SSETransport{address: cfg.GetTransportAddress()}, nil
	case TransportStreamableHTTP:
		if cfg.GetPort() == 0 {
			return nil, fmt.Errorf("port must be configured for StreamableHTTP transport")
		}
		return &StreamableHTTPTransport{address: cfg.GetTransportAddress()}, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s (must be one of: stdio, sse, streamablehttp)", cfg.GetTransportType())
	}
}
