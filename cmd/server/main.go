// AL-Go Documentation MCP Server
//
// This is the main entry point for the AL-Go Documentation MCP Server.
// It gives LLMs access to the AL-Go for GitHub documentation and workflow
// examples through the Model Context Protocol (MCP).
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/j4ng5y/al-go-mcp-server/internal/classifier"
	"github.com/j4ng5y/al-go-mcp-server/internal/config"
	"github.com/j4ng5y/al-go-mcp-server/internal/fetcher"
	"github.com/j4ng5y/al-go-mcp-server/internal/index"
	"github.com/j4ng5y/al-go-mcp-server/internal/logger"
	"github.com/j4ng5y/al-go-mcp-server/internal/repository"
	"github.com/j4ng5y/al-go-mcp-server/internal/server"
)

var (
	version = "1.0.0"
	commit  = ""
	date    = ""
)

const (
	appDescription  = "MCP server providing AL-Go for GitHub documentation, search and workflow examples"
	appAuthor       = "j4ng5y"
	shutdownTimeout = 30 * time.Second
)

var (
	configFile    string
	logLevel      string
	transportType string
	host          string
	port          int
	showVersion   bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "al-go-mcp-server",
		Short: "AL-Go Documentation MCP Server",
		Long: `AL-Go Documentation MCP Server gives LLMs access to the AL-Go for GitHub
repository (https://github.com/microsoft/AL-Go) through the Model Context Protocol (MCP).

The server exposes:
  - search-al-go-docs:        search the AL-Go documentation
  - get-al-go-workflows:      list workflow examples by type
  - refresh-al-go-cache:      refresh the cached documentation
  - get-al-go-server-version: show build information
  - al-go-setup-help prompt and al-go:// resources

Documentation is fetched from GitHub on first use and cached in memory.
Set GITHUB_TOKEN (or GitHub App credentials) to raise the API rate limit.`,
		SilenceUsage: true,
		RunE:         runServer,
	}

	rootCmd.Flags().StringVarP(&configFile, "config", "c", "", "Path to configuration file (optional)")
	rootCmd.Flags().StringVarP(&logLevel, "log-level", "l", "", "Log level (debug, info, warn, error)")
	rootCmd.Flags().StringVarP(&transportType, "transport", "t", "", "Transport type (stdio, sse, streamablehttp)")
	rootCmd.Flags().StringVar(&host, "host", "", "Bind host for network transports")
	rootCmd.Flags().IntVarP(&port, "port", "p", 0, "Bind port for network transports")
	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "Show version information")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServer(cmd *cobra.Command, args []string) error {
	if showVersion {
		fmt.Printf("AL-Go Documentation MCP Server\n")
		fmt.Printf("Version: %s\n", version)
		if commit != "" {
			fmt.Printf("Commit:  %s\n", commit)
		}
		if date != "" {
			fmt.Printf("Built:   %s\n", date)
		}
		return nil
	}

	// A missing .env is normal; anything else is worth reporting.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg, err := config.LoadWithFlags(config.ResolveConfigPath(configFile), changedFlags(cmd))
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.NewLogger(cfg.LogLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	fetchLog, err := logger.NewZerolog(cfg.LogLevel, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to create fetch logger: %w", err)
	}

	log.Info("Starting AL-Go Documentation MCP Server",
		"version", version,
		"commit", commit,
		"date", date,
		"repository", cfg.RepositoryURL())

	httpClient := fetcher.NewHTTPClient(cfg.FetchTimeoutDuration(), cfg.MaxRetries, cfg.MaxConcurrent)
	httpClient.SetUserAgent(fmt.Sprintf("al-go-mcp-server/%s", version))

	auth, err := fetcher.NewAuthenticator(cfg.GitHub.Credentials(), httpClient, cfg.GitHubAPIURL)
	if err != nil {
		return fmt.Errorf("failed to configure GitHub authentication: %w", err)
	}
	log.Info("GitHub authentication configured", "mode", auth.Mode())

	github := fetcher.NewGitHubClient(httpClient, auth, cfg.GitHubAPIURL, fetcher.GitHubRepo{
		Owner:  cfg.RepoOwner,
		Name:   cfg.RepoName,
		Branch: cfg.Branch,
	}, fetchLog)

	repo := repository.NewClient(github, repository.Options{
		MaxDocFiles:   cfg.MaxDocFiles,
		MaxConcurrent: cfg.MaxConcurrent,
		Classifier:    classifier.NewDefaultClassifier(),
	}, fetchLog)

	docIndex := index.NewDocumentIndex(repo, cfg.CacheTTLDuration(), log)

	srv, err := server.NewServer(cfg, server.Dependencies{
		Repository: repo,
		Index:      docIndex,
		Info: server.Info{
			Name:          "al-go-mcp-server",
			Version:       version,
			Commit:        commit,
			Date:          date,
			Description:   appDescription,
			Author:        appAuthor,
			RepositoryURL: cfg.RepositoryURL(),
		},
	}, log)
	if err != nil {
		log.Error("Failed to create server", "error", err)
		return fmt.Errorf("failed to create server: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.Initialize(ctx); err != nil {
			errChan <- fmt.Errorf("server initialization failed: %w", err)
			return
		}

		log.Info("Server initialized successfully, starting MCP server")

		// Start blocks until shutdown
		if err := srv.Start(ctx); err != nil {
			errChan <- fmt.Errorf("server error: %w", err)
			return
		}

		errChan <- nil
	}()

	select {
	case err := <-errChan:
		if err != nil {
			log.Error("Server error", "error", err)
			return err
		}
		log.Info("Server stopped normally")
		return nil

	case sig := <-sigChan:
		log.Info("Received shutdown signal", "signal", sig)
		cancel()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("Error during shutdown", "error", err)
			return fmt.Errorf("shutdown error: %w", err)
		}

		log.Info("Server shutdown complete")
		return nil
	}
}

// changedFlags returns the command-line overrides the user actually set,
// keyed by configuration name.
func changedFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	if cmd.Flags().Changed("log-level") {
		flags["log_level"] = logLevel
	}
	if cmd.Flags().Changed("transport") {
		flags["transport_type"] = transportType
	}
	if cmd.Flags().Changed("host") {
		flags["host"] = host
	}
	if cmd.Flags().Changed("port") {
		flags["port"] = port
	}
	return flags
}
