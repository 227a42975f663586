// Package repository exposes the AL-Go GitHub repository as documents and
// workflow examples on top of the fetcher's GitHub client.
package repository

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/j4ng5y/al-go-mcp-server/internal/classifier"
	"github.com/j4ng5y/al-go-mcp-server/internal/fetcher"
	"github.com/j4ng5y/al-go-mcp-server/internal/parser"
)

const (
	// DefaultMaxDocFiles caps how many documentation files one bulk fetch downloads
	DefaultMaxDocFiles = 50
	// DefaultMaxConcurrent bounds parallel file downloads
	DefaultMaxConcurrent = 5

	workflowsDir = ".github/workflows"
)

// GitHubAPI is the subset of the GitHub client the repository needs
type GitHubAPI interface {
	Repo() fetcher.GitHubRepo
	GetRepository(ctx context.Context) (*fetcher.Repository, error)
	GetTree(ctx context.Context, ref string) (*fetcher.Tree, error)
	GetContents(ctx context.Context, path string) (*fetcher.Contents, error)
}

// Info is the repository metadata returned to clients
type Info struct {
	Name          string    `json:"name"`
	Description   string    `json:"description"`
	Stars         int       `json:"stars"`
	Forks         int       `json:"forks"`
	Language      string    `json:"language"`
	LastUpdated   time.Time `json:"lastUpdated"`
	DefaultBranch string    `json:"defaultBranch"`
	URL           string    `json:"url"`
	Topics        []string  `json:"topics"`
}

// DocumentFile is a fetched documentation file
type DocumentFile struct {
	Path    string
	Content string
	Name    string
}

// WorkflowExample is a workflow file from .github/workflows
type WorkflowExample struct {
	Name        string   `json:"name"`
	Path        string   `json:"path"`
	Content     string   `json:"content"`
	Description string   `json:"description"`
	Title       string   `json:"title,omitempty"`
	Triggers    []string `json:"triggers,omitempty"`
}

// Options tunes bulk fetching
type Options struct {
	MaxDocFiles   int
	MaxConcurrent int
	Classifier    classifier.Classifier
}

// Client reads documentation and workflows from the configured repository
type Client struct {
	api           GitHubAPI
	classifier    classifier.Classifier
	maxDocFiles   int
	maxConcurrent int
	logger        zerolog.Logger
}

// NewClient creates a repository client. Zero options fall back to defaults.
func NewClient(api GitHubAPI, opts Options, logger zerolog.Logger) *Client {
	if opts.MaxDocFiles <= 0 {
		opts.MaxDocFiles = DefaultMaxDocFiles
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = DefaultMaxConcurrent
	}
	if opts.Classifier == nil {
		opts.Classifier = classifier.NewDefaultClassifier()
	}

	return &Client{
		api:           api,
		classifier:    opts.Classifier,
		maxDocFiles:   opts.MaxDocFiles,
		maxConcurrent: opts.MaxConcurrent,
		logger:        logger.With().Str("component", "repository").Str("repo", api.Repo().String()).Logger(),
	}
}

// RepositoryInfo fetches repository metadata
func (c *Client) RepositoryInfo(ctx context.Context) (*Info, error) {
	repo, err := c.api.GetRepository(ctx)
	if err != nil {
		return nil, upstream("fetch AL-Go repository information", err)
	}

	topics := repo.Topics
	if topics == nil {
		topics = []string{}
	}

	return &Info{
		Name:          repo.Name,
		Description:   repo.Description,
		Stars:         repo.StargazersCount,
		Forks:         repo.ForksCount,
		Language:      repo.Language,
		LastUpdated:   repo.UpdatedAt,
		DefaultBranch: repo.DefaultBranch,
		URL:           repo.HTMLURL,
		Topics:        topics,
	}, nil
}

// DocumentContent fetches and decodes a single file
func (c *Client) DocumentContent(ctx context.Context, filePath string) (string, error) {
	contents, err := c.api.GetContents(ctx, filePath)
	if err != nil {
		if fetcher.IsNotFound(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, filePath)
		}
		return "", upstream("fetch document "+filePath, err)
	}

	if contents.IsDir() || contents.File.Content == "" {
		return "", fmt.Errorf("%w: %s", ErrNotFound, filePath)
	}

	decoded, err := contents.File.Decode()
	if err != nil {
		return "", upstream("fetch document "+filePath, err)
	}
	return string(decoded), nil
}

// DocumentationFiles fetches the documentation files of the configured branch
// in tree order. Files that fail to download are logged and skipped.
func (c *Client) DocumentationFiles(ctx context.Context) ([]DocumentFile, error) {
	tree, err := c.api.GetTree(ctx, "")
	if err != nil {
		return nil, upstream("fetch documentation files", err)
	}

	var paths []string
	for _, entry := range tree.Tree {
		if entry.Type == "blob" && IsDocumentationPath(entry.Path) {
			paths = append(paths, entry.Path)
		}
	}
	if len(paths) > c.maxDocFiles {
		c.logger.Debug().Int("matched", len(paths)).Int("limit", c.maxDocFiles).Msg("Capping documentation files")
		paths = paths[:c.maxDocFiles]
	}

	contents, err := c.fetchAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	docs := make([]DocumentFile, 0, len(paths))
	for i, p := range paths {
		if contents[i] == nil {
			continue
		}
		docs = append(docs, DocumentFile{Path: p, Content: *contents[i], Name: path.Base(p)})
	}

	c.logger.Info().Int("documents", len(docs)).Int("selected", len(paths)).Msg("Fetched documentation files")
	return docs, nil
}

// WorkflowExamples returns the workflow files matching wt
func (c *Client) WorkflowExamples(ctx context.Context, wt classifier.WorkflowType) ([]WorkflowExample, error) {
	listing, err := c.api.GetContents(ctx, workflowsDir)
	if err != nil {
		return nil, upstream("fetch workflow examples", err)
	}

	var files []fetcher.ContentEntry
	for _, entry := range listing.Entries {
		if entry.Type == "file" && isWorkflowFile(entry.Name) {
			files = append(files, entry)
		}
	}

	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = f.Path
	}

	contents, err := c.fetchAll(ctx, paths)
	if err != nil {
		return nil, err
	}

	workflows := make([]WorkflowExample, 0, len(files))
	for i, f := range files {
		if contents[i] == nil {
			continue
		}
		content := *contents[i]
		if wt != classifier.TypeAll && !c.classifier.Matches(f.Name, content, wt) {
			continue
		}

		example := WorkflowExample{
			Name:        f.Name,
			Path:        f.Path,
			Content:     content,
			Description: parser.ExtractWorkflowDescription(content),
		}
		if meta, err := parser.ParseWorkflowMeta(content); err != nil {
			c.logger.Debug().Err(err).Str("path", f.Path).Msg("Skipping workflow metadata")
		} else {
			example.Title = meta.Name
			example.Triggers = meta.Triggers
		}
		workflows = append(workflows, example)
	}

	return workflows, nil
}

// fetchAll downloads paths with bounded parallelism. The result is index-aligned
// with paths; failed downloads are nil.
func (c *Client) fetchAll(ctx context.Context, paths []string) ([]*string, error) {
	results := make([]*string, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.maxConcurrent)

	for i, p := range paths {
		g.Go(func() error {
			content, err := c.DocumentContent(gctx, p)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				c.logger.Warn().Err(err).Str("path", p).Msg("Failed to fetch file")
				return nil
			}
			results[i] = &content
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// IsDocumentationPath reports whether a tree path is treated as documentation
func IsDocumentationPath(p string) bool {
	switch {
	case strings.HasSuffix(p, ".md"), strings.HasSuffix(p, ".txt"):
		return true
	case strings.Contains(p, "Actions/"),
		strings.Contains(p, "Scenarios/"),
		strings.Contains(p, "Workshop/"),
		strings.Contains(p, "Documentation/"):
		return true
	}
	return p == "README.md" || p == "RELEASENOTES.md"
}

func isWorkflowFile(name string) bool {
	return strings.HasSuffix(name, ".yml") || strings.HasSuffix(name, ".yaml")
}
