package fetcher

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// DefaultAPIBaseURL is the public GitHub REST API endpoint.
const DefaultAPIBaseURL = "https://api.github.com"

// GitHubRepo identifies the single repository the client talks to
type GitHubRepo struct {
	Owner  string // Repository owner (e.g., "microsoft")
	Name   string // Repository name (e.g., "AL-Go")
	Branch string // Branch used for tree and content lookups (e.g., "main")
}

// String returns "owner/name".
func (r GitHubRepo) String() string {
	return r.Owner + "/" + r.Name
}

// Repository is the subset of the repos API response the server exposes
type Repository struct {
	Name            string    `json:"name"`
	FullName        string    `json:"full_name"`
	Description     string    `json:"description"`
	StargazersCount int       `json:"stargazers_count"`
	ForksCount      int       `json:"forks_count"`
	Language        string    `json:"language"`
	UpdatedAt       time.Time `json:"updated_at"`
	DefaultBranch   string    `json:"default_branch"`
	HTMLURL         string    `json:"html_url"`
	Topics          []string  `json:"topics"`
}

// TreeEntry represents an entry in the git trees API response
type TreeEntry struct {
	Path string `json:"path"`
	Type string `json:"type"` // "blob", "tree" or "commit"
	SHA  string `json:"sha"`
	Size int    `json:"size,omitempty"`
}

// Tree represents the git trees API response
type Tree struct {
	SHA       string      `json:"sha"`
	Tree      []TreeEntry `json:"tree"`
	Truncated bool        `json:"truncated"`
}

// ContentEntry represents a file or directory entry from the contents API.
// Content is only populated for single-file responses.
type ContentEntry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	SHA      string `json:"sha"`
	Size     int    `json:"size"`
	Type     string `json:"type"` // "file", "dir", "symlink" or "submodule"
	Content  string `json:"content,omitempty"`
	Encoding string `json:"encoding,omitempty"`
}

// Decode returns the decoded file content. GitHub wraps base64 payloads at 60
// columns, so line breaks are stripped before decoding.
func (e *ContentEntry) Decode() ([]byte, error) {
	if e.Encoding != "" && e.Encoding != "base64" {
		return []byte(e.Content), nil
	}
	cleaned := strings.NewReplacer("\n", "", "\r", "").Replace(e.Content)
	decoded, err := base64.StdEncoding.DecodeString(cleaned)
	if err != nil {
		return nil, fmt.Errorf("failed to decode content of %s: %w", e.Path, err)
	}
	return decoded, nil
}

// Contents is the contents API response for a path: either a single file
// or a directory listing.
type Contents struct {
	File    *ContentEntry
	Entries []ContentEntry
}

// IsDir reports whether the path resolved to a directory.
func (c *Contents) IsDir() bool {
	return c.File == nil
}

// GitHubClient fetches repository data from the GitHub REST API
type GitHubClient struct {
	client  *HTTPClient
	auth    Authenticator
	baseURL string
	repo    GitHubRepo
	logger  zerolog.Logger
}

// NewGitHubClient creates a client for repo. A nil auth sends anonymous requests.
func NewGitHubClient(client *HTTPClient, auth Authenticator, baseURL string, repo GitHubRepo, logger zerolog.Logger) *GitHubClient {
	if auth == nil {
		auth = AnonymousAuthenticator{}
	}
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &GitHubClient{
		client:  client,
		auth:    auth,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		repo:    repo,
		logger:  logger,
	}
}

// Repo returns the repository this client targets.
func (gc *GitHubClient) Repo() GitHubRepo {
	return gc.repo
}

// GetRepository fetches repository metadata
func (gc *GitHubClient) GetRepository(ctx context.Context) (*Repository, error) {
	body, err := gc.get(ctx, gc.repoURL(""), nil)
	if err != nil {
		return nil, err
	}

	var repo Repository
	if err := json.Unmarshal(body, &repo); err != nil {
		return nil, fmt.Errorf("failed to parse repository response: %w", err)
	}
	return &repo, nil
}

// GetTree fetches the full recursive file tree for ref
func (gc *GitHubClient) GetTree(ctx context.Context, ref string) (*Tree, error) {
	if ref == "" {
		ref = gc.repo.Branch
	}
	query := url.Values{"recursive": {"1"}}
	body, err := gc.get(ctx, gc.repoURL("/git/trees/"+url.PathEscape(ref)), query)
	if err != nil {
		return nil, err
	}

	var tree Tree
	if err := json.Unmarshal(body, &tree); err != nil {
		return nil, fmt.Errorf("failed to parse tree response: %w", err)
	}

	if tree.Truncated {
		gc.logger.Warn().
			Str("repo", gc.repo.String()).
			Str("ref", ref).
			Msg("GitHub tree response was truncated, some files may be missing")
	}

	return &tree, nil
}

// GetContents fetches a file or directory listing at path on the configured branch
func (gc *GitHubClient) GetContents(ctx context.Context, path string) (*Contents, error) {
	var query url.Values
	if gc.repo.Branch != "" {
		query = url.Values{"ref": {gc.repo.Branch}}
	}
	body, err := gc.get(ctx, gc.repoURL("/contents/"+escapePath(path)), query)
	if err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(body)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var entries []ContentEntry
		if err := json.Unmarshal(trimmed, &entries); err != nil {
			return nil, fmt.Errorf("failed to parse directory listing: %w", err)
		}
		return &Contents{Entries: entries}, nil
	}

	var file ContentEntry
	if err := json.Unmarshal(trimmed, &file); err != nil {
		return nil, fmt.Errorf("failed to parse file response: %w", err)
	}
	if file.Type == "dir" {
		return &Contents{Entries: []ContentEntry{}}, nil
	}
	return &Contents{File: &file}, nil
}

func (gc *GitHubClient) get(ctx context.Context, endpoint string, query url.Values) ([]byte, error) {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	authz, err := gc.auth.Authorization(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to authenticate: %w", err)
	}

	header := http.Header{}
	header.Set("Accept", "application/vnd.github+json")
	header.Set("X-GitHub-Api-Version", "2022-11-28")
	if authz != "" {
		header.Set("Authorization", authz)
	}

	gc.logger.Debug().
		Str("url", endpoint).
		Str("auth", string(gc.auth.Mode())).
		Msg("GitHub API request")

	return gc.client.Fetch(ctx, endpoint, header)
}

func (gc *GitHubClient) repoURL(suffix string) string {
	return fmt.Sprintf("%s/repos/%s/%s%s", gc.baseURL, url.PathEscape(gc.repo.Owner), url.PathEscape(gc.repo.Name), suffix)
}

// escapePath escapes each path segment while keeping the separators.
func escapePath(p string) string {
	segments := strings.Split(strings.Trim(p, "/"), "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}

// IsNotFound reports whether err is an upstream 404.
func IsNotFound(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.StatusCode == http.StatusNotFound
}

// IsRateLimited reports whether err indicates GitHub API rate limiting
func IsRateLimited(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	if se.StatusCode == http.StatusTooManyRequests {
		return true
	}
	return se.StatusCode == http.StatusForbidden && strings.Contains(strings.ToLower(se.Body), "rate limit")
}
