package repository

import (
	"errors"
	"fmt"

	"github.com/j4ng5y/al-go-mcp-server/internal/fetcher"
)

// ErrNotFound is returned when a path does not resolve to a file with content
var ErrNotFound = errors.New("file content not found or is a directory")

// UpstreamError wraps a failed call to the GitHub API
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	msg := fmt.Sprintf("failed to %s: %v", e.Op, e.Err)
	if fetcher.IsRateLimited(e.Err) {
		msg += " (GitHub API rate limit reached; set GITHUB_TOKEN to raise the limit)"
	}
	return msg
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

func upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
