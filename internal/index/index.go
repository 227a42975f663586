// Package index keeps the AL-Go documentation in memory and answers keyword
// searches over it with a heuristic relevance score.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/j4ng5y/al-go-mcp-server/internal/parser"
	"github.com/j4ng5y/al-go-mcp-server/internal/repository"
)

const (
	// DefaultTTL is how long a successful refresh stays fresh
	DefaultTTL = time.Hour
	// DefaultSearchLimit is used when a search asks for a non-positive limit
	DefaultSearchLimit = 10
	// ExcerptLength is the maximum excerpt length before ellipses
	ExcerptLength = 200
	// LoadTimeout bounds a shared load, which outlives the caller that started it
	LoadTimeout = 5 * time.Minute
)

// Source supplies the documents the index is built from
type Source interface {
	DocumentationFiles(ctx context.Context) ([]repository.DocumentFile, error)
}

// DocumentEntry is an indexed document
type DocumentEntry struct {
	Path        string
	Content     string
	Name        string
	Title       string
	LastIndexed time.Time
}

// SearchResult is a scored match for a query
type SearchResult struct {
	Title   string  `json:"title"`
	Path    string  `json:"path"`
	Excerpt string  `json:"excerpt"`
	Score   float64 `json:"score"`
	Content string  `json:"content"`
}

// Stats describes the current index state
type Stats struct {
	Documents   int
	Initialized bool
	LastRefresh time.Time
}

// InitError is returned when the index could not be built
type InitError struct {
	Err error
}

func (e *InitError) Error() string {
	return fmt.Sprintf("failed to initialize document index: %v", e.Err)
}

func (e *InitError) Unwrap() error {
	return e.Err
}

// DocumentIndex is a TTL-refreshed, in-memory document set. It is safe for concurrent use.
type DocumentIndex struct {
	source      Source
	ttl         time.Duration
	loadTimeout time.Duration
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.RWMutex
	documents   []DocumentEntry
	initialized bool
	lastRefresh time.Time

	group singleflight.Group
}

// NewDocumentIndex creates an empty index backed by source.
// A non-positive ttl falls back to DefaultTTL.
func NewDocumentIndex(source Source, ttl time.Duration, logger *slog.Logger) *DocumentIndex {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentIndex{
		source:      source,
		ttl:         ttl,
		loadTimeout: LoadTimeout,
		logger:      logger,
		now:         time.Now,
	}
}

// Initialize loads the documents unless the index is initialized and fresh.
// Concurrent callers share a single load. The load is detached from the
// starting caller's cancellation; each caller stops waiting when its own ctx
// is done while the load carries on for the others.
func (di *DocumentIndex) Initialize(ctx context.Context) error {
	if di.fresh() {
		return nil
	}

	ch := di.group.DoChan("load", func() (any, error) {
		if di.fresh() {
			return nil, nil
		}
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), di.loadTimeout)
		defer cancel()
		return nil, di.load(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Shared {
			di.logger.Debug("Joined in-flight index load")
		}
		return res.Err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh reloads the documents when force is set or the index is stale.
func (di *DocumentIndex) Refresh(ctx context.Context, force bool) error {
	di.mu.Lock()
	stale := force || !di.initialized || di.lastRefresh.IsZero() || di.now().Sub(di.lastRefresh) >= di.ttl
	if stale {
		di.initialized = false
	}
	di.mu.Unlock()

	if !stale {
		di.logger.Debug("Index is fresh, skipping refresh")
		return nil
	}
	return di.Initialize(ctx)
}

// Search scores every document against query and returns the matches with a
// positive score, best first. The index is loaded on first use.
func (di *DocumentIndex) Search(ctx context.Context, query string, limit int) ([]SearchResult, error) {
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	if err := di.Initialize(ctx); err != nil {
		if di.Stats().Documents == 0 {
			return nil, err
		}
		di.logger.Warn("Serving search from previous document set", "error", err)
	}

	q := parseQuery(query)
	if q.lower == "" {
		return []SearchResult{}, nil
	}

	docs := di.snapshot()
	results := make([]SearchResult, 0, len(docs))
	for _, doc := range docs {
		score := q.score(doc)
		if score <= 0 {
			continue
		}
		results = append(results, SearchResult{
			Title:   doc.Title,
			Path:    doc.Path,
			Excerpt: q.excerpt(doc.Content, ExcerptLength),
			Score:   score,
			Content: doc.Content,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if len(results) > limit {
		results = results[:limit]
	}

	di.logger.Debug("Search completed", "query", query, "results", len(results), "documents", len(docs))
	return results, nil
}

// Stats returns the current document count and refresh state
func (di *DocumentIndex) Stats() Stats {
	di.mu.RLock()
	defer di.mu.RUnlock()

	return Stats{
		Documents:   len(di.documents),
		Initialized: di.initialized,
		LastRefresh: di.lastRefresh,
	}
}

// Documents returns the indexed documents in fetch order
func (di *DocumentIndex) Documents() []DocumentEntry {
	docs := di.snapshot()
	out := make([]DocumentEntry, len(docs))
	copy(out, docs)
	return out
}

func (di *DocumentIndex) fresh() bool {
	di.mu.RLock()
	defer di.mu.RUnlock()
	return di.initialized && di.now().Sub(di.lastRefresh) < di.ttl
}

// snapshot returns the current slice. Refresh replaces the slice and never
// mutates it, so callers may read it without holding the lock.
func (di *DocumentIndex) snapshot() []DocumentEntry {
	di.mu.RLock()
	defer di.mu.RUnlock()
	return di.documents
}

func (di *DocumentIndex) load(ctx context.Context) error {
	start := di.now()
	files, err := di.source.DocumentationFiles(ctx)
	if err != nil {
		di.mu.Lock()
		di.initialized = false
		di.mu.Unlock()
		di.logger.Error("Failed to load documentation", "error", err)
		return &InitError{Err: err}
	}

	indexed := di.now()
	entries := make([]DocumentEntry, 0, len(files))
	for _, f := range files {
		entries = append(entries, DocumentEntry{
			Path:        f.Path,
			Content:     f.Content,
			Name:        f.Name,
			Title:       parser.ExtractTitle(f.Content, f.Name),
			LastIndexed: indexed,
		})
	}

	di.mu.Lock()
	di.documents = entries
	di.initialized = true
	di.lastRefresh = indexed
	di.mu.Unlock()

	di.logger.Info("Documentation index loaded",
		"documents", len(entries),
		"duration", indexed.Sub(start),
	)
	return nil
}
