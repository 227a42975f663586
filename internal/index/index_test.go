package index

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/j4ng5y/al-go-mcp-server/internal/repository"
)

// fakeSource returns a fixed document set and counts calls
type fakeSource struct {
	mu    sync.Mutex
	docs  []repository.DocumentFile
	err   error
	calls int32
	gate  chan struct{}
}

func (f *fakeSource) DocumentationFiles(ctx context.Context) ([]repository.DocumentFile, error) {
	atomic.AddInt32(&f.calls, 1)
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.docs, f.err
}

func (f *fakeSource) set(docs []repository.DocumentFile, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs, f.err = docs, err
}

func (f *fakeSource) count() int {
	return int(atomic.LoadInt32(&f.calls))
}

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// clock is a manually advanced time source
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIndex(src Source) (*DocumentIndex, *clock) {
	clk := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	idx := NewDocumentIndex(src, time.Hour, testLogger)
	idx.now = clk.Now
	return idx, clk
}

func sampleDocs() []repository.DocumentFile {
	return []repository.DocumentFile{
		{
			Path:    "README.md",
			Name:    "README.md",
			Content: "# AL-Go for GitHub\n\nAL-Go for GitHub is a set of GitHub templates and actions for Business Central.",
		},
		{
			Path:    "Scenarios/UpdateAlGoSystemFiles.md",
			Name:    "UpdateAlGoSystemFiles.md",
			Content: "# Update AL-Go system files\n\nRun the workflow called Update AL-Go System Files.\n\n## Workflow inputs\n\nThe workflow takes a template URL.",
		},
		{
			Path:    "Scenarios/settings.md",
			Name:    "settings.md",
			Content: "---\ntitle: Settings reference\n---\n\nSettings control how projects are built.",
		},
	}
}

func TestNewDocumentIndexDefaults(t *testing.T) {
	idx := NewDocumentIndex(&fakeSource{}, 0, nil)
	assert.Equal(t, DefaultTTL, idx.ttl)
	assert.NotNil(t, idx.logger)
	assert.False(t, idx.Stats().Initialized)
}

func TestInitializeComputesTitles(t *testing.T) {
	src := &fakeSource{docs: sampleDocs()}
	idx, clk := newTestIndex(src)

	require.NoError(t, idx.Initialize(context.Background()))

	docs := idx.Documents()
	require.Len(t, docs, 3)
	assert.Equal(t, "AL-Go for GitHub", docs[0].Title)
	assert.Equal(t, "Update AL-Go system files", docs[1].Title)
	assert.Equal(t, "Settings reference", docs[2].Title)
	assert.Equal(t, clk.Now(), docs[0].LastIndexed)

	stats := idx.Stats()
	assert.True(t, stats.Initialized)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, clk.Now(), stats.LastRefresh)
}

func TestInitializeNoOpWhileFresh(t *testing.T) {
	src := &fakeSource{docs: sampleDocs()}
	idx, clk := newTestIndex(src)

	require.NoError(t, idx.Initialize(context.Background()))
	clk.Advance(30 * time.Minute)
	require.NoError(t, idx.Initialize(context.Background()))
	assert.Equal(t, 1, src.count())

	clk.Advance(31 * time.Minute)
	require.NoError(t, idx.Initialize(context.Background()))
	assert.Equal(t, 2, src.count())
}

func TestRefreshNoOpWithinTTL(t *testing.T) {
	src := &fakeSource{docs: sampleDocs()}
	idx, clk := newTestIndex(src)

	require.NoError(t, idx.Refresh(context.Background(), false))
	assert.Equal(t, 1, src.count(), "first refresh must load")

	clk.Advance(10 * time.Minute)
	require.NoError(t, idx.Refresh(context.Background(), false))
	assert.Equal(t, 1, src.count(), "refresh within TTL must not reload")

	require.NoError(t, idx.Refresh(context.Background(), true))
	assert.Equal(t, 2, src.count(), "forced refresh must reload")

	clk.Advance(2 * time.Hour)
	require.NoError(t, idx.Refresh(context.Background(), false))
	assert.Equal(t, 3, src.count(), "stale refresh must reload")
}

func TestRefreshReplacesDocumentSet(t *testing.T) {
	src := &fakeSource{docs: sampleDocs()}
	idx, _ := newTestIndex(src)
	require.NoError(t, idx.Initialize(context.Background()))

	before := idx.Documents()
	src.set([]repository.DocumentFile{{Path: "new.md", Name: "new.md", Content: "new"}}, nil)
	require.NoError(t, idx.Refresh(context.Background(), true))

	after := idx.Documents()
	require.Len(t, after, 1)
	assert.Equal(t, "new", after[0].Title)
	assert.Len(t, before, 3, "earlier snapshots are not mutated")
}

func TestInitializeFailureKeepsPreviousDocuments(t *testing.T) {
	src := &fakeSource{docs: sampleDocs()}
	idx, _ := newTestIndex(src)
	require.NoError(t, idx.Initialize(context.Background()))

	src.set(nil, errors.New("rate limited"))
	err := idx.Refresh(context.Background(), true)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.Contains(t, err.Error(), "rate limited")

	stats := idx.Stats()
	assert.False(t, stats.Initialized)
	assert.Equal(t, 3, stats.Documents)

	results, err := idx.Search(context.Background(), "settings", 10)
	require.NoError(t, err, "search falls back to the previous document set")
	assert.NotEmpty(t, results)
}

func TestSearchReturnsInitErrorWhenEmpty(t *testing.T) {
	cause := errors.New("network down")
	idx, _ := newTestIndex(&fakeSource{err: cause})

	_, err := idx.Search(context.Background(), "workflow", 10)

	var initErr *InitError
	require.ErrorAs(t, err, &initErr)
	assert.ErrorIs(t, err, cause)
}

func TestSearchLazilyInitializes(t *testing.T) {
	src := &fakeSource{docs: sampleDocs()}
	idx, _ := newTestIndex(src)

	results, err := idx.Search(context.Background(), "workflow", 10)
	require.NoError(t, err)
	assert.Equal(t, 1, src.count())
	require.NotEmpty(t, results)
	assert.Equal(t, "Scenarios/UpdateAlGoSystemFiles.md", results[0].Path)
}

func TestSearchOrdersAndFilters(t *testing.T) {
	idx, _ := newTestIndex(&fakeSource{docs: sampleDocs()})

	results, err := idx.Search(context.Background(), "settings", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Settings reference", results[0].Title)
	assert.Greater(t, results[0].Score, 0.0)
	assert.NotEmpty(t, results[0].Content)

	results, err = idx.Search(context.Background(), "nonexistentterm", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchSortsByScoreDescending(t *testing.T) {
	idx, _ := newTestIndex(&fakeSource{docs: sampleDocs()})

	results, err := idx.Search(context.Background(), "al-go", 10)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(results), 2)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestSearchLimit(t *testing.T) {
	var docs []repository.DocumentFile
	for i := 0; i < 15; i++ {
		docs = append(docs, repository.DocumentFile{Path: "doc.md", Name: "doc.md", Content: "workflow"})
	}
	idx, _ := newTestIndex(&fakeSource{docs: docs})

	results, err := idx.Search(context.Background(), "workflow", 3)
	require.NoError(t, err)
	assert.Len(t, results, 3)

	results, err = idx.Search(context.Background(), "workflow", 0)
	require.NoError(t, err)
	assert.Len(t, results, DefaultSearchLimit)
}

func TestSearchEmptyQuery(t *testing.T) {
	idx, _ := newTestIndex(&fakeSource{docs: sampleDocs()})

	results, err := idx.Search(context.Background(), "   ", 10)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestConcurrentInitializeLoadsOnce(t *testing.T) {
	src := &fakeSource{docs: sampleDocs(), gate: make(chan struct{})}
	idx, _ := newTestIndex(src)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- idx.Initialize(context.Background())
		}()
	}

	// Let the first load start before releasing it
	require.Eventually(t, func() bool { return src.count() >= 1 }, time.Second, time.Millisecond)
	close(src.gate)
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, src.count())
	assert.Equal(t, 3, idx.Stats().Documents)
}

func TestCancelledCallerDoesNotFailSharedLoad(t *testing.T) {
	src := &fakeSource{docs: sampleDocs(), gate: make(chan struct{})}
	idx, _ := newTestIndex(src)

	searchCtx, cancelSearch := context.WithCancel(context.Background())
	searchErr := make(chan error, 1)
	go func() {
		_, err := idx.Search(searchCtx, "workflow", 10)
		searchErr <- err
	}()
	require.Eventually(t, func() bool { return src.count() == 1 }, time.Second, time.Millisecond)

	refreshErr := make(chan error, 1)
	go func() {
		refreshErr <- idx.Refresh(context.Background(), true)
	}()
	require.Never(t, func() bool { return len(refreshErr) > 0 }, 50*time.Millisecond, time.Millisecond)

	cancelSearch()
	select {
	case err := <-searchErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancelled search did not return")
	}
	require.Never(t, func() bool { return len(refreshErr) > 0 }, 50*time.Millisecond, time.Millisecond)

	close(src.gate)
	select {
	case err := <-refreshErr:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("refresh did not complete")
	}
	assert.Equal(t, 1, src.count())
	assert.Equal(t, 3, idx.Stats().Documents)
}

func TestLoadTimeoutBoundsSharedLoad(t *testing.T) {
	src := &fakeSource{docs: sampleDocs(), gate: make(chan struct{})}
	idx, _ := newTestIndex(src)
	idx.loadTimeout = 20 * time.Millisecond

	err := idx.Initialize(context.Background())
	require.Error(t, err)

	var initErr *InitError
	require.True(t, errors.As(err, &initErr))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, idx.Stats().Initialized)
}
