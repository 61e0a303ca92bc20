// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/trackpool/internal/models"
)

// FakeSearcher is a test double for the video search collaborator.
//
// Results are keyed by exact query string; unknown queries return no candidates.
type FakeSearcher struct {
	mu      sync.Mutex
	Results map[string][]models.VideoCandidate
	Err     error
	queries []string
}

func NewFakeSearcher(results map[string][]models.VideoCandidate) *FakeSearcher {
	if results == nil {
		results = make(map[string][]models.VideoCandidate)
	}
	return &FakeSearcher{Results: results}
}

func (f *FakeSearcher) Search(ctx context.Context, query string, limit int) ([]models.VideoCandidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	if f.Err != nil {
		return nil, f.Err
	}
	out := f.Results[query]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]models.VideoCandidate(nil), out...), nil
}

// Set replaces the candidates returned for query.
func (f *FakeSearcher) Set(query string, candidates ...models.VideoCandidate) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Results[query] = candidates
}

// Calls returns the number of Search calls made so far.
func (f *FakeSearcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queries)
}

// Queries returns a copy of every query searched, in call order.
func (f *FakeSearcher) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

// FakeProvider is a test double for a catalog provider.
type FakeProvider struct {
	mu           sync.Mutex
	ProviderName string
	Tracks       []models.CatalogTrack
	Err          error
	calls        int
	lastLimit    int
	lastDesc     models.SourceDescriptor
}

func (f *FakeProvider) Name() string { return f.ProviderName }

func (f *FakeProvider) FetchTracks(ctx context.Context, desc models.SourceDescriptor, limit int) ([]models.CatalogTrack, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.lastLimit = limit
	f.lastDesc = desc
	if f.Err != nil {
		return nil, f.Err
	}
	out := f.Tracks
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return append([]models.CatalogTrack(nil), out...), nil
}

func (f *FakeProvider) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *FakeProvider) LastLimit() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastLimit
}

func (f *FakeProvider) LastDescriptor() models.SourceDescriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastDesc
}

// FakeDurableCache is an in-memory durable cache with upsert semantics matching the SQLite store.
type FakeDurableCache struct {
	mu      sync.Mutex
	records map[string]models.Resolution
	stores  int
}

func NewFakeDurableCache() *FakeDurableCache {
	return &FakeDurableCache{records: make(map[string]models.Resolution)}
}

func (f *FakeDurableCache) Lookup(ctx context.Context, provider, sourceID string) (*models.Resolution, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[provider+"/"+sourceID]
	if !ok || !rec.Resolved() {
		return nil, false
	}
	return &rec, true
}

func (f *FakeDurableCache) Store(ctx context.Context, res models.Resolution) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stores++
	key := res.Provider + "/" + res.SourceID
	prev, ok := f.records[key]
	if ok && res.VideoID == "" {
		res.VideoID = prev.VideoID
		res.DurationMs = prev.DurationMs
	}
	res.Attempts = prev.Attempts + 1
	f.records[key] = res
}

// Record returns the stored row for (provider, sourceID), resolved or not.
func (f *FakeDurableCache) Record(provider, sourceID string) (models.Resolution, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec, ok := f.records[provider+"/"+sourceID]
	return rec, ok
}

func (f *FakeDurableCache) Stores() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stores
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
