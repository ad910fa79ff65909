package places

import (
	"context"
	"sync"
)

// MockSearcher implements Searcher for testing.
type MockSearcher struct {
	// SearchFunc is called when Search is invoked.
	SearchFunc func(ctx context.Context, query string) ([]Place, error)

	mu      sync.Mutex
	queries []string
}

// Search calls SearchFunc and records the query.
func (m *MockSearcher) Search(ctx context.Context, query string) ([]Place, error) {
	m.mu.Lock()
	m.queries = append(m.queries, query)
	m.mu.Unlock()
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, query)
	}
	return nil, ErrNoResults
}

// Queries returns all recorded search queries.
func (m *MockSearcher) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queries))
	copy(out, m.queries)
	return out
}

// MockRouter implements Router for testing.
type MockRouter struct {
	// RouteFunc is called when Route is invoked.
	RouteFunc func(ctx context.Context, from Coordinate, to Place) (*Route, error)

	mu    sync.Mutex
	calls int
}

// Route calls RouteFunc and counts the call.
func (m *MockRouter) Route(ctx context.Context, from Coordinate, to Place) (*Route, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.RouteFunc != nil {
		return m.RouteFunc(ctx, from, to)
	}
	return nil, ErrNoRoute
}

// CallCount returns how many times Route was called.
func (m *MockRouter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Compile-time interface checks.
var (
	_ Searcher = (*MockSearcher)(nil)
	_ Router   = (*MockRouter)(nil)
)
