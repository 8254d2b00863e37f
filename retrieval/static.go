package retrieval

import (
	"context"
	"strings"
	"sync"
)

// Static is an in-memory Retriever for tests: exact (case-insensitive) match
// on the query, with a call count so tests can assert dedup behavior.
type Static struct {
	mu      sync.Mutex
	entries map[string]string
	calls   map[string]int
	err     error
}

func NewStatic(entries map[string]string) *Static {
	normalized := make(map[string]string, len(entries))
	for k, v := range entries {
		normalized[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return &Static{entries: normalized, calls: make(map[string]int)}
}

// NewStaticWithError returns a Static whose every Search fails with err.
func NewStaticWithError(err error) *Static {
	return &Static{entries: map[string]string{}, calls: make(map[string]int), err: err}
}

func (s *Static) Search(ctx context.Context, query string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(strings.TrimSpace(query))
	s.calls[key]++
	if s.err != nil {
		return "", s.err
	}
	if result, ok := s.entries[key]; ok {
		return result, nil
	}
	return NoResult, nil
}

// Calls reports how many times a query hit the index.
func (s *Static) Calls(query string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[strings.ToLower(strings.TrimSpace(query))]
}
