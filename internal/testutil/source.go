package testutil

import (
	"context"
	"sync"

	"github.com/roach88/querybuilder/internal/ir"
	"github.com/roach88/querybuilder/internal/queryir"
	"github.com/roach88/querybuilder/internal/suggest"
)

// FakeSource is a scripted suggest.Source.
//
// Responses are keyed by search text. A gate registered for a search text
// blocks the fetch until Release is called, which lets tests make an early
// request finish after a later one. Like a real network client it ignores
// context cancellation once a fetch has started.
type FakeSource struct {
	mu     sync.Mutex
	keys   map[string][]queryir.AttributeKey
	values map[string][]ir.Value
	errs   map[string]error
	gates  map[string]chan struct{}
	calls  []suggest.Request
	done   chan string
}

// NewFakeSource creates an empty source. Unscripted searches return no
// suggestions.
func NewFakeSource() *FakeSource {
	return &FakeSource{
		keys:   make(map[string][]queryir.AttributeKey),
		values: make(map[string][]ir.Value),
		errs:   make(map[string]error),
		gates:  make(map[string]chan struct{}),
		done:   make(chan string, 64),
	}
}

// SetKeys scripts the key response for search.
func (s *FakeSource) SetKeys(search string, keys ...queryir.AttributeKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[search] = keys
}

// SetValues scripts the value response for search.
func (s *FakeSource) SetValues(search string, values ...ir.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[search] = values
}

// SetError makes fetches for search fail with err.
func (s *FakeSource) SetError(search string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[search] = err
}

// Gate makes fetches for search block until Release(search).
func (s *FakeSource) Gate(search string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gates[search] = make(chan struct{})
}

// Release unblocks fetches for search.
func (s *FakeSource) Release(search string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if g, ok := s.gates[search]; ok {
		close(g)
		delete(s.gates, search)
	}
}

// Calls returns the requests received so far.
func (s *FakeSource) Calls() []suggest.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]suggest.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// Done receives the search text of every fetch as it returns.
func (s *FakeSource) Done() <-chan string {
	return s.done
}

func (s *FakeSource) begin(req suggest.Request) {
	s.mu.Lock()
	s.calls = append(s.calls, req)
	gate := s.gates[req.SearchText]
	s.mu.Unlock()
	if gate != nil {
		<-gate
	}
}

// Keys implements suggest.Source.
func (s *FakeSource) Keys(_ context.Context, req suggest.Request) ([]queryir.AttributeKey, error) {
	s.begin(req)
	defer func() { s.done <- req.SearchText }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[req.SearchText]; err != nil {
		return nil, err
	}
	return s.keys[req.SearchText], nil
}

// Values implements suggest.Source.
func (s *FakeSource) Values(_ context.Context, req suggest.Request) ([]ir.Value, error) {
	s.begin(req)
	defer func() { s.done <- req.SearchText }()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[req.SearchText]; err != nil {
		return nil, err
	}
	return s.values[req.SearchText], nil
}
