// Package session owns the query being edited.
//
// A Session holds one current queryir.Query. Edits are Actions passed to
// Dispatch, which runs the pure Reduce function and publishes the new value
// to every subscriber. Nothing outside the session mutates the query, and
// subscribers receive values, not references to shared state.
package session

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/roach88/querybuilder/internal/queryir"
)

// DefaultHistory is how many previous queries Undo can restore.
const DefaultHistory = 50

// Session serializes edits to a single query. Its edit history is linear.
//
// Thread-safety: Dispatch, Current and Subscribe may be called from any
// goroutine; actions are applied one at a time in call order.
type Session struct {
	mu          sync.Mutex
	current     queryir.Query
	history     []queryir.Query
	maxHistory  int
	subscribers map[int]*subscriber
	nextID      int
	log         zerolog.Logger
}

// subscriber holds the latest undelivered query. The signal channel is
// buffered with size 1 so repeated notifications coalesce.
type subscriber struct {
	mu     sync.Mutex
	latest queryir.Query
	signal chan struct{}
	out    chan queryir.Query
	done   chan struct{}
}

// New starts a session editing initial.
func New(initial queryir.Query, log zerolog.Logger) *Session {
	return &Session{
		current:     initial.Clone(),
		maxHistory:  DefaultHistory,
		subscribers: make(map[int]*subscriber),
		log:         log.With().Str("scope", "session").Logger(),
	}
}

// Current returns a copy of the current query.
func (s *Session) Current() queryir.Query {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current.Clone()
}

// Dispatch applies a and returns the resulting query. A rejected action
// leaves the query unchanged, returns it with the error and notifies no one.
func (s *Session) Dispatch(a Action) (queryir.Query, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := a.(Undo); ok {
		if len(s.history) == 0 {
			return s.current.Clone(), nil
		}
		s.current = s.history[len(s.history)-1]
		s.history = s.history[:len(s.history)-1]
		s.publish()
		return s.current.Clone(), nil
	}

	next, err := Reduce(s.current, a)
	if err != nil {
		s.log.Debug().Err(err).Str("action", actionName(a)).Msg("action rejected")
		return s.current.Clone(), err
	}

	s.history = append(s.history, s.current)
	if len(s.history) > s.maxHistory {
		s.history = s.history[len(s.history)-s.maxHistory:]
	}
	s.current = next
	s.log.Debug().Str("action", actionName(a)).Msg("action applied")
	s.publish()
	return s.current.Clone(), nil
}

// CanUndo reports whether Undo would change the query.
func (s *Session) CanUndo() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history) > 0
}

// Subscribe returns a channel receiving the query after every applied
// action, and a function that ends the subscription and closes the channel.
// A slow reader may skip intermediate values; values are never queued and
// the last one received is always the current query.
func (s *Session) Subscribe() (<-chan queryir.Query, func()) {
	sub := &subscriber{
		signal: make(chan struct{}, 1),
		out:    make(chan queryir.Query),
		done:   make(chan struct{}),
	}

	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subscribers[id] = sub
	s.mu.Unlock()

	go sub.forward()

	var once sync.Once
	return sub.out, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subscribers, id)
			s.mu.Unlock()
			close(sub.done)
		})
	}
}

// publish must be called with s.mu held.
func (s *Session) publish() {
	for _, sub := range s.subscribers {
		sub.offer(s.current.Clone())
	}
}

func (sub *subscriber) offer(q queryir.Query) {
	sub.mu.Lock()
	sub.latest = q
	sub.mu.Unlock()

	select {
	case sub.signal <- struct{}{}:
	default:
	}
}

func (sub *subscriber) forward() {
	defer close(sub.out)
	for {
		select {
		case <-sub.done:
			return
		case <-sub.signal:
		}

		sub.mu.Lock()
		q := sub.latest
		sub.mu.Unlock()

		select {
		case sub.out <- q:
		case <-sub.done:
			return
		}
	}
}

func actionName(a Action) string {
	switch a.(type) {
	case Replace:
		return "replace"
	case SetQueryType:
		return "set_query_type"
	case AddQuery:
		return "add_query"
	case AddFormula:
		return "add_formula"
	case AddTraceOperator:
		return "add_trace_operator"
	case RemoveQuery:
		return "remove_query"
	case SetDataSource:
		return "set_data_source"
	case UpsertFilter:
		return "upsert_filter"
	case RemoveFilter:
		return "remove_filter"
	case SetFilterText:
		return "set_filter_text"
	case SetAggregations:
		return "set_aggregations"
	case SetGroupBy:
		return "set_group_by"
	case SetOrderBy:
		return "set_order_by"
	case SetLimit:
		return "set_limit"
	case Paginate:
		return "paginate"
	case ToggleDisabled:
		return "toggle_disabled"
	case Undo:
		return "undo"
	}
	return "unknown"
}
