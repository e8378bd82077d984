package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
	"github.com/roach88/querybuilder/internal/testutil"
)

// createTestStore opens a store in a temp dir with a manual clock and
// sequential ids.
func createTestStore(t *testing.T) (*Store, *testutil.ManualClock) {
	t.Helper()
	clock := testutil.NewManualClock()
	ids := testutil.NewSequentialIDs("view")
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path, WithClock(clock.Now), WithIDGenerator(ids.Next))
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s, clock
}

// logsComposite returns a one-query composite counting logs of service.
func logsComposite(service string) envelope.CompositeQuery {
	return envelope.CompositeQuery{Queries: []envelope.QueryEnvelope{{
		Type: envelope.KindBuilderQuery,
		Spec: envelope.BuilderQuerySpec{
			Name:   "A",
			Signal: envelope.SignalLogs,
			BaseSpec: envelope.BaseSpec{
				Filter: &envelope.Filter{Expression: "service.name = '" + service + "'"},
			},
			Aggregations: queryir.Aggregations{queryir.CountAggregation()},
		},
	}}}
}
