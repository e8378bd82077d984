package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/queryir"
)

// withFormulas builds a query holding A and B plus the given formulas,
// given as name/expression pairs.
func withFormulas(pairs ...string) queryir.Query {
	q := queryir.NewQuery(queryir.DataSourceLogs)
	b := queryir.DefaultBuilderQuery(queryir.DataSourceLogs)
	b.QueryName, b.Expression = "B", "B"
	q = q.AddBuilderQuery(b)
	for i := 0; i+1 < len(pairs); i += 2 {
		f := queryir.DefaultFormula()
		f.QueryName, f.Expression = pairs[i], pairs[i+1]
		q = q.AddFormula(f)
	}
	return q
}

func TestAnalyzeCycles_NoFormulas(t *testing.T) {
	cycles := AnalyzeCycles(withFormulas())
	assert.NotNil(t, cycles)
	assert.Empty(t, cycles)
}

func TestAnalyzeCycles_DAG(t *testing.T) {
	q := withFormulas(
		"F1", "A / B",
		"F2", "F1 * 100",
		"F3", "F2 + F1",
	)
	assert.Empty(t, AnalyzeCycles(q), "formulas layered on formulas are fine")
}

func TestAnalyzeCycles_SelfReference(t *testing.T) {
	cycles := AnalyzeCycles(withFormulas("F1", "F1 + A"))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"F1", "F1"}, cycles[0].Path)
	assert.Equal(t, "formula reference cycle: F1 → F1", cycles[0].Message)
}

func TestAnalyzeCycles_TwoFormulas(t *testing.T) {
	cycles := AnalyzeCycles(withFormulas(
		"F2", "F1 - 1",
		"F1", "F2 + A",
	))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"F1", "F2", "F1"}, cycles[0].Path)
}

func TestAnalyzeCycles_ThreeFormulas(t *testing.T) {
	cycles := AnalyzeCycles(withFormulas(
		"F1", "F2",
		"F2", "F3",
		"F3", "F1 + B",
	))
	require.Len(t, cycles, 1)
	assert.Equal(t, []string{"F1", "F2", "F3", "F1"}, cycles[0].Path)
	assert.Equal(t, "formula reference cycle: F1 → F2 → F3 → F1", cycles[0].Message)
}

func TestAnalyzeCycles_IndependentCycles(t *testing.T) {
	cycles := AnalyzeCycles(withFormulas(
		"F10", "F11",
		"F11", "F10",
		"F1", "F2",
		"F2", "F1",
		"F3", "A",
	))
	require.Len(t, cycles, 2)
	assert.Equal(t, []string{"F1", "F2", "F1"}, cycles[0].Path)
	assert.Equal(t, []string{"F10", "F11", "F10"}, cycles[1].Path)
}

func TestAnalyzeCycles_IgnoresQueriesAndFunctions(t *testing.T) {
	q := withFormulas("F1", "abs(A) + sqrt(B) + A.count")
	assert.Empty(t, AnalyzeCycles(q))
}

func TestBuildReferenceGraph(t *testing.T) {
	graph := buildReferenceGraph(withFormulas(
		"F1", "A / B",
		"F2", "F1 + F3 + A",
		"F3", "F1",
	))
	assert.Equal(t, referenceGraph{
		"F1": {},
		"F2": {"F1", "F3"},
		"F3": {"F1"},
	}, graph)
}

func TestHasSelfLoop(t *testing.T) {
	graph := referenceGraph{"F1": {"F1"}, "F2": {"F1"}}
	assert.True(t, hasSelfLoop("F1", graph))
	assert.False(t, hasSelfLoop("F2", graph))
}

func TestTarjanSCC(t *testing.T) {
	t.Run("single node", func(t *testing.T) {
		assert.Equal(t, [][]string{{"F1"}}, tarjanSCC(referenceGraph{"F1": {}}))
	})
	t.Run("two node cycle", func(t *testing.T) {
		sccs := tarjanSCC(referenceGraph{"F1": {"F2"}, "F2": {"F1"}})
		assert.Equal(t, [][]string{{"F1", "F2"}}, sccs)
	})
	t.Run("chain", func(t *testing.T) {
		sccs := tarjanSCC(referenceGraph{"F1": {"F2"}, "F2": {"F3"}, "F3": {}})
		assert.Len(t, sccs, 3)
	})
}

func TestCyclePath(t *testing.T) {
	graph := referenceGraph{"F1": {"F2"}, "F2": {"F1"}}
	assert.Equal(t, []string{"F1", "F2", "F1"}, cyclePath([]string{"F1", "F2"}, graph))
}
