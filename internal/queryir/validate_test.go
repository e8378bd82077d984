package queryir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateDefaultQueryIsValid(t *testing.T) {
	for _, ds := range []DataSource{DataSourceMetrics, DataSourceLogs, DataSourceTraces} {
		result := Validate(NewQuery(ds))
		assert.True(t, result.Valid, "warnings: %v", result.Warnings)
		assert.Empty(t, result.Warnings)
	}
}

func TestValidateDuplicateNames(t *testing.T) {
	q := NewQuery(DataSourceLogs).AddBuilderQuery(DefaultBuilderQuery(DataSourceLogs))

	result := Validate(q)
	require.False(t, result.Valid)
	assert.Contains(t, result.Warnings[0], `duplicate name "A"`)
}

func TestValidateFormulaReferences(t *testing.T) {
	f := DefaultFormula()
	f.Expression = "A / B * 100"
	q := NewQuery(DataSourceLogs).AddFormula(f)

	result := Validate(q)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `formula "F1" references unknown query "B"`)
}

func TestValidateEmptyFormula(t *testing.T) {
	q := NewQuery(DataSourceLogs).AddFormula(DefaultFormula())
	result := Validate(q)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "empty expression")
}

func TestValidateTraceOperatorReferences(t *testing.T) {
	op := DefaultTraceOperator()
	op.Expression = "A => C"
	q := NewQuery(DataSourceTraces).AddTraceOperator(op)

	result := Validate(q)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], `references unknown query "C"`)
}

func TestValidateUnknownDataSourceAndDirection(t *testing.T) {
	q := NewQuery(DataSourceLogs).WithBuilderQuery("A", func(bq BuilderQuery) BuilderQuery {
		bq.DataSource = "profiles"
		bq.OrderBy = []OrderBy{{ColumnName: "timestamp", Order: "sideways"}}
		return bq
	})

	result := Validate(q)
	require.Len(t, result.Warnings, 2)
	assert.Contains(t, result.Warnings[0], "unknown data source")
	assert.Contains(t, result.Warnings[1], "unknown direction")
}

func TestValidateRawQueries(t *testing.T) {
	q := NewQuery(DataSourceMetrics).WithQueryType(QueryTypePromQL)
	result := Validate(q)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "promql query")

	q = q.WithQueryType(QueryTypeClickHouse)
	result = Validate(q)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "clickhouse query")
}

func TestFormulaReferences(t *testing.T) {
	tests := []struct {
		expr     string
		expected []string
	}{
		{"A / B * 100", []string{"A", "B"}},
		{"A.0 + A.count - B.p99", []string{"A", "B"}},
		{"abs(A - B)", []string{"A", "B"}},
		{"sqrt (A)", []string{"A"}},
		{"A + A", []string{"A"}},
		{"1e5 * C", []string{"C"}},
		{"A => B && NOT C", []string{"A", "B", "C"}},
		{"A AND B OR C", []string{"A", "B", "C"}},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			assert.Equal(t, tt.expected, FormulaReferences(tt.expr))
		})
	}
}

func TestIsKeysetEligible(t *testing.T) {
	assert.True(t, IsKeysetEligible([]OrderBy{{ColumnName: "timestamp", Order: OrderDesc}}))
	assert.False(t, IsKeysetEligible(nil))
	assert.False(t, IsKeysetEligible([]OrderBy{{ColumnName: "duration", Order: OrderDesc}}))
	assert.False(t, IsKeysetEligible([]OrderBy{
		{ColumnName: "timestamp", Order: OrderDesc},
		{ColumnName: "id", Order: OrderDesc},
	}))
}
