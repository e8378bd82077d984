package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/envelope"
	"github.com/roach88/querybuilder/internal/queryir"
)

func TestConvertText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "composite.json", legacyComposite)

	out, err := execute(NewConvertCommand(textOpts()), "", path)
	require.NoError(t, err)

	assert.Contains(t, out, "builder_query")
	assert.Contains(t, out, "builder_formula")
	assert.Contains(t, out, "A * 100")
	assert.Contains(t, out, "✓ No problems found")
}

func TestConvertJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "composite.json", legacyComposite)

	out, err := execute(NewConvertCommand(jsonOpts()), "", path)
	require.NoError(t, err)

	var result ConvertResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, envelope.RequestTypeTimeSeries, result.RequestType)

	names := make([]string, 0, len(result.CompositeQuery.Queries))
	for _, env := range result.CompositeQuery.Queries {
		names = append(names, env.Name())
	}
	assert.Equal(t, []string{"A", "F1", "P1"}, names)
	assert.Empty(t, result.Problems)
}

func TestConvertFromStdinWithPanel(t *testing.T) {
	out, err := execute(NewConvertCommand(jsonOpts()), legacyComposite, "-", "--panel", "table")
	require.NoError(t, err)

	var result ConvertResult
	decodeResponse(t, out, &result)
	assert.Equal(t, envelope.RequestTypeScalar, result.RequestType)
}

const v5Composite = `{
	"queries": [
		{"type": "builder_query", "spec": {"name": "A", "signal": "logs", "filter": {"expression": "service.name = 'api'"}, "aggregations": [{"expression": "count()"}]}},
		{"type": "builder_formula", "spec": {"name": "F1", "expression": "A * 100", "legend": "pct"}},
		{"type": "promql", "spec": {"name": "P1", "query": "up"}}
	]
}`

func TestConvertToLegacyJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "envelopes.json", v5Composite)

	out, err := execute(NewConvertCommand(jsonOpts()), "", path, "--to", "legacy")
	require.NoError(t, err)

	var result LegacyResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, queryir.QueryTypeBuilder, result.Query.QueryType)

	require.Len(t, result.Query.Builder.QueryData, 1)
	a := result.Query.Builder.QueryData[0]
	assert.Equal(t, "A", a.QueryName)
	assert.Equal(t, queryir.DataSourceLogs, a.DataSource)
	require.NotNil(t, a.Filter)
	assert.Equal(t, "service.name = 'api'", a.Filter.Expression)

	require.Len(t, result.Query.Builder.QueryFormulas, 1)
	assert.Equal(t, "pct", result.Query.Builder.QueryFormulas[0].Legend)
	require.Len(t, result.Query.PromQL, 1)
	assert.Equal(t, "up", result.Query.PromQL[0].Query)
	assert.Empty(t, result.Problems)
}

func TestConvertToLegacyText(t *testing.T) {
	out, err := execute(NewConvertCommand(textOpts()), v5Composite, "-", "--to", "legacy")
	require.NoError(t, err)

	assert.Contains(t, out, "queryData")
	assert.Contains(t, out, "A * 100")
	assert.Contains(t, out, "queryFormulas")
	assert.Contains(t, out, "✓ No problems found")
}

// Converting v3 to v5 and back keeps names and expressions.
func TestConvertRoundTrip(t *testing.T) {
	out, err := execute(NewConvertCommand(jsonOpts()), legacyComposite, "-")
	require.NoError(t, err)
	var forward ConvertResult
	decodeResponse(t, out, &forward)

	envelopes, err := json.Marshal(forward.CompositeQuery)
	require.NoError(t, err)

	out, err = execute(NewConvertCommand(jsonOpts()), string(envelopes), "-", "--to", "legacy")
	require.NoError(t, err)
	var back LegacyResult
	decodeResponse(t, out, &back)

	require.Len(t, back.Query.Builder.QueryData, 1)
	assert.Equal(t, "A", back.Query.Builder.QueryData[0].QueryName)
	require.Len(t, back.Query.Builder.QueryFormulas, 1)
	assert.Equal(t, "A * 100", back.Query.Builder.QueryFormulas[0].Expression)
	require.Len(t, back.Query.PromQL, 1)
	assert.Equal(t, "P1", back.Query.PromQL[0].Name)
}

func TestConvertErrors(t *testing.T) {
	dir := t.TempDir()
	valid := writeFile(t, dir, "composite.json", legacyComposite)
	broken := writeFile(t, dir, "broken.json", `{"queryType":`)

	tests := []struct {
		name string
		args []string
		code string
	}{
		{"missing file", []string{"nope.json"}, ErrCodeNotFound},
		{"invalid json", []string{broken}, ErrCodeInvalidJSON},
		{"unknown panel", []string{valid, "--panel", "sparkline"}, ErrCodeInvalidArg},
		{"unknown target", []string{valid, "--to", "v4"}, ErrCodeInvalidArg},
		{"legacy target with bad envelopes", []string{broken, "--to", "legacy"}, ErrCodeInvalidJSON},
		{"legacy target with unknown panel", []string{valid, "--to", "legacy", "--panel", "sparkline"}, ErrCodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewConvertCommand(jsonOpts()), "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
