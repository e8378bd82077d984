package cli

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/queryir"
)

func TestCompileDefinition(t *testing.T) {
	path := writeFile(t, t.TempDir(), "explorer.cue", explorerDefinition)

	out, err := execute(NewCompileCommand(textOpts()), "", path)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ Compiled 2 envelope(s) for panel table")
	assert.Contains(t, out, "builder_query")
	assert.Contains(t, out, "A * 2")
}

func TestCompileDefinitionJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "explorer.cue", explorerDefinition)

	out, err := execute(NewCompileCommand(jsonOpts()), "", path)
	require.NoError(t, err)

	var result CompilationResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, queryir.PanelTable, result.PanelType)
	assert.Equal(t, queryir.QueryTypeBuilder, result.Query.QueryType)
	require.Len(t, result.Query.Builder.QueryData, 1)
	assert.Equal(t, "A", result.Query.Builder.QueryData[0].QueryName)
	require.Len(t, result.CompositeQuery.Queries, 2)
}

func TestCompileDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "panel.cue", `panel: "graph"`)
	writeFile(t, dir, "queries.cue", `query: A: {dataSource: "logs", aggregations: ["count()"]}`)

	out, err := execute(NewCompileCommand(jsonOpts()), "", dir)
	require.NoError(t, err)

	var result CompilationResult
	decodeResponse(t, out, &result)
	assert.Equal(t, queryir.PanelTimeSeries, result.PanelType)
	require.Len(t, result.CompositeQuery.Queries, 1)
}

func TestCompileOutputToFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "explorer.cue", explorerDefinition)
	outputFile := filepath.Join(dir, "compiled.json")

	out, err := execute(NewCompileCommand(textOpts()), "", path, "-o", outputFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Output written to:")

	data, err := os.ReadFile(outputFile)
	require.NoError(t, err)

	var result CompilationResult
	require.NoError(t, json.Unmarshal(data, &result))
	assert.Equal(t, queryir.PanelTable, result.PanelType)
	assert.Len(t, result.CompositeQuery.Queries, 2)
}

func TestCompileErrors(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty")
	require.NoError(t, os.Mkdir(empty, 0o755))
	badSchema := writeFile(t, dir, "bad.cue", `query: A: {dataSource: "events"}`)
	notCUE := writeFile(t, dir, "query.json", listQuery)

	tests := []struct {
		name string
		path string
		code string
	}{
		{"missing path", filepath.Join(dir, "nope.cue"), ErrCodeNotFound},
		{"no cue files", empty, ErrCodeNoFiles},
		{"not a cue file", notCUE, ErrCodeLoadFailed},
		{"schema violation", badSchema, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewCompileCommand(jsonOpts()), "", tt.path)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			assert.Equal(t, "error", resp.Status)
			require.NotNil(t, resp.Error)
			if tt.code != "" {
				assert.Equal(t, tt.code, resp.Error.Code)
			}
		})
	}
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"panel", ErrCodePanel},
		{"query.A.filter", ErrCodeFilter},
		{"query.A.aggregations", ErrCodeAggregation},
		{"promql.P1", ErrCodeRawQuery},
		{"clickhouse.C1", ErrCodeRawQuery},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
