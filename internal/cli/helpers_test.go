package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

const legacyComposite = `{
	"queryType": "builder",
	"panelType": "graph",
	"builderQueries": {
		"F1": {"queryName": "F1", "expression": "A * 100", "legend": "pct"},
		"A": {"queryName": "A", "dataSource": "logs", "aggregateOperator": "count", "expression": "A"}
	},
	"promQueries": {"P1": {"query": "up"}}
}`

const listQuery = `{
	"queryType": "builder",
	"builder": {
		"queryData": [{"queryName": "A", "dataSource": "logs", "expression": "A", "legend": "errors"}],
		"queryFormulas": [],
		"queryTraceOperator": []
	},
	"promql": [],
	"clickhouse_sql": []
}`

const explorerDefinition = `
panel: "table"
keys: [{key: "http.status_code", dataType: "int64", type: "tag"}]
query: {
	A: {
		dataSource:   "logs"
		filter:       "service.name = 'api' AND http.status_code >= 500"
		aggregations: ["count() as total"]
		groupBy: ["service.name"]
		legend: "{{service.name}}"
	}
	F1: {expression: "A * 2", legend: "double"}
}
`

// writeFile writes content under dir and returns its path.
func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// execute runs cmd with args and returns its stdout.
func execute(cmd *cobra.Command, stdin string, args ...string) (string, error) {
	buf := &bytes.Buffer{}
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

// decodeResponse parses a JSON CLIResponse and decodes its data into out.
func decodeResponse(t *testing.T, output string, out any) CLIResponse {
	t.Helper()
	var raw struct {
		Status string          `json:"status"`
		Data   json.RawMessage `json:"data"`
		Error  *CLIError       `json:"error"`
	}
	require.NoError(t, json.Unmarshal([]byte(output), &raw), "output: %s", output)
	if out != nil && len(raw.Data) > 0 {
		require.NoError(t, json.Unmarshal(raw.Data, out))
	}
	return CLIResponse{Status: raw.Status, Error: raw.Error}
}

func textOpts() *RootOptions { return &RootOptions{Format: "text"} }

func jsonOpts() *RootOptions { return &RootOptions{Format: "json"} }
