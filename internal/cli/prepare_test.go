package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type preparedPayload struct {
	Request struct {
		SchemaVersion  string `json:"schemaVersion"`
		Start          int64  `json:"start"`
		End            int64  `json:"end"`
		RequestType    string `json:"requestType"`
		CompositeQuery struct {
			Queries []struct {
				Type string         `json:"type"`
				Spec map[string]any `json:"spec"`
			} `json:"queries"`
		} `json:"compositeQuery"`
	} `json:"request"`
	Legends  map[string]string `json:"legends"`
	Warnings []string          `json:"warnings"`
}

func TestPrepareJSONQuery(t *testing.T) {
	path := writeFile(t, t.TempDir(), "query.json", listQuery)

	out, err := execute(NewPrepareCommand(jsonOpts()), "", path,
		"--panel", "list", "--start", "1700000000000", "--end", "1700003600000")
	require.NoError(t, err)

	var result preparedPayload
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "v1", result.Request.SchemaVersion)
	assert.Equal(t, int64(1700000000000), result.Request.Start)
	assert.Equal(t, int64(1700003600000), result.Request.End)
	assert.Equal(t, "raw", result.Request.RequestType)
	require.Len(t, result.Request.CompositeQuery.Queries, 1)
	assert.Equal(t, map[string]string{"A": "errors"}, result.Legends)
}

func TestPrepareDefinitionUsesItsPanel(t *testing.T) {
	path := writeFile(t, t.TempDir(), "explorer.cue", explorerDefinition)

	out, err := execute(NewPrepareCommand(jsonOpts()), "", path, "--since", "1h")
	require.NoError(t, err)

	var result preparedPayload
	decodeResponse(t, out, &result)
	assert.Equal(t, "scalar", result.Request.RequestType)
	assert.Equal(t, int64(time.Hour/time.Millisecond), result.Request.End-result.Request.Start)
	assert.Equal(t, "{{service.name}}", result.Legends["A"])
	assert.Equal(t, "double", result.Legends["F1"])
}

func TestPrepareText(t *testing.T) {
	path := writeFile(t, t.TempDir(), "query.json", listQuery)

	out, err := execute(NewPrepareCommand(textOpts()), "", path, "--start", "1000", "--end", "2000")
	require.NoError(t, err)
	assert.Contains(t, out, `"schemaVersion": "v1"`)
	assert.Contains(t, out, `"requestType": "time_series"`)
}

func TestPrepareRejectsBadRange(t *testing.T) {
	path := writeFile(t, t.TempDir(), "query.json", listQuery)

	out, err := execute(NewPrepareCommand(jsonOpts()), "", path, "--start", "2000", "--end", "1000")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalidArg, resp.Error.Code)
}

func TestPrepareTimeRange(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)

	tests := []struct {
		name      string
		opts      PrepareOptions
		wantStart int64
		wantEnd   int64
		wantErr   bool
	}{
		{"defaults", PrepareOptions{Since: 15 * time.Minute}, 1_700_000_000_000 - 900_000, 1_700_000_000_000, false},
		{"explicit", PrepareOptions{Start: 10, End: 20, Since: time.Hour}, 10, 20, false},
		{"end only", PrepareOptions{End: 5_000, Since: time.Second}, 4_000, 5_000, false},
		{"empty window", PrepareOptions{Start: 20, End: 20}, 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, end, err := tt.opts.timeRange(now)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStart, start.UnixMilli())
			assert.Equal(t, tt.wantEnd, end.UnixMilli())
		})
	}
}
