package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/queryir"
)

const catalogYAML = `keys:
  logs:
    - {key: service.name, dataType: string, type: resource}
    - {key: status, dataType: int64, type: tag}
    - {key: severity_text, dataType: string, isColumn: true}
  traces:
    - {key: duration_nano, dataType: float64, isColumn: true}
values:
  logs:
    service.name: [api, web, worker]
    status: [200, 404, 500]
`

func TestFilterWithKeyFlags(t *testing.T) {
	out, err := execute(NewFilterCommand(jsonOpts()), "",
		"service.name = 'api' AND status >= 500", "--key", "status:int64")
	require.NoError(t, err)

	var result FilterResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "service.name = 'api' AND status >= 500", result.Expression)
	require.Len(t, result.Filter.Items, 2)
	assert.Equal(t, queryir.DataTypeInt64, result.Filter.Items[1].Key.DataType)
}

func TestFilterUsesCatalogKeys(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", catalogYAML)

	out, err := execute(NewFilterCommand(textOpts()), "", "status > 400", "--catalog", catalog)
	require.NoError(t, err)

	assert.Contains(t, out, "status > 400")
	assert.Contains(t, out, "number")
}

func TestFilterLaterTermReplacesEarlier(t *testing.T) {
	out, err := execute(NewFilterCommand(jsonOpts()), "", "service.name = 'api' AND service.name = 'web'")
	require.NoError(t, err)

	var result FilterResult
	decodeResponse(t, out, &result)
	assert.Equal(t, "service.name = 'web'", result.Expression)
}

func TestFilterErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		exitCode int
		code     string
	}{
		{"or rejected", []string{"a = 1 OR b = 2"}, ExitFailure, ErrCodeFilter},
		{"operator gated by type", []string{"body LIKE 'x'", "--key", "body:int64"}, ExitFailure, ErrCodeFilter},
		{"malformed key flag", []string{"a = 1", "--key", "status"}, ExitCommandError, ErrCodeInvalidArg},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(NewFilterCommand(jsonOpts()), "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))

			resp := decodeResponse(t, out, nil)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
		})
	}
}
