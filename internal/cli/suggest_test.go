package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/suggest"
)

type suggestPayload struct {
	Kind       string           `json:"kind"`
	SearchText string           `json:"searchText"`
	Keys       []map[string]any `json:"keys"`
	Values     []any            `json:"values"`
	Superseded int              `json:"superseded"`
}

func TestSuggestKeys(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", catalogYAML)

	out, err := execute(NewSuggestCommand(jsonOpts()), "", "keys", "SEV", "--catalog", catalog, "--debounce=-1ms")
	require.NoError(t, err)

	var result suggestPayload
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, string(suggest.KindKeys), result.Kind)
	require.Len(t, result.Keys, 1)
	assert.Equal(t, "severity_text", result.Keys[0]["key"])
}

func TestSuggestLastSearchWins(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", catalogYAML)

	out, err := execute(NewSuggestCommand(jsonOpts()), "",
		"values", "a", "ap", "wor", "--key", "service.name", "--catalog", catalog, "--debounce=20ms")
	require.NoError(t, err)

	var result suggestPayload
	decodeResponse(t, out, &result)
	assert.Equal(t, "wor", result.SearchText)
	assert.Equal(t, []any{"worker"}, result.Values)
	assert.Equal(t, 2, result.Superseded)
}

func TestSuggestText(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", catalogYAML)

	out, err := execute(NewSuggestCommand(textOpts()), "", "keys", "--source", "traces", "--catalog", catalog, "--debounce=-1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "duration_nano")

	out, err = execute(NewSuggestCommand(textOpts()), "", "keys", "nothing", "--catalog", catalog, "--debounce=-1ms")
	require.NoError(t, err)
	assert.Contains(t, out, "No suggestions.")
}

func TestSuggestErrors(t *testing.T) {
	catalog := writeFile(t, t.TempDir(), "catalog.yaml", catalogYAML)

	tests := []struct {
		name     string
		args     []string
		exitCode int
	}{
		{"unknown kind", []string{"labels", "--catalog", catalog}, ExitCommandError},
		{"unknown source", []string{"keys", "--source", "events", "--catalog", catalog}, ExitCommandError},
		{"missing catalog file", []string{"keys", "--catalog", "missing.yaml"}, ExitCommandError},
		{"values without key", []string{"values", "a", "--catalog", catalog, "--debounce=-1ms"}, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewSuggestCommand(textOpts()), "", tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
		})
	}
}
