package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/querybuilder/internal/store"
)

func saveView(t *testing.T, db, composite, name, page string) store.View {
	t.Helper()
	out, err := execute(NewViewsCommand(jsonOpts()), composite, "save", "-", "--db", db, "--name", name, "--page", page)
	require.NoError(t, err)

	var result struct {
		View     store.View `json:"view"`
		Inserted bool       `json:"inserted"`
	}
	resp := decodeResponse(t, out, &result)
	require.Equal(t, "ok", resp.Status)
	return result.View
}

func TestViewsSaveShowDelete(t *testing.T) {
	db := filepath.Join(t.TempDir(), "views.db")

	view := saveView(t, db, validComposite, "errors", "logs-explorer")
	require.NotEmpty(t, view.ID)
	assert.Equal(t, "errors", view.Name)
	assert.Len(t, view.Query.Queries, 2)

	out, err := execute(NewViewsCommand(textOpts()), "", "show", view.ID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "errors")
	assert.Contains(t, out, "builder_formula")

	out, err = execute(NewViewsCommand(textOpts()), "", "delete", view.ID, "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ Deleted view "+view.ID)

	out, err = execute(NewViewsCommand(jsonOpts()), "", "show", view.ID, "--db", db)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	resp := decodeResponse(t, out, nil)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestViewsSaveIsIdempotentPerPage(t *testing.T) {
	db := filepath.Join(t.TempDir(), "views.db")

	first := saveView(t, db, validComposite, "errors", "logs-explorer")

	out, err := execute(NewViewsCommand(textOpts()), validComposite, "save", "-", "--db", db, "--name", "again", "--page", "logs-explorer")
	require.NoError(t, err)
	assert.Contains(t, out, "already saved as view "+first.ID)

	other := saveView(t, db, validComposite, "errors", "traces-explorer")
	assert.NotEqual(t, first.ID, other.ID)
}

func TestViewsList(t *testing.T) {
	db := filepath.Join(t.TempDir(), "views.db")
	saveView(t, db, validComposite, "errors", "logs-explorer")
	saveView(t, db, listComposite, "raw logs", "logs-explorer")
	saveView(t, db, validComposite, "spans", "traces-explorer")

	out, err := execute(NewViewsCommand(jsonOpts()), "", "list", "--db", db, "--page", "logs-explorer")
	require.NoError(t, err)

	var page store.Page
	decodeResponse(t, out, &page)
	assert.Len(t, page.Views, 2)
	for _, v := range page.Views {
		assert.Equal(t, "logs-explorer", v.SourcePage)
	}

	out, err = execute(NewViewsCommand(jsonOpts()), "", "list", "--db", db, "--limit", "1")
	require.NoError(t, err)
	page = store.Page{}
	decodeResponse(t, out, &page)
	require.Len(t, page.Views, 1)
	require.NotEmpty(t, page.NextCursor)

	out, err = execute(NewViewsCommand(textOpts()), "", "list", "--db", db, "--limit", "1", "--cursor", page.NextCursor)
	require.NoError(t, err)
	assert.Contains(t, out, "Next page: --cursor")
}

func TestViewsErrors(t *testing.T) {
	db := filepath.Join(t.TempDir(), "views.db")

	tests := []struct {
		name     string
		stdin    string
		args     []string
		exitCode int
	}{
		{"empty composite", `{"queries": []}`, []string{"save", "-", "--db", db, "--name", "x", "--page", "p"}, ExitCommandError},
		{"bad cursor", "", []string{"list", "--db", db, "--cursor", "!!"}, ExitCommandError},
		{"negative limit", "", []string{"list", "--db", db, "--limit", "-1"}, ExitCommandError},
		{"delete missing", "", []string{"delete", "nope", "--db", db}, ExitFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(NewViewsCommand(textOpts()), tt.stdin, tt.args...)
			require.Error(t, err)
			assert.Equal(t, tt.exitCode, GetExitCode(err))
		})
	}
}

func TestViewsSaveRequiresNameAndPage(t *testing.T) {
	db := filepath.Join(t.TempDir(), "views.db")
	_, err := execute(NewViewsCommand(textOpts()), validComposite, "save", "-", "--db", db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "required flag")
}
