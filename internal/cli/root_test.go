package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "qb", cmd.Use)
	assert.Contains(t, cmd.Long, "v5 query envelopes")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{
		"convert", "prepare", "paginate", "aggregations", "filter", "suggest",
		"compile", "validate", "test", "views", "serve",
	}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestViewsSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"save", "list", "show", "delete"} {
		t.Run(name, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{"views", name})
			require.NoError(t, err)
			assert.Equal(t, name, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "", configFlag.DefValue)
}

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestViewsCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	viewsCmd, _, err := cmd.Find([]string{"views"})
	require.NoError(t, err)

	dbFlag := viewsCmd.PersistentFlags().Lookup("db")
	require.NotNil(t, dbFlag)
	// empty means the configured store path
	assert.Equal(t, "", dbFlag.DefValue)
}

func TestValidateCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	validateCmd, _, err := cmd.Find([]string{"validate"})
	require.NoError(t, err)

	rtFlag := validateCmd.Flags().Lookup("request-type")
	require.NotNil(t, rtFlag)
	assert.Equal(t, "time_series", rtFlag.DefValue)
}

func TestRootRejectsUnknownFormat(t *testing.T) {
	cmd := NewRootCommand()
	_, err := execute(cmd, "", "--format", "xml", "aggregations", "count()")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootLoadsConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := writeFile(t, dir, "qb.yaml", "pagination:\n  page_size: 7\n")
	queryPath := writeFile(t, dir, "query.json", `{"queryName": "A", "dataSource": "logs"}`)

	cmd := NewRootCommand()
	out, err := execute(cmd, "", "--config", cfgPath, "--format", "json", "paginate", queryPath, "--page", "2")
	require.NoError(t, err)

	var result PaginateResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	require.NotNil(t, result.Limit)
	assert.Equal(t, 7, *result.Limit)
	require.NotNil(t, result.Offset)
	assert.Equal(t, 7, *result.Offset)
}
