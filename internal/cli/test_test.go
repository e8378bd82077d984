package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `name: logs_list
description: "Logs list query prepared for a list panel"
operation: prepare
panel: list
range: {start: 1700000000000, end: 1700003600000}
source: |
  query: A: {
  	dataSource: "logs"
  	filter:     "service.name = 'api'"
  }
assertions:
  - type: names
    names: [A]
  - type: request_type
    request_type: raw
`

const failingScenario = `name: wrong_kind
description: "Expects a formula where there is none"
operation: envelope
source: |
  query: A: {
  	dataSource:   "logs"
  	aggregations: ["count()"]
  }
assertions:
  - type: kinds
    kinds: [builder_formula]
`

func TestRunHarnessScenarios(t *testing.T) {
	scenariosDir := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := execute(NewTestCommand(jsonOpts()), "", scenariosDir)
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, result.Total, result.Passed)
	assert.Positive(t, result.Total)
	for _, s := range result.Scenarios {
		assert.Equal(t, "matched", s.Golden, s.Name)
	}
}

func TestUpdateThenMatchGolden(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeFile(t, scenarios, "logs_list.yaml", passingScenario)

	out, err := execute(NewTestCommand(textOpts()), "", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ logs_list (golden updated)")

	goldenPath := filepath.Join(root, "golden", "logs_list.golden")
	require.FileExists(t, goldenPath)

	out, err = execute(NewTestCommand(textOpts()), "", scenarios)
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
	assert.Contains(t, out, "✓ All scenarios passed")

	require.NoError(t, os.WriteFile(goldenPath, []byte("{}\n"), 0o644))
	out, err = execute(NewTestCommand(textOpts()), "", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "does not match golden file")
}

func TestFailingScenario(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeFile(t, scenarios, "logs_list.yaml", passingScenario)
	writeFile(t, scenarios, "wrong_kind.yaml", failingScenario)

	out, err := execute(NewTestCommand(jsonOpts()), "", scenarios)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)

	// results keep file order
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "logs_list", result.Scenarios[0].Name)
	assert.Equal(t, "missing", result.Scenarios[0].Golden)
	assert.Equal(t, "wrong_kind", result.Scenarios[1].Name)
	assert.NotEmpty(t, result.Scenarios[1].Errors)
}

func TestFilterScenarios(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeFile(t, scenarios, "logs_list.yaml", passingScenario)
	writeFile(t, scenarios, "wrong_kind.yaml", failingScenario)

	out, err := execute(NewTestCommand(textOpts()), "", scenarios, "--filter", "logs_*")
	require.NoError(t, err)
	assert.Contains(t, out, "Test Summary: 1 passed, 0 failed, 1 total")
}

func TestScenarioLoadError(t *testing.T) {
	root := t.TempDir()
	scenarios := filepath.Join(root, "scenarios")
	writeFile(t, scenarios, "broken.yaml", "name: broken\noperation: envelope\n")

	out, err := execute(NewTestCommand(textOpts()), "", scenarios)
	require.Error(t, err)
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandErrors(t *testing.T) {
	_, err := execute(NewTestCommand(textOpts()), "", filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(NewTestCommand(textOpts()), "", t.TempDir(), "--filter", "[")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestNoScenarios(t *testing.T) {
	out, err := execute(NewTestCommand(textOpts()), "", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
