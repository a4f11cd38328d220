package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenariosDir = "testdata/scenarios"

func TestTestCommandRunsScenarios(t *testing.T) {
	out, _, err := executeCommand(t, "test", scenariosDir)
	require.NoError(t, err)

	assert.Contains(t, out, "\u2713 forward")
	assert.Contains(t, out, "\u2713 greeting")
	assert.Contains(t, out, "Test Summary: 2 passed, 0 failed, 2 total")
	assert.Contains(t, out, "\u2713 All scenarios passed")
}

func TestTestCommandFilter(t *testing.T) {
	out, _, err := executeCommand(t, "test", scenariosDir, "--filter", "forw*", "--format", "json")
	require.NoError(t, err)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, result.Total)
	require.Len(t, result.Scenarios, 1)
	assert.Equal(t, "forward", result.Scenarios[0].Name)
	assert.True(t, result.Scenarios[0].Golden, "testdata/golden/forward.golden is compared")
}

func TestTestCommandInvalidFilter(t *testing.T) {
	_, _, err := executeCommand(t, "test", scenariosDir, "--filter", "[")
	requireExitCode(t, err, ExitCommandError)
}

// goldenWorkspace lays out documents/, scenarios/ and golden/ in a temp dir
// and returns the scenarios directory and the golden file path.
func goldenWorkspace(t *testing.T, golden string) (string, string) {
	t.Helper()

	dir := t.TempDir()
	writeFile(t, dir, "documents/hello.yaml", "document:\n  - text: Hello\n")
	writeFile(t, dir, "scenarios/hello.yaml", `name: hello
source: ../documents/hello.yaml
assertions:
  - type: passes
    count: 1
`)
	goldenPath := writeFile(t, dir, "golden/hello.golden", golden)
	return filepath.Join(dir, "scenarios"), goldenPath
}

func TestTestCommandGoldenMismatch(t *testing.T) {
	scenarios, goldenPath := goldenWorkspace(t, "Goodbye")

	out, _, err := executeCommand(t, "test", scenarios)
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, out, "\u2717 hello")
	assert.Contains(t, out, "output does not match golden file")
	assert.Contains(t, out, "Test Summary: 0 passed, 1 failed, 1 total")

	out, _, err = executeCommand(t, "test", scenarios, "--update")
	require.NoError(t, err)
	assert.Contains(t, out, "hello (golden updated)")

	data, err := os.ReadFile(goldenPath)
	require.NoError(t, err)
	assert.Equal(t, "Hello", string(data))

	_, _, err = executeCommand(t, "test", scenarios)
	require.NoError(t, err)
}

func TestTestCommandFailingAssertion(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "wrong.yaml", `name: wrong
document:
  - text: Hello
assertions:
  - type: output_equals
    expect: Goodbye
`)

	out, _, err := executeCommand(t, "test", path, "--format", "json")
	requireExitCode(t, err, ExitFailure)

	var result TestResult
	resp := decodeResponse(t, out, &result)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E_TEST_FAILED", resp.Error.Code)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 1)
	assert.False(t, result.Scenarios[0].Pass)
	assert.NotEmpty(t, result.Scenarios[0].Errors)
}

func TestTestCommandUnloadableScenario(t *testing.T) {
	path := writeFile(t, t.TempDir(), "broken.yaml", "name: [unterminated\n")

	out, _, err := executeCommand(t, "test", path)
	requireExitCode(t, err, ExitFailure)
	assert.Contains(t, out, "failed to load scenario")
}

func TestTestCommandMissingPath(t *testing.T) {
	_, _, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "nowhere"))
	requireExitCode(t, err, ExitCommandError)
	assert.Contains(t, err.Error(), "scenarios path not found")
}

func TestTestCommandNoScenarios(t *testing.T) {
	out, _, err := executeCommand(t, "test", t.TempDir())
	require.NoError(t, err)
	assert.Contains(t, out, "No scenarios found.")
}
