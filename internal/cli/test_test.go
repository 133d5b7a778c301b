package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenario writes a scenario targeting the shared test machines into dir.
func writeScenario(t *testing.T, dir, name, target, assertions string) {
	t.Helper()
	machines, err := filepath.Abs(filepath.Join(machinesDir, "learn.cue"))
	require.NoError(t, err)

	body := fmt.Sprintf("name: %s\nmachine: %s\ntarget: %s\nassertions:\n%s", name, machines, target, assertions)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func TestTest_PackagedScenarios(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "test", "../harness/testdata/scenarios")
	require.NoError(t, err, out)

	result, resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 5, result.Total)
	assert.Equal(t, 5, result.Passed)
	assert.Equal(t, 0, result.Failed)
}

func TestTest_UpdateThenCompare(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "turnstile", "turnstile", "  - type: states\n    count: 2\n")

	out, err := executeCommand(t, "test", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ turnstile")
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
	assert.NoFileExists(t, filepath.Join(dir, "golden", "turnstile.golden"))

	_, err = executeCommand(t, "test", dir, "--update")
	require.NoError(t, err)
	golden, err := os.ReadFile(filepath.Join(dir, "golden", "turnstile.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"scenario": "turnstile"`)

	_, err = executeCommand(t, "test", dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "turnstile.golden"), []byte("{}\n"), 0o644))
	out, err = executeCommand(t, "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "trace does not match golden file")
}

func TestTest_FailingScenario(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ends_ab_small", "ends_ab", "  - type: states\n    count: 2\n")
	writeScenario(t, dir, "parity", "parity", "  - type: equivalent\n")

	out, err := executeCommand(t, "--format", "json", "test", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	result, resp := decodeResponse[TestResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, ErrCodeTestFailed, resp.Error.Code)
	assert.Equal(t, 1, result.Passed)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Scenarios, 2)
	assert.Equal(t, "ends_ab_small", result.Scenarios[0].Name)
	assert.Contains(t, result.Scenarios[0].Errors[0], "expected 2 states, got 3")
}

func TestTest_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "ends_ab_small", "ends_ab", "  - type: states\n    count: 2\n")
	writeScenario(t, dir, "parity", "parity", "  - type: equivalent\n")

	out, err := executeCommand(t, "test", dir, "--filter", "par*")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ parity")
	assert.NotContains(t, out, "ends_ab_small")
}

func TestTest_RecordsRuns(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "runs.db")
	writeScenario(t, dir, "turnstile", "turnstile", "  - type: equivalent\n")

	out, err := executeCommand(t, "--format", "json", "test", dir, "--db", db)
	require.NoError(t, err)
	result, _ := decodeResponse[TestResult](t, out)
	require.Len(t, result.Scenarios, 1)
	assert.NotEmpty(t, result.Scenarios[0].RunID)

	out, err = executeCommand(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, result.Scenarios[0].RunID)
	assert.Contains(t, out, "turnstile")
}

func TestTest_MissingDirectory(t *testing.T) {
	_, err := executeCommand(t, "test", filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestGoldenFilePath(t *testing.T) {
	assert.Equal(t, filepath.Join("scenarios", "golden", "turnstile.golden"),
		goldenFilePath(filepath.Join("scenarios", "turnstile.yaml")))
}
