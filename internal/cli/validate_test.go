package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_Valid(t *testing.T) {
	out, err := executeCommand(t, "validate", machinesDir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ 3 machine(s) valid")
	assert.Contains(t, out, "ends_ab (moore, 3 states, alphabet [a b])")
	assert.Contains(t, out, "turnstile (mealy, 2 states")
}

func TestValidate_JSON(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "validate", turnstileFile)
	require.NoError(t, err)

	result, resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, result.Valid)
	assert.Equal(t, []MachineSummary{{
		Name:     "turnstile",
		Kind:     "mealy",
		Alphabet: []string{"coin", "push"},
		States:   2,

		MinimalStates: 2,
	}}, result.Machines)
}

func TestValidate_CollectsEveryError(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "validate", "testdata/broken")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	result, resp := decodeResponse[ValidationResult](t, out)
	assert.Equal(t, "error", resp.Status)
	assert.False(t, result.Valid)
	require.Len(t, result.Machines, 1)
	assert.Equal(t, "good", result.Machines[0].Name)
	require.Len(t, result.Errors, 2)
	assert.Equal(t, "E103", result.Errors[0].Code)
	assert.Equal(t, "E106", result.Errors[1].Code)
	assert.Equal(t, "E103", resp.Error.Code)
}

func TestValidate_BrokenText(t *testing.T) {
	out, err := executeCommand(t, "validate", "testdata/broken")
	require.Error(t, err)

	assert.Contains(t, out, "✗ Validation failed")
	assert.Contains(t, out, "E106")
	assert.Contains(t, out, "nowhere")
}

func TestValidate_MissingPath(t *testing.T) {
	out, err := executeCommand(t, "validate", "testdata/nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E005]")
}

func TestValidate_ReportsNonMinimal(t *testing.T) {
	out, err := executeCommand(t, "validate", "testdata/redundant")
	require.NoError(t, err)
	assert.Contains(t, out, "seen_a (moore, 3 states")
	assert.Contains(t, out, "not minimal: 2 states after minimisation")

	out, err = executeCommand(t, "validate", machinesDir)
	require.NoError(t, err)
	assert.NotContains(t, out, "not minimal")
}

func TestLearn_NonMinimalTarget(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "learn", "testdata/redundant")
	require.NoError(t, err)

	result, _ := decodeResponse[LearnResult](t, out)
	assert.Equal(t, 2, result.Stats.States)
}
