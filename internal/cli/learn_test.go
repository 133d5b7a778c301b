package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	machinesDir   = "testdata/machines"
	turnstileFile = "testdata/single/turnstile.cue"
)

func TestLearn_SingleMachineText(t *testing.T) {
	out, err := executeCommand(t, "learn", turnstileFile)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ learned turnstile (mealy): 2 states in 1 round")
	assert.Contains(t, out, "closing=first cex=classic equivalence=exact")
	assert.Contains(t, out, "counterexamples: 0")
}

func TestLearn_JSON(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "learn", machinesDir,
		"--machine", "ends_ab", "--cex", "rivest-schapire", "--cache")
	require.NoError(t, err)

	result, resp := decodeResponse[LearnResult](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, result.RunID, resp.RunID)
	assert.Equal(t, "ends_ab", result.Machine)
	assert.Equal(t, "moore", result.Kind)
	assert.Equal(t, "rivest-schapire", result.Handler)
	assert.Equal(t, 3, result.Stats.States)
	assert.Equal(t, 3, len(result.Hypothesis.States))
	assert.NotEmpty(t, result.Fingerprint)
	assert.Nil(t, result.Table)
}

func TestLearn_EveryHandler(t *testing.T) {
	for _, handler := range []string{"classic", "maler-pnueli", "shahbaz", "rivest-schapire"} {
		out, err := executeCommand(t, "--format", "json", "learn", machinesDir, "-m", "ends_ab", "--cex", handler)
		require.NoError(t, err, handler)
		result, _ := decodeResponse[LearnResult](t, out)
		assert.Equal(t, 3, result.Stats.States, handler)
		assert.Equal(t, handler, result.Handler)
	}
}

func TestLearn_ShowTable(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "learn", turnstileFile, "--show-table")
	require.NoError(t, err)

	result, _ := decodeResponse[LearnResult](t, out)
	require.NotNil(t, result.Table)
	assert.Equal(t, []string{"coin", "push"}, result.Table.Suffixes)
	require.Len(t, result.Table.Rows, 5)
	assert.Equal(t, "ε", result.Table.Rows[0].Prefix)
	assert.True(t, result.Table.Rows[0].ShortPrefix)
	assert.Equal(t, []string{"unlock", "blocked"}, result.Table.Rows[0].Cells)
	assert.False(t, result.Table.Rows[4].ShortPrefix)
}

func TestLearn_ShowTableText(t *testing.T) {
	out, err := executeCommand(t, "learn", turnstileFile, "--show-table")
	require.NoError(t, err)

	assert.Contains(t, out, "prefix")
	assert.Contains(t, out, "coin push")
	assert.Contains(t, out, "refund")
	assert.NotContains(t, out, "\x1b[")
}

func TestLearn_EmitToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "turnstile.dot")

	out, err := executeCommand(t, "learn", turnstileFile, "--emit", "dot", "-o", path)
	require.NoError(t, err)
	assert.NotContains(t, out, "digraph")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph")
	assert.Contains(t, string(data), "coin / unlock")
}

func TestLearn_EmitCUERoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "learned.cue")

	_, err := executeCommand(t, "learn", machinesDir, "-m", "ends_ab", "--emit", "cue", "-o", path)
	require.NoError(t, err)

	out, err := executeCommand(t, "--format", "json", "validate", path)
	require.NoError(t, err)
	result, _ := decodeResponse[ValidationResult](t, out)
	assert.True(t, result.Valid)
	require.Len(t, result.Machines, 1)
	assert.Equal(t, "ends_ab", result.Machines[0].Name)
	assert.Equal(t, 3, result.Machines[0].States)
}

func TestLearn_RandomEquivalence(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "learn", machinesDir, "-m", "parity",
		"--equivalence", "random", "--eq-seed", "7", "--eq-count", "200", "--eq-max-length", "8",
		"--closing", "random", "--seed", "3", "--workers", "4")
	require.NoError(t, err)

	result, _ := decodeResponse[LearnResult](t, out)
	assert.Equal(t, "random", result.Equivalence)
	assert.Equal(t, 2, result.Stats.States)
}

func TestLearn_RoundLimit(t *testing.T) {
	out, err := executeCommand(t, "learn", machinesDir, "-m", "ends_ab", "--max-rounds", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ learning aborted")
	assert.Contains(t, out, "[ROUND_LIMIT]")
}

func TestLearn_RoundLimitJSON(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "learn", machinesDir, "-m", "ends_ab", "--max-rounds", "1")
	require.Error(t, err)

	_, resp := decodeResponse[map[string]any](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "ROUND_LIMIT", resp.Error.Code)
	assert.NotEmpty(t, resp.RunID)
}

func TestLearn_CommandErrors(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantCode string
	}{
		{"ambiguous_machine", []string{"learn", machinesDir}, "E108"},
		{"unknown_machine", []string{"learn", machinesDir, "-m", "vending"}, "E108"},
		{"missing_path", []string{"learn", "testdata/nope.cue"}, "E005"},
		{"bad_emit", []string{"learn", turnstileFile, "--emit", "svg"}, "E001"},
		{"scripted", []string{"learn", turnstileFile, "--equivalence", "scripted"}, "E001"},
		{"bad_closing", []string{"learn", turnstileFile, "--closing", "widest"}, "INVALID_CONFIG"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := executeCommand(t, append([]string{"--format", "json"}, tt.args...)...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))

			_, resp := decodeResponse[map[string]any](t, out)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
		})
	}
}

func TestParseSuffixes(t *testing.T) {
	got := parseSuffixes([]string{"", "a", "a  b"})
	assert.Equal(t, [][]string{{}, {"a"}, {"a", "b"}}, got)
}
