package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompile_Stdout(t *testing.T) {
	out, err := executeCommand(t, "compile", turnstileFile)
	require.NoError(t, err)

	assert.Contains(t, out, "turnstile")
	assert.Contains(t, out, `"mealy"`)
	assert.Contains(t, out, `"s0"`)
	assert.Contains(t, out, `"refund"`)
}

func TestCompile_OutputDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	out, err := executeCommand(t, "--format", "json", "compile", machinesDir, "--emit", "dot", "-o", dir)
	require.NoError(t, err)

	result, _ := decodeResponse[CompilationResult](t, out)
	assert.Equal(t, "dot", result.Emit)
	require.Len(t, result.Machines, 3)
	for _, m := range result.Machines {
		assert.Equal(t, filepath.Join(dir, m.Name+".dot"), m.File)
		assert.NotEmpty(t, m.Fingerprint)

		data, err := os.ReadFile(m.File)
		require.NoError(t, err)
		assert.Contains(t, string(data), "digraph")
	}
}

func TestCompile_Minimize(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "compile", "testdata/redundant", "--emit", "json")
	require.NoError(t, err)
	result, _ := decodeResponse[CompilationResult](t, out)
	require.Len(t, result.Machines, 1)
	assert.Equal(t, 3, result.Machines[0].States)

	out, err = executeCommand(t, "--format", "json", "compile", "testdata/redundant", "--emit", "json", "--minimize")
	require.NoError(t, err)
	result, _ = decodeResponse[CompilationResult](t, out)
	require.Len(t, result.Machines, 1)
	assert.Equal(t, 2, result.Machines[0].States)
}

func TestCompile_BadEmit(t *testing.T) {
	_, err := executeCommand(t, "compile", turnstileFile, "--emit", "svg")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
