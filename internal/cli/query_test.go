package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Moore(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "query", machinesDir, "-m", "ends_ab", "a", "b")
	require.NoError(t, err)

	result, _ := decodeResponse[QueryResult](t, out)
	assert.Equal(t, "ends_ab", result.Machine)
	assert.Equal(t, []string{"a", "b"}, result.Input)
	assert.Equal(t, "1", result.Output)
	assert.Equal(t, []QueryStepView{
		{Prefix: "ε", Output: "0"},
		{Prefix: "a", Output: "0"},
		{Prefix: "a b", Output: "1"},
	}, result.Steps)
}

func TestQuery_MealyText(t *testing.T) {
	out, err := executeCommand(t, "query", turnstileFile, "coin", "push")
	require.NoError(t, err)
	assert.Equal(t, "turnstile(coin push) = \"lock\"\n", out)
}

func TestQuery_VerboseSteps(t *testing.T) {
	out, err := executeCommand(t, "-v", "query", turnstileFile, "coin", "coin")
	require.NoError(t, err)
	assert.Contains(t, out, `"unlock"`)
	assert.Contains(t, out, `"refund"`)
}

func TestQuery_UnknownSymbol(t *testing.T) {
	out, err := executeCommand(t, "--format", "json", "query", turnstileFile, "coin", "kick")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, resp := decodeResponse[map[string]any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "E106", resp.Error.Code)
	assert.Contains(t, resp.Error.Message, "kick")
}
