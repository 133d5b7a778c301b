package cli

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lstar/internal/store"
)

// learnInto learns a machine into the run log at db and returns the result.
func learnInto(t *testing.T, db string, args ...string) LearnResult {
	t.Helper()
	out, err := executeCommand(t, append([]string{"--format", "json", "learn", "--db", db}, args...)...)
	require.NoError(t, err, out)
	result, _ := decodeResponse[LearnResult](t, out)
	require.NotEmpty(t, result.RunID)
	return result
}

func TestRuns_ListAndFilter(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	ends := learnInto(t, db, machinesDir, "-m", "ends_ab")
	turn := learnInto(t, db, turnstileFile)
	_, _ = executeCommand(t, "learn", "--db", db, machinesDir, "-m", "ends_ab", "--max-rounds", "1")

	out, err := executeCommand(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, ends.RunID)
	assert.Contains(t, out, turn.RunID)
	assert.Contains(t, out, "first/classic/exact")

	out, err = executeCommand(t, "--format", "json", "runs", "--db", db, "--machine", "ends_ab")
	require.NoError(t, err)
	runs, _ := decodeResponse[[]store.Run](t, out)
	require.Len(t, runs, 2)
	assert.Equal(t, ends.RunID, runs[0].ID)
	assert.Equal(t, store.StatusDone, runs[0].Status)
	assert.Equal(t, store.StatusAborted, runs[1].Status)
	assert.Equal(t, 1, runs[1].MaxRounds)

	out, err = executeCommand(t, "--format", "json", "runs", "--db", db, "--status", "aborted")
	require.NoError(t, err)
	runs, _ = decodeResponse[[]store.Run](t, out)
	require.Len(t, runs, 1)
	assert.Contains(t, runs[0].Error, "ROUND_LIMIT")

	out, err = executeCommand(t, "--format", "json", "runs", "--db", db, "--limit", "1")
	require.NoError(t, err)
	runs, _ = decodeResponse[[]store.Run](t, out)
	assert.Len(t, runs, 1)
}

func TestRuns_Empty(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := executeCommand(t, "runs", "--db", db)
	require.NoError(t, err)
	assert.Equal(t, "No runs found.\n", out)

	out, err = executeCommand(t, "--format", "json", "runs", "--db", db)
	require.NoError(t, err)
	runs, _ := decodeResponse[[]store.Run](t, out)
	assert.Empty(t, runs)
}

func TestRuns_BadStatus(t *testing.T) {
	_, err := executeCommand(t, "runs", "--db", filepath.Join(t.TempDir(), "runs.db"), "--status", "paused")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestTrace_Text(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	learned := learnInto(t, db, machinesDir, "-m", "ends_ab", "--cex", "maler-pnueli")

	out, err := executeCommand(t, "trace", "--db", db, learned.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "Run "+learned.RunID+": ends_ab (moore) done")
	assert.Contains(t, out, "closing=first cex=maler-pnueli equivalence=exact")
	assert.Contains(t, out, "counterexample")
	assert.Contains(t, out, "a b -> 1")
	assert.NotContains(t, out, "digraph")

	out, err = executeCommand(t, "trace", "--db", db, learned.RunID, "--hypotheses")
	require.NoError(t, err)
	assert.Contains(t, out, "// round 1")
	assert.Contains(t, out, "digraph")
}

func TestTrace_JSON(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	learned := learnInto(t, db, machinesDir, "-m", "ends_ab")

	out, err := executeCommand(t, "--format", "json", "trace", "--db", db, learned.RunID)
	require.NoError(t, err)

	view, _ := decodeResponse[TraceView](t, out)
	assert.Equal(t, learned.RunID, view.Run.ID)
	assert.Len(t, view.Rounds, learned.Stats.Rounds)
	assert.Len(t, view.Counterexamples, learned.Stats.Counterexamples)
	last := view.Rounds[len(view.Rounds)-1]
	assert.Equal(t, learned.Fingerprint, last.Fingerprint)
	assert.Equal(t, 3, last.States)

	out, err = executeCommand(t, "--format", "json", "trace", "--db", db, learned.RunID, "--hypotheses")
	require.NoError(t, err)
	log, _ := decodeResponse[store.RunLog](t, out)
	require.Len(t, log.Rounds, learned.Stats.Rounds)
	assert.Equal(t, learned.Hypothesis, log.Rounds[len(log.Rounds)-1].Hypothesis)
}

func TestTrace_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := executeCommand(t, "--format", "json", "trace", "--db", db, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, resp := decodeResponse[map[string]any](t, out)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeRunNotFound, resp.Error.Code)
}

func TestReplay_AllRunsDeterministic(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	learnInto(t, db, machinesDir, "-m", "ends_ab", "--cex", "rivest-schapire")
	learnInto(t, db, machinesDir, "-m", "ends_ab", "--cex", "shahbaz", "--closing", "random", "--seed", "11")
	learnInto(t, db, machinesDir, "-m", "parity", "--equivalence", "random", "--eq-seed", "3")
	learnInto(t, db, turnstileFile)

	out, err := executeCommand(t, "--format", "json", "replay", "--db", db)
	require.NoError(t, err, out)

	summary, resp := decodeResponse[ReplaySummary](t, out)
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 4, summary.TotalRuns)
	assert.True(t, summary.AllDeterministic)
	for _, r := range summary.Runs {
		assert.True(t, r.Deterministic, "%s: %v", r.OriginalRunID, r.Divergences)
		assert.NotEqual(t, r.OriginalRunID, r.ReplayRunID)
	}
}

func TestReplay_UnseededRandomClosing(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	learned := learnInto(t, db, machinesDir, "-m", "ends_ab", "--closing", "random", "--cex", "maler-pnueli")

	out, err := executeCommand(t, "--format", "json", "runs", "--db", db)
	require.NoError(t, err)
	runs, _ := decodeResponse[[]store.Run](t, out)
	require.Len(t, runs, 1)
	assert.Equal(t, learned.RunID, runs[0].ID)
	assert.NotZero(t, runs[0].Seed, "the drawn seed is recorded")

	out, err = executeCommand(t, "--format", "json", "replay", "--db", db, learned.RunID)
	require.NoError(t, err, out)
	summary, _ := decodeResponse[ReplaySummary](t, out)
	require.Len(t, summary.Runs, 1)
	assert.True(t, summary.Runs[0].Deterministic, "%v", summary.Runs[0].Divergences)
}

func TestReplay_RoundLimitedRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	_, err := executeCommand(t, "learn", "--db", db, machinesDir, "-m", "ends_ab", "--max-rounds", "1")
	require.Error(t, err)

	out, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err, out)
	assert.Contains(t, out, "✓ All 1 run(s) deterministic")
}

func TestReplay_SingleRunText(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	learned := learnInto(t, db, turnstileFile)

	out, err := executeCommand(t, "replay", "--db", db, learned.RunID)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ "+learned.RunID+": 1 rounds reproduced")

	// The replay is itself a recorded run.
	out, err = executeCommand(t, "--format", "json", "runs", "--db", db, "--machine", "turnstile")
	require.NoError(t, err)
	runs, _ := decodeResponse[[]store.Run](t, out)
	require.Len(t, runs, 2)
	assert.Equal(t, "scripted", runs[1].Equivalence)
}

func TestReplay_UnknownRun(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	_, err := executeCommand(t, "replay", "--db", db, "no-such-run")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestReplay_EmptyLog(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")

	out, err := executeCommand(t, "replay", "--db", db)
	require.NoError(t, err)
	assert.Contains(t, out, "No finished runs found in database.")
}

func TestRuns_Delete(t *testing.T) {
	db := filepath.Join(t.TempDir(), "runs.db")
	keep := learnInto(t, db, turnstileFile)
	drop := learnInto(t, db, machinesDir, "-m", "ends_ab")

	out, err := executeCommand(t, "runs", "--db", db, "--delete", drop.RunID)
	require.NoError(t, err)
	assert.Equal(t, "✓ deleted "+drop.RunID+"\n", out)

	out, err = executeCommand(t, "--format", "json", "runs", "--db", db)
	require.NoError(t, err)
	runs, _ := decodeResponse[[]store.Run](t, out)
	require.Len(t, runs, 1)
	assert.Equal(t, keep.RunID, runs[0].ID)

	_, err = executeCommand(t, "trace", "--db", db, drop.RunID)
	require.Error(t, err)

	out, err = executeCommand(t, "--format", "json", "runs", "--db", db, "--delete", drop.RunID)
	require.Error(t, err)
	_, resp := decodeResponse[map[string]any](t, out)
	assert.Equal(t, ErrCodeRunNotFound, resp.Error.Code)
}
