package hypothesis

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

func parityA(w word.Word[string]) int {
	n := 0
	for _, s := range w.Symbols() {
		if s == "a" {
			n++
		}
	}
	return n % 2
}

func closedParityTable(t *testing.T, suffixes []word.Word[string]) *table.Table[string, int] {
	t.Helper()
	tbl := table.New[string, int](word.MustAlphabet("a", "b"))
	mq := oracle.Single(parityA)
	unclosed, err := tbl.Initialize(context.Background(), suffixes, mq)
	require.NoError(t, err)
	for len(unclosed) > 0 {
		reps := make([]*table.Row[string], len(unclosed))
		for i, c := range unclosed {
			reps[i] = c[0]
		}
		unclosed, err = tbl.Promote(context.Background(), reps, mq)
		require.NoError(t, err)
	}
	return tbl
}

func TestMooreTwoStateParity(t *testing.T) {
	tbl := closedParityTable(t, Moore[string, int]{}.DefaultSuffixes(nil))

	hyp, err := Moore[string, int]{}.Build(tbl)
	require.NoError(t, err)
	require.NoError(t, hyp.Validate())

	assert.Equal(t, automaton.Moore, hyp.Kind())
	assert.Equal(t, 2, hyp.NumStates())
	assert.Equal(t, 0, hyp.Initial())
	assert.Equal(t, "ε", hyp.StateLabel(0))
	assert.Equal(t, "a", hyp.StateLabel(1))
	assert.Equal(t, 1, hyp.Successor(0, 0))
	assert.Equal(t, 0, hyp.Successor(0, 1))
	assert.Equal(t, 0, hyp.Successor(1, 0))
	assert.Equal(t, 1, hyp.Successor(1, 1))

	for _, w := range []word.Word[string]{
		word.Epsilon[string](), word.Of("a"), word.Of("a", "b", "a"), word.Of("b", "a", "b", "b"),
	} {
		assert.Equal(t, parityA(w), hyp.Output(w), "output of %s", w)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	tbl := closedParityTable(t, []word.Word[string]{word.Epsilon[string](), word.Of("a"), word.Of("b")})

	first, err := Moore[string, int]{}.Build(tbl)
	require.NoError(t, err)
	second, err := Moore[string, int]{}.Build(tbl)
	require.NoError(t, err)
	assert.True(t, first.Equal(second))
	assert.Equal(t, first.Fingerprint(), second.Fingerprint())

	m1, err := Mealy[string, int]{}.Build(tbl)
	require.NoError(t, err)
	m2, err := Mealy[string, int]{}.Build(tbl)
	require.NoError(t, err)
	assert.True(t, m1.Equal(m2))
}

func TestMealyTransitionOutputs(t *testing.T) {
	tbl := closedParityTable(t, Mealy[string, int]{}.DefaultSuffixes(word.MustAlphabet("a", "b")))

	hyp, err := Mealy[string, int]{}.Build(tbl)
	require.NoError(t, err)
	require.NoError(t, hyp.Validate())

	assert.Equal(t, automaton.Mealy, hyp.Kind())
	assert.Equal(t, 2, hyp.NumStates())
	// From the even state, "a" outputs odd parity.
	assert.Equal(t, 1, hyp.TransitionOutput(0, 0))
	assert.Equal(t, 0, hyp.TransitionOutput(0, 1))
	assert.Equal(t, 0, hyp.TransitionOutput(1, 0))
	assert.Equal(t, 1, hyp.TransitionOutput(1, 1))

	w := word.Of("a", "b", "b", "a", "a")
	assert.Equal(t, parityA(w), hyp.Output(w))
}

func TestBuildRejectsUnclosedTable(t *testing.T) {
	tbl := table.New[string, int](word.MustAlphabet("a", "b"))
	_, err := tbl.Initialize(context.Background(), []word.Word[string]{word.Epsilon[string]()}, oracle.Single(parityA))
	require.NoError(t, err)
	require.False(t, tbl.IsClosed())

	_, err = Moore[string, int]{}.Build(tbl)
	assert.ErrorIs(t, err, ErrNotClosed)
}

func TestBuildRejectsMissingColumns(t *testing.T) {
	tbl := closedParityTable(t, []word.Word[string]{word.Of("a")})

	_, err := Moore[string, int]{}.Build(tbl)
	assert.ErrorIs(t, err, ErrMissingColumn)
	_, err = Mealy[string, int]{}.Build(tbl)
	assert.ErrorIs(t, err, ErrMissingColumn)

	_, err = Moore[string, int]{}.Build(table.New[string, int](word.MustAlphabet("a")))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")

	assert.NoError(t, Moore[string, int]{}.Validate(alphabet, []word.Word[string]{word.Of("a"), word.Epsilon[string]()}))
	assert.ErrorIs(t, Moore[string, int]{}.Validate(alphabet, []word.Word[string]{word.Of("a")}), ErrMissingColumn)

	assert.NoError(t, Mealy[string, int]{}.Validate(alphabet, []word.Word[string]{word.Of("b"), word.Of("a"), word.Of("a", "b")}))
	assert.ErrorIs(t, Mealy[string, int]{}.Validate(alphabet, []word.Word[string]{word.Of("a")}), ErrMissingColumn)
}
