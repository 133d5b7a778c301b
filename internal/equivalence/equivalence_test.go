package equivalence

import (
	"context"
	"errors"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/testutil"
	"github.com/roach88/lstar/internal/word"
)

type machine = *automaton.Automaton[string, string]

func oneState(alphabet *word.Alphabet[string], kind automaton.Kind, out string) machine {
	a := automaton.New[string, string](alphabet, kind)
	s := a.AddState()
	if kind == automaton.Moore {
		_ = a.SetStateOutput(s, out)
	}
	for _, sym := range alphabet.Symbols() {
		_ = a.SetTransition(s, sym, s)
		if kind == automaton.Mealy {
			_ = a.SetTransitionOutput(s, sym, out)
		}
	}
	return a
}

func TestExactFindsShortestCounterexample(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")
	target := testutil.EndsWith(alphabet, "a", "a", "b")
	eq := NewExact(target)

	ce, found, err := eq.FindCounterexample(context.Background(), oneState(alphabet, automaton.Moore, "0"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a a b", ce.Input.String())
	assert.Equal(t, "1", ce.Output)

	_, found, err = eq.FindCounterexample(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = eq.FindCounterexample(context.Background(), automaton.Minimize(target))
	require.NoError(t, err)
	assert.False(t, found)
}

func TestExactEmptyWordDiffers(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")
	target := testutil.ModCounter(alphabet, "a", 2)

	ce, found, err := NewExact(target).FindCounterexample(context.Background(), oneState(alphabet, automaton.Moore, "0"))
	require.NoError(t, err)
	require.True(t, found)
	assert.True(t, ce.Input.IsEmpty())
	assert.Equal(t, "1", ce.Output)
}

func TestExactMealy(t *testing.T) {
	target := testutil.Turnstile()
	ce, found, err := NewExact(target).FindCounterexample(context.Background(), oneState(target.Alphabet(), automaton.Mealy, "unlock"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "push", ce.Input.String())
	assert.Equal(t, "blocked", ce.Output)
}

func TestExactRejectsKindMismatch(t *testing.T) {
	target := testutil.Turnstile()
	_, _, err := NewExact(target).FindCounterexample(context.Background(), oneState(target.Alphabet(), automaton.Moore, ""))
	assert.Error(t, err)
}

func TestExactRejectsAlphabetMismatch(t *testing.T) {
	target := testutil.EndsWith(word.MustAlphabet("a", "b"), "a", "b")
	eq := NewExact(target)

	for _, syms := range [][]string{{"a", "c"}, {"b", "a"}, {"a", "b", "c"}} {
		hyp := oneState(word.MustAlphabet(syms...), automaton.Moore, "0")
		_, found, err := eq.FindCounterexample(context.Background(), hyp)
		assert.ErrorIs(t, err, ErrAlphabetMismatch, "%v", syms)
		assert.False(t, found)
	}

	// An equal alphabet built separately is accepted.
	_, found, err := eq.FindCounterexample(context.Background(), oneState(word.MustAlphabet("a", "b"), automaton.Moore, "0"))
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRandomWordsFindsDifference(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")
	target := testutil.EndsWith(alphabet, "a", "b")
	mq := oracle.NewSimulator[string, string](target)

	eq, err := NewRandomWords[string, string, machine](alphabet, mq, rand.New(rand.NewPCG(3, 4)), WithCount(500), WithLength(1, 6))
	require.NoError(t, err)

	ce, found, err := eq.FindCounterexample(context.Background(), oneState(alphabet, automaton.Moore, "0"))
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "1", ce.Output)
	assert.Equal(t, "1", target.Output(ce.Input))

	_, found, err = eq.FindCounterexample(context.Background(), target)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRandomWordsIsReproducible(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")
	target := testutil.EndsWith(alphabet, "b", "b", "a")
	hyp := oneState(alphabet, automaton.Moore, "0")

	run := func() string {
		eq, err := NewRandomWords[string, string, machine](alphabet, oracle.NewSimulator[string, string](target), rand.New(rand.NewPCG(11, 12)))
		require.NoError(t, err)
		ce, found, err := eq.FindCounterexample(context.Background(), hyp)
		require.NoError(t, err)
		require.True(t, found)
		return ce.Input.String()
	}
	assert.Equal(t, run(), run())
}

func TestRandomWordsOptionsAndErrors(t *testing.T) {
	alphabet := word.MustAlphabet("a")
	mq := oracle.Single(func(word.Word[string]) string { return "" })
	rng := rand.New(rand.NewPCG(1, 1))

	_, err := NewRandomWords[string, string, machine](alphabet, mq, nil)
	assert.Error(t, err)
	_, err = NewRandomWords[string, string, machine](alphabet, mq, rng, WithLength(3, 2))
	assert.Error(t, err)
	_, err = NewRandomWords[string, string, machine](alphabet, mq, rng, WithBatchSize(0))
	assert.Error(t, err)
	_, err = NewRandomWords[string, string, machine](alphabet, mq, rng, WithCount(-1))
	assert.Error(t, err)

	failing := oracle.Func[string, string](func(context.Context, []word.Word[string]) ([]string, error) {
		return nil, errors.New("sul down")
	})
	eq, err := NewRandomWords[string, string, machine](alphabet, failing, rng)
	require.NoError(t, err)
	_, _, err = eq.FindCounterexample(context.Background(), oneState(alphabet, automaton.Moore, ""))
	assert.EqualError(t, err, "sul down")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = eq.FindCounterexample(ctx, oneState(alphabet, automaton.Moore, ""))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestScriptedSkipsAgreeingQueries(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")
	hyp := oneState(alphabet, automaton.Moore, "0")
	eq := NewScripted[string, string, machine]([]oracle.Query[string, string]{
		{Input: testutil.W("a"), Output: "0"},
		{Input: testutil.W("a b"), Output: "1"},
		{Input: testutil.W("b"), Output: "1"},
	})

	ce, found, err := eq.FindCounterexample(context.Background(), hyp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a b", ce.Input.String())
	assert.Equal(t, 1, eq.Remaining())

	ce, found, err = eq.FindCounterexample(context.Background(), hyp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b", ce.Input.String())

	_, found, err = eq.FindCounterexample(context.Background(), hyp)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestChainStopsAtFirstFinding(t *testing.T) {
	alphabet := word.MustAlphabet("a", "b")
	target := testutil.EndsWith(alphabet, "a", "b")
	hyp := oneState(alphabet, automaton.Moore, "0")

	empty := NewScripted[string, string, machine](nil)
	scripted := NewScripted[string, string, machine]([]oracle.Query[string, string]{{Input: testutil.W("b a b"), Output: "1"}})
	chain := Chain[string, string, machine]{empty, scripted, NewExact(target)}

	ce, found, err := chain.FindCounterexample(context.Background(), hyp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "b a b", ce.Input.String())

	ce, found, err = chain.FindCounterexample(context.Background(), hyp)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a b", ce.Input.String(), "falls through to the exact oracle")
}
