// Package hypothesis turns a closed observation table into an automaton.
//
// States are the distinct contents of short prefixes. Each state is
// represented by the first short prefix with those contents, which is also
// its access sequence and its label. State 0 is the state of ε. The
// transition of state sp on symbol a goes to the state whose contents equal
// those of sp·a.
//
// Building is a pure function of the table: calling Build twice on an
// unchanged table yields equal automata.
package hypothesis

import (
	"errors"
	"fmt"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

var (
	// ErrNotClosed is returned when a successor row matches no short prefix.
	ErrNotClosed = errors.New("observation table is not closed")

	// ErrMissingColumn is returned when the table lacks a column the
	// builder reads outputs from.
	ErrMissingColumn = errors.New("observation table lacks a required column")
)

// Moore builds Moore machines (and DFAs, with boolean outputs). The output of
// a state is its entry in the ε column.
type Moore[I, O comparable] struct{}

// DefaultSuffixes returns {ε}.
func (Moore[I, O]) DefaultSuffixes(*word.Alphabet[I]) []word.Word[I] {
	return []word.Word[I]{word.Epsilon[I]()}
}

// Validate requires ε among the initial suffixes.
func (Moore[I, O]) Validate(alphabet *word.Alphabet[I], initialSuffixes []word.Word[I]) error {
	for _, s := range initialSuffixes {
		if s.IsEmpty() {
			return nil
		}
	}
	return fmt.Errorf("%w: moore hypotheses need the empty suffix", ErrMissingColumn)
}

// Build constructs the hypothesis.
func (Moore[I, O]) Build(t *table.Table[I, O]) (*automaton.Automaton[I, O], error) {
	col, ok := t.SuffixIndex(word.Epsilon[I]())
	if !ok {
		return nil, fmt.Errorf("%w: ε", ErrMissingColumn)
	}
	a := automaton.NewMoore[I, O](t.Alphabet())
	reps, err := build(t, a)
	if err != nil {
		return nil, err
	}
	for s, rep := range reps {
		if err := a.SetStateOutput(s, t.Cell(rep, col)); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Mealy builds Mealy machines. The output of the transition of state sp on a
// is sp's entry in the column a.
type Mealy[I, O comparable] struct{}

// DefaultSuffixes returns every one-symbol word, in alphabet order.
func (Mealy[I, O]) DefaultSuffixes(alphabet *word.Alphabet[I]) []word.Word[I] {
	out := make([]word.Word[I], alphabet.Size())
	for i := range out {
		out[i] = word.Of(alphabet.Symbol(i))
	}
	return out
}

// Validate requires every one-symbol word among the initial suffixes.
func (Mealy[I, O]) Validate(alphabet *word.Alphabet[I], initialSuffixes []word.Word[I]) error {
	have := make(map[I]bool)
	for _, s := range initialSuffixes {
		if s.Len() == 1 {
			have[s.At(0)] = true
		}
	}
	for _, sym := range alphabet.Symbols() {
		if !have[sym] {
			return fmt.Errorf("%w: mealy hypotheses need the suffix %v", ErrMissingColumn, sym)
		}
	}
	return nil
}

// Build constructs the hypothesis.
func (Mealy[I, O]) Build(t *table.Table[I, O]) (*automaton.Automaton[I, O], error) {
	alphabet := t.Alphabet()
	cols := make([]int, alphabet.Size())
	for i := range cols {
		col, ok := t.SuffixIndex(word.Of(alphabet.Symbol(i)))
		if !ok {
			return nil, fmt.Errorf("%w: %v", ErrMissingColumn, alphabet.Symbol(i))
		}
		cols[i] = col
	}

	a := automaton.NewMealy[I, O](alphabet)
	reps, err := build(t, a)
	if err != nil {
		return nil, err
	}
	for s, rep := range reps {
		for i, col := range cols {
			if err := a.SetTransitionOutput(s, alphabet.Symbol(i), t.Cell(rep, col)); err != nil {
				return nil, err
			}
		}
	}
	return a, nil
}

// build adds states and transitions to a and returns the representative row
// of each state.
func build[I, O comparable](t *table.Table[I, O], a *automaton.Automaton[I, O]) ([]*table.Row[I], error) {
	if !t.Initialized() {
		return nil, table.ErrNotInitialized
	}

	var reps []*table.Row[I]
	state := make(map[*table.Row[I]]int)
	for _, sp := range t.ShortPrefixRows() {
		if t.Representative(sp) != sp {
			continue
		}
		s := a.AddState()
		state[sp] = s
		reps = append(reps, sp)
		if err := a.SetStateLabel(s, sp.Label().String()); err != nil {
			return nil, err
		}
	}

	alphabet := t.Alphabet()
	for s, rep := range reps {
		for i := 0; i < alphabet.Size(); i++ {
			target := t.Representative(rep.Successor(i))
			if target == nil {
				return nil, fmt.Errorf("%w: %s has no matching short prefix", ErrNotClosed, rep.Successor(i))
			}
			if err := a.SetTransition(s, alphabet.Symbol(i), state[target]); err != nil {
				return nil, err
			}
		}
	}
	return reps, nil
}
