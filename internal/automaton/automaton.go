// Package automaton provides deterministic, complete Moore and Mealy
// machines over a word.Alphabet.
//
// States are dense integers in [0, NumStates()). Transitions are stored per
// state in alphabet order. An Automaton is built incrementally (AddState,
// SetTransition, ...) and should be checked with Validate before use; after
// that it is treated as read-only.
package automaton

import (
	"errors"
	"fmt"

	"github.com/roach88/lstar/internal/word"
)

// Kind distinguishes where outputs live.
type Kind int

const (
	// Moore machines label states; the output of a word is the label of the
	// state it reaches.
	Moore Kind = iota
	// Mealy machines label transitions; the output of a word is the label of
	// its last transition (the zero value for the empty word).
	Mealy
)

func (k Kind) String() string {
	switch k {
	case Moore:
		return "moore"
	case Mealy:
		return "mealy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// ParseKind parses "moore" or "mealy".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "moore", "dfa":
		return Moore, nil
	case "mealy":
		return Mealy, nil
	default:
		return 0, fmt.Errorf("unknown automaton kind %q: must be moore or mealy", s)
	}
}

const noState = -1

// ErrIncomplete is returned by Validate for machines with missing transitions.
var ErrIncomplete = errors.New("automaton is incomplete")

// Automaton is a deterministic machine with outputs of type O.
type Automaton[I, O comparable] struct {
	alphabet *word.Alphabet[I]
	kind     Kind
	initial  int

	trans    [][]int
	stateOut []O
	transOut [][]O
	labels   []string
}

// New creates an empty machine of the given kind.
func New[I, O comparable](alphabet *word.Alphabet[I], kind Kind) *Automaton[I, O] {
	return &Automaton[I, O]{alphabet: alphabet, kind: kind, initial: noState}
}

// NewMoore creates an empty Moore machine.
func NewMoore[I, O comparable](alphabet *word.Alphabet[I]) *Automaton[I, O] {
	return New[I, O](alphabet, Moore)
}

// NewMealy creates an empty Mealy machine.
func NewMealy[I, O comparable](alphabet *word.Alphabet[I]) *Automaton[I, O] {
	return New[I, O](alphabet, Mealy)
}

// AddState appends a state and returns its id. The first state added becomes
// the initial state unless SetInitial says otherwise.
func (a *Automaton[I, O]) AddState() int {
	id := len(a.trans)
	row := make([]int, a.alphabet.Size())
	for i := range row {
		row[i] = noState
	}
	a.trans = append(a.trans, row)
	var zero O
	a.stateOut = append(a.stateOut, zero)
	a.transOut = append(a.transOut, make([]O, a.alphabet.Size()))
	a.labels = append(a.labels, "")
	if a.initial == noState {
		a.initial = id
	}
	return id
}

// SetInitial marks s as the initial state.
func (a *Automaton[I, O]) SetInitial(s int) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	a.initial = s
	return nil
}

// SetStateOutput sets the output of a Moore state.
func (a *Automaton[I, O]) SetStateOutput(s int, out O) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	a.stateOut[s] = out
	return nil
}

// SetStateLabel attaches a descriptive label (e.g. an access sequence).
func (a *Automaton[I, O]) SetStateLabel(s int, label string) error {
	if err := a.checkState(s); err != nil {
		return err
	}
	a.labels[s] = label
	return nil
}

// SetTransition sets the successor of from on sym.
func (a *Automaton[I, O]) SetTransition(from int, sym I, to int) error {
	idx, err := a.symbolIndex(sym)
	if err != nil {
		return err
	}
	if err := a.checkState(from); err != nil {
		return err
	}
	if err := a.checkState(to); err != nil {
		return err
	}
	a.trans[from][idx] = to
	return nil
}

// SetTransitionOutput sets the output of the transition from on sym (Mealy).
func (a *Automaton[I, O]) SetTransitionOutput(from int, sym I, out O) error {
	idx, err := a.symbolIndex(sym)
	if err != nil {
		return err
	}
	if err := a.checkState(from); err != nil {
		return err
	}
	a.transOut[from][idx] = out
	return nil
}

// Validate checks that the machine has an initial state and a transition for
// every (state, symbol) pair.
func (a *Automaton[I, O]) Validate() error {
	if len(a.trans) == 0 || a.initial == noState {
		return fmt.Errorf("%w: no states", ErrIncomplete)
	}
	for s, row := range a.trans {
		for i, to := range row {
			if to == noState {
				return fmt.Errorf("%w: state %d has no transition on %v", ErrIncomplete, s, a.alphabet.Symbol(i))
			}
		}
	}
	return nil
}

// Alphabet returns the input alphabet.
func (a *Automaton[I, O]) Alphabet() *word.Alphabet[I] { return a.alphabet }

// Kind returns Moore or Mealy.
func (a *Automaton[I, O]) Kind() Kind { return a.kind }

// NumStates returns the number of states.
func (a *Automaton[I, O]) NumStates() int { return len(a.trans) }

// Initial returns the initial state.
func (a *Automaton[I, O]) Initial() int { return a.initial }

// Successor returns the target of s on the symbol at alphabet index symIdx.
func (a *Automaton[I, O]) Successor(s, symIdx int) int { return a.trans[s][symIdx] }

// StateOutput returns the output of s (Moore).
func (a *Automaton[I, O]) StateOutput(s int) O { return a.stateOut[s] }

// TransitionOutput returns the output of s on symbol index symIdx (Mealy).
func (a *Automaton[I, O]) TransitionOutput(s, symIdx int) O { return a.transOut[s][symIdx] }

// StateLabel returns the label attached to s, if any.
func (a *Automaton[I, O]) StateLabel(s int) string { return a.labels[s] }

// Step follows one transition. Returns false for foreign symbols or missing
// transitions.
func (a *Automaton[I, O]) Step(s int, sym I) (int, bool) {
	idx, ok := a.alphabet.Index(sym)
	if !ok {
		return noState, false
	}
	to := a.trans[s][idx]
	return to, to != noState
}

// Reach returns the state reached from the initial state by w.
func (a *Automaton[I, O]) Reach(w word.Word[I]) (int, bool) {
	s := a.initial
	if s == noState {
		return noState, false
	}
	for i := 0; i < w.Len(); i++ {
		var ok bool
		if s, ok = a.Step(s, w.At(i)); !ok {
			return noState, false
		}
	}
	return s, true
}

// Output returns the output of w: the label of the reached state (Moore) or
// of the last transition (Mealy). Undefined runs yield the zero value.
func (a *Automaton[I, O]) Output(w word.Word[I]) O {
	var zero O
	if a.kind == Moore {
		s, ok := a.Reach(w)
		if !ok {
			return zero
		}
		return a.stateOut[s]
	}

	if w.IsEmpty() {
		return zero
	}
	s, ok := a.Reach(w.Prefix(w.Len() - 1))
	if !ok {
		return zero
	}
	idx, ok := a.alphabet.Index(w.Last())
	if !ok {
		return zero
	}
	return a.transOut[s][idx]
}

// Equal reports structural equality: same kind, alphabet order, state
// numbering, initial state, transitions and outputs. Labels are ignored.
func (a *Automaton[I, O]) Equal(b *Automaton[I, O]) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.kind != b.kind || a.initial != b.initial || len(a.trans) != len(b.trans) {
		return false
	}
	if !a.alphabet.Equal(b.alphabet) {
		return false
	}
	for s := range a.trans {
		if a.kind == Moore && a.stateOut[s] != b.stateOut[s] {
			return false
		}
		for i := range a.trans[s] {
			if a.trans[s][i] != b.trans[s][i] {
				return false
			}
			if a.kind == Mealy && a.transOut[s][i] != b.transOut[s][i] {
				return false
			}
		}
	}
	return true
}

func (a *Automaton[I, O]) checkState(s int) error {
	if s < 0 || s >= len(a.trans) {
		return fmt.Errorf("state %d out of range [0,%d)", s, len(a.trans))
	}
	return nil
}

func (a *Automaton[I, O]) symbolIndex(sym I) (int, error) {
	idx, ok := a.alphabet.Index(sym)
	if !ok {
		return 0, fmt.Errorf("symbol %v is not in the alphabet", sym)
	}
	return idx, nil
}
