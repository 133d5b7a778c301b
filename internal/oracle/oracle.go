package oracle

import (
	"context"
	"fmt"

	"github.com/roach88/lstar/internal/word"
)

// MembershipOracle answers membership queries.
//
// Answer returns exactly one output per query, in query order.
// Implementations used behind Parallel must be safe for concurrent use.
type MembershipOracle[I comparable, O any] interface {
	Answer(ctx context.Context, queries []word.Word[I]) ([]O, error)
}

// Query is a word together with the output the system under learning
// produced for it. Counterexamples are Queries.
type Query[I comparable, O any] struct {
	Input  word.Word[I]
	Output O
}

func (q Query[I, O]) String() string {
	return fmt.Sprintf("%s / %v", q.Input, q.Output)
}

// EquivalenceOracle searches for a word on which hypothesis and system under
// learning disagree. The bool result is false when none was found.
type EquivalenceOracle[I comparable, O any, A any] interface {
	FindCounterexample(ctx context.Context, hypothesis A) (Query[I, O], bool, error)
}

// Transducer computes the output of a word. Automata and hypotheses
// implement it.
type Transducer[I comparable, O any] interface {
	Output(w word.Word[I]) O
}

// Func adapts a function to MembershipOracle.
type Func[I comparable, O any] func(ctx context.Context, queries []word.Word[I]) ([]O, error)

// Answer calls f.
func (f Func[I, O]) Answer(ctx context.Context, queries []word.Word[I]) ([]O, error) {
	return f(ctx, queries)
}

// Single adapts a per-word function that cannot fail.
func Single[I comparable, O any](f func(word.Word[I]) O) Func[I, O] {
	return func(_ context.Context, queries []word.Word[I]) ([]O, error) {
		out := make([]O, len(queries))
		for i, q := range queries {
			out[i] = f(q)
		}
		return out, nil
	}
}

// Simulator answers queries by running a known Transducer.
// Safe for concurrent use if the transducer is.
type Simulator[I comparable, O any] struct {
	target Transducer[I, O]
}

// NewSimulator creates a membership oracle backed by target.
func NewSimulator[I comparable, O any](target Transducer[I, O]) *Simulator[I, O] {
	return &Simulator[I, O]{target: target}
}

// Answer runs every query on the target.
func (s *Simulator[I, O]) Answer(ctx context.Context, queries []word.Word[I]) ([]O, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]O, len(queries))
	for i, q := range queries {
		out[i] = s.target.Output(q)
	}
	return out, nil
}

// CheckAnswers verifies that an oracle returned one answer per query.
func CheckAnswers[O any](queries int, answers []O) error {
	if len(answers) != queries {
		return fmt.Errorf("oracle returned %d answers for %d queries", len(answers), queries)
	}
	return nil
}
