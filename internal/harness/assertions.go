package harness

import (
	"context"
	"fmt"

	"github.com/roach88/lstar/internal/equivalence"
	"github.com/roach88/lstar/internal/learner"
	"github.com/roach88/lstar/internal/machine"
	"github.com/roach88/lstar/internal/word"
)

// EvaluateAssertions checks every assertion against a finished run and
// returns one message per failure.
//
// A run that failed without an "error" assertion fails with the learner's
// error. A run that succeeded fails every "error" assertion.
func EvaluateAssertions(result *Result, assertions []Assertion, target *machine.Machine) []string {
	var failures []string

	expectsError := false
	for _, a := range assertions {
		if a.Type == AssertError {
			expectsError = true
		}
	}
	if result.Err != nil && !expectsError {
		failures = append(failures, fmt.Sprintf("learning failed: %v", result.Err))
		return failures
	}

	for i, a := range assertions {
		if msg := evaluateAssertion(result, a, target); msg != "" {
			failures = append(failures, fmt.Sprintf("assertion %d (%s): %s", i, a.Type, msg))
		}
	}
	return failures
}

func evaluateAssertion(result *Result, a Assertion, target *machine.Machine) string {
	if a.Type == AssertError {
		return assertError(result, a)
	}
	if result.Err != nil {
		return "learning failed: " + result.Err.Error()
	}

	switch a.Type {
	case AssertStates:
		if got := result.Hypothesis.NumStates(); got != a.Count {
			return fmt.Sprintf("expected %d states, got %d", a.Count, got)
		}
	case AssertRounds:
		if got := result.Stats.Rounds; got != a.Count {
			return fmt.Sprintf("expected %d rounds, got %d", a.Count, got)
		}
	case AssertMaxRounds:
		if got := result.Stats.Rounds; got > a.Count {
			return fmt.Sprintf("expected at most %d rounds, got %d", a.Count, got)
		}
	case AssertMaxQueries:
		if got := result.Stats.Queries; got > a.Count {
			return fmt.Sprintf("expected at most %d queries, got %d", a.Count, got)
		}
	case AssertEquivalent:
		ce, found, err := equivalence.NewExact(target.Automaton).FindCounterexample(context.Background(), result.Hypothesis)
		if err != nil {
			return "equivalence check failed: " + err.Error()
		}
		if found {
			return fmt.Sprintf("hypothesis differs from %s on %s (want %q)", target.Name, ce.Input, ce.Output)
		}
	case AssertOutput:
		w := word.Of(a.Input...)
		if got := result.Hypothesis.Output(w); got != a.Expect {
			return fmt.Sprintf("output on %s: expected %q, got %q", w, a.Expect, got)
		}
	default:
		return fmt.Sprintf("unknown assertion type %q", a.Type)
	}
	return ""
}

func assertError(result *Result, a Assertion) string {
	if result.Err == nil {
		return fmt.Sprintf("expected error %s, learning succeeded", a.Code)
	}
	if got := learner.CodeOf(result.Err); string(got) != a.Code {
		return fmt.Sprintf("expected error %s, got %v", a.Code, result.Err)
	}
	return ""
}
