package harness

import (
	"github.com/roach88/lstar/internal/learner"
	"github.com/roach88/lstar/internal/oracle"
)

// RoundTrace is one round of a run: the hypothesis statistics and the
// counterexample that ended the round, if any.
type RoundTrace struct {
	Round          int                  `json:"round"`
	States         int                  `json:"states"`
	Suffixes       int                  `json:"suffixes"`
	ShortPrefixes  int                  `json:"short_prefixes"`
	Rows           int                  `json:"rows"`
	Queries        int                  `json:"queries"`
	Counterexample *CounterexampleTrace `json:"counterexample,omitempty"`
}

// CounterexampleTrace is a counterexample rendered for traces.
type CounterexampleTrace struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every assertion held.
	Pass bool `json:"pass"`

	// RunID is the id of the run in the scenario's run log.
	RunID string `json:"run_id"`

	// Trace has one entry per round, in order.
	Trace []RoundTrace `json:"trace"`

	Stats learner.Stats `json:"stats"`

	// ErrorCode is the learner error code when learning failed.
	ErrorCode string `json:"error_code,omitempty"`

	// Errors contains assertion failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Hypothesis is the accepted hypothesis; nil when learning failed.
	Hypothesis Machine `json:"-"`

	// Err is the error learning ended with.
	Err error `json:"-"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []RoundTrace{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// tracer is the learner observer that fills Result.Trace.
type tracer struct {
	result *Result
}

func (t *tracer) HypothesisReady(round int, _ Machine, stats learner.Stats) {
	t.result.Trace = append(t.result.Trace, RoundTrace{
		Round:         round,
		States:        stats.States,
		Suffixes:      stats.Suffixes,
		ShortPrefixes: stats.ShortPrefixes,
		Rows:          stats.Rows,
		Queries:       stats.Queries,
	})
}

func (t *tracer) CounterexampleHandled(round int, ce oracle.Query[string, string], _ learner.Stats) {
	for i := range t.result.Trace {
		if t.result.Trace[i].Round == round {
			t.result.Trace[i].Counterexample = &CounterexampleTrace{Input: ce.Input.String(), Output: ce.Output}
		}
	}
}

func (t *tracer) Finished(_ Machine, stats learner.Stats, _ error) {
	t.result.Stats = stats
}
