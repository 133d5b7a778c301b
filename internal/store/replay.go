package store

import (
	"context"
	"fmt"
)

// RunLog is everything recorded for one run.
type RunLog struct {
	Run             Run              `json:"run"`
	Rounds          []Round          `json:"rounds"`
	Counterexamples []Counterexample `json:"counterexamples"`
}

// ReadRunLog loads a run with its rounds and counterexamples.
func (s *Store) ReadRunLog(ctx context.Context, id string) (RunLog, error) {
	run, err := s.GetRun(ctx, id)
	if err != nil {
		return RunLog{}, err
	}
	rounds, err := s.ReadRounds(ctx, id)
	if err != nil {
		return RunLog{}, fmt.Errorf("read run log: %w", err)
	}
	ces, err := s.ReadCounterexamples(ctx, id)
	if err != nil {
		return RunLog{}, fmt.Errorf("read run log: %w", err)
	}
	return RunLog{Run: run, Rounds: rounds, Counterexamples: ces}, nil
}

// ReplayResult compares a replayed run with its recording.
type ReplayResult struct {
	OriginalRunID string       `json:"original_run_id"`
	ReplayRunID   string       `json:"replay_run_id"`
	Deterministic bool         `json:"deterministic"`
	Rounds        int          `json:"rounds"`
	Divergences   []Divergence `json:"divergences,omitempty"`
	Original      RunSummary   `json:"original"`
	Replayed      RunSummary   `json:"replayed"`
}

// RunSummary is the outcome fields compared by CompareRuns.
type RunSummary struct {
	Status      RunStatus `json:"status"`
	Rounds      int       `json:"rounds"`
	States      int       `json:"states"`
	Fingerprint string    `json:"fingerprint"`
}

// Divergence is the first field that differs in a round. Round 0 is the
// run outcome.
type Divergence struct {
	Round    int    `json:"round"`
	Field    string `json:"field"`
	Original string `json:"original"`
	Replayed string `json:"replayed"`
}

func (d Divergence) String() string {
	return fmt.Sprintf("round %d: %s: %s != %s", d.Round, d.Field, d.Original, d.Replayed)
}

// CompareRuns reports where a replay departs from the original. Query
// counts are not compared: a replay may be answered from a different
// oracle stack.
func CompareRuns(original, replayed RunLog) ReplayResult {
	res := ReplayResult{
		OriginalRunID: original.Run.ID,
		ReplayRunID:   replayed.Run.ID,
		Rounds:        max(len(original.Rounds), len(replayed.Rounds)),
		Original:      summarize(original.Run),
		Replayed:      summarize(replayed.Run),
	}

	for i := 0; i < res.Rounds; i++ {
		if i >= len(original.Rounds) || i >= len(replayed.Rounds) {
			res.Divergences = append(res.Divergences, Divergence{
				Round:    i + 1,
				Field:    "present",
				Original: fmt.Sprint(i < len(original.Rounds)),
				Replayed: fmt.Sprint(i < len(replayed.Rounds)),
			})
			break
		}
		o, r := original.Rounds[i], replayed.Rounds[i]
		if d, ok := compareRound(o, r); ok {
			res.Divergences = append(res.Divergences, d)
			break
		}
	}

	if res.Original != res.Replayed {
		res.Divergences = append(res.Divergences, Divergence{
			Round:    0,
			Field:    "outcome",
			Original: fmt.Sprintf("%+v", res.Original),
			Replayed: fmt.Sprintf("%+v", res.Replayed),
		})
	}
	res.Deterministic = len(res.Divergences) == 0
	return res
}

func compareRound(o, r Round) (Divergence, bool) {
	fields := []struct {
		name string
		a, b any
	}{
		{"states", o.States, r.States},
		{"suffixes", o.Suffixes, r.Suffixes},
		{"short_prefixes", o.ShortPrefixes, r.ShortPrefixes},
		{"rows", o.Rows, r.Rows},
		{"fingerprint", o.Fingerprint, r.Fingerprint},
	}
	for _, f := range fields {
		if f.a != f.b {
			return Divergence{Round: o.Round, Field: f.name, Original: fmt.Sprint(f.a), Replayed: fmt.Sprint(f.b)}, true
		}
	}
	return Divergence{}, false
}

func summarize(run Run) RunSummary {
	return RunSummary{Status: run.Status, Rounds: run.Rounds, States: run.States, Fingerprint: run.Fingerprint}
}
