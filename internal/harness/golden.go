package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/lstar/internal/automaton"
)

// TraceSnapshot captures a scenario run for golden comparison.
//
// Fingerprints and run ids are left out: the hypothesis snapshot already
// pins the structure, and ids depend on the run log.
type TraceSnapshot struct {
	Scenario   string              `json:"scenario"`
	Pass       bool                `json:"pass"`
	ErrorCode  string              `json:"error_code,omitempty"`
	Rounds     []RoundTrace        `json:"rounds"`
	Hypothesis *automaton.Snapshot `json:"hypothesis,omitempty"`
}

// NewTraceSnapshot builds the golden view of result.
func NewTraceSnapshot(name string, result *Result) TraceSnapshot {
	snap := TraceSnapshot{
		Scenario:  name,
		Pass:      result.Pass,
		ErrorCode: result.ErrorCode,
		Rounds:    result.Trace,
	}
	if snap.Rounds == nil {
		snap.Rounds = []RoundTrace{}
	}
	if result.Hypothesis != nil {
		h := result.Hypothesis.Snapshot()
		snap.Hypothesis = &h
	}
	return snap
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden
// file in testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result)
}

// AssertGolden compares an existing result against the golden file for
// scenarioName without re-running it.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := NewTraceSnapshot(scenarioName, result).Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
