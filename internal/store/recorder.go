package store

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/learner"
	"github.com/roach88/lstar/internal/oracle"
)

// Machine is the hypothesis type recorded by a Recorder.
type Machine = *automaton.Automaton[string, string]

// Recorder is a learner observer that writes every round, counterexample
// and the final outcome of one run to the store.
//
// Observer callbacks cannot fail, so write errors are logged and kept; Err
// returns them joined once the run is over.
type Recorder struct {
	store  *Store
	ctx    context.Context
	runID  string
	logger *slog.Logger

	mu   sync.Mutex
	errs []error
}

var _ learner.Observer[string, string, Machine] = (*Recorder)(nil)

// NewRecorder returns a recorder for an existing run. Writes use ctx
// without its cancellation so an interrupted run is still closed out.
func (s *Store) NewRecorder(ctx context.Context, runID string, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  s,
		ctx:    context.WithoutCancel(ctx),
		runID:  runID,
		logger: logger.With("run_id", runID),
	}
}

// RunID returns the id of the recorded run.
func (r *Recorder) RunID() string { return r.runID }

// HypothesisReady writes the round.
func (r *Recorder) HypothesisReady(round int, hyp Machine, stats learner.Stats) {
	r.keep(r.store.WriteRound(r.ctx, Round{
		RunID:         r.runID,
		Round:         round,
		States:        stats.States,
		Suffixes:      stats.Suffixes,
		ShortPrefixes: stats.ShortPrefixes,
		Rows:          stats.Rows,
		Queries:       stats.Queries,
		Fingerprint:   hyp.Fingerprint(),
		Hypothesis:    hyp.Snapshot(),
	}))
}

// CounterexampleHandled writes the counterexample against round.
func (r *Recorder) CounterexampleHandled(round int, ce oracle.Query[string, string], _ learner.Stats) {
	r.keep(r.store.WriteCounterexample(r.ctx, Counterexample{
		RunID:  r.runID,
		Round:  round,
		Input:  ce.Input.Symbols(),
		Output: ce.Output,
	}))
}

// Finished closes out the run.
func (r *Recorder) Finished(hyp Machine, stats learner.Stats, err error) {
	fingerprint := ""
	if err == nil && hyp != nil {
		fingerprint = hyp.Fingerprint()
	}
	r.keep(r.store.FinishRun(r.ctx, r.runID, stats.Rounds, stats.States, stats.Queries, fingerprint, err))
}

// Err returns every write error seen so far.
func (r *Recorder) Err() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return errors.Join(r.errs...)
}

func (r *Recorder) keep(err error) {
	if err == nil {
		return
	}
	r.logger.Error("run log write failed", "error", err)
	r.mu.Lock()
	r.errs = append(r.errs, err)
	r.mu.Unlock()
}
