package store

import (
	"context"
	"errors"
	"fmt"
)

// ErrRunNotFound is returned for unknown run ids.
var ErrRunNotFound = errors.New("run not found")

// CreateRun inserts a run in the running state and returns it with ID and
// StartedAt filled in. A caller-provided ID is kept.
func (s *Store) CreateRun(ctx context.Context, run Run) (Run, error) {
	if run.ID == "" {
		run.ID = s.newID()
	}
	run.Status = StatusRunning
	run.StartedAt = s.now().UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs
		(id, machine, source, kind, closing, handler, equivalence, seed, max_rounds, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Machine,
		run.Source,
		run.Kind,
		run.Closing,
		run.Handler,
		run.Equivalence,
		int64(run.Seed),
		run.MaxRounds,
		string(run.Status),
		formatTime(run.StartedAt),
	)
	if err != nil {
		return Run{}, fmt.Errorf("create run: %w", err)
	}
	return run, nil
}

// WriteRound records the hypothesis of one round.
// Uses ON CONFLICT DO NOTHING so a round is written at most once.
func (s *Store) WriteRound(ctx context.Context, r Round) error {
	hyp, err := marshalSnapshot(r.Hypothesis)
	if err != nil {
		return fmt.Errorf("write round: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO rounds
		(run_id, round, states, suffixes, short_prefixes, row_count, queries, fingerprint, hypothesis)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		r.RunID,
		r.Round,
		r.States,
		r.Suffixes,
		r.ShortPrefixes,
		r.Rows,
		r.Queries,
		r.Fingerprint,
		hyp,
	)
	if err != nil {
		return fmt.Errorf("write round: %w", err)
	}
	return nil
}

// WriteCounterexample records the counterexample handled after a round.
func (s *Store) WriteCounterexample(ctx context.Context, ce Counterexample) error {
	input, err := marshalInput(ce.Input)
	if err != nil {
		return fmt.Errorf("write counterexample: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO counterexamples (run_id, round, input, output)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`, ce.RunID, ce.Round, input, ce.Output)
	if err != nil {
		return fmt.Errorf("write counterexample: %w", err)
	}
	return nil
}

// FinishRun stores the outcome of a run. A nil runErr marks it done;
// otherwise it is aborted with the error text.
func (s *Store) FinishRun(ctx context.Context, id string, rounds, states, queries int, fingerprint string, runErr error) error {
	status, msg := StatusDone, ""
	if runErr != nil {
		status, msg = StatusAborted, runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, finished_at = ?, rounds = ?, states = ?, queries = ?, fingerprint = ?, error = ?
		WHERE id = ?
	`,
		string(status),
		formatTime(s.now()),
		rounds,
		states,
		queries,
		fingerprint,
		msg,
		id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: %w", id, ErrRunNotFound)
	}
	return nil
}

// DeleteRun removes a run with its rounds and counterexamples.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("delete run %s: %w", id, ErrRunNotFound)
	}
	return nil
}
