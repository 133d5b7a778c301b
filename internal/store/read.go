package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const runColumns = `id, machine, source, kind, closing, handler, equivalence, seed, max_rounds, status,
	started_at, finished_at, rounds, states, queries, fingerprint, error`

// GetRun returns a run by id, or ErrRunNotFound.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("get run %s: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	return run, nil
}

// ListRuns returns runs ordered by start time, then id.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, f RunFilter) ([]Run, error) {
	var where []string
	var args []any
	if f.Machine != "" {
		where = append(where, "machine = ?")
		args = append(args, f.Machine)
	}
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(f.Status))
	}

	query := `SELECT ` + runColumns + ` FROM runs`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at ASC, id COLLATE BINARY ASC"
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRounds returns the rounds of a run in order.
func (s *Store) ReadRounds(ctx context.Context, runID string) ([]Round, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, round, states, suffixes, short_prefixes, row_count, queries, fingerprint, hypothesis
		FROM rounds
		WHERE run_id = ?
		ORDER BY round ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	rounds := []Round{}
	for rows.Next() {
		var r Round
		var hyp string
		if err := rows.Scan(&r.RunID, &r.Round, &r.States, &r.Suffixes, &r.ShortPrefixes, &r.Rows, &r.Queries, &r.Fingerprint, &hyp); err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		if r.Hypothesis, err = unmarshalSnapshot(hyp); err != nil {
			return nil, err
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}

// ReadCounterexamples returns the counterexamples of a run in round order.
func (s *Store) ReadCounterexamples(ctx context.Context, runID string) ([]Counterexample, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, round, input, output
		FROM counterexamples
		WHERE run_id = ?
		ORDER BY round ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query counterexamples: %w", err)
	}
	defer rows.Close()

	ces := []Counterexample{}
	for rows.Next() {
		var ce Counterexample
		var input string
		if err := rows.Scan(&ce.RunID, &ce.Round, &input, &ce.Output); err != nil {
			return nil, fmt.Errorf("scan counterexample: %w", err)
		}
		if ce.Input, err = unmarshalInput(input); err != nil {
			return nil, err
		}
		ces = append(ces, ce)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate counterexamples: %w", err)
	}
	return ces, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var run Run
	var seed int64
	var status, started string
	var finished sql.NullString
	err := sc.Scan(
		&run.ID, &run.Machine, &run.Source, &run.Kind, &run.Closing, &run.Handler, &run.Equivalence,
		&seed, &run.MaxRounds, &status, &started, &finished,
		&run.Rounds, &run.States, &run.Queries, &run.Fingerprint, &run.Error,
	)
	if err != nil {
		return Run{}, err
	}
	run.Seed = uint64(seed)
	run.Status = RunStatus(status)
	if run.StartedAt, err = parseTime(started); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		if run.FinishedAt, err = parseTime(finished.String); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}
