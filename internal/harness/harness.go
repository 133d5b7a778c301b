package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/lstar/internal/learner"
	"github.com/roach88/lstar/internal/machine"
	"github.com/roach88/lstar/internal/store"
	"github.com/roach88/lstar/internal/testutil"
)

// Harness runs scenarios against a run log.
type Harness struct {
	store  *store.Store
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database with a stepping clock and
// sequential run ids, so results are reproducible.
//
// Execution flow:
// 1. Load the target machine
// 2. Open an in-memory run log and create the run
// 3. Learn with the configured policies and equivalence procedure
// 4. Evaluate assertions
//
// A learning failure is not a Run error: it is recorded in the result so
// scenarios can assert on it.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:",
		store.WithClock(testutil.NewSteppingClock().Now),
		store.WithIDGenerator(testutil.NewSequentialIDs("").Generate),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store:  st,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return h.Run(context.Background(), scenario)
}

// New returns a harness that records runs in st and logs to logger.
func New(st *store.Store, logger *slog.Logger) *Harness {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Harness{store: st, logger: logger}
}

// Run executes scenario, recording it in the harness's store.
func (h *Harness) Run(ctx context.Context, scenario *Scenario) (*Result, error) {
	target, err := loadTarget(scenario.Machine, scenario.Target)
	if err != nil {
		return nil, err
	}

	lc := scenario.Learner.PinSeed(h.logger)
	run, err := h.store.CreateRun(ctx, store.Run{
		Machine:     target.Name,
		Source:      scenario.Machine,
		Kind:        target.Automaton.Kind().String(),
		Closing:     defaultString(scenario.Learner.Closing, "first"),
		Handler:     defaultString(scenario.Learner.Handler, "classic"),
		Equivalence: scenario.Equivalence.Name(),
		Seed:        lc.Seed,
		MaxRounds:   lc.MaxRounds,
	})
	if err != nil {
		return nil, err
	}

	result := NewResult()
	result.RunID = run.ID
	rec := h.store.NewRecorder(ctx, run.ID, h.logger)

	sess, err := NewSession(target, lc, scenario.Equivalence, h.logger, rec, &tracer{result: result})
	if err != nil {
		// Configuration errors never reach the learner's observers.
		if ferr := h.store.FinishRun(ctx, run.ID, 0, 0, 0, "", err); ferr != nil {
			return nil, ferr
		}
		result.Err = err
		result.ErrorCode = string(learner.CodeOf(err))
	} else {
		hyp, err := sess.Learner.Run(ctx, sess.Equivalence)
		result.Hypothesis = hyp
		result.Err = err
		result.ErrorCode = string(learner.CodeOf(err))
	}
	if err := rec.Err(); err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, target) {
		result.AddError(msg)
	}
	return result, nil
}

func loadTarget(path, name string) (*machine.Machine, error) {
	loaded, errs := machine.LoadFile(path, machine.LoadModeFailFast)
	if len(errs) > 0 {
		return nil, fmt.Errorf("failed to load machine %s: %w", path, errs[0])
	}
	return loaded.Lookup(name)
}
