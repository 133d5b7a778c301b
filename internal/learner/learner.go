// Package learner drives the observation table through learning rounds.
//
// A Learner moves through the phases
//
//	Init -> HypothesisReady <-> Refining
//	HypothesisReady -> Done
//
// Start fills the table, closes it, restores consistency if the
// counterexample handler needs that, and builds the first hypothesis. Each
// Refine feeds one counterexample through the handler and resolves the table
// again. Finish accepts the current hypothesis. Run does all of this against
// an equivalence oracle.
//
// Any oracle error or broken strategy contract moves the learner to Aborted,
// which is terminal.
//
// # Cancellation
//
// Table fills are never interrupted: they run on a context detached from the
// caller's cancellation, so a table is never left half-updated. Run checks for
// cancellation between rounds only.
//
// A Learner is owned by one goroutine and is not safe for concurrent use.
package learner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/lstar/internal/cex"
	"github.com/roach88/lstar/internal/closing"
	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

// Builder turns a closed (and, where required, consistent) table into a
// hypothesis.
type Builder[I, O comparable, A any] interface {
	// DefaultSuffixes returns the initial columns the builder needs.
	DefaultSuffixes(alphabet *word.Alphabet[I]) []word.Word[I]

	// Validate checks that initialSuffixes contain every column Build reads.
	Validate(alphabet *word.Alphabet[I], initialSuffixes []word.Word[I]) error

	// Build is a pure function of the table contents.
	Build(t *table.Table[I, O]) (A, error)
}

// Hypothesis is what a Builder produces: something that can be run on words.
type Hypothesis[I comparable, O any] interface {
	Output(w word.Word[I]) O
}

// Phase is the learner's lifecycle state.
type Phase int

const (
	PhaseInit Phase = iota
	PhaseRefining
	PhaseHypothesisReady
	PhaseDone
	PhaseAborted
)

func (p Phase) String() string {
	switch p {
	case PhaseInit:
		return "init"
	case PhaseRefining:
		return "refining"
	case PhaseHypothesisReady:
		return "hypothesis-ready"
	case PhaseDone:
		return "done"
	case PhaseAborted:
		return "aborted"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Stats summarises the table and run.
type Stats struct {
	Rounds          int `json:"rounds"`
	States          int `json:"states"`
	Suffixes        int `json:"suffixes"`
	ShortPrefixes   int `json:"short_prefixes"`
	Rows            int `json:"rows"`
	Queries         int `json:"queries"`
	Counterexamples int `json:"counterexamples"`
}

// Observer is notified of learner events, in order, from the learner's
// goroutine.
type Observer[I, O comparable, A any] interface {
	// HypothesisReady is called after every hypothesis is built.
	HypothesisReady(round int, hyp A, stats Stats)

	// CounterexampleHandled is called after a counterexample was
	// incorporated, before the next hypothesis is built.
	CounterexampleHandled(round int, ce oracle.Query[I, O], stats Stats)

	// Finished is called once, with the accepted hypothesis or the error
	// that aborted the run.
	Finished(hyp A, stats Stats, err error)
}

// Learner is the round-based L* driver.
type Learner[I, O comparable, A Hypothesis[I, O]] struct {
	alphabet *word.Alphabet[I]
	mq       oracle.MembershipOracle[I, O]
	builder  Builder[I, O, A]

	initialSuffixes []word.Word[I]
	suffixesSet     bool
	closing         closing.Strategy[I, O]
	handler         cex.Handler[I, O]
	logger          *slog.Logger
	observers       []Observer[I, O, A]
	maxRounds       int

	table *table.Table[I, O]
	phase Phase
	round int
	ces   int
	hyp   A
}

// New validates the configuration and returns a learner in PhaseInit.
// Configuration problems are INVALID_CONFIG errors; no query is sent.
func New[I, O comparable, A Hypothesis[I, O]](
	alphabet *word.Alphabet[I],
	mq oracle.MembershipOracle[I, O],
	builder Builder[I, O, A],
	opts ...Option[I, O, A],
) (*Learner[I, O, A], error) {
	if alphabet == nil {
		return nil, configError(errors.New("alphabet is nil"))
	}
	if mq == nil {
		return nil, configError(errors.New("membership oracle is nil"))
	}
	if builder == nil {
		return nil, configError(errors.New("hypothesis builder is nil"))
	}

	l := &Learner[I, O, A]{
		alphabet: alphabet,
		mq:       mq,
		builder:  builder,
		closing:  closing.First[I, O]{},
		handler:  cex.Classic[I, O]{},
		logger:   slog.Default(),
		table:    table.New[I, O](alphabet),
	}
	for _, opt := range opts {
		opt(l)
	}

	if !l.suffixesSet {
		l.initialSuffixes = builder.DefaultSuffixes(alphabet)
	}
	if l.closing == nil {
		return nil, configError(errors.New("closing strategy is nil"))
	}
	if l.handler == nil {
		return nil, configError(errors.New("counterexample handler is nil"))
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.maxRounds < 0 {
		return nil, configError(fmt.Errorf("max rounds must not be negative, got %d", l.maxRounds))
	}
	if err := table.ValidateSuffixes(alphabet, l.initialSuffixes); err != nil {
		return nil, configError(err)
	}
	if err := builder.Validate(alphabet, l.initialSuffixes); err != nil {
		return nil, configError(err)
	}
	return l, nil
}

// Start initializes the table, resolves it and builds the first hypothesis.
func (l *Learner[I, O, A]) Start(ctx context.Context) error {
	if l.phase != PhaseInit {
		return l.wrongPhase("Start", PhaseInit)
	}
	fill := context.WithoutCancel(ctx)

	l.logger.Debug("initializing observation table",
		"alphabet", l.alphabet.Size(),
		"suffixes", len(l.initialSuffixes))

	unclosed, err := l.table.Initialize(fill, l.initialSuffixes, l.mq)
	if err != nil {
		return l.abort(err)
	}
	if err := l.resolve(fill, unclosed); err != nil {
		return l.abort(err)
	}
	return l.nextHypothesis()
}

// Hypothesis rebuilds the current hypothesis from the table. Valid in
// HypothesisReady and Done.
func (l *Learner[I, O, A]) Hypothesis() (A, error) {
	var zero A
	if l.phase != PhaseHypothesisReady && l.phase != PhaseDone {
		return zero, l.wrongPhase("Hypothesis", PhaseHypothesisReady, PhaseDone)
	}
	return l.builder.Build(l.table)
}

// Refine incorporates a counterexample and builds the next hypothesis.
//
// A word the hypothesis already answers correctly is rejected with
// NOT_COUNTEREXAMPLE and leaves the learner unchanged. A handler that does not
// increase the number of states aborts the run with NO_PROGRESS.
func (l *Learner[I, O, A]) Refine(ctx context.Context, ce oracle.Query[I, O]) error {
	if l.phase != PhaseHypothesisReady {
		return l.wrongPhase("Refine", PhaseHypothesisReady)
	}
	if !l.alphabet.Contains(ce.Input) {
		return newError(ErrCodeNotCounterexample, l.round,
			"counterexample %s has symbols outside the alphabet", ce.Input)
	}
	if got := l.hyp.Output(ce.Input); got == ce.Output {
		return newError(ErrCodeNotCounterexample, l.round,
			"hypothesis already outputs %v on %s", got, ce.Input)
	}
	if l.maxRounds > 0 && l.round >= l.maxRounds {
		return l.abort(newError(ErrCodeRoundLimit, l.round, "reached %d rounds", l.maxRounds))
	}

	l.phase = PhaseRefining
	l.ces++
	counterexamplesTotal.Inc()
	fill := context.WithoutCancel(ctx)
	before := l.table.StateCount()

	l.logger.Debug("handling counterexample",
		"round", l.round,
		"input", ce.Input.String(),
		"output", ce.Output)

	unclosed, err := l.handler.Handle(fill, ce, l.table, l.mq)
	if err != nil {
		return l.abort(fmt.Errorf("handle counterexample %s: %w", ce.Input, err))
	}
	for _, obs := range l.observers {
		obs.CounterexampleHandled(l.round, ce, l.Stats())
	}
	if err := l.resolve(fill, unclosed); err != nil {
		return l.abort(err)
	}
	if after := l.table.StateCount(); after <= before {
		return l.abort(newError(ErrCodeNoProgress, l.round,
			"counterexample %s left the hypothesis at %d states", ce.Input, after))
	}
	return l.nextHypothesis()
}

// Finish accepts the current hypothesis and moves to Done.
func (l *Learner[I, O, A]) Finish() (A, error) {
	if l.phase != PhaseHypothesisReady {
		var zero A
		return zero, l.wrongPhase("Finish", PhaseHypothesisReady)
	}
	l.phase = PhaseDone
	l.logger.Info("learning finished",
		"rounds", l.round,
		"states", l.table.StateCount(),
		"queries", l.table.QueryCount())
	for _, obs := range l.observers {
		obs.Finished(l.hyp, l.Stats(), nil)
	}
	return l.hyp, nil
}

// Run learns until eq finds no counterexample. It starts the learner if
// needed. ctx is checked between rounds; on cancellation the learner aborts
// with ctx.Err().
func (l *Learner[I, O, A]) Run(ctx context.Context, eq oracle.EquivalenceOracle[I, O, A]) (A, error) {
	var zero A
	if l.phase == PhaseInit {
		if err := l.Start(ctx); err != nil {
			return zero, err
		}
	}
	for {
		if l.phase != PhaseHypothesisReady {
			return zero, l.wrongPhase("Run", PhaseInit, PhaseHypothesisReady)
		}
		if err := ctx.Err(); err != nil {
			return zero, l.abort(fmt.Errorf("run cancelled: %w", err))
		}

		ce, found, err := eq.FindCounterexample(ctx, l.hyp)
		if err != nil {
			return zero, l.abort(fmt.Errorf("equivalence query: %w", err))
		}
		if !found {
			return l.Finish()
		}
		if err := l.Refine(ctx, ce); err != nil {
			if l.phase != PhaseAborted {
				l.abort(err)
			}
			return zero, err
		}
	}
}

// Phase returns the current phase.
func (l *Learner[I, O, A]) Phase() Phase { return l.phase }

// Table returns the observation table. Callers must not mutate it.
func (l *Learner[I, O, A]) Table() *table.Table[I, O] { return l.table }

// Stats reports the current table and run counters.
func (l *Learner[I, O, A]) Stats() Stats {
	return Stats{
		Rounds:          l.round,
		States:          l.table.StateCount(),
		Suffixes:        l.table.NumSuffixes(),
		ShortPrefixes:   len(l.table.ShortPrefixRows()),
		Rows:            l.table.NumRows(),
		Queries:         l.table.QueryCount(),
		Counterexamples: l.ces,
	}
}

// resolve closes the table and, if the handler requires it, makes it
// consistent, repeating until both hold.
func (l *Learner[I, O, A]) resolve(ctx context.Context, unclosed [][]*table.Row[I]) error {
	for {
		for len(unclosed) > 0 {
			rows, err := l.closing.SelectClosingRows(ctx, unclosed, l.table, l.mq)
			if err != nil {
				return fmt.Errorf("select closing rows: %w", err)
			}
			if err := l.checkSelection(unclosed, rows); err != nil {
				return err
			}
			l.logger.Debug("closing table",
				"round", l.round,
				"classes", len(unclosed))
			unclosed, err = l.table.Promote(ctx, rows, l.mq)
			if err != nil {
				return err
			}
		}

		if !l.handler.NeedsConsistencyCheck() {
			return nil
		}
		suffix, found := l.table.CheckConsistency()
		if !found {
			return nil
		}
		l.logger.Debug("restoring consistency",
			"round", l.round,
			"suffix", suffix.String())
		var err error
		unclosed, err = l.table.AddSuffix(ctx, suffix, l.mq)
		if err != nil {
			return err
		}
	}
}

func (l *Learner[I, O, A]) checkSelection(unclosed [][]*table.Row[I], rows []*table.Row[I]) error {
	if len(rows) != len(unclosed) {
		return newError(ErrCodeInvalidSelection, l.round,
			"closing strategy returned %d rows for %d classes", len(rows), len(unclosed))
	}
	for i, r := range rows {
		member := false
		for _, c := range unclosed[i] {
			if c == r {
				member = true
				break
			}
		}
		if !member {
			return newError(ErrCodeInvalidSelection, l.round,
				"closing strategy picked %v, which is not in class %d", r, i)
		}
	}
	return nil
}

func (l *Learner[I, O, A]) nextHypothesis() error {
	hyp, err := l.builder.Build(l.table)
	if err != nil {
		return l.abort(fmt.Errorf("build hypothesis: %w", err))
	}
	l.hyp = hyp
	l.round++
	l.phase = PhaseHypothesisReady
	roundsTotal.Inc()
	hypothesisStates.Observe(float64(l.table.StateCount()))

	stats := l.Stats()
	l.logger.Info("hypothesis ready",
		"round", stats.Rounds,
		"states", stats.States,
		"suffixes", stats.Suffixes,
		"queries", stats.Queries)
	for _, obs := range l.observers {
		obs.HypothesisReady(l.round, hyp, stats)
	}
	return nil
}

func (l *Learner[I, O, A]) abort(err error) error {
	l.phase = PhaseAborted
	abortsTotal.Inc()
	l.logger.Error("learning aborted", "round", l.round, "error", err)
	var zero A
	for _, obs := range l.observers {
		obs.Finished(zero, l.Stats(), err)
	}
	return err
}

func (l *Learner[I, O, A]) wrongPhase(op string, want ...Phase) error {
	return newError(ErrCodeWrongPhase, l.round, "%s called in phase %s (want %v)", op, l.phase, want)
}
