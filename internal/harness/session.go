package harness

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/cex"
	"github.com/roach88/lstar/internal/closing"
	"github.com/roach88/lstar/internal/equivalence"
	"github.com/roach88/lstar/internal/hypothesis"
	"github.com/roach88/lstar/internal/learner"
	"github.com/roach88/lstar/internal/machine"
	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/word"
)

// Machine is the automaton type learned from CUE definitions.
type Machine = *automaton.Automaton[string, string]

// Equivalence procedure names.
const (
	EquivalenceExact    = "exact"
	EquivalenceRandom   = "random"
	EquivalenceScripted = "scripted"
)

// LearnerConfig selects the learner's policies.
type LearnerConfig struct {
	Closing string `yaml:"closing,omitempty" json:"closing"`
	Handler string `yaml:"handler,omitempty" json:"handler"`

	// Seed drives the random closing strategy. 0 is unseeded; see PinSeed.
	Seed uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`

	// InitialSuffixes replaces the builder's default columns. Each entry
	// is a word given as a symbol list; [] is the empty word.
	InitialSuffixes [][]string `yaml:"initial_suffixes,omitempty" json:"initial_suffixes,omitempty"`

	MaxRounds int  `yaml:"max_rounds,omitempty" json:"max_rounds,omitempty"`
	Cache     bool `yaml:"cache,omitempty" json:"cache,omitempty"`

	// Workers > 1 answers membership batches concurrently.
	Workers int `yaml:"workers,omitempty" json:"workers,omitempty"`
}

// PinSeed returns lc with an unset random closing seed replaced by the one
// the strategy will draw from, so a recorded run can be replayed. Unknown
// closing names are left for NewSession to report.
func (lc LearnerConfig) PinSeed(logger *slog.Logger) LearnerConfig {
	kind, err := closing.ParseKind(defaultString(lc.Closing, string(closing.KindFirst)))
	if err == nil {
		lc.Seed = closing.EffectiveSeed(kind, lc.Seed, logger)
	}
	return lc
}

// EquivalenceConfig selects how counterexamples are found.
type EquivalenceConfig struct {
	Type string `yaml:"type" json:"type"`

	// Random words.
	Seed      uint64 `yaml:"seed,omitempty" json:"seed,omitempty"`
	Count     int    `yaml:"count,omitempty" json:"count,omitempty"`
	MinLength int    `yaml:"min_length,omitempty" json:"min_length,omitempty"`
	MaxLength int    `yaml:"max_length,omitempty" json:"max_length,omitempty"`

	// Scripted counterexamples, handed out in order.
	Counterexamples []QueryStep `yaml:"counterexamples,omitempty" json:"counterexamples,omitempty"`
}

// Name is the procedure name recorded in run logs.
func (c EquivalenceConfig) Name() string {
	if c.Type == "" {
		return EquivalenceExact
	}
	return c.Type
}

// LengthRange returns the random word length range, filling an unset bound
// from the defaults. ok is false when neither bound is set.
func (c EquivalenceConfig) LengthRange() (minLen, maxLen int, ok bool) {
	if c.MinLength <= 0 && c.MaxLength <= 0 {
		return 0, 0, false
	}
	minLen, maxLen = c.MinLength, c.MaxLength
	if minLen <= 0 {
		minLen = min(equivalence.DefaultMinLength, maxLen)
	}
	if maxLen <= 0 {
		maxLen = max(minLen, equivalence.DefaultMaxLength)
	}
	return minLen, maxLen, true
}

// QueryStep is a word and its output.
type QueryStep struct {
	Input  []string `yaml:"input" json:"input"`
	Output string   `yaml:"output" json:"output"`
}

// Session is a learner wired to a compiled machine.
type Session struct {
	Machine     *machine.Machine
	Learner     *learner.Learner[string, string, Machine]
	Equivalence oracle.EquivalenceOracle[string, string, Machine]

	// Counter sees every membership query the learner and the equivalence
	// procedure send.
	Counter *oracle.Counter[string, string]

	// Closing and Handler are the resolved policy names.
	Closing closing.Kind
	Handler cex.Kind
}

// NewSession builds the oracle stack, learner and equivalence procedure for
// m. The membership stack is Counter -> Cache (optional) -> Parallel
// (optional) -> Simulator.
func NewSession(m *machine.Machine, lc LearnerConfig, ec EquivalenceConfig, logger *slog.Logger, observers ...learner.Observer[string, string, Machine]) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	target := m.Automaton
	alphabet := target.Alphabet()

	var mq oracle.MembershipOracle[string, string] = oracle.NewSimulator[string, string](target)
	if lc.Workers > 1 {
		mq = oracle.NewParallel(mq, oracle.WithWorkers(lc.Workers))
	}
	if lc.Cache {
		mq = oracle.NewCache(alphabet, mq)
	}
	counter := oracle.NewCounter(m.Name, mq)

	closingKind, err := closing.ParseKind(defaultString(lc.Closing, string(closing.KindFirst)))
	if err != nil {
		return nil, err
	}
	strategy, err := closing.New[string, string](closingKind, lc.Seed, logger)
	if err != nil {
		return nil, err
	}
	handlerKind, err := cex.ParseKind(defaultString(lc.Handler, string(cex.KindClassic)))
	if err != nil {
		return nil, err
	}
	handler, err := cex.New[string, string](handlerKind)
	if err != nil {
		return nil, err
	}

	opts := []learner.Option[string, string, Machine]{
		learner.WithClosingStrategy[string, string, Machine](strategy),
		learner.WithCounterexampleHandler[string, string, Machine](handler),
		learner.WithLogger[string, string, Machine](logger.With("machine", m.Name)),
		learner.WithMaxRounds[string, string, Machine](lc.MaxRounds),
	}
	if lc.InitialSuffixes != nil {
		suffixes := make([]word.Word[string], len(lc.InitialSuffixes))
		for i, s := range lc.InitialSuffixes {
			suffixes[i] = word.Of(s...)
		}
		opts = append(opts, learner.WithInitialSuffixes[string, string, Machine](suffixes...))
	}
	for _, obs := range observers {
		opts = append(opts, learner.WithObserver[string, string, Machine](obs))
	}

	var builder learner.Builder[string, string, Machine] = hypothesis.Moore[string, string]{}
	if target.Kind() == automaton.Mealy {
		builder = hypothesis.Mealy[string, string]{}
	}
	l, err := learner.New[string, string, Machine](alphabet, counter, builder, opts...)
	if err != nil {
		return nil, err
	}

	eq, err := newEquivalence(target, counter, ec)
	if err != nil {
		return nil, err
	}

	return &Session{
		Machine:     m,
		Learner:     l,
		Equivalence: eq,
		Counter:     counter,
		Closing:     closingKind,
		Handler:     handlerKind,
	}, nil
}

func newEquivalence(target Machine, mq oracle.MembershipOracle[string, string], ec EquivalenceConfig) (oracle.EquivalenceOracle[string, string, Machine], error) {
	switch strings.ToLower(ec.Name()) {
	case EquivalenceExact:
		return equivalence.NewExact(target), nil
	case EquivalenceRandom:
		var opts []equivalence.RandomOption
		if ec.Count > 0 {
			opts = append(opts, equivalence.WithCount(ec.Count))
		}
		if lo, hi, ok := ec.LengthRange(); ok {
			opts = append(opts, equivalence.WithLength(lo, hi))
		}
		// PCG wants two words; the second is fixed so one seed names a run.
		rng := rand.New(rand.NewPCG(ec.Seed, 0x9e3779b97f4a7c15))
		return equivalence.NewRandomWords[string, string, Machine](target.Alphabet(), mq, rng, opts...)
	case EquivalenceScripted:
		script := make([]oracle.Query[string, string], len(ec.Counterexamples))
		for i, q := range ec.Counterexamples {
			script[i] = oracle.Query[string, string]{Input: word.Of(q.Input...), Output: q.Output}
		}
		return equivalence.NewScripted[string, string, Machine](script), nil
	default:
		return nil, fmt.Errorf("unknown equivalence procedure %q (want exact, random or scripted)", ec.Type)
	}
}

func defaultString(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
