// Package equivalence provides equivalence oracles: procedures that look for
// a word on which a hypothesis and the system under learning disagree.
package equivalence

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/word"
)

// ErrAlphabetMismatch is returned when a hypothesis is over different
// symbols, or the same symbols in a different order, than the target.
var ErrAlphabetMismatch = errors.New("hypothesis and target alphabets differ")

// Hypothesis is anything a word can be run on.
type Hypothesis[I comparable, O any] interface {
	Output(w word.Word[I]) O
}

// Exact compares a hypothesis against a known target automaton by
// breadth-first search of the product machine. Counterexamples are shortest
// and, among equally short words, least in alphabet order.
type Exact[I, O comparable] struct {
	target *automaton.Automaton[I, O]
}

// NewExact creates an exact oracle for target.
func NewExact[I, O comparable](target *automaton.Automaton[I, O]) *Exact[I, O] {
	return &Exact[I, O]{target: target}
}

// FindCounterexample searches the product of target and hyp.
func (e *Exact[I, O]) FindCounterexample(ctx context.Context, hyp *automaton.Automaton[I, O]) (oracle.Query[I, O], bool, error) {
	var none oracle.Query[I, O]
	t := e.target
	if hyp.Kind() != t.Kind() {
		return none, false, fmt.Errorf("hypothesis is %s, target is %s", hyp.Kind(), t.Kind())
	}
	alphabet := t.Alphabet()
	if !hyp.Alphabet().Equal(alphabet) {
		return none, false, fmt.Errorf("%w: hypothesis %v, target %v",
			ErrAlphabetMismatch, hyp.Alphabet().Symbols(), alphabet.Symbols())
	}
	if err := ctx.Err(); err != nil {
		return none, false, err
	}

	type pair struct{ t, h int }
	type node struct {
		p    pair
		path word.Word[I]
	}

	start := pair{t.Initial(), hyp.Initial()}
	if t.Kind() == automaton.Moore && t.StateOutput(start.t) != hyp.StateOutput(start.h) {
		return oracle.Query[I, O]{Input: word.Epsilon[I](), Output: t.StateOutput(start.t)}, true, nil
	}

	seen := map[pair]bool{start: true}
	queue := []node{{p: start, path: word.Epsilon[I]()}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for i := 0; i < alphabet.Size(); i++ {
			next := pair{t.Successor(cur.p.t, i), hyp.Successor(cur.p.h, i)}
			path := cur.path.Append(alphabet.Symbol(i))

			var want, got O
			if t.Kind() == automaton.Moore {
				want, got = t.StateOutput(next.t), hyp.StateOutput(next.h)
			} else {
				want, got = t.TransitionOutput(cur.p.t, i), hyp.TransitionOutput(cur.p.h, i)
			}
			if want != got {
				return oracle.Query[I, O]{Input: path, Output: want}, true, nil
			}
			if !seen[next] {
				seen[next] = true
				queue = append(queue, node{p: next, path: path})
			}
		}
	}
	return none, false, nil
}

// RandomWords samples words of random length from a seeded source, asks the
// membership oracle for them in batches, and reports the first word on which
// the hypothesis disagrees.
type RandomWords[I, O comparable, A Hypothesis[I, O]] struct {
	alphabet *word.Alphabet[I]
	mq       oracle.MembershipOracle[I, O]
	rng      *rand.Rand

	count  int
	minLen int
	maxLen int
	batch  int
}

// RandomOption configures RandomWords.
type RandomOption func(*randomConfig)

type randomConfig struct {
	count, minLen, maxLen, batch int
}

// Default random word length range.
const (
	DefaultMinLength = 1
	DefaultMaxLength = 16
)

// WithCount sets how many words are tried per query. Default 1000.
func WithCount(n int) RandomOption { return func(c *randomConfig) { c.count = n } }

// WithLength sets the inclusive word length range. Default [1, 16].
func WithLength(minLen, maxLen int) RandomOption {
	return func(c *randomConfig) { c.minLen, c.maxLen = minLen, maxLen }
}

// WithBatchSize sets how many words are sent per oracle call. Default 100.
func WithBatchSize(n int) RandomOption { return func(c *randomConfig) { c.batch = n } }

// NewRandomWords creates a random-word oracle. rng is owned by the caller.
func NewRandomWords[I, O comparable, A Hypothesis[I, O]](
	alphabet *word.Alphabet[I],
	mq oracle.MembershipOracle[I, O],
	rng *rand.Rand,
	opts ...RandomOption,
) (*RandomWords[I, O, A], error) {
	cfg := randomConfig{count: 1000, minLen: DefaultMinLength, maxLen: DefaultMaxLength, batch: 100}
	for _, opt := range opts {
		opt(&cfg)
	}
	switch {
	case rng == nil:
		return nil, errors.New("random source is nil")
	case cfg.count < 0:
		return nil, fmt.Errorf("count must not be negative, got %d", cfg.count)
	case cfg.minLen < 0 || cfg.maxLen < cfg.minLen:
		return nil, fmt.Errorf("invalid length range [%d, %d]", cfg.minLen, cfg.maxLen)
	case cfg.batch <= 0:
		return nil, fmt.Errorf("batch size must be positive, got %d", cfg.batch)
	}
	return &RandomWords[I, O, A]{
		alphabet: alphabet,
		mq:       mq,
		rng:      rng,
		count:    cfg.count,
		minLen:   cfg.minLen,
		maxLen:   cfg.maxLen,
		batch:    cfg.batch,
	}, nil
}

// FindCounterexample tries up to the configured number of words.
func (r *RandomWords[I, O, A]) FindCounterexample(ctx context.Context, hyp A) (oracle.Query[I, O], bool, error) {
	var none oracle.Query[I, O]
	for done := 0; done < r.count; {
		if err := ctx.Err(); err != nil {
			return none, false, err
		}
		n := min(r.batch, r.count-done)
		words := make([]word.Word[I], n)
		for i := range words {
			words[i] = r.sample()
		}
		out, err := r.mq.Answer(ctx, words)
		if err != nil {
			return none, false, err
		}
		if err := oracle.CheckAnswers(n, out); err != nil {
			return none, false, err
		}
		for i, w := range words {
			if hyp.Output(w) != out[i] {
				return oracle.Query[I, O]{Input: w, Output: out[i]}, true, nil
			}
		}
		done += n
	}
	return none, false, nil
}

func (r *RandomWords[I, O, A]) sample() word.Word[I] {
	n := r.minLen + r.rng.IntN(r.maxLen-r.minLen+1)
	syms := make([]I, n)
	for i := range syms {
		syms[i] = r.alphabet.Symbol(r.rng.IntN(r.alphabet.Size()))
	}
	return word.Of(syms...)
}

// Scripted replays a fixed list of counterexamples, skipping any the current
// hypothesis already answers correctly. Used to replay recorded runs.
type Scripted[I, O comparable, A Hypothesis[I, O]] struct {
	queries []oracle.Query[I, O]
	next    int
}

// NewScripted creates a scripted oracle over queries, which are copied.
func NewScripted[I, O comparable, A Hypothesis[I, O]](queries []oracle.Query[I, O]) *Scripted[I, O, A] {
	return &Scripted[I, O, A]{queries: append([]oracle.Query[I, O](nil), queries...)}
}

// FindCounterexample returns the next scripted query the hypothesis gets
// wrong.
func (s *Scripted[I, O, A]) FindCounterexample(_ context.Context, hyp A) (oracle.Query[I, O], bool, error) {
	for s.next < len(s.queries) {
		q := s.queries[s.next]
		s.next++
		if hyp.Output(q.Input) != q.Output {
			return q, true, nil
		}
	}
	return oracle.Query[I, O]{}, false, nil
}

// Remaining returns how many scripted queries have not been consumed.
func (s *Scripted[I, O, A]) Remaining() int { return len(s.queries) - s.next }

// Chain asks each oracle in turn and returns the first counterexample found.
type Chain[I, O comparable, A any] []oracle.EquivalenceOracle[I, O, A]

// FindCounterexample implements oracle.EquivalenceOracle.
func (c Chain[I, O, A]) FindCounterexample(ctx context.Context, hyp A) (oracle.Query[I, O], bool, error) {
	for _, eq := range c {
		q, found, err := eq.FindCounterexample(ctx, hyp)
		if err != nil || found {
			return q, found, err
		}
	}
	return oracle.Query[I, O]{}, false, nil
}
