// Package closing implements policies that pick which candidate rows become
// short prefixes when the observation table is not closed.
//
// Every strategy returns exactly one row per unclosed class, drawn from that
// class. Any such choice yields a correct learner; the choice only changes
// query counts and the shape of intermediate hypotheses.
package closing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

// Strategy selects one representative per unclosed class.
type Strategy[I, O comparable] interface {
	SelectClosingRows(ctx context.Context, unclosed [][]*table.Row[I], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) ([]*table.Row[I], error)
}

// Kind names a built-in strategy.
type Kind string

const (
	KindFirst    Kind = "first"
	KindRandom   Kind = "random"
	KindShortest Kind = "shortest"
	KindLexMin   Kind = "lexmin"
)

// Kinds lists the built-in strategies in display order.
func Kinds() []Kind {
	return []Kind{KindFirst, KindRandom, KindShortest, KindLexMin}
}

// ParseKind resolves a strategy name, case-insensitively.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Kinds() {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown closing strategy %q (want one of %v)", s, Kinds())
}

// EffectiveSeed returns the seed a strategy of kind built from seed draws
// from. For KindRandom, 0 is replaced by a time-based seed and a warning is
// logged; only the returned seed reproduces the run. Other kinds keep seed.
func EffectiveSeed(kind Kind, seed uint64, logger *slog.Logger) uint64 {
	if kind != KindRandom || seed != 0 {
		return seed
	}
	seed = uint64(time.Now().UnixNano()) | 1
	if logger == nil {
		logger = slog.Default()
	}
	logger.Warn("random closing strategy without a fixed seed; record the drawn seed to reproduce the run",
		"seed", seed)
	return seed
}

// New constructs the strategy named by kind.
//
// seed only matters for KindRandom. Seed 0 means "unseeded": see
// EffectiveSeed. Callers that record runs resolve the seed first.
func New[I, O comparable](kind Kind, seed uint64, logger *slog.Logger) (Strategy[I, O], error) {
	switch kind {
	case KindFirst, "":
		return First[I, O]{}, nil
	case KindShortest:
		return Shortest[I, O]{}, nil
	case KindLexMin:
		return LexMin[I, O]{}, nil
	case KindRandom:
		seed = EffectiveSeed(kind, seed, logger)
		return NewRandom[I, O](rand.New(rand.NewPCG(seed, seed))), nil
	default:
		return nil, fmt.Errorf("unknown closing strategy %q", kind)
	}
}

// First picks the first row of each class, in insertion order.
type First[I, O comparable] struct{}

func (First[I, O]) SelectClosingRows(_ context.Context, unclosed [][]*table.Row[I], _ *table.Table[I, O], _ oracle.MembershipOracle[I, O]) ([]*table.Row[I], error) {
	out := make([]*table.Row[I], 0, len(unclosed))
	for _, class := range unclosed {
		if len(class) == 0 {
			return nil, errEmptyClass
		}
		out = append(out, class[0])
	}
	return out, nil
}

// Random picks a uniformly random row of each class.
//
// The source is owned by the strategy's creator. A Random is not safe for
// concurrent use unless its source is.
type Random[I, O comparable] struct {
	rng *rand.Rand
}

// NewRandom creates a Random strategy drawing from rng.
func NewRandom[I, O comparable](rng *rand.Rand) *Random[I, O] {
	return &Random[I, O]{rng: rng}
}

func (r *Random[I, O]) SelectClosingRows(_ context.Context, unclosed [][]*table.Row[I], _ *table.Table[I, O], _ oracle.MembershipOracle[I, O]) ([]*table.Row[I], error) {
	out := make([]*table.Row[I], 0, len(unclosed))
	for _, class := range unclosed {
		if len(class) == 0 {
			return nil, errEmptyClass
		}
		out = append(out, class[r.rng.IntN(len(class))])
	}
	return out, nil
}

// Shortest picks the row with the shortest label; ties go to the first seen.
// Short access sequences keep later queries short.
type Shortest[I, O comparable] struct{}

func (Shortest[I, O]) SelectClosingRows(_ context.Context, unclosed [][]*table.Row[I], _ *table.Table[I, O], _ oracle.MembershipOracle[I, O]) ([]*table.Row[I], error) {
	return pick(unclosed, func(a, b *table.Row[I]) bool {
		return a.Label().Len() < b.Label().Len()
	})
}

// LexMin picks the row whose label is lexicographically least in alphabet
// order (a proper prefix sorts first).
type LexMin[I, O comparable] struct{}

func (LexMin[I, O]) SelectClosingRows(_ context.Context, unclosed [][]*table.Row[I], t *table.Table[I, O], _ oracle.MembershipOracle[I, O]) ([]*table.Row[I], error) {
	alphabet := t.Alphabet()
	return pick(unclosed, func(a, b *table.Row[I]) bool {
		return lexLess(alphabet, a.Label(), b.Label())
	})
}

var errEmptyClass = errors.New("unclosed class has no rows")

// pick returns, per class, the first row not beaten by a later one.
func pick[I comparable](unclosed [][]*table.Row[I], less func(a, b *table.Row[I]) bool) ([]*table.Row[I], error) {
	out := make([]*table.Row[I], 0, len(unclosed))
	for _, class := range unclosed {
		if len(class) == 0 {
			return nil, errEmptyClass
		}
		best := class[0]
		for _, r := range class[1:] {
			if less(r, best) {
				best = r
			}
		}
		out = append(out, best)
	}
	return out, nil
}

func lexLess[I comparable](alphabet *word.Alphabet[I], x, y word.Word[I]) bool {
	n := min(x.Len(), y.Len())
	for i := 0; i < n; i++ {
		xi, _ := alphabet.Index(x.At(i))
		yi, _ := alphabet.Index(y.At(i))
		if xi != yi {
			return xi < yi
		}
	}
	return x.Len() < y.Len()
}
