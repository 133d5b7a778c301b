package cex

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

var (
	errEmptyCounterexample = errors.New("counterexample is the empty word")

	// ErrNoDecomposition is returned when the counterexample does not
	// contradict the hypothesis encoded by the table.
	ErrNoDecomposition = errors.New("counterexample has no distinguishing decomposition")
)

// RivestSchapire finds a single distinguishing suffix by binary search and
// adds it as a column.
//
// Writing the counterexample as u_i·v_i with |u_i| = i, let
// α(i) = MQ(access(u_i)·v_i), where access maps a word to the short prefix
// of the hypothesis state it reaches. α(0) is the system's output on the
// counterexample. For Moore machines α(n) is the hypothesis output; for
// Mealy machines α(n-1) is. Between two indices with different α there are
// adjacent i, i+1 with α(i) != α(i+1), and v_{i+1} separates access(u_i)·a
// from its representative.
//
// Adding a single suffix may make short prefixes inconsistent. A word that
// does not contradict the table leaves it unchanged and yields no unclosed
// rows.
type RivestSchapire[I, O comparable] struct{}

func (RivestSchapire[I, O]) NeedsConsistencyCheck() bool { return true }

func (RivestSchapire[I, O]) Handle(ctx context.Context, ce oracle.Query[I, O], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) ([][]*table.Row[I], error) {
	suffix, err := Decompose(ctx, ce, t, mq)
	if errors.Is(err, ErrNoDecomposition) {
		// Nothing to add; the caller sees the hypothesis did not grow.
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return t.AddSuffix(ctx, suffix, mq)
}

// Decompose returns the distinguishing suffix RivestSchapire would add.
func Decompose[I, O comparable](ctx context.Context, ce oracle.Query[I, O], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) (word.Word[I], error) {
	n := ce.Input.Len()
	if n == 0 {
		return word.Word[I]{}, errEmptyCounterexample
	}

	alpha := func(i int) (O, error) {
		var zero O
		acc, ok := t.AccessSequence(ce.Input.Prefix(i))
		if !ok {
			return zero, fmt.Errorf("no hypothesis state for prefix %s", ce.Input.Prefix(i))
		}
		return t.Query(ctx, mq, acc.Concat(ce.Input.Sub(i, n)))
	}

	lo, hi := 0, n
	low := ce.Output
	high, err := alpha(hi)
	if err != nil {
		return word.Word[I]{}, err
	}
	if high == low {
		hi = n - 1
		if hi <= lo {
			return word.Word[I]{}, ErrNoDecomposition
		}
		if high, err = alpha(hi); err != nil {
			return word.Word[I]{}, err
		}
		if high == low {
			return word.Word[I]{}, ErrNoDecomposition
		}
	}

	// α(lo) == low and α(hi) != low throughout.
	for hi-lo > 1 {
		mid := lo + (hi-lo)/2
		got, err := alpha(mid)
		if err != nil {
			return word.Word[I]{}, err
		}
		if got == low {
			lo = mid
		} else {
			hi = mid
		}
	}
	return ce.Input.Sub(hi, n), nil
}
