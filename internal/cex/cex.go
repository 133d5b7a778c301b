// Package cex implements counterexample handlers: policies that grow the
// observation table so that a counterexample cannot be reproduced by the
// next hypothesis.
//
// Handlers differ in what they add (short prefixes or suffixes, many or one)
// and in whether the table stays consistent as a side effect. Handlers that
// only add suffixes never create equal-content short prefixes and report
// NeedsConsistencyCheck() == false.
package cex

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

// Handler incorporates a counterexample into the table and returns the
// unclosed classes after the change.
type Handler[I, O comparable] interface {
	Handle(ctx context.Context, ce oracle.Query[I, O], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) ([][]*table.Row[I], error)

	// NeedsConsistencyCheck reports whether the learner must restore
	// consistency after Handle.
	NeedsConsistencyCheck() bool
}

// Kind names a built-in handler.
type Kind string

const (
	KindClassic        Kind = "classic"
	KindMalerPnueli    Kind = "maler-pnueli"
	KindShahbaz        Kind = "shahbaz"
	KindRivestSchapire Kind = "rivest-schapire"
)

// Kinds lists the built-in handlers in display order.
func Kinds() []Kind {
	return []Kind{KindClassic, KindMalerPnueli, KindShahbaz, KindRivestSchapire}
}

// ParseKind resolves a handler name. Short aliases (mp, rs) are accepted.
func ParseKind(s string) (Kind, error) {
	k := strings.ToLower(strings.TrimSpace(s))
	switch k {
	case "mp":
		return KindMalerPnueli, nil
	case "rs":
		return KindRivestSchapire, nil
	}
	for _, known := range Kinds() {
		if Kind(k) == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown counterexample handler %q (want one of %v)", s, Kinds())
}

// New constructs the handler named by kind. The empty kind is Classic.
func New[I, O comparable](kind Kind) (Handler[I, O], error) {
	switch kind {
	case KindClassic, "":
		return Classic[I, O]{}, nil
	case KindMalerPnueli:
		return MalerPnueli[I, O]{}, nil
	case KindShahbaz:
		return Shahbaz[I, O]{}, nil
	case KindRivestSchapire:
		return RivestSchapire[I, O]{}, nil
	default:
		return nil, fmt.Errorf("unknown counterexample handler %q", kind)
	}
}

// Classic adds the counterexample and all its prefixes as short prefixes.
// New short prefixes may share contents, so consistency must be checked.
type Classic[I, O comparable] struct{}

func (Classic[I, O]) Handle(ctx context.Context, ce oracle.Query[I, O], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) ([][]*table.Row[I], error) {
	return t.AddShortPrefixes(ctx, []word.Word[I]{ce.Input}, mq)
}

func (Classic[I, O]) NeedsConsistencyCheck() bool { return true }

// MalerPnueli adds every non-empty suffix of the counterexample as a column,
// longest first.
type MalerPnueli[I, O comparable] struct{}

func (MalerPnueli[I, O]) Handle(ctx context.Context, ce oracle.Query[I, O], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) ([][]*table.Row[I], error) {
	return t.AddSuffixes(ctx, ce.Input.Suffixes(false), mq)
}

func (MalerPnueli[I, O]) NeedsConsistencyCheck() bool { return false }

// Shahbaz strips the longest prefix of the counterexample that is already a
// row and adds every non-empty suffix of the remainder.
type Shahbaz[I, O comparable] struct{}

func (Shahbaz[I, O]) Handle(ctx context.Context, ce oracle.Query[I, O], t *table.Table[I, O], mq oracle.MembershipOracle[I, O]) ([][]*table.Row[I], error) {
	n := ce.Input.Len()
	if n == 0 {
		return nil, errEmptyCounterexample
	}
	// The remainder is never empty: at most the first n-1 symbols are stripped.
	cut := 0
	for i := n - 1; i > 0; i-- {
		if _, ok := t.Row(ce.Input.Prefix(i)); ok {
			cut = i
			break
		}
	}
	return t.AddSuffixes(ctx, ce.Input.Sub(cut, n).Suffixes(false), mq)
}

func (Shahbaz[I, O]) NeedsConsistencyCheck() bool { return false }
