package table

import "github.com/roach88/lstar/internal/word"

// Row is one prefix of the observation table.
//
// Rows are created and mutated only by their Table. Contents live in the
// table (Table.Contents, Table.Cell) because they are stored interned.
type Row[I comparable] struct {
	label word.Word[I]
	id    int
	short bool

	contents []int
	key      string

	// successors[i] is the row for label·alphabet[i]; set once the row is a
	// short prefix.
	successors []*Row[I]
}

// Label returns the prefix identifying the row.
func (r *Row[I]) Label() word.Word[I] { return r.label }

// ID returns the row's position in insertion order.
func (r *Row[I]) ID() int { return r.id }

// IsShortPrefix reports whether the row is a short prefix.
func (r *Row[I]) IsShortPrefix() bool { return r.short }

// Successor returns the row for Label()·alphabet[symIdx]. Nil for candidates.
func (r *Row[I]) Successor(symIdx int) *Row[I] {
	if r.successors == nil {
		return nil
	}
	return r.successors[symIdx]
}

func (r *Row[I]) String() string {
	return r.label.String()
}

// Inconsistency describes two equal-content short prefixes whose extensions
// by Symbol differ at Column.
type Inconsistency[I comparable] struct {
	First, Second *Row[I]
	Symbol        I
	SymbolIndex   int
	Column        int
	Suffix        word.Word[I]
}

// DistinguishingSuffix returns Symbol·Suffix, the column that separates
// First from Second.
func (c Inconsistency[I]) DistinguishingSuffix() word.Word[I] {
	return c.Suffix.Prepend(c.Symbol)
}
