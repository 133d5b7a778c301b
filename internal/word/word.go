package word

import (
	"fmt"
	"slices"
	"strings"
)

// Word is an immutable finite sequence of symbols.
// The zero value is the empty word.
type Word[I comparable] struct {
	syms []I
}

// Epsilon returns the empty word.
func Epsilon[I comparable]() Word[I] {
	return Word[I]{}
}

// Of builds a word from the given symbols. The slice is copied.
func Of[I comparable](symbols ...I) Word[I] {
	if len(symbols) == 0 {
		return Word[I]{}
	}
	return Word[I]{syms: slices.Clone(symbols)}
}

// Len returns the number of symbols.
func (w Word[I]) Len() int {
	return len(w.syms)
}

// IsEmpty reports whether w is the empty word.
func (w Word[I]) IsEmpty() bool {
	return len(w.syms) == 0
}

// At returns the symbol at position i.
func (w Word[I]) At(i int) I {
	return w.syms[i]
}

// Last returns the final symbol. Panics on the empty word.
func (w Word[I]) Last() I {
	return w.syms[len(w.syms)-1]
}

// Symbols returns a copy of the symbols.
func (w Word[I]) Symbols() []I {
	return slices.Clone(w.syms)
}

// Prefix returns the first n symbols.
func (w Word[I]) Prefix(n int) Word[I] {
	return w.Sub(0, n)
}

// Suffix returns the last n symbols.
func (w Word[I]) Suffix(n int) Word[I] {
	return w.Sub(len(w.syms)-n, len(w.syms))
}

// Sub returns symbols [from, to).
func (w Word[I]) Sub(from, to int) Word[I] {
	if from < 0 || to > len(w.syms) || from > to {
		panic(fmt.Sprintf("word: sub range [%d,%d) out of bounds for length %d", from, to, len(w.syms)))
	}
	if from == to {
		return Word[I]{}
	}
	// Full slice expression caps capacity so Append never writes into w.
	return Word[I]{syms: w.syms[from:to:to]}
}

// Append returns w followed by sym.
func (w Word[I]) Append(sym I) Word[I] {
	out := make([]I, len(w.syms)+1)
	copy(out, w.syms)
	out[len(w.syms)] = sym
	return Word[I]{syms: out}
}

// Prepend returns sym followed by w.
func (w Word[I]) Prepend(sym I) Word[I] {
	out := make([]I, len(w.syms)+1)
	out[0] = sym
	copy(out[1:], w.syms)
	return Word[I]{syms: out}
}

// Concat returns w followed by each of others.
func (w Word[I]) Concat(others ...Word[I]) Word[I] {
	n := len(w.syms)
	for _, o := range others {
		n += len(o.syms)
	}
	if n == len(w.syms) {
		return w
	}
	out := make([]I, 0, n)
	out = append(out, w.syms...)
	for _, o := range others {
		out = append(out, o.syms...)
	}
	return Word[I]{syms: out}
}

// Prefixes returns all prefixes of w. With includeEmpty the empty word comes
// first; the list always ends with w itself.
func (w Word[I]) Prefixes(includeEmpty bool) []Word[I] {
	start := 1
	if includeEmpty {
		start = 0
	}
	out := make([]Word[I], 0, len(w.syms)+1)
	for n := start; n <= len(w.syms); n++ {
		out = append(out, w.Prefix(n))
	}
	return out
}

// Suffixes returns all suffixes of w, longest first. With includeEmpty the
// list ends with the empty word.
func (w Word[I]) Suffixes(includeEmpty bool) []Word[I] {
	end := 1
	if includeEmpty {
		end = 0
	}
	out := make([]Word[I], 0, len(w.syms)+1)
	for n := len(w.syms); n >= end; n-- {
		out = append(out, w.Suffix(n))
	}
	return out
}

// Equal reports whether w and o contain the same symbols in the same order.
func (w Word[I]) Equal(o Word[I]) bool {
	return slices.Equal(w.syms, o.syms)
}

// HasPrefix reports whether p is a prefix of w.
func (w Word[I]) HasPrefix(p Word[I]) bool {
	return len(p.syms) <= len(w.syms) && slices.Equal(w.syms[:len(p.syms)], p.syms)
}

// String renders the word as space separated symbols, or "ε" when empty.
func (w Word[I]) String() string {
	if len(w.syms) == 0 {
		return "ε"
	}
	parts := make([]string, len(w.syms))
	for i, s := range w.syms {
		parts[i] = fmt.Sprint(s)
	}
	return strings.Join(parts, " ")
}
