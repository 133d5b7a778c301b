package word

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"
)

// ErrEmptyAlphabet is returned when an alphabet is built without symbols.
var ErrEmptyAlphabet = errors.New("alphabet must contain at least one symbol")

// Alphabet is an ordered, fixed set of input symbols.
//
// Each symbol has a stable index in [0, Size()). The alphabet never changes
// after construction.
type Alphabet[I comparable] struct {
	symbols []I
	index   map[I]int
}

// NewAlphabet builds an alphabet from symbols in the given order.
// Fails on an empty symbol list or duplicate symbols.
func NewAlphabet[I comparable](symbols ...I) (*Alphabet[I], error) {
	if len(symbols) == 0 {
		return nil, ErrEmptyAlphabet
	}

	a := &Alphabet[I]{
		symbols: make([]I, len(symbols)),
		index:   make(map[I]int, len(symbols)),
	}
	for i, s := range symbols {
		if _, dup := a.index[s]; dup {
			return nil, fmt.Errorf("duplicate symbol %v at position %d", s, i)
		}
		a.symbols[i] = s
		a.index[s] = i
	}
	return a, nil
}

// MustAlphabet is like NewAlphabet but panics on error.
// Use only in tests or when symbols are known to be valid.
func MustAlphabet[I comparable](symbols ...I) *Alphabet[I] {
	a, err := NewAlphabet(symbols...)
	if err != nil {
		panic(err)
	}
	return a
}

// Size returns the number of symbols.
func (a *Alphabet[I]) Size() int {
	return len(a.symbols)
}

// Symbol returns the symbol at index i.
func (a *Alphabet[I]) Symbol(i int) I {
	return a.symbols[i]
}

// Index returns the index of sym and whether it belongs to the alphabet.
func (a *Alphabet[I]) Index(sym I) (int, bool) {
	i, ok := a.index[sym]
	return i, ok
}

// Symbols returns a copy of the symbols in alphabet order.
func (a *Alphabet[I]) Symbols() []I {
	out := make([]I, len(a.symbols))
	copy(out, a.symbols)
	return out
}

// Equal reports whether a and b hold the same symbols in the same order.
// Symbol indices, and so word keys, agree exactly when alphabets are equal.
func (a *Alphabet[I]) Equal(b *Alphabet[I]) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	return slices.Equal(a.symbols, b.symbols)
}

// Contains reports whether every symbol of w belongs to the alphabet.
func (a *Alphabet[I]) Contains(w Word[I]) bool {
	for _, s := range w.syms {
		if _, ok := a.index[s]; !ok {
			return false
		}
	}
	return true
}

// Key returns a map key for w built from the uvarint encoding of its symbol
// indices. Two words have the same key iff they are equal. The second result
// is false if w contains a symbol outside the alphabet.
func (a *Alphabet[I]) Key(w Word[I]) (string, bool) {
	buf := make([]byte, 0, len(w.syms)+1)
	for _, s := range w.syms {
		i, ok := a.index[s]
		if !ok {
			return "", false
		}
		buf = binary.AppendUvarint(buf, uint64(i))
	}
	return string(buf), true
}

// MustKey is like Key but panics on a foreign symbol.
func (a *Alphabet[I]) MustKey(w Word[I]) string {
	k, ok := a.Key(w)
	if !ok {
		panic(fmt.Sprintf("word %s is not over the alphabet", w))
	}
	return k
}

// Compare orders words by length, then lexicographically by symbol index.
// Returns -1, 0 or +1. Words must be over the alphabet.
func (a *Alphabet[I]) Compare(x, y Word[I]) int {
	if x.Len() != y.Len() {
		if x.Len() < y.Len() {
			return -1
		}
		return 1
	}
	for i := range x.syms {
		xi, yi := a.index[x.syms[i]], a.index[y.syms[i]]
		if xi != yi {
			if xi < yi {
				return -1
			}
			return 1
		}
	}
	return 0
}
