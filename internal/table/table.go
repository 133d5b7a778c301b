package table

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/word"
)

var (
	// ErrNotInitialized is returned by growing operations before Initialize.
	ErrNotInitialized = errors.New("observation table is not initialized")

	// ErrAlreadyInitialized is returned by a second Initialize.
	ErrAlreadyInitialized = errors.New("observation table is already initialized")

	// ErrMalformedSuffix marks suffixes with foreign symbols or duplicate
	// initial suffixes.
	ErrMalformedSuffix = errors.New("malformed suffix")

	// ErrForeignWord marks prefixes with symbols outside the alphabet.
	ErrForeignWord = errors.New("word is not over the alphabet")

	// ErrUnknownRow marks rows that do not belong to this table.
	ErrUnknownRow = errors.New("row does not belong to this table")
)

// Table is an observation table over inputs I and outputs O.
//
// A Table has exactly one owner. It is not safe for concurrent use.
type Table[I, O comparable] struct {
	alphabet    *word.Alphabet[I]
	initialized bool

	suffixes   []word.Word[I]
	suffixKeys map[string]int

	rows          []*Row[I]
	rowByKey      map[string]*Row[I]
	shortPrefixes []*Row[I]

	// spIndex groups short prefixes by content key, in insertion order.
	spIndex map[string][]*Row[I]

	outputs   []O
	outputIDs map[O]int

	// answers is the query cache: word key -> interned output.
	answers map[string]int

	clock   Clock
	queries int
}

// New creates an empty table over alphabet. Call Initialize before use.
func New[I, O comparable](alphabet *word.Alphabet[I]) *Table[I, O] {
	return &Table[I, O]{
		alphabet:   alphabet,
		suffixKeys: make(map[string]int),
		rowByKey:   make(map[string]*Row[I]),
		spIndex:    make(map[string][]*Row[I]),
		outputIDs:  make(map[O]int),
		answers:    make(map[string]int),
	}
}

// ValidateSuffixes checks an initial suffix list: every suffix over the
// alphabet, no duplicates.
func ValidateSuffixes[I comparable](alphabet *word.Alphabet[I], suffixes []word.Word[I]) error {
	seen := make(map[string]int, len(suffixes))
	for i, s := range suffixes {
		key, ok := alphabet.Key(s)
		if !ok {
			return fmt.Errorf("%w: suffix %d (%s) contains symbols outside the alphabet", ErrMalformedSuffix, i, s)
		}
		if j, dup := seen[key]; dup {
			return fmt.Errorf("%w: suffix %d (%s) duplicates suffix %d", ErrMalformedSuffix, i, s, j)
		}
		seen[key] = i
	}
	return nil
}

// Initialize seeds the table: ε is the only short prefix, every one-symbol
// word is a candidate, and initialSuffixes are the columns. All cells are
// filled with one oracle batch. Returns the unclosed classes.
//
// Malformed suffixes fail before any query is sent; oracle errors leave the
// table uninitialized.
func (t *Table[I, O]) Initialize(ctx context.Context, initialSuffixes []word.Word[I], mq oracle.MembershipOracle[I, O]) ([][]*Row[I], error) {
	if t.initialized {
		return nil, ErrAlreadyInitialized
	}
	if err := ValidateSuffixes(t.alphabet, initialSuffixes); err != nil {
		return nil, err
	}

	suffixes := make([]word.Word[I], len(initialSuffixes))
	copy(suffixes, initialSuffixes)

	p := t.newPlan()
	eps := p.newRow(word.Epsilon[I]())
	p.promoteRow(eps)

	ws := p.cellWords(suffixes)
	got, err := t.gather(ctx, mq, ws)
	if err != nil {
		return nil, fmt.Errorf("initialize: %w", err)
	}

	t.suffixes = suffixes
	for i, s := range suffixes {
		t.suffixKeys[t.alphabet.MustKey(s)] = i
	}
	t.commit(p, got)
	t.initialized = true

	return t.FindUnclosed(), nil
}

// AddSuffixes appends the suffixes not already present as new columns and
// fills them for every row. Existing columns are never touched. Returns the
// unclosed classes after the change.
func (t *Table[I, O]) AddSuffixes(ctx context.Context, suffixes []word.Word[I], mq oracle.MembershipOracle[I, O]) ([][]*Row[I], error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}

	var fresh []word.Word[I]
	freshKeys := make(map[string]bool)
	for _, s := range suffixes {
		key, ok := t.alphabet.Key(s)
		if !ok {
			return nil, fmt.Errorf("%w: suffix %s contains symbols outside the alphabet", ErrMalformedSuffix, s)
		}
		if _, exists := t.suffixKeys[key]; exists || freshKeys[key] {
			continue
		}
		freshKeys[key] = true
		fresh = append(fresh, s)
	}
	if len(fresh) == 0 {
		return t.FindUnclosed(), nil
	}

	ws := make([]word.Word[I], 0, len(t.rows)*len(fresh))
	for _, r := range t.rows {
		for _, s := range fresh {
			ws = append(ws, r.label.Concat(s))
		}
	}
	got, err := t.gather(ctx, mq, ws)
	if err != nil {
		return nil, fmt.Errorf("add suffixes: %w", err)
	}

	t.commitAnswers(got)
	for _, s := range fresh {
		t.suffixKeys[t.alphabet.MustKey(s)] = len(t.suffixes)
		t.suffixes = append(t.suffixes, s)
	}
	for i, r := range t.rows {
		for j := range fresh {
			r.contents = append(r.contents, t.answers[got.keys[i*len(fresh)+j]])
		}
		r.key = contentKey(r.contents)
	}
	t.reindex()
	t.clock.Next()

	return t.FindUnclosed(), nil
}

// AddSuffix is AddSuffixes for a single suffix.
func (t *Table[I, O]) AddSuffix(ctx context.Context, suffix word.Word[I], mq oracle.MembershipOracle[I, O]) ([][]*Row[I], error) {
	return t.AddSuffixes(ctx, []word.Word[I]{suffix}, mq)
}

// Promote turns rows into short prefixes. For each promoted row, every
// one-symbol extension that is not yet a row becomes a candidate and is
// filled for all current suffixes. Rows that are already short prefixes are
// skipped. Returns the unclosed classes after the change.
func (t *Table[I, O]) Promote(ctx context.Context, rows []*Row[I], mq oracle.MembershipOracle[I, O]) ([][]*Row[I], error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}

	p := t.newPlan()
	for _, r := range rows {
		if !t.owns(r) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownRow, r)
		}
		p.promoteRow(r)
	}
	if len(p.promote) == 0 {
		return t.FindUnclosed(), nil
	}

	got, err := t.gather(ctx, mq, p.cellWords(t.suffixes))
	if err != nil {
		return nil, fmt.Errorf("promote: %w", err)
	}
	t.commit(p, got)

	return t.FindUnclosed(), nil
}

// AddShortPrefixes makes every given word, and every prefix of it, a short
// prefix, keeping the short-prefix set prefix-closed. Returns the unclosed
// classes after the change.
func (t *Table[I, O]) AddShortPrefixes(ctx context.Context, prefixes []word.Word[I], mq oracle.MembershipOracle[I, O]) ([][]*Row[I], error) {
	if !t.initialized {
		return nil, ErrNotInitialized
	}
	for _, w := range prefixes {
		if !t.alphabet.Contains(w) {
			return nil, fmt.Errorf("%w: %s", ErrForeignWord, w)
		}
	}

	p := t.newPlan()
	for _, w := range prefixes {
		for _, pre := range w.Prefixes(false) {
			r := p.lookup(t.alphabet.MustKey(pre))
			if r == nil {
				// The parent was promoted in an earlier iteration, so its
				// extension must exist.
				return nil, fmt.Errorf("add short prefixes: missing row for %s", pre)
			}
			p.promoteRow(r)
		}
	}
	if len(p.promote) == 0 {
		return t.FindUnclosed(), nil
	}

	got, err := t.gather(ctx, mq, p.cellWords(t.suffixes))
	if err != nil {
		return nil, fmt.Errorf("add short prefixes: %w", err)
	}
	t.commit(p, got)

	return t.FindUnclosed(), nil
}

// FindUnclosed returns the candidate classes whose content matches no short
// prefix. Classes are ordered by their first member's insertion order and
// list their members in insertion order.
func (t *Table[I, O]) FindUnclosed() [][]*Row[I] {
	var classes [][]*Row[I]
	classOf := make(map[string]int)
	for _, r := range t.rows {
		if r.short {
			continue
		}
		if _, closed := t.spIndex[r.key]; closed {
			continue
		}
		i, ok := classOf[r.key]
		if !ok {
			i = len(classes)
			classOf[r.key] = i
			classes = append(classes, nil)
		}
		classes[i] = append(classes[i], r)
	}
	return classes
}

// IsClosed reports whether every candidate matches some short prefix.
func (t *Table[I, O]) IsClosed() bool {
	for _, r := range t.rows {
		if r.short {
			continue
		}
		if _, ok := t.spIndex[r.key]; !ok {
			return false
		}
	}
	return true
}

// FindInconsistency looks for two short prefixes u, v with equal contents and
// a symbol a such that u·a and v·a differ. Equal-content groups are visited in
// order of their first member; the first violation found is returned.
//
// Equal content is transitive, so comparing each member of a group against the
// group's first member is enough to detect any violation within the group.
func (t *Table[I, O]) FindInconsistency() (Inconsistency[I], bool) {
	for _, sp := range t.shortPrefixes {
		group := t.spIndex[sp.key]
		if len(group) < 2 || group[0] != sp {
			continue
		}
		for _, other := range group[1:] {
			for a := 0; a < t.alphabet.Size(); a++ {
				ua, va := sp.successors[a], other.successors[a]
				if ua.key == va.key {
					continue
				}
				for col := range t.suffixes {
					if ua.contents[col] != va.contents[col] {
						return Inconsistency[I]{
							First:       sp,
							Second:      other,
							Symbol:      t.alphabet.Symbol(a),
							SymbolIndex: a,
							Column:      col,
							Suffix:      t.suffixes[col],
						}, true
					}
				}
			}
		}
	}
	return Inconsistency[I]{}, false
}

// CheckConsistency returns a suffix that resolves the first inconsistency,
// or false when the table is consistent.
func (t *Table[I, O]) CheckConsistency() (word.Word[I], bool) {
	inc, found := t.FindInconsistency()
	if !found {
		return word.Word[I]{}, false
	}
	return inc.DistinguishingSuffix(), true
}

// IsConsistent reports whether FindInconsistency finds nothing.
func (t *Table[I, O]) IsConsistent() bool {
	_, found := t.FindInconsistency()
	return !found
}

// Alphabet returns the input alphabet.
func (t *Table[I, O]) Alphabet() *word.Alphabet[I] { return t.alphabet }

// Initialized reports whether Initialize succeeded.
func (t *Table[I, O]) Initialized() bool { return t.initialized }

// Suffixes returns a copy of the columns in order.
func (t *Table[I, O]) Suffixes() []word.Word[I] {
	out := make([]word.Word[I], len(t.suffixes))
	copy(out, t.suffixes)
	return out
}

// NumSuffixes returns the number of columns.
func (t *Table[I, O]) NumSuffixes() int { return len(t.suffixes) }

// SuffixIndex returns the column of suffix s.
func (t *Table[I, O]) SuffixIndex(s word.Word[I]) (int, bool) {
	key, ok := t.alphabet.Key(s)
	if !ok {
		return 0, false
	}
	i, ok := t.suffixKeys[key]
	return i, ok
}

// ShortPrefixRows returns the short prefixes in insertion order.
func (t *Table[I, O]) ShortPrefixRows() []*Row[I] {
	out := make([]*Row[I], len(t.shortPrefixes))
	copy(out, t.shortPrefixes)
	return out
}

// CandidateRows returns the candidates in insertion order.
func (t *Table[I, O]) CandidateRows() []*Row[I] {
	out := make([]*Row[I], 0, len(t.rows)-len(t.shortPrefixes))
	for _, r := range t.rows {
		if !r.short {
			out = append(out, r)
		}
	}
	return out
}

// NumRows returns the number of rows (short prefixes and candidates).
func (t *Table[I, O]) NumRows() int { return len(t.rows) }

// Row returns the row labelled w.
func (t *Table[I, O]) Row(w word.Word[I]) (*Row[I], bool) {
	key, ok := t.alphabet.Key(w)
	if !ok {
		return nil, false
	}
	r, ok := t.rowByKey[key]
	return r, ok
}

// Contents returns the row's outputs in suffix order.
func (t *Table[I, O]) Contents(r *Row[I]) []O {
	out := make([]O, len(r.contents))
	for i, id := range r.contents {
		out[i] = t.outputs[id]
	}
	return out
}

// Cell returns the output of row r at column col.
func (t *Table[I, O]) Cell(r *Row[I], col int) O {
	return t.outputs[r.contents[col]]
}

// Equivalent reports whether two rows have identical contents.
func (t *Table[I, O]) Equivalent(a, b *Row[I]) bool {
	return a.key == b.key
}

// Representative returns the first short prefix whose contents equal r's,
// or nil if none exists (r is in an unclosed class).
func (t *Table[I, O]) Representative(r *Row[I]) *Row[I] {
	group := t.spIndex[r.key]
	if len(group) == 0 {
		return nil
	}
	return group[0]
}

// StateCount returns the number of distinct short-prefix contents, which is
// the number of states of the hypothesis.
func (t *Table[I, O]) StateCount() int { return len(t.spIndex) }

// StateRow runs w through the hypothesis encoded by the table and returns
// the representative short prefix of the reached state. Returns false if the
// run leaves the table's closed part or w has foreign symbols.
func (t *Table[I, O]) StateRow(w word.Word[I]) (*Row[I], bool) {
	if !t.initialized {
		return nil, false
	}
	cur := t.Representative(t.shortPrefixes[0])
	for i := 0; i < w.Len(); i++ {
		idx, ok := t.alphabet.Index(w.At(i))
		if !ok {
			return nil, false
		}
		cur = t.Representative(cur.successors[idx])
		if cur == nil {
			return nil, false
		}
	}
	return cur, true
}

// AccessSequence returns the label of StateRow(w).
func (t *Table[I, O]) AccessSequence(w word.Word[I]) (word.Word[I], bool) {
	r, ok := t.StateRow(w)
	if !ok {
		return word.Word[I]{}, false
	}
	return r.label, true
}

// Revision returns the logical revision, advanced by every committed change.
func (t *Table[I, O]) Revision() int64 { return t.clock.Current() }

// QueryCount returns the number of distinct words this table sent to the oracle.
func (t *Table[I, O]) QueryCount() int { return t.queries }

// Answer returns the cached output of w, if the table ever queried it.
func (t *Table[I, O]) Answer(w word.Word[I]) (O, bool) {
	var zero O
	key, ok := t.alphabet.Key(w)
	if !ok {
		return zero, false
	}
	id, ok := t.answers[key]
	if !ok {
		return zero, false
	}
	return t.outputs[id], true
}

// Query returns the output of w, asking mq only if the table never has.
// The answer is cached like any cell, so a later fill reuses it. Rows and
// columns are unchanged.
func (t *Table[I, O]) Query(ctx context.Context, mq oracle.MembershipOracle[I, O], w word.Word[I]) (O, error) {
	if out, ok := t.Answer(w); ok {
		return out, nil
	}
	var zero O
	if !t.alphabet.Contains(w) {
		return zero, fmt.Errorf("%w: query %s", ErrForeignWord, w)
	}
	got, err := t.gather(ctx, mq, []word.Word[I]{w})
	if err != nil {
		return zero, fmt.Errorf("query: %w", err)
	}
	t.commitAnswers(got)
	return t.outputs[t.answers[got.keys[0]]], nil
}

func (t *Table[I, O]) owns(r *Row[I]) bool {
	return r != nil && r.id >= 0 && r.id < len(t.rows) && t.rows[r.id] == r
}

func (t *Table[I, O]) intern(o O) int {
	id, ok := t.outputIDs[o]
	if !ok {
		id = len(t.outputs)
		t.outputs = append(t.outputs, o)
		t.outputIDs[o] = id
	}
	return id
}

// reindex rebuilds the short-prefix content index after keys changed.
func (t *Table[I, O]) reindex() {
	clear(t.spIndex)
	for _, sp := range t.shortPrefixes {
		t.spIndex[sp.key] = append(t.spIndex[sp.key], sp)
	}
}

func contentKey(contents []int) string {
	buf := make([]byte, 0, len(contents))
	for _, id := range contents {
		buf = binary.AppendUvarint(buf, uint64(id))
	}
	return string(buf)
}
