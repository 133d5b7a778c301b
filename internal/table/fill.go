package table

import (
	"context"

	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/word"
)

// plan collects new rows and promotions without touching the table.
type plan[I, O comparable] struct {
	t *Table[I, O]

	newRows []*Row[I]
	planned map[string]*Row[I]

	promote  []*Row[I]
	promoted map[*Row[I]]bool
}

func (t *Table[I, O]) newPlan() *plan[I, O] {
	return &plan[I, O]{
		t:        t,
		planned:  make(map[string]*Row[I]),
		promoted: make(map[*Row[I]]bool),
	}
}

// lookup finds an existing or planned row by word key.
func (p *plan[I, O]) lookup(key string) *Row[I] {
	if r, ok := p.t.rowByKey[key]; ok {
		return r
	}
	return p.planned[key]
}

// newRow plans a row; ids continue the table's insertion order.
func (p *plan[I, O]) newRow(label word.Word[I]) *Row[I] {
	r := &Row[I]{
		label: label,
		id:    len(p.t.rows) + len(p.newRows),
	}
	p.newRows = append(p.newRows, r)
	p.planned[p.t.alphabet.MustKey(label)] = r
	return r
}

// promoteRow plans r as a short prefix and plans its missing extensions.
func (p *plan[I, O]) promoteRow(r *Row[I]) {
	if r.short || p.promoted[r] {
		return
	}
	p.promoted[r] = true
	p.promote = append(p.promote, r)
	for i := 0; i < p.t.alphabet.Size(); i++ {
		ext := r.label.Append(p.t.alphabet.Symbol(i))
		if p.lookup(p.t.alphabet.MustKey(ext)) == nil {
			p.newRow(ext)
		}
	}
}

// cellWords lists label·suffix for every new row and suffix, row-major.
func (p *plan[I, O]) cellWords(suffixes []word.Word[I]) []word.Word[I] {
	ws := make([]word.Word[I], 0, len(p.newRows)*len(suffixes))
	for _, r := range p.newRows {
		for _, s := range suffixes {
			ws = append(ws, r.label.Concat(s))
		}
	}
	return ws
}

// gathered holds one batch of answers that has not been committed yet.
type gathered[O any] struct {
	// keys[i] is the word key of the i-th requested word.
	keys []string

	// freshKeys/freshOutputs are the words actually sent, in batch order.
	freshKeys    []string
	freshOutputs []O
}

// gather sends every requested word missing from the answer cache to the
// oracle as one deduplicated batch. The table is not modified.
func (t *Table[I, O]) gather(ctx context.Context, mq oracle.MembershipOracle[I, O], ws []word.Word[I]) (*gathered[O], error) {
	g := &gathered[O]{keys: make([]string, len(ws))}

	var batch []word.Word[I]
	queued := make(map[string]bool)
	for i, w := range ws {
		key := t.alphabet.MustKey(w)
		g.keys[i] = key
		if _, cached := t.answers[key]; cached || queued[key] {
			continue
		}
		queued[key] = true
		batch = append(batch, w)
		g.freshKeys = append(g.freshKeys, key)
	}
	if len(batch) == 0 {
		return g, nil
	}

	out, err := mq.Answer(ctx, batch)
	if err != nil {
		return nil, err
	}
	if err := oracle.CheckAnswers(len(batch), out); err != nil {
		return nil, err
	}
	g.freshOutputs = out
	return g, nil
}

// commitAnswers moves a gathered batch into the answer cache.
func (t *Table[I, O]) commitAnswers(g *gathered[O]) {
	for i, key := range g.freshKeys {
		t.answers[key] = t.intern(g.freshOutputs[i])
	}
	t.queries += len(g.freshKeys)
}

// commit applies a plan whose cell words (p.cellWords(t.suffixes)) were
// answered by g.
func (t *Table[I, O]) commit(p *plan[I, O], g *gathered[O]) {
	t.commitAnswers(g)

	n := len(t.suffixes)
	for i, r := range p.newRows {
		r.contents = make([]int, n)
		for j := 0; j < n; j++ {
			r.contents[j] = t.answers[g.keys[i*n+j]]
		}
		r.key = contentKey(r.contents)
		t.rows = append(t.rows, r)
		t.rowByKey[t.alphabet.MustKey(r.label)] = r
	}

	for _, r := range p.promote {
		r.short = true
		r.successors = make([]*Row[I], t.alphabet.Size())
		for i := range r.successors {
			ext := r.label.Append(t.alphabet.Symbol(i))
			r.successors[i] = t.rowByKey[t.alphabet.MustKey(ext)]
		}
		t.shortPrefixes = append(t.shortPrefixes, r)
		t.spIndex[r.key] = append(t.spIndex[r.key], r)
	}

	t.clock.Next()
}
