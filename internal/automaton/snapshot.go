package automaton

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// DomainHypothesis is the domain prefix for automaton fingerprints.
// The version suffix allows migrating the encoding later.
const DomainHypothesis = "lstar/automaton/v1"

// Snapshot is a serialisable view of an automaton. Symbols and outputs are
// rendered with fmt.Sprint.
type Snapshot struct {
	Kind     string          `json:"kind"`
	Alphabet []string        `json:"alphabet"`
	Initial  int             `json:"initial"`
	States   []StateSnapshot `json:"states"`
}

// StateSnapshot describes one state and its outgoing transitions in
// alphabet order.
type StateSnapshot struct {
	ID          int                  `json:"id"`
	Label       string               `json:"label,omitempty"`
	Output      string               `json:"output,omitempty"`
	Transitions []TransitionSnapshot `json:"transitions"`
}

// TransitionSnapshot is one outgoing transition.
type TransitionSnapshot struct {
	Input  string `json:"input"`
	Target int    `json:"target"`
	Output string `json:"output,omitempty"`
}

// Snapshot captures the automaton.
func (a *Automaton[I, O]) Snapshot() Snapshot {
	snap := Snapshot{
		Kind:     a.kind.String(),
		Alphabet: make([]string, a.alphabet.Size()),
		Initial:  a.initial,
		States:   make([]StateSnapshot, len(a.trans)),
	}
	for i := range snap.Alphabet {
		snap.Alphabet[i] = fmt.Sprint(a.alphabet.Symbol(i))
	}
	for s := range a.trans {
		st := StateSnapshot{
			ID:          s,
			Label:       a.labels[s],
			Transitions: make([]TransitionSnapshot, len(a.trans[s])),
		}
		if a.kind == Moore {
			st.Output = fmt.Sprint(a.stateOut[s])
		}
		for i, to := range a.trans[s] {
			tr := TransitionSnapshot{Input: snap.Alphabet[i], Target: to}
			if a.kind == Mealy {
				tr.Output = fmt.Sprint(a.transOut[s][i])
			}
			st.Transitions[i] = tr
		}
		snap.States[s] = st
	}
	return snap
}

// Fingerprint returns a content hash of the automaton structure.
// Labels are excluded, so structurally Equal machines share a fingerprint.
//
// Format: hex(SHA256(DomainHypothesis + 0x00 + json(snapshot without labels)))
func (a *Automaton[I, O]) Fingerprint() string {
	snap := a.Snapshot()
	for i := range snap.States {
		snap.States[i].Label = ""
	}
	// Snapshot contains only strings, ints and slices; Marshal cannot fail.
	data, _ := json.Marshal(snap)

	h := sha256.New()
	h.Write([]byte(DomainHypothesis))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// WriteDOT renders the automaton in Graphviz DOT syntax.
func (a *Automaton[I, O]) WriteDOT(w io.Writer) error {
	return a.Snapshot().WriteDOT(w)
}

// WriteDOT renders the snapshot in Graphviz DOT syntax.
func (snap Snapshot) WriteDOT(w io.Writer) error {
	moore := snap.Kind == Moore.String()
	var b strings.Builder
	b.WriteString("digraph hypothesis {\n")
	b.WriteString("  __start [shape=none label=\"\"];\n")
	for _, st := range snap.States {
		label := fmt.Sprintf("s%d", st.ID)
		if moore {
			label += " / " + st.Output
		}
		fmt.Fprintf(&b, "  s%d [shape=circle label=%q];\n", st.ID, label)
	}
	fmt.Fprintf(&b, "  __start -> s%d;\n", snap.Initial)
	for _, st := range snap.States {
		for _, tr := range st.Transitions {
			label := tr.Input
			if !moore {
				label += " / " + tr.Output
			}
			fmt.Fprintf(&b, "  s%d -> s%d [label=%q];\n", st.ID, tr.Target, label)
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}
