package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/word"
)

// EndsWith returns the minimal Moore machine over alphabet that outputs
// "1" after words ending with pattern and "0" otherwise. It has
// len(pattern)+1 states.
func EndsWith(alphabet *word.Alphabet[string], pattern ...string) *automaton.Automaton[string, string] {
	a := automaton.NewMoore[string, string](alphabet)
	n := len(pattern)
	for i := 0; i <= n; i++ {
		s := a.AddState()
		out := "0"
		if i == n {
			out = "1"
		}
		mustDo(a.SetStateOutput(s, out))
		mustDo(a.SetStateLabel(s, strings.Join(pattern[:i], " ")))
	}
	for i := 0; i <= n; i++ {
		for _, sym := range alphabet.Symbols() {
			mustDo(a.SetTransition(i, sym, overlap(append(append([]string(nil), pattern[:i]...), sym), pattern)))
		}
	}
	return a
}

// overlap returns the length of the longest prefix of pattern that is a
// suffix of seen.
func overlap(seen, pattern []string) int {
	for k := min(len(seen), len(pattern)); k > 0; k-- {
		match := true
		for j := 0; j < k; j++ {
			if seen[len(seen)-k+j] != pattern[j] {
				match = false
				break
			}
		}
		if match {
			return k
		}
	}
	return 0
}

// ModCounter returns the Moore machine that counts occurrences of sym modulo
// n and outputs "1" when the count is divisible by n. It has n states.
func ModCounter(alphabet *word.Alphabet[string], sym string, n int) *automaton.Automaton[string, string] {
	a := automaton.NewMoore[string, string](alphabet)
	for i := 0; i < n; i++ {
		a.AddState()
		out := "0"
		if i == 0 {
			out = "1"
		}
		mustDo(a.SetStateOutput(i, out))
	}
	for i := 0; i < n; i++ {
		for _, s := range alphabet.Symbols() {
			to := i
			if s == sym {
				to = (i + 1) % n
			}
			mustDo(a.SetTransition(i, s, to))
		}
	}
	return a
}

// Turnstile returns a two-state Mealy machine over {coin, push}.
func Turnstile() *automaton.Automaton[string, string] {
	alphabet := word.MustAlphabet("coin", "push")
	a := automaton.NewMealy[string, string](alphabet)
	locked, unlocked := a.AddState(), a.AddState()
	mustDo(a.SetStateLabel(locked, "locked"))
	mustDo(a.SetStateLabel(unlocked, "unlocked"))

	edge := func(from int, sym string, to int, out string) {
		mustDo(a.SetTransition(from, sym, to))
		mustDo(a.SetTransitionOutput(from, sym, out))
	}
	edge(locked, "coin", unlocked, "unlock")
	edge(locked, "push", locked, "blocked")
	edge(unlocked, "coin", unlocked, "refund")
	edge(unlocked, "push", locked, "lock")
	return a
}

// Delay returns the Mealy machine over {0, 1} that outputs the input seen k
// steps earlier, or "-" during the first k steps. Its minimal form has
// 2^(k+1)-1 states.
func Delay(k int) *automaton.Automaton[string, string] {
	alphabet := word.MustAlphabet("0", "1")
	a := automaton.NewMealy[string, string](alphabet)

	// States are the last min(len, k) inputs, numbered breadth-first.
	ids := map[string]int{"": a.AddState()}
	order := []string{""}
	for i := 0; i < len(order); i++ {
		hist := order[i]
		for _, sym := range alphabet.Symbols() {
			next := hist + sym
			out := "-"
			if len(hist) == k {
				out = hist[:1]
				next = next[1:]
			}
			to, ok := ids[next]
			if !ok {
				to = a.AddState()
				ids[next] = to
				order = append(order, next)
			}
			mustDo(a.SetTransition(ids[hist], sym, to))
			mustDo(a.SetTransitionOutput(ids[hist], sym, out))
		}
	}
	return a
}

// W parses a space-separated word. "" and "ε" are the empty word.
func W(s string) word.Word[string] {
	if s == "ε" {
		return word.Epsilon[string]()
	}
	return word.Of(strings.Fields(s)...)
}

func mustDo(err error) {
	if err != nil {
		panic(err)
	}
}

// RecordingOracle is a membership oracle over a target automaton that
// records every word it answers and every batch size.
//
// Thread-safety: safe for concurrent use.
type RecordingOracle struct {
	target *automaton.Automaton[string, string]

	mu      sync.Mutex
	words   []string
	batches []int
	fail    error
}

// NewRecordingOracle creates a recording oracle for target.
func NewRecordingOracle(target *automaton.Automaton[string, string]) *RecordingOracle {
	return &RecordingOracle{target: target}
}

// Answer runs every query on the target.
func (o *RecordingOracle) Answer(_ context.Context, queries []word.Word[string]) ([]string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.fail != nil {
		return nil, o.fail
	}
	o.batches = append(o.batches, len(queries))
	out := make([]string, len(queries))
	for i, q := range queries {
		o.words = append(o.words, q.String())
		out[i] = o.target.Output(q)
	}
	return out, nil
}

// FailWith makes every later Answer return err. Nil restores normal answers.
func (o *RecordingOracle) FailWith(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fail = err
}

// Words returns the answered words in order.
func (o *RecordingOracle) Words() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.words...)
}

// Batches returns the size of every answered batch.
func (o *RecordingOracle) Batches() []int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]int(nil), o.batches...)
}
