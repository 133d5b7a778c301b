package automaton

import (
	"encoding/binary"
)

// Minimize returns the minimal machine equivalent to a, restricted to
// reachable states, using iterated partition refinement (Moore's algorithm).
//
// States of the result are numbered in breadth-first order from the initial
// state, visiting symbols in alphabet order, so two equivalent machines
// minimize to structurally Equal results. Labels of the first state of each
// block are kept. a must be valid.
func Minimize[I, O comparable](a *Automaton[I, O]) *Automaton[I, O] {
	reach := reachable(a)
	k := a.alphabet.Size()

	// Initial partition by local outputs.
	block := make(map[int]int, len(reach))
	outIDs := make(map[O]int)
	outID := func(o O) int {
		id, ok := outIDs[o]
		if !ok {
			id = len(outIDs)
			outIDs[o] = id
		}
		return id
	}
	assign := func(sig func(s int) string) int {
		ids := make(map[string]int)
		next := make(map[int]int, len(reach))
		for _, s := range reach {
			key := sig(s)
			id, ok := ids[key]
			if !ok {
				id = len(ids)
				ids[key] = id
			}
			next[s] = id
		}
		block = next
		return len(ids)
	}

	count := assign(func(s int) string {
		var buf []byte
		if a.kind == Moore {
			buf = binary.AppendUvarint(buf, uint64(outID(a.stateOut[s])))
		} else {
			for i := 0; i < k; i++ {
				buf = binary.AppendUvarint(buf, uint64(outID(a.transOut[s][i])))
			}
		}
		return string(buf)
	})

	for {
		prev := block
		n := assign(func(s int) string {
			buf := binary.AppendUvarint(nil, uint64(prev[s]))
			for i := 0; i < k; i++ {
				buf = binary.AppendUvarint(buf, uint64(prev[a.trans[s][i]]))
			}
			return string(buf)
		})
		if n == count {
			break
		}
		count = n
	}

	// Renumber blocks in BFS order.
	out := New[I, O](a.alphabet, a.kind)
	stateOf := make(map[int]int, count)
	repOf := make(map[int]int, count)
	queue := []int{a.initial}
	stateOf[block[a.initial]] = out.AddState()
	repOf[block[a.initial]] = a.initial
	for len(queue) > 0 {
		s := queue[0]
		queue = queue[1:]
		for i := 0; i < k; i++ {
			t := a.trans[s][i]
			if _, seen := stateOf[block[t]]; !seen {
				stateOf[block[t]] = out.AddState()
				repOf[block[t]] = t
				queue = append(queue, t)
			}
		}
	}

	for b, ns := range stateOf {
		rep := repOf[b]
		out.stateOut[ns] = a.stateOut[rep]
		out.labels[ns] = a.labels[rep]
		for i := 0; i < k; i++ {
			out.trans[ns][i] = stateOf[block[a.trans[rep][i]]]
			out.transOut[ns][i] = a.transOut[rep][i]
		}
	}
	return out
}

// reachable lists states reachable from the initial state in BFS order.
func reachable[I, O comparable](a *Automaton[I, O]) []int {
	seen := make([]bool, len(a.trans))
	order := []int{a.initial}
	seen[a.initial] = true
	for i := 0; i < len(order); i++ {
		for _, t := range a.trans[order[i]] {
			if !seen[t] {
				seen[t] = true
				order = append(order, t)
			}
		}
	}
	return order
}
