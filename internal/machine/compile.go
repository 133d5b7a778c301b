// Package machine compiles CUE machine definitions into automata.
//
// Definitions describe the systems the learner is pointed at in simulation
// runs. A definition lives under the top-level "machine" struct:
//
//	machine: ends_ab: {
//		kind:     "moore"
//		alphabet: ["a", "b"]
//		initial:  "q0"
//		states: {
//			q0: {output: "0", on: {a: "q1", b: "q0"}}
//			q1: {output: "0", on: {a: "q1", b: "q2"}}
//			q2: {output: "1", on: {a: "q1", b: "q0"}}
//		}
//	}
//
// Mealy machines put the output on the transition instead:
//
//	locked: on: coin: {to: "unlocked", output: "unlock"}
//
// Symbol and state names are NFC-normalized. States are numbered in
// declaration order. Every state must have a transition on every symbol.
package machine

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"
	"golang.org/x/text/unicode/norm"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/word"
)

// Machine is a compiled definition.
type Machine struct {
	Name        string
	Description string
	Automaton   *automaton.Automaton[string, string]

	// StateNames maps state ids to their declared names.
	StateNames []string
}

// Compile parses a CUE value into a Machine.
//
// The CUE value should be the machine struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(src)
//	m, err := Compile(v.LookupPath(cue.ParsePath("machine.turnstile")))
func Compile(v cue.Value) (*Machine, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	m := &Machine{}
	if label, ok := v.Label(); ok {
		m.Name = normalize(label)
	}

	if d := v.LookupPath(cue.ParsePath("description")); d.Exists() {
		desc, err := d.String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		m.Description = desc
	}

	kind, err := parseKind(v)
	if err != nil {
		return nil, err
	}
	alphabet, err := parseAlphabet(v)
	if err != nil {
		return nil, err
	}

	statesVal := v.LookupPath(cue.ParsePath("states"))
	if !statesVal.Exists() {
		return nil, &CompileError{Field: "states", Message: "states are required", Pos: v.Pos()}
	}

	// First pass: declare states so transitions may point forward.
	a := automaton.New[string, string](alphabet, kind)
	ids := make(map[string]int)
	var decls []cue.Value
	iter, err := statesVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	for iter.Next() {
		name := normalize(iter.Label())
		if _, dup := ids[name]; dup {
			return nil, &CompileError{
				Field:   "states." + name,
				Message: "duplicate state name after normalization",
				Pos:     iter.Value().Pos(),
			}
		}
		id := a.AddState()
		ids[name] = id
		m.StateNames = append(m.StateNames, name)
		decls = append(decls, iter.Value())
		if err := a.SetStateLabel(id, name); err != nil {
			return nil, err
		}
	}
	if len(decls) == 0 {
		return nil, &CompileError{Field: "states", Message: "at least one state is required", Pos: statesVal.Pos()}
	}

	initVal := v.LookupPath(cue.ParsePath("initial"))
	if !initVal.Exists() {
		return nil, &CompileError{Field: "initial", Message: "initial state is required", Pos: v.Pos()}
	}
	initial, err := initVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	initID, ok := ids[normalize(initial)]
	if !ok {
		return nil, &CompileError{Field: "initial", Message: fmt.Sprintf("unknown state %q", initial), Pos: initVal.Pos()}
	}
	if err := a.SetInitial(initID); err != nil {
		return nil, err
	}

	for id, decl := range decls {
		if err := compileState(a, ids, m.StateNames[id], id, decl); err != nil {
			return nil, err
		}
	}

	if err := a.Validate(); err != nil {
		return nil, &CompileError{Field: "states", Message: err.Error(), Pos: statesVal.Pos()}
	}
	m.Automaton = a
	return m, nil
}

func parseKind(v cue.Value) (automaton.Kind, error) {
	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return automaton.Moore, nil
	}
	s, err := kindVal.String()
	if err != nil {
		return 0, formatCUEError(err)
	}
	kind, err := automaton.ParseKind(s)
	if err != nil {
		return 0, &CompileError{Field: "kind", Message: err.Error(), Pos: kindVal.Pos()}
	}
	return kind, nil
}

func parseAlphabet(v cue.Value) (*word.Alphabet[string], error) {
	alphaVal := v.LookupPath(cue.ParsePath("alphabet"))
	if !alphaVal.Exists() {
		return nil, &CompileError{Field: "alphabet", Message: "alphabet is required", Pos: v.Pos()}
	}
	iter, err := alphaVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var symbols []string
	for iter.Next() {
		s, err := iter.Value().String()
		if err != nil {
			return nil, formatCUEError(err)
		}
		symbols = append(symbols, normalize(s))
	}
	alphabet, err := word.NewAlphabet(symbols...)
	if err != nil {
		return nil, &CompileError{Field: "alphabet", Message: err.Error(), Pos: alphaVal.Pos()}
	}
	return alphabet, nil
}

func compileState(a *automaton.Automaton[string, string], ids map[string]int, name string, id int, decl cue.Value) error {
	field := "states." + name
	outVal := decl.LookupPath(cue.ParsePath("output"))
	switch {
	case a.Kind() == automaton.Moore && !outVal.Exists():
		return &CompileError{Field: field + ".output", Message: "moore states need an output", Pos: decl.Pos()}
	case a.Kind() == automaton.Mealy && outVal.Exists():
		return &CompileError{Field: field + ".output", Message: "mealy states have no output; put it on the transition", Pos: outVal.Pos()}
	case outVal.Exists():
		out, err := scalar(outVal, field+".output")
		if err != nil {
			return err
		}
		if err := a.SetStateOutput(id, out); err != nil {
			return err
		}
	}

	onVal := decl.LookupPath(cue.ParsePath("on"))
	if !onVal.Exists() {
		return &CompileError{Field: field + ".on", Message: "transitions are required", Pos: decl.Pos()}
	}
	iter, err := onVal.Fields()
	if err != nil {
		return formatCUEError(err)
	}
	for iter.Next() {
		sym := normalize(iter.Label())
		tf := field + ".on." + sym
		if _, ok := a.Alphabet().Index(sym); !ok {
			return &CompileError{Field: tf, Message: fmt.Sprintf("symbol %q is not in the alphabet", sym), Pos: iter.Value().Pos()}
		}

		target, out, err := parseTransition(a.Kind(), iter.Value(), tf)
		if err != nil {
			return err
		}
		to, ok := ids[target]
		if !ok {
			return &CompileError{Field: tf, Message: fmt.Sprintf("unknown target state %q", target), Pos: iter.Value().Pos()}
		}
		if err := a.SetTransition(id, sym, to); err != nil {
			return err
		}
		if a.Kind() == automaton.Mealy {
			if err := a.SetTransitionOutput(id, sym, out); err != nil {
				return err
			}
		}
	}
	return nil
}

// parseTransition reads `sym: "target"` (Moore) or
// `sym: {to: "target", output: ...}` (Mealy).
func parseTransition(kind automaton.Kind, v cue.Value, field string) (target, out string, err error) {
	if kind == automaton.Moore {
		target, err = v.String()
		if err != nil {
			return "", "", &CompileError{Field: field, Message: "moore transitions are a target state name", Pos: v.Pos()}
		}
		return normalize(target), "", nil
	}

	toVal := v.LookupPath(cue.ParsePath("to"))
	outVal := v.LookupPath(cue.ParsePath("output"))
	if !toVal.Exists() || !outVal.Exists() {
		return "", "", &CompileError{Field: field, Message: "mealy transitions need `to` and `output`", Pos: v.Pos()}
	}
	target, err = toVal.String()
	if err != nil {
		return "", "", formatCUEError(err)
	}
	out, err = scalar(outVal, field+".output")
	if err != nil {
		return "", "", err
	}
	return normalize(target), out, nil
}

// scalar renders a string, int or bool output as a string.
// Floats are rejected so outputs compare exactly.
func scalar(v cue.Value, field string) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return normalize(s), nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.BoolKind:
		b, err := v.Bool()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatBool(b), nil
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("output must be a string, int or bool, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func normalize(s string) string {
	return norm.NFC.String(s)
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	first := errs[0]
	if positions := errors.Positions(first); len(positions) > 0 {
		return &CompileError{Field: "cue", Message: first.Error(), Pos: positions[0]}
	}
	return err
}
