package machine

import (
	"fmt"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/format"

	"github.com/roach88/lstar/internal/automaton"
)

// Format renders an automaton as a CUE machine definition that Compile
// accepts. States are named s0, s1, ... in id order, so compiling the
// result yields a structurally Equal automaton.
func Format(name string, a *automaton.Automaton[string, string]) ([]byte, error) {
	if err := a.Validate(); err != nil {
		return nil, err
	}
	snap := a.Snapshot()

	alphabet := make([]ast.Expr, len(snap.Alphabet))
	for i, sym := range snap.Alphabet {
		alphabet[i] = ast.NewString(sym)
	}

	states := make([]interface{}, 0, len(snap.States))
	for _, st := range snap.States {
		on := make([]interface{}, 0, len(st.Transitions))
		for _, tr := range st.Transitions {
			var target ast.Expr = ast.NewString(stateName(tr.Target))
			if a.Kind() == automaton.Mealy {
				target = ast.NewStruct(
					"to", ast.NewString(stateName(tr.Target)),
					"output", ast.NewString(tr.Output),
				)
			}
			on = append(on, field(tr.Input, target))
		}

		var body []interface{}
		if a.Kind() == automaton.Moore {
			body = append(body, "output", ast.NewString(st.Output))
		}
		body = append(body, "on", ast.NewStruct(on...))
		states = append(states, field(stateName(st.ID), ast.NewStruct(body...)))
	}

	def := ast.NewStruct(
		"kind", ast.NewString(snap.Kind),
		"alphabet", ast.NewList(alphabet...),
		"initial", ast.NewString(stateName(snap.Initial)),
		"states", ast.NewStruct(states...),
	)
	file := &ast.File{Decls: []ast.Decl{
		field("machine", ast.NewStruct(field(name, def))),
	}}
	return format.Node(file)
}

func field(label string, value ast.Expr) *ast.Field {
	return &ast.Field{Label: ast.NewStringLabel(label), Value: value}
}

func stateName(id int) string {
	return fmt.Sprintf("s%d", id)
}
