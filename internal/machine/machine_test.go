package machine

import (
	"errors"
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lstar/internal/automaton"
	"github.com/roach88/lstar/internal/testutil"
	"github.com/roach88/lstar/internal/word"
)

func compileOne(t *testing.T, src, path string) (*Machine, error) {
	t.Helper()
	v := cuecontext.New().CompileString(src)
	require.NoError(t, v.Err())
	return Compile(v.LookupPath(cue.ParsePath(path)))
}

func TestCompileMoore(t *testing.T) {
	m, err := compileOne(t, `
		machine: parity: {
			description: "even number of a"
			kind: "moore"
			alphabet: ["a", "b"]
			initial: "even"
			states: {
				even: {output: "1", on: {a: "odd", b: "even"}}
				odd: {output: "0", on: {a: "even", b: "odd"}}
			}
		}
	`, "machine.parity")
	require.NoError(t, err)

	assert.Equal(t, "parity", m.Name)
	assert.Equal(t, "even number of a", m.Description)
	assert.Equal(t, []string{"even", "odd"}, m.StateNames)
	a := m.Automaton
	assert.Equal(t, automaton.Moore, a.Kind())
	assert.Equal(t, 2, a.NumStates())
	assert.Equal(t, "1", a.Output(word.Epsilon[string]()))
	assert.Equal(t, "0", a.Output(testutil.W("a b")))
	assert.Equal(t, "1", a.Output(testutil.W("a b a")))
	assert.Equal(t, "odd", a.StateLabel(1))
}

func TestCompileMealy(t *testing.T) {
	m, err := compileOne(t, `
		machine: turnstile: {
			kind: "mealy"
			alphabet: ["coin", "push"]
			initial: "locked"
			states: {
				locked: on: {
					coin: {to: "unlocked", output: "unlock"}
					push: {to: "locked", output: "blocked"}
				}
				unlocked: on: {
					coin: {to: "unlocked", output: "refund"}
					push: {to: "locked", output: "lock"}
				}
			}
		}
	`, "machine.turnstile")
	require.NoError(t, err)
	assert.True(t, testutil.Turnstile().Equal(m.Automaton))
}

func TestCompileInitialNeedNotBeFirst(t *testing.T) {
	m, err := compileOne(t, `
		m: {
			alphabet: ["a"]
			initial: "late"
			states: {
				early: {output: "e", on: a: "late"}
				late: {output: "l", on: a: "early"}
			}
		}
	`, "m")
	require.NoError(t, err)
	assert.Equal(t, 1, m.Automaton.Initial())
	assert.Equal(t, "l", m.Automaton.Output(word.Epsilon[string]()))
	assert.Equal(t, "e", m.Automaton.Output(testutil.W("a")))
}

func TestCompileScalarOutputs(t *testing.T) {
	m, err := compileOne(t, `
		m: {
			alphabet: ["x"]
			initial: "a"
			states: {
				a: {output: 7, on: x: "b"}
				b: {output: true, on: x: "a"}
			}
		}
	`, "m")
	require.NoError(t, err)
	assert.Equal(t, "7", m.Automaton.Output(word.Epsilon[string]()))
	assert.Equal(t, "true", m.Automaton.Output(testutil.W("x")))
}

func TestCompileNormalizesNames(t *testing.T) {
	m, err := compileOne(t, `
		m: {
			alphabet: ["e\u0301"]
			initial: "s"
			states: s: {output: "o", on: "\u00e9": "s"}
		}
	`, "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"\u00e9"}, m.Automaton.Alphabet().Symbols())
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		field string
		msg   string
	}{
		{
			name:  "unknown kind",
			src:   `m: {kind: "dpda", alphabet: ["a"], initial: "s", states: s: {output: "0", on: a: "s"}}`,
			field: "kind",
			msg:   "unknown automaton kind",
		},
		{
			name:  "missing alphabet",
			src:   `m: {initial: "s", states: s: {output: "0", on: {}}}`,
			field: "alphabet",
			msg:   "required",
		},
		{
			name:  "empty alphabet",
			src:   `m: {alphabet: [], initial: "s", states: s: {output: "0", on: {}}}`,
			field: "alphabet",
			msg:   "empty",
		},
		{
			name:  "duplicate symbol",
			src:   `m: {alphabet: ["a", "a"], initial: "s", states: s: {output: "0", on: a: "s"}}`,
			field: "alphabet",
			msg:   "duplicate",
		},
		{
			name:  "missing initial",
			src:   `m: {alphabet: ["a"], states: s: {output: "0", on: a: "s"}}`,
			field: "initial",
			msg:   "required",
		},
		{
			name:  "unknown initial",
			src:   `m: {alphabet: ["a"], initial: "t", states: s: {output: "0", on: a: "s"}}`,
			field: "initial",
			msg:   `unknown state "t"`,
		},
		{
			name:  "missing moore output",
			src:   `m: {alphabet: ["a"], initial: "s", states: s: {on: a: "s"}}`,
			field: "states.s.output",
			msg:   "need an output",
		},
		{
			name:  "float output",
			src:   `m: {alphabet: ["a"], initial: "s", states: s: {output: 1.5, on: a: "s"}}`,
			field: "states.s.output",
			msg:   "string, int or bool",
		},
		{
			name:  "mealy state output",
			src:   `m: {kind: "mealy", alphabet: ["a"], initial: "s", states: s: {output: "x", on: a: {to: "s", output: "y"}}}`,
			field: "states.s.output",
			msg:   "put it on the transition",
		},
		{
			name:  "mealy transition without output",
			src:   `m: {kind: "mealy", alphabet: ["a"], initial: "s", states: s: on: a: {to: "s"}}`,
			field: "states.s.on.a",
			msg:   "need `to` and `output`",
		},
		{
			name:  "foreign symbol",
			src:   `m: {alphabet: ["a"], initial: "s", states: s: {output: "0", on: {a: "s", z: "s"}}}`,
			field: "states.s.on.z",
			msg:   "not in the alphabet",
		},
		{
			name:  "unknown target",
			src:   `m: {alphabet: ["a"], initial: "s", states: s: {output: "0", on: a: "t"}}`,
			field: "states.s.on.a",
			msg:   `unknown target state "t"`,
		},
		{
			name:  "incomplete",
			src:   `m: {alphabet: ["a", "b"], initial: "s", states: s: {output: "0", on: a: "s"}}`,
			field: "states",
			msg:   "no transition on b",
		},
		{
			name:  "no states",
			src:   `m: {alphabet: ["a"], initial: "s", states: {}}`,
			field: "states",
			msg:   "at least one state",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compileOne(t, tt.src, "m")
			require.Error(t, err)
			var ce *CompileError
			require.True(t, errors.As(err, &ce), "got %T: %v", err, err)
			assert.Equal(t, tt.field, ce.Field)
			assert.Contains(t, ce.Message, tt.msg)
		})
	}
}

func TestCompileErrorFormat(t *testing.T) {
	err := &CompileError{Field: "initial", Message: "initial state is required"}
	assert.Equal(t, "initial: initial state is required", err.Error())
}

func TestLoadDir(t *testing.T) {
	result, errs := LoadDir("testdata/machines", LoadModeFailFast)
	require.Empty(t, errs)
	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Machines, 3)

	names := []string{result.Machines[0].Name, result.Machines[1].Name, result.Machines[2].Name}
	assert.Equal(t, []string{"ends_ab", "mod3", "turnstile"}, names)

	ends, err := result.Lookup("ends_ab")
	require.NoError(t, err)
	assert.True(t, testutil.EndsWith(word.MustAlphabet("a", "b"), "a", "b").Equal(ends.Automaton))

	mod3, err := result.Lookup("mod3")
	require.NoError(t, err)
	assert.Equal(t, "true", mod3.Automaton.Output(testutil.W("a b a a")))

	_, err = result.Lookup("nope")
	var le *LoadError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, ErrCodeNotAMachine, le.Code)
}

func TestLoadFile(t *testing.T) {
	result, errs := LoadFile("testdata/machines/turnstile.cue", LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, result.Machines, 1)
	assert.Equal(t, "coin-operated turnstile", result.Machines[0].Description)

	// Directories are accepted too.
	result, errs = LoadFile("testdata/machines", LoadModeFailFast)
	require.Empty(t, errs)
	assert.Len(t, result.Machines, 3)
}

func TestLoadCollectsErrors(t *testing.T) {
	result, errs := LoadDir("testdata/broken", LoadModeCollectAll)
	require.Len(t, errs, 2)
	require.Len(t, result.Machines, 1)
	assert.Equal(t, "good", result.Machines[0].Name)

	var le *LoadError
	require.True(t, errors.As(errs[0], &le))
	assert.Equal(t, ErrCodeStates, le.Code)
	assert.Contains(t, le.Message, "machine.incomplete")
	require.True(t, errors.As(errs[1], &le))
	assert.Equal(t, ErrCodeTransition, le.Code)
	assert.Contains(t, le.Message, "nowhere")

	_, errs = LoadDir("testdata/broken", LoadModeFailFast)
	assert.Len(t, errs, 1)
}

func TestLoadErrors(t *testing.T) {
	code := func(errs []error) string {
		require.NotEmpty(t, errs)
		var le *LoadError
		require.True(t, errors.As(errs[0], &le))
		return le.Code
	}

	_, errs := LoadDir("testdata/missing", LoadModeFailFast)
	assert.Equal(t, ErrCodeNotFound, code(errs))

	_, errs = LoadDir("testdata/machines/ends.cue", LoadModeFailFast)
	assert.Equal(t, ErrCodeNotFound, code(errs))

	_, errs = LoadDir(t.TempDir(), LoadModeFailFast)
	assert.Equal(t, ErrCodeNoFiles, code(errs))

	_, errs = LoadFile("testdata/missing.cue", LoadModeFailFast)
	assert.Equal(t, ErrCodeNotFound, code(errs))

	_, errs = CompileString(`other: 1`, "x.cue")
	assert.Equal(t, ErrCodeNoMachines, code(errs))

	_, errs = CompileString(`machine: {`, "x.cue")
	assert.Equal(t, ErrCodeBuildFailed, code(errs))
}

func TestMapFieldToErrorCode(t *testing.T) {
	assert.Equal(t, ErrCodeKind, MapFieldToErrorCode("kind"))
	assert.Equal(t, ErrCodeAlphabet, MapFieldToErrorCode("alphabet"))
	assert.Equal(t, ErrCodeInitial, MapFieldToErrorCode("initial"))
	assert.Equal(t, ErrCodeStates, MapFieldToErrorCode("states"))
	assert.Equal(t, ErrCodeStates, MapFieldToErrorCode("states.q0"))
	assert.Equal(t, ErrCodeOutput, MapFieldToErrorCode("states.q0.output"))
	assert.Equal(t, ErrCodeOutput, MapFieldToErrorCode("states.q0.on.a.output"))
	assert.Equal(t, ErrCodeTransition, MapFieldToErrorCode("states.q0.on.a"))
	assert.Equal(t, ErrCodeGeneric, MapFieldToErrorCode("cue"))
}

func TestFormatRoundTrip(t *testing.T) {
	machines := map[string]*automaton.Automaton[string, string]{
		"ends_aab":  testutil.EndsWith(word.MustAlphabet("a", "b"), "a", "a", "b"),
		"turnstile": testutil.Turnstile(),
		"delay1":    testutil.Delay(1),
	}
	for name, want := range machines {
		t.Run(name, func(t *testing.T) {
			src, err := Format(name, want)
			require.NoError(t, err)

			result, errs := CompileString(string(src), name+".cue")
			require.Empty(t, errs, "%s", src)
			got, err := result.Lookup(name)
			require.NoError(t, err)
			assert.True(t, want.Equal(got.Automaton), "%s", src)
			assert.Equal(t, want.Fingerprint(), got.Automaton.Fingerprint())
		})
	}
}

func TestFormatShape(t *testing.T) {
	src, err := Format("turnstile", testutil.Turnstile())
	require.NoError(t, err)
	s := string(src)
	assert.Contains(t, s, "turnstile")
	assert.Contains(t, s, `"mealy"`)
	assert.Contains(t, s, `initial:`)
	assert.Contains(t, s, `to:`)

	_, err = Format("empty", automaton.NewMoore[string, string](word.MustAlphabet("a")))
	assert.Error(t, err)
}
