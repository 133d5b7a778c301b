package closing

import (
	"bytes"
	"context"
	"log/slog"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/lstar/internal/oracle"
	"github.com/roach88/lstar/internal/table"
	"github.com/roach88/lstar/internal/word"
)

// classOutput maps single letters to outputs so that the initial table has
// unclosed classes {a b}, {c}, {d e f}.
var classOutput = map[string]int{"a": 1, "b": 1, "c": 2, "d": 3, "e": 3, "f": 3}

func threeClasses(t *testing.T) (*table.Table[string, int], oracle.MembershipOracle[string, int], [][]*table.Row[string]) {
	t.Helper()
	tbl := table.New[string, int](word.MustAlphabet("a", "b", "c", "d", "e", "f"))
	mq := oracle.Single(func(w word.Word[string]) int {
		if w.IsEmpty() {
			return 0
		}
		return classOutput[w.At(0)] + 10*(w.Len()-1)
	})
	unclosed, err := tbl.Initialize(context.Background(), []word.Word[string]{word.Epsilon[string]()}, mq)
	require.NoError(t, err)
	require.Len(t, unclosed, 3)
	require.Len(t, unclosed[0], 2)
	require.Len(t, unclosed[1], 1)
	require.Len(t, unclosed[2], 3)
	return tbl, mq, unclosed
}

func contains(class []*table.Row[string], r *table.Row[string]) bool {
	for _, c := range class {
		if c == r {
			return true
		}
	}
	return false
}

func allStrategies() map[string]Strategy[string, int] {
	return map[string]Strategy[string, int]{
		"first":    First[string, int]{},
		"random":   NewRandom[string, int](rand.New(rand.NewPCG(7, 7))),
		"shortest": Shortest[string, int]{},
		"lexmin":   LexMin[string, int]{},
	}
}

// Classes of sizes {2,1,3} give exactly three rows, each from its own class.
func TestOneRowPerClass(t *testing.T) {
	for name, s := range allStrategies() {
		t.Run(name, func(t *testing.T) {
			tbl, mq, unclosed := threeClasses(t)
			rows, err := s.SelectClosingRows(context.Background(), unclosed, tbl, mq)
			require.NoError(t, err)
			require.Len(t, rows, 3)
			for i, r := range rows {
				assert.True(t, contains(unclosed[i], r), "row %s not in class %d", r, i)
			}
		})
	}
}

func TestEmptyClassIsRejected(t *testing.T) {
	for name, s := range allStrategies() {
		t.Run(name, func(t *testing.T) {
			tbl, mq, _ := threeClasses(t)
			_, err := s.SelectClosingRows(context.Background(), [][]*table.Row[string]{{}}, tbl, mq)
			assert.Error(t, err)
		})
	}
}

func TestFirstPicksInsertionOrder(t *testing.T) {
	tbl, mq, unclosed := threeClasses(t)
	rows, err := First[string, int]{}.SelectClosingRows(context.Background(), unclosed, tbl, mq)
	require.NoError(t, err)
	assert.Equal(t, "a", rows[0].Label().String())
	assert.Equal(t, "c", rows[1].Label().String())
	assert.Equal(t, "d", rows[2].Label().String())
}

func TestRandomIsReproducibleWithSeed(t *testing.T) {
	pickLabels := func(seed uint64) []string {
		tbl, mq, unclosed := threeClasses(t)
		s, err := New[string, int](KindRandom, seed, nil)
		require.NoError(t, err)
		var out []string
		for i := 0; i < 8; i++ {
			rows, err := s.SelectClosingRows(context.Background(), unclosed, tbl, mq)
			require.NoError(t, err)
			for _, r := range rows {
				out = append(out, r.Label().String())
			}
		}
		return out
	}
	assert.Equal(t, pickLabels(42), pickLabels(42))
}

func TestRandomCoversClass(t *testing.T) {
	tbl, mq, unclosed := threeClasses(t)
	s := NewRandom[string, int](rand.New(rand.NewPCG(1, 2)))
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		rows, err := s.SelectClosingRows(context.Background(), unclosed, tbl, mq)
		require.NoError(t, err)
		seen[rows[2].Label().String()] = true
	}
	assert.Equal(t, map[string]bool{"d": true, "e": true, "f": true}, seen)
}

func TestUnseededRandomWarns(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	_, err := New[string, int](KindRandom, 0, logger)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "without a fixed seed")

	buf.Reset()
	_, err = New[string, int](KindRandom, 9, logger)
	require.NoError(t, err)
	assert.Empty(t, buf.String())
}

func TestEffectiveSeed(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	drawn := EffectiveSeed(KindRandom, 0, logger)
	assert.NotZero(t, drawn)
	assert.Contains(t, buf.String(), "without a fixed seed")

	buf.Reset()
	assert.Equal(t, uint64(9), EffectiveSeed(KindRandom, 9, logger))
	assert.Equal(t, uint64(0), EffectiveSeed(KindFirst, 0, logger))
	assert.Equal(t, uint64(4), EffectiveSeed(KindLexMin, 4, logger))
	assert.Empty(t, buf.String())

	// The drawn seed rebuilds the same strategy.
	tbl, mq, unclosed := threeClasses(t)
	pick := func(seed uint64) []string {
		s, err := New[string, int](KindRandom, seed, logger)
		require.NoError(t, err)
		rows, err := s.SelectClosingRows(context.Background(), unclosed, tbl, mq)
		require.NoError(t, err)
		out := make([]string, len(rows))
		for i, r := range rows {
			out[i] = r.Label().String()
		}
		return out
	}
	assert.Equal(t, pick(drawn), pick(drawn))
}

func TestShortestAndLexMin(t *testing.T) {
	tbl := table.New[string, int](word.MustAlphabet("x", "y"))
	// Short prefixes ε, y; output 1 on "x", "y x" and "y y", 0 otherwise.
	mq := oracle.Single(func(w word.Word[string]) int {
		switch w.String() {
		case "x", "y x", "y y":
			return 1
		}
		return 0
	})
	ctx := context.Background()
	_, err := tbl.Initialize(ctx, []word.Word[string]{word.Epsilon[string]()}, mq)
	require.NoError(t, err)
	y, _ := tbl.Row(word.Of("y"))
	unclosed, err := tbl.Promote(ctx, []*table.Row[string]{y}, mq)
	require.NoError(t, err)

	// Reorder the class so the longer rows come first.
	require.Len(t, unclosed, 1)
	class := unclosed[0]
	require.Len(t, class, 3)
	reordered := [][]*table.Row[string]{{class[2], class[1], class[0]}}

	rows, err := Shortest[string, int]{}.SelectClosingRows(ctx, reordered, tbl, mq)
	require.NoError(t, err)
	assert.Equal(t, "x", rows[0].Label().String())

	rows, err = LexMin[string, int]{}.SelectClosingRows(ctx, [][]*table.Row[string]{{class[2], class[1]}}, tbl, mq)
	require.NoError(t, err)
	assert.Equal(t, "y x", rows[0].Label().String())

	rows, err = Shortest[string, int]{}.SelectClosingRows(ctx, [][]*table.Row[string]{{class[2], class[1]}}, tbl, mq)
	require.NoError(t, err)
	assert.Equal(t, "y y", rows[0].Label().String(), "ties go to the first row seen")
}

func TestParseKind(t *testing.T) {
	for _, k := range Kinds() {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}
	got, err := ParseKind(" LexMin ")
	require.NoError(t, err)
	assert.Equal(t, KindLexMin, got)

	_, err = ParseKind("greedy")
	assert.Error(t, err)

	_, err = New[string, int]("greedy", 1, nil)
	assert.Error(t, err)
}
