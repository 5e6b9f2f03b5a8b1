package braille

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCodepointBijection(t *testing.T) {
	t.Parallel()

	seen := make(map[rune]bool, 256)
	for mask := 0; mask < 256; mask++ {
		c := Cell(mask)
		r := ToCodepoint(c)
		require.GreaterOrEqual(t, r, PatternBase)
		require.LessOrEqual(t, r, PatternLast)
		require.False(t, seen[r], "codepoint %U emitted twice", r)
		seen[r] = true

		back, err := FromCodepoint(r)
		require.NoError(t, err)
		require.Equal(t, c, back)
	}
}

func TestFromCodepointOutsideBlock(t *testing.T) {
	t.Parallel()

	for _, r := range []rune{'a', PatternBase - 1, PatternLast + 1, 'அ'} {
		_, err := FromCodepoint(r)
		require.ErrorIs(t, err, ErrNotBraillePattern)
	}
}

func TestToCodepointKnownValues(t *testing.T) {
	t.Parallel()

	require.Equal(t, '⠀', ToCodepoint(Blank))
	require.Equal(t, '⠁', ToCodepoint(MustCell(1)))
	require.Equal(t, '⠅', ToCodepoint(MustCell(1, 3)))
	require.Equal(t, '⠿', ToCodepoint(MustCell(1, 2, 3, 4, 5, 6)))
	require.Equal(t, '⣿', ToCodepoint(MustCell(1, 2, 3, 4, 5, 6, 7, 8)))
}

func TestNewCellRejectsInvalidDots(t *testing.T) {
	t.Parallel()

	cases := map[string][]int{
		"zero":     {0},
		"nine":     {9},
		"negative": {-1},
		"repeated": {1, 1},
	}
	for name, dots := range cases {
		dots := dots
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			_, err := NewCell(dots...)
			require.True(t, errors.Is(err, ErrInvalidDot), "got %v", err)
		})
	}
}

func TestCellDotsAscending(t *testing.T) {
	t.Parallel()

	c := MustCell(6, 1, 4)
	require.Equal(t, []int{1, 4, 6}, c.Dots())
	require.True(t, c.Has(4))
	require.False(t, c.Has(2))
	require.False(t, c.Has(0))
	require.False(t, c.IsEightDot())
	require.True(t, MustCell(7).IsEightDot())
}

func TestToMatrixRaisesExactlyTheDots(t *testing.T) {
	t.Parallel()

	for mask := 0; mask < 64; mask++ {
		c := Cell(mask)
		m := ToMatrix(c, SixDotRows)
		require.Len(t, m, SixDotRows)
		for row := 0; row < SixDotRows; row++ {
			for col := 0; col < 2; col++ {
				dot := col*SixDotRows + row + 1
				require.Equal(t, c.Has(dot), m[row][col], "mask %06b dot %d", mask, dot)
			}
		}
	}
}

func TestToMatrixEightDotLayout(t *testing.T) {
	t.Parallel()

	m := ToMatrix(MustCell(4, 8), EightDotRows)
	require.Len(t, m, EightDotRows)
	require.True(t, m[3][0], "dot 4 sits at row 3, column 0 in a 4-row cell")
	require.True(t, m[3][1], "dot 8 sits at row 3, column 1")
	require.False(t, m[0][1])
}

func TestToMatrixPanicsOnContractViolation(t *testing.T) {
	t.Parallel()

	require.Panics(t, func() { ToMatrix(MustCell(1), 2) })
	require.Panics(t, func() { ToMatrix(MustCell(7), SixDotRows) })
}

func TestRowsFor(t *testing.T) {
	t.Parallel()

	require.Equal(t, SixDotRows, RowsFor(nil))
	require.Equal(t, SixDotRows, RowsFor(Sequence{MustCell(1, 6)}))
	require.Equal(t, EightDotRows, RowsFor(Sequence{MustCell(1), MustCell(8)}))
}

func TestRenderAndParse(t *testing.T) {
	t.Parallel()

	require.Equal(t, "", Render(nil))
	require.Equal(t, "", Render(Sequence{}))

	seq := Sequence{MustCell(1, 3), MustCell(3, 4, 5), Blank}
	text := Render(seq)
	require.Equal(t, "⠅⠜⠀", text)
	require.Equal(t, text, Render(seq), "rendering is deterministic")

	back, err := Parse(text)
	require.NoError(t, err)
	require.Equal(t, seq, back)

	_, err = Parse("⠅x")
	require.ErrorIs(t, err, ErrNotBraillePattern)
}

func TestRenderDots(t *testing.T) {
	t.Parallel()

	out, err := RenderDots([][]int{{1, 2, 5}, {}, {1, 3}})
	require.NoError(t, err)
	require.Equal(t, "⠓⠀⠅", out)

	_, err = RenderDots([][]int{{1}, {10}})
	require.ErrorIs(t, err, ErrInvalidDot)
}

func TestSequenceDotsRoundTrip(t *testing.T) {
	t.Parallel()

	dots := [][]int{{4}, {1, 3}, {}}
	seq, err := SequenceFromDots(dots)
	require.NoError(t, err)
	require.Equal(t, dots, seq.Dots())
}
