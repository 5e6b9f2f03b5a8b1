// Package braille implements Tamil to six-dot Braille transliteration: the
// grapheme mapping table, the longest-match converter, and the cell codec
// shared by rendering and visualisation.
package braille

import (
	"errors"
	"fmt"
)

const (
	// PatternBase is the first codepoint of the Unicode Braille Patterns block.
	PatternBase rune = 0x2800
	// PatternLast is the last codepoint of the Unicode Braille Patterns block.
	PatternLast rune = PatternBase + 0xFF

	// MaxDot is the highest dot index of an eight-dot cell.
	MaxDot = 8

	// SixDotRows is the row count of a six-dot cell.
	SixDotRows = 3
	// EightDotRows is the row count of an eight-dot cell.
	EightDotRows = 4
)

// ErrNotBraillePattern is returned when a codepoint lies outside the Braille Patterns block.
var ErrNotBraillePattern = errors.New("braille: codepoint outside braille patterns block")

// Cell is one Braille cell stored as a bitmask; bit d-1 is set when dot d is raised.
type Cell uint8

// Blank is the cell with no raised dots.
const Blank Cell = 0

// NewCell builds a cell from dot indices in 1..8. Duplicates are rejected.
func NewCell(dots ...int) (Cell, error) {
	var c Cell
	for _, d := range dots {
		if d < 1 || d > MaxDot {
			return 0, fmt.Errorf("%w: %d", ErrInvalidDot, d)
		}
		bit := Cell(1) << (d - 1)
		if c&bit != 0 {
			return 0, fmt.Errorf("%w: %d repeated", ErrInvalidDot, d)
		}
		c |= bit
	}
	return c, nil
}

// MustCell is NewCell for literal dot lists known to be valid.
func MustCell(dots ...int) Cell {
	c, err := NewCell(dots...)
	if err != nil {
		panic(err)
	}
	return c
}

// Has reports whether dot d is raised.
func (c Cell) Has(d int) bool {
	if d < 1 || d > MaxDot {
		return false
	}
	return c&(Cell(1)<<(d-1)) != 0
}

// Dots returns the raised dot indices in ascending order.
func (c Cell) Dots() []int {
	dots := make([]int, 0, MaxDot)
	for d := 1; d <= MaxDot; d++ {
		if c.Has(d) {
			dots = append(dots, d)
		}
	}
	return dots
}

// IsEightDot reports whether the cell raises dot 7 or 8.
func (c Cell) IsEightDot() bool {
	return c.Has(7) || c.Has(8)
}

// Rune is shorthand for ToCodepoint(c).
func (c Cell) Rune() rune {
	return ToCodepoint(c)
}

// String renders the cell as its Braille Pattern character.
func (c Cell) String() string {
	return string(ToCodepoint(c))
}

// ToCodepoint maps the cell to its Unicode Braille Pattern. The mapping is a
// bijection between the 256 dot sets and the block.
func ToCodepoint(c Cell) rune {
	return PatternBase + rune(c)
}

// FromCodepoint is the inverse of ToCodepoint.
func FromCodepoint(r rune) (Cell, error) {
	if r < PatternBase || r > PatternLast {
		return 0, fmt.Errorf("%w: %U", ErrNotBraillePattern, r)
	}
	return Cell(r - PatternBase), nil
}

// ToMatrix lays the cell out as rows×2 booleans. Dot d sits at column
// (d-1)/rows and row (d-1)%rows. rows must be 3 or 4 and every raised dot must
// fit the layout; anything else is a programming error and panics.
func ToMatrix(c Cell, rows int) [][2]bool {
	if rows != SixDotRows && rows != EightDotRows {
		panic(fmt.Sprintf("braille: unsupported row count %d", rows))
	}
	matrix := make([][2]bool, rows)
	for _, d := range c.Dots() {
		if d > rows*2 {
			panic(fmt.Sprintf("braille: dot %d does not fit a %d-row cell", d, rows))
		}
		matrix[(d-1)%rows][(d-1)/rows] = true
	}
	return matrix
}

// RowsFor returns the smallest layout able to show every cell in seq.
func RowsFor(seq Sequence) int {
	for _, c := range seq {
		if c.IsEightDot() {
			return EightDotRows
		}
	}
	return SixDotRows
}

// Sequence is an ordered run of cells as emitted by the converter.
type Sequence []Cell

// Dots returns the sequence as dot lists, the shape stored in history records.
func (s Sequence) Dots() [][]int {
	out := make([][]int, len(s))
	for i, c := range s {
		out[i] = c.Dots()
	}
	return out
}

// SequenceFromDots validates and converts dot lists into a sequence.
func SequenceFromDots(cells [][]int) (Sequence, error) {
	seq := make(Sequence, 0, len(cells))
	for i, dots := range cells {
		c, err := NewCell(dots...)
		if err != nil {
			return nil, fmt.Errorf("cell %d: %w", i, err)
		}
		seq = append(seq, c)
	}
	return seq, nil
}
