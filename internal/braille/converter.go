package braille

import "errors"

// ErrNilTable is returned by NewConverter when no table is supplied.
var ErrNilTable = errors.New("braille: mapping table is required")

// Unmapped is one input code point the converter could not match.
type Unmapped struct {
	// Position is the rune offset in the input.
	Position int
	Char     rune
}

// Result is the outcome of ConvertDetailed.
type Result struct {
	Cells    Sequence
	Unmapped []Unmapped
}

// Converter segments Tamil text against a mapping table. It holds no mutable
// state and may be shared across goroutines.
type Converter struct {
	table *Table
}

// NewConverter binds a converter to table.
func NewConverter(table *Table) (*Converter, error) {
	if table == nil {
		return nil, ErrNilTable
	}
	return &Converter{table: table}, nil
}

// Table exposes the bound mapping table.
func (c *Converter) Table() *Table {
	return c.table
}

// Convert returns the cells for text. Code points with no matching key are
// skipped.
func (c *Converter) Convert(text string) Sequence {
	return c.scan(text, nil)
}

// ConvertDetailed behaves like Convert and also reports every skipped code point.
func (c *Converter) ConvertDetailed(text string) Result {
	var unmapped []Unmapped
	cells := c.scan(text, func(pos int, r rune) {
		unmapped = append(unmapped, Unmapped{Position: pos, Char: r})
	})
	return Result{Cells: cells, Unmapped: unmapped}
}

func (c *Converter) scan(text string, miss func(pos int, r rune)) Sequence {
	runes := []rune(text)
	out := make(Sequence, 0, len(runes))
	maxLen := c.table.maxKeyLen

	for i := 0; i < len(runes); {
		matched := 0
		for n := min(maxLen, len(runes)-i); n >= 1; n-- {
			if seq, ok := c.table.entries[string(runes[i:i+n])]; ok {
				out = append(out, seq...)
				matched = n
				break
			}
		}
		if matched == 0 {
			if miss != nil {
				miss(i, runes[i])
			}
			matched = 1
		}
		i += matched
	}
	return out
}
