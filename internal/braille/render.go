package braille

import "strings"

// Render encodes each cell with ToCodepoint and concatenates the result.
func Render(seq Sequence) string {
	if len(seq) == 0 {
		return ""
	}
	var b strings.Builder
	b.Grow(len(seq) * 3)
	for _, c := range seq {
		b.WriteRune(ToCodepoint(c))
	}
	return b.String()
}

// RenderDots renders dot lists, validating every index.
func RenderDots(cells [][]int) (string, error) {
	seq, err := SequenceFromDots(cells)
	if err != nil {
		return "", err
	}
	return Render(seq), nil
}

// Parse is the inverse of Render for strings made only of Braille Patterns.
func Parse(s string) (Sequence, error) {
	seq := make(Sequence, 0, len(s)/3)
	for _, r := range s {
		c, err := FromCodepoint(r)
		if err != nil {
			return nil, err
		}
		seq = append(seq, c)
	}
	return seq, nil
}
