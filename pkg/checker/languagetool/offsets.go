package languagetool

import "unicode/utf8"

// offsetIndex maps UTF-16 code unit positions, which the service reports, to
// code point positions.
type offsetIndex struct {
	runes []int // runes[u] is the code point index at code unit u
}

func newOffsetIndex(text string) *offsetIndex {
	idx := &offsetIndex{runes: make([]int, 0, len(text)+1)}

	n := 0
	for _, r := range text {
		idx.runes = append(idx.runes, n)
		if r >= 0x10000 && r <= utf8.MaxRune {
			// second half of a surrogate pair
			idx.runes = append(idx.runes, n)
		}
		n++
	}
	idx.runes = append(idx.runes, n)

	return idx
}

func (idx *offsetIndex) rune(unit int) int {
	switch {
	case unit < 0:
		return unit
	case unit >= len(idx.runes):
		return idx.runes[len(idx.runes)-1] + unit - (len(idx.runes) - 1)
	default:
		return idx.runes[unit]
	}
}

// Runes converts a UTF-16 span to a code point span. Positions past the end
// stay past the end so the edit layer can clamp or drop them.
func (idx *offsetIndex) Runes(offset, length int) (int, int) {
	if length < 0 {
		return idx.rune(offset), length
	}
	start := idx.rune(offset)
	end := idx.rune(offset + length)
	return start, end - start
}
