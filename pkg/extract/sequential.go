package extract

import (
	"unicode"
	"unicode/utf8"

	"github.com/modoterra/hookscope/pkg/core"
)

// Decoded is a value read by Consume with its byte span.
type Decoded struct {
	Value core.Value
	Start int
	End   int
}

// Consume decodes back-to-back values from data starting at start,
// skipping whitespace between them, and stops at the first position that
// does not hold a complete value. It returns the values read and the end
// offset of the last one, or start when none was read. Unlike Extract it
// never looks past a failure.
func Consume(data []byte, start int) ([]Decoded, int) {
	var out []Decoded
	end := start
	pos := start
	for {
		pos = skipSpace(data, pos)
		if pos >= len(data) {
			return out, end
		}
		v, next, err := DecodeAt(data, pos)
		if err != nil {
			return out, end
		}
		out = append(out, Decoded{Value: v, Start: pos, End: next})
		end = next
		pos = next
	}
}

func skipSpace(data []byte, pos int) int {
	for pos < len(data) {
		if c := data[pos]; c < utf8.RuneSelf {
			if !unicode.IsSpace(rune(c)) {
				return pos
			}
			pos++
			continue
		}
		r, size := utf8.DecodeRune(data[pos:])
		if !unicode.IsSpace(r) {
			return pos
		}
		pos += size
	}
	return pos
}
