package extract

import (
	"bytes"
	"sort"
)

// Record-opening literals written by the hook logger: pretty-printed with a
// two-space indent, or compact.
var openers = [][]byte{
	[]byte("{\n  \"timestamp\""),
	[]byte("{\"timestamp\""),
}

// Candidates returns the ascending, deduplicated byte offsets where data
// matches one of the record-opening literals. The search is textual, so a
// nested object whose first key is "timestamp" is also reported.
func Candidates(data []byte) []int {
	var offsets []int
	for _, pat := range openers {
		pos := 0
		for pos < len(data) {
			i := bytes.Index(data[pos:], pat)
			if i < 0 {
				break
			}
			offsets = append(offsets, pos+i)
			pos += i + 1
		}
	}
	if len(offsets) == 0 {
		return nil
	}

	sort.Ints(offsets)
	uniq := offsets[:1]
	for _, off := range offsets[1:] {
		if off != uniq[len(uniq)-1] {
			uniq = append(uniq, off)
		}
	}
	return uniq
}
