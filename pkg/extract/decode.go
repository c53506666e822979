package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modoterra/hookscope/pkg/core"
)

// ErrNoValue reports that no complete JSON value starts at an offset.
var ErrNoValue = errors.New("no complete value")

// DecodeAt parses exactly one JSON value starting at data[off] and returns
// it together with the offset just past its last byte. Whatever follows the
// value is not examined.
func DecodeAt(data []byte, off int) (core.Value, int, error) {
	if off < 0 || off >= len(data) {
		return core.Value{}, off, fmt.Errorf("%w at offset %d: out of range", ErrNoValue, off)
	}
	if isSpaceByte(data[off]) {
		return core.Value{}, off, fmt.Errorf("%w at offset %d: leading whitespace", ErrNoValue, off)
	}

	dec := json.NewDecoder(bytes.NewReader(data[off:]))
	v, err := core.ReadValue(dec)
	if err != nil {
		return core.Value{}, off, fmt.Errorf("%w at offset %d: %v", ErrNoValue, off, err)
	}
	return v, off + int(dec.InputOffset()), nil
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
