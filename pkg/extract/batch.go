package extract

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/afero"

	"github.com/modoterra/hookscope/pkg/core"
)

// Stats counts what happened to each candidate during a batch extraction.
type Stats struct {
	Candidates     int `json:"candidates"`
	DecodeFailures int `json:"decode_failures"`
	Rejected       int `json:"rejected"`
	Records        int `json:"records"`
}

// Extract recovers every record it can from data, in file order. A
// candidate that fails to decode or validate is skipped and the scan goes
// on with the next one.
func Extract(data []byte) []core.Record {
	records, _ := ExtractStats(data)
	return records
}

// ExtractStats is Extract plus per-candidate accounting.
func ExtractStats(data []byte) ([]core.Record, Stats) {
	var (
		records []core.Record
		st      Stats
	)
	for _, off := range Candidates(data) {
		st.Candidates++
		v, _, err := DecodeAt(data, off)
		if err != nil {
			st.DecodeFailures++
			continue
		}
		r, ok := Validate(v)
		if !ok {
			st.Rejected++
			continue
		}
		records = append(records, r)
	}
	st.Records = len(records)
	return records, st
}

// ExtractFile reads path from fs and extracts its records. A missing file
// yields no records and no error.
func ExtractFile(fs afero.Fs, path string) ([]core.Record, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Extract(data), nil
}
