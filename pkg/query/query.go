// Package query selects, filters and orders extracted records.
package query

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/extract"
	"github.com/modoterra/hookscope/pkg/logdir"
)

// Defaults for result caps.
const (
	DefaultLimit = 100
	DetailLimit  = 1000
)

// ErrIndexOutOfRange is returned by Detail for an index past the results.
var ErrIndexOutOfRange = errors.New("log index out of range")

// Query selects records. Empty fields do not filter.
type Query struct {
	// Date picks one day file. Empty reads every day file, newest first.
	Date      string `json:"date,omitempty"`
	HookEvent string `json:"hook_event,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// Runner answers queries against a log directory.
type Runner struct {
	dir         logdir.Dir
	detailLimit int
	logger      *slog.Logger
}

// NewRunner creates a Runner over dir.
func NewRunner(dir logdir.Dir, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{dir: dir, detailLimit: DetailLimit, logger: logger}
}

// SetDetailLimit changes the cap Detail queries run with.
func (r *Runner) SetDetailLimit(n int) {
	if n > 0 {
		r.detailLimit = n
	}
}

// Load extracts the records of the selected day files. Unreadable files
// contribute nothing.
func (r *Runner) Load(date string) ([]core.Record, error) {
	dates := []string{date}
	if date == "" {
		all, err := r.dir.Dates()
		if err != nil {
			return nil, err
		}
		dates = all
	}

	var records []core.Record
	for _, d := range dates {
		recs, err := extract.ExtractFile(r.dir.FS, r.dir.Path(d))
		if err != nil {
			r.logger.Warn("skipping unreadable day file", "date", d, "err", err)
			continue
		}
		records = append(records, recs...)
	}
	return records, nil
}

// Run loads and applies q.
func (r *Runner) Run(q Query) ([]core.Record, error) {
	records, err := r.Load(q.Date)
	if err != nil {
		return nil, err
	}
	return Apply(records, q), nil
}

// Detail returns the record at index in the results of q run with the
// detail cap.
func (r *Runner) Detail(q Query, index int) (core.Record, error) {
	q.Limit = r.detailLimit
	records, err := r.Run(q)
	if err != nil {
		return core.Record{}, err
	}
	if index < 0 || index >= len(records) {
		return core.Record{}, fmt.Errorf("%w: %d of %d", ErrIndexOutOfRange, index, len(records))
	}
	return records[index], nil
}

// Facets lists the distinct hook events and tool names of a date.
type Facets struct {
	HookEvents []string `json:"hook_events"`
	ToolNames  []string `json:"tool_names"`
}

// Facets computes the filter choices for date from its newest records, up
// to the detail cap.
func (r *Runner) Facets(date string) (Facets, error) {
	records, err := r.Run(Query{Date: date, Limit: r.detailLimit})
	if err != nil {
		return Facets{}, err
	}
	return Facets{
		HookEvents: UniqueValues(records, core.KeyHookEvent),
		ToolNames:  UniqueValues(records, "input.tool_name"),
	}, nil
}

// newer ranks string timestamps in descending order. Records whose
// timestamp is not a string sort after all of them.
func newer(a, b core.Record) bool {
	at, aok := a.StringTimestamp()
	bt, bok := b.StringTimestamp()
	if aok != bok {
		return aok
	}
	return aok && at > bt
}

// Apply orders records by timestamp descending, then filters by hook
// event, tool name and search text, and finally caps the result. The input
// slice is not modified.
func Apply(records []core.Record, q Query) []core.Record {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	sorted := make([]core.Record, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return newer(sorted[i], sorted[j])
	})

	folder := cases.Fold()
	var needle string
	if q.Search != "" {
		needle = folder.String(q.Search)
	}

	out := make([]core.Record, 0, min(limit, len(sorted)))
	for _, rec := range sorted {
		if q.HookEvent != "" && rec.HookEvent() != q.HookEvent {
			continue
		}
		if q.ToolName != "" && rec.ToolName() != q.ToolName {
			continue
		}
		if needle != "" && !strings.Contains(folder.String(string(rec.Value().SpacedJSON())), needle) {
			continue
		}
		out = append(out, rec)
		if len(out) >= limit {
			break
		}
	}
	return out
}

// UniqueValues returns the sorted distinct non-empty values found at the
// dotted path in records.
func UniqueValues(records []core.Record, path string) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		v, ok := rec.Value().LookupDotted(path)
		if !ok || !v.Truthy() {
			continue
		}
		seen[v.Text()] = struct{}{}
	}

	values := make([]string, 0, len(seen))
	for v := range seen {
		values = append(values, v)
	}
	sort.Strings(values)
	return values
}
