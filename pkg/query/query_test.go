package query

import (
	"io"
	"log/slog"
	"testing"

	. "github.com/onsi/gomega"
	"github.com/spf13/afero"

	"github.com/modoterra/hookscope/internal/testsupport"
	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/extract"
	"github.com/modoterra/hookscope/pkg/logdir"
)

func newRunner(t *testing.T, files map[string]string) *Runner {
	t.Helper()
	fs := afero.NewMemMapFs()
	for date, content := range files {
		testsupport.WriteDayFile(t, fs, "/logs", date, content)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
	return NewRunner(logdir.Dir{FS: fs, Root: "/logs"}, logger)
}

func timestamps(records []core.Record) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.Timestamp()
	}
	return out
}

func TestRunSortsNewestFirst(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(timestamps(records)).To(Equal([]string{
		"2026-02-01T10:00:04Z",
		"2026-02-01T10:00:03Z",
		"2026-02-01T10:00:02Z",
		"2026-02-01T10:00:01Z",
		"2026-02-01T10:00:00Z",
	}))
}

func TestRunRespectsLimit(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate, Limit: 2})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(timestamps(records)).To(Equal([]string{"2026-02-01T10:00:04Z", "2026-02-01T10:00:03Z"}))
}

func TestRunFiltersByHookEvent(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate, HookEvent: "Notification"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(1))
	g.Expect(records[0].HookEvent()).To(Equal("Notification"))
}

func TestRunFiltersByToolName(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate, ToolName: "Bash"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(2))
	for _, rec := range records {
		g.Expect(rec.ToolName()).To(Equal("Bash"))
	}
}

func TestRunSearchIsCaseInsensitive(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate, Search: "WAITING"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(1))
	g.Expect(records[0].Get("input.message").Text()).To(ContainSubstring("waiting"))

	records, err = r.Run(Query{Date: testsupport.SampleDate, Search: "hello"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(2))
}

func TestSearchMatchesSerializedForm(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate, Search: `"tool_name": "bash"`})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(2))
}

func TestFiltersCombineBeforeCap(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	records, err := r.Run(Query{Date: testsupport.SampleDate, ToolName: "Bash", Search: "stdout", Limit: 1})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(HaveLen(1))
	g.Expect(records[0].HookEvent()).To(Equal("PostToolUse"))
}

func TestRunAllDates(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{
		"2026-02-01": testsupport.CompactRecord("2026-02-01T10:00:00Z", "A", `{}`),
		"2026-02-02": testsupport.CompactRecord("2026-02-02T10:00:00Z", "B", `{}`),
	})

	records, err := r.Run(Query{})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(timestamps(records)).To(Equal([]string{"2026-02-02T10:00:00Z", "2026-02-01T10:00:00Z"}))
}

func TestRunMissingDateIsEmpty(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, nil)

	records, err := r.Run(Query{Date: "2020-01-01"})
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(records).To(BeEmpty())
}

func TestCompactScenarioOrdering(t *testing.T) {
	g := NewGomegaWithT(t)
	data := []byte(`{"timestamp":"2026-02-01T10:00:00Z","hook_event":"A","input":{}}{"timestamp":"2026-02-01T10:00:01Z","hook_event":"B","input":{}}`)

	records := extract.Extract(data)
	sorted := Apply(records, Query{})
	g.Expect(sorted[0].HookEvent()).To(Equal("B"))
	g.Expect(sorted[1].HookEvent()).To(Equal("A"))
	// Apply leaves its input in file order.
	g.Expect(records[0].HookEvent()).To(Equal("A"))
}

func TestNonStringTimestampsSortLast(t *testing.T) {
	g := NewGomegaWithT(t)
	records := extract.Extract([]byte(
		`{"timestamp":{"sec":1},"hook_event":"Object","input":{}}` +
			`{"timestamp":null,"hook_event":"Null","input":{}}` +
			testsupport.CompactRecord("2026-02-01T10:00:00Z", "Older", `{}`) +
			`{"timestamp":17,"hook_event":"Number","input":{}}` +
			testsupport.CompactRecord("2026-02-01T11:00:00Z", "Newer", `{}`)))
	g.Expect(records).To(HaveLen(5))

	sorted := Apply(records, Query{})
	events := make([]string, len(sorted))
	for i, r := range sorted {
		events[i] = r.HookEvent()
	}
	// Non-string timestamps keep their file order behind the dated records.
	g.Expect(events).To(Equal([]string{"Newer", "Older", "Object", "Null", "Number"}))

	capped := Apply(records, Query{Limit: 1})
	g.Expect(capped[0].HookEvent()).To(Equal("Newer"))
}

func TestDetail(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	rec, err := r.Detail(Query{Date: testsupport.SampleDate}, 0)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(rec.HookEvent()).To(Equal("Stop"))

	_, err = r.Detail(Query{Date: testsupport.SampleDate}, 5)
	g.Expect(err).To(MatchError(ErrIndexOutOfRange))
}

func TestUniqueValues(t *testing.T) {
	g := NewGomegaWithT(t)
	records := extract.Extract([]byte(
		testsupport.CompactRecord("t1", "PreToolUse", `{"tool_name":"Bash"}`) +
			testsupport.CompactRecord("t2", "PostToolUse", `{"tool_name":"Read"}`) +
			testsupport.CompactRecord("t3", "PreToolUse", `{"tool_name":"Bash"}`) +
			testsupport.CompactRecord("t4", "Stop", `{}`) +
			testsupport.CompactRecord("t5", "Stop", `{"tool_name":""}`)))

	g.Expect(UniqueValues(records, "hook_event")).To(Equal([]string{"PostToolUse", "PreToolUse", "Stop"}))
	g.Expect(UniqueValues(records, "input.tool_name")).To(Equal([]string{"Bash", "Read"}))
	g.Expect(UniqueValues(records, "input.missing")).To(BeEmpty())
}

func TestFacets(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})

	f, err := r.Facets(testsupport.SampleDate)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.HookEvents).To(Equal([]string{"Notification", "PostToolUse", "PreToolUse", "Stop", "UserPromptSubmit"}))
	g.Expect(f.ToolNames).To(Equal([]string{"Bash"}))
}

func TestFacetsUseNewestRecordsUpToDetailLimit(t *testing.T) {
	g := NewGomegaWithT(t)
	r := newRunner(t, map[string]string{testsupport.SampleDate: testsupport.SampleLog()})
	r.SetDetailLimit(2)

	f, err := r.Facets(testsupport.SampleDate)
	g.Expect(err).ToNot(HaveOccurred())
	g.Expect(f.HookEvents).To(Equal([]string{"Stop", "UserPromptSubmit"}))
	g.Expect(f.ToolNames).To(BeEmpty())
}
