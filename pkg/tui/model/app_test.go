package model

import (
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/modoterra/hookscope/internal/testsupport"
	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/extract"
	"github.com/modoterra/hookscope/pkg/prefs"
	"github.com/modoterra/hookscope/pkg/transport/uds"
)

var fixedNow = func() time.Time { return time.Date(2026, 2, 1, 12, 0, 0, 0, time.Local) }

func newTestApp(p prefs.Prefs) App {
	if p.Limit == 0 {
		p.Limit = 100
	}
	return New(Options{SocketPath: "/nonexistent.sock", Prefs: p, Now: fixedNow})
}

func update(t *testing.T, a App, msg tea.Msg) App {
	t.Helper()
	m, _ := a.Update(msg)
	app, ok := m.(App)
	if !ok {
		t.Fatalf("Update returned %T", m)
	}
	return app
}

func key(s string) tea.KeyMsg {
	switch s {
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEscape}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func sampleRecords(t *testing.T) []core.Record {
	t.Helper()
	return extract.Extract([]byte(testsupport.SampleLog()))
}

func liveEvent(t *testing.T, method, session string, rec *core.Record, date string) eventMsg {
	t.Helper()
	msg, err := uds.NewEvent(method, uds.StreamEvent{SessionID: session, Record: rec, Date: date})
	if err != nil {
		t.Fatal(err)
	}
	return eventMsg{msg}
}

func mustRecord(t *testing.T, s string) core.Record {
	t.Helper()
	var r core.Record
	if err := r.UnmarshalJSON([]byte(s)); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestNewAppliesPrefs(t *testing.T) {
	a := newTestApp(prefs.Prefs{HookEvent: "PreToolUse", Limit: 50, ShowLive: true})
	if a.date != testsupport.SampleDate {
		t.Errorf("empty prefs date should follow today, got %q", a.date)
	}
	if a.hookEvent != "PreToolUse" || a.limit != 50 || !a.showLive {
		t.Errorf("prefs not applied: %+v", a.queryRequest())
	}

	all := newTestApp(prefs.Prefs{Date: prefs.AllDates})
	if all.date != "" {
		t.Errorf("expected all days, got %q", all.date)
	}
}

func TestRecordsNavigation(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a = update(t, a, recordsMsg{sampleRecords(t)})

	for i := 0; i < 10; i++ {
		a = update(t, a, key("j"))
	}
	if a.selectedIdx != 4 {
		t.Errorf("selection should clamp at 4, got %d", a.selectedIdx)
	}
	a = update(t, a, key("k"))
	if a.selectedIdx != 3 {
		t.Errorf("expected 3 after k, got %d", a.selectedIdx)
	}
	a = update(t, a, key("g"))
	if a.selectedIdx != 0 {
		t.Errorf("expected 0 after g, got %d", a.selectedIdx)
	}

	// A shorter result keeps the selection in range.
	a = update(t, a, key("G"))
	a = update(t, a, recordsMsg{sampleRecords(t)[:2]})
	if a.selectedIdx != 1 {
		t.Errorf("expected selection clamped to 1, got %d", a.selectedIdx)
	}
}

func TestLiveRecordMergesIntoTodayList(t *testing.T) {
	a := newTestApp(prefs.Prefs{ShowLive: true})
	a.session = "s1"
	a = update(t, a, recordsMsg{sampleRecords(t)})

	rec := mustRecord(t, testsupport.CompactRecord("2026-02-01T12:00:00Z", "PreToolUse", `{"tool_name":"Read"}`))
	a = update(t, a, liveEvent(t, uds.EventStreamLog, "s1", &rec, ""))

	if len(a.live) != 1 {
		t.Fatalf("expected 1 live record, got %d", len(a.live))
	}
	if len(a.records) != 6 || a.records[0].ToolName() != "Read" {
		t.Errorf("expected the live record first in the list, got %d records", len(a.records))
	}

	// Other sessions are ignored.
	a = update(t, a, liveEvent(t, uds.EventStreamLog, "other", &rec, ""))
	if len(a.live) != 1 {
		t.Errorf("event for another session was applied")
	}
}

func TestLiveRecordRespectsFilters(t *testing.T) {
	a := newTestApp(prefs.Prefs{HookEvent: "Stop"})
	a.session = "s1"
	a = update(t, a, recordsMsg{nil})

	rec := mustRecord(t, testsupport.CompactRecord("2026-02-01T12:00:00Z", "PreToolUse", `{"tool_name":"Read"}`))
	a = update(t, a, liveEvent(t, uds.EventStreamLog, "s1", &rec, ""))

	if len(a.live) != 1 {
		t.Errorf("live pane shows every record, got %d", len(a.live))
	}
	if len(a.records) != 0 {
		t.Errorf("filtered list should not gain a PreToolUse record")
	}
}

func TestPauseDropsLiveRecords(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a.session = "s1"
	a = update(t, a, key(" "))
	if !a.livePaused {
		t.Fatal("space should pause")
	}

	rec := mustRecord(t, testsupport.CompactRecord("2026-02-01T12:00:00Z", "Stop", `{}`))
	a = update(t, a, liveEvent(t, uds.EventStreamLog, "s1", &rec, ""))
	if len(a.live) != 0 {
		t.Errorf("paused stream should not record, got %d", len(a.live))
	}

	a = update(t, a, key(" "))
	if a.livePaused {
		t.Error("space should resume")
	}
}

func TestNewDayFollowsToday(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a.session = "s1"
	a = update(t, a, liveEvent(t, uds.EventStreamNewDay, "s1", nil, "2026-02-02"))

	if a.today != "2026-02-02" || a.date != "2026-02-02" {
		t.Errorf("expected view to move to the new day, today=%s date=%s", a.today, a.date)
	}

	pinned := newTestApp(prefs.Prefs{Date: "2026-01-15"})
	pinned.session = "s1"
	pinned = update(t, pinned, liveEvent(t, uds.EventStreamNewDay, "s1", nil, "2026-02-02"))
	if pinned.date != "2026-01-15" {
		t.Errorf("a pinned day should stay, got %s", pinned.date)
	}
}

func TestSwitchDate(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a = update(t, a, datesMsg{uds.ListDatesResponse{
		Dates: []string{"2026-02-01", "2026-01-31", "2026-01-30"},
		Today: "2026-02-01",
	}})

	a = update(t, a, key("["))
	if a.date != "2026-01-31" {
		t.Errorf("[ should go older, got %s", a.date)
	}
	a = update(t, a, key("["))
	a = update(t, a, key("["))
	if a.date != "2026-01-30" {
		t.Errorf("[ should stop at the oldest day, got %s", a.date)
	}
	a = update(t, a, key("]"))
	if a.date != "2026-01-31" {
		t.Errorf("] should go newer, got %s", a.date)
	}
	a = update(t, a, key("A"))
	if a.date != "" {
		t.Errorf("A should show all days, got %s", a.date)
	}
	a = update(t, a, key("t"))
	if a.date != "2026-02-01" {
		t.Errorf("t should jump to today, got %s", a.date)
	}
}

func TestFilterForm(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a.facets = uds.FacetsResponse{HookEvents: []string{"PreToolUse", "Stop"}, ToolNames: []string{"Bash"}}

	a = update(t, a, key("f"))
	if a.mode != ModeFilter || a.filter == nil {
		t.Fatal("f should open the filter form")
	}

	a = update(t, a, key("Stop"))
	a = update(t, a, key("tab"))
	a = update(t, a, key("down"))
	a = update(t, a, key("enter"))

	if a.mode != ModeNormal {
		t.Fatal("enter should close the form")
	}
	if a.hookEvent != "Stop" || a.toolName != "Bash" || a.limit != 100 {
		t.Errorf("unexpected filters: event=%q tool=%q limit=%d", a.hookEvent, a.toolName, a.limit)
	}

	a = update(t, a, key("c"))
	if a.hookEvent != "" || a.toolName != "" {
		t.Error("c should clear filters")
	}
}

func TestFilterFormRejectsBadLimit(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a.mode = ModeFilter
	a.filter = NewFilterForm("", "", 0, uds.FacetsResponse{})

	a = update(t, a, key("enter"))
	if a.mode != ModeFilter {
		t.Fatal("a zero limit should keep the form open")
	}
	if !strings.Contains(a.filter.err, "limit") {
		t.Errorf("expected a limit error, got %q", a.filter.err)
	}

	a = update(t, a, key("esc"))
	if a.mode != ModeNormal || a.filter != nil {
		t.Error("esc should cancel the form")
	}
}

func TestSearchMode(t *testing.T) {
	a := newTestApp(prefs.Prefs{})
	a = update(t, a, key("/"))
	if a.mode != ModeSearch {
		t.Fatal("/ should enter search mode")
	}
	a = update(t, a, key("hello"))
	a = update(t, a, key("enter"))
	if a.mode != ModeNormal || a.queryRequest().Search != "hello" {
		t.Errorf("search not applied: mode=%v search=%q", a.mode, a.queryRequest().Search)
	}
}

func TestViewRenders(t *testing.T) {
	a := newTestApp(prefs.Prefs{ShowLive: true})
	if a.View() != "loading..." {
		t.Error("expected loading view before the first resize")
	}

	a = update(t, a, tea.WindowSizeMsg{Width: 140, Height: 40})
	a = update(t, a, recordsMsg{sampleRecords(t)})
	out := a.View()
	for _, want := range []string{"Records", "Detail", "Live", "PreToolUse"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q", want)
		}
	}

	a = update(t, a, key("f"))
	if !strings.Contains(a.View(), "Filters") {
		t.Error("filter overlay not rendered")
	}
}

func TestQuitSavesPrefs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.toml")
	a := New(Options{
		SocketPath: "/nonexistent.sock",
		Prefs:      prefs.Prefs{ToolName: "Bash", Limit: 25},
		PrefsPath:  path,
		Now:        fixedNow,
	})

	_, cmd := a.Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return the quit command")
	}

	saved, err := prefs.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if saved.ToolName != "Bash" || saved.Limit != 25 || saved.Date != "" {
		t.Errorf("unexpected saved prefs %+v", saved)
	}
}

func TestClock(t *testing.T) {
	tests := map[string]string{
		"2026-02-01T10:00:03.123Z": "10:00:03",
		"2026-02-01T10:00:03Z":     "10:00:03",
		"12345":                    "12345",
		"":                         "",
	}
	for in, want := range tests {
		if got := clock(in); got != want {
			t.Errorf("clock(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestDetailScrollStaysInBounds(t *testing.T) {
	var input strings.Builder
	input.WriteString("{")
	for i := 0; i < 40; i++ {
		if i > 0 {
			input.WriteString(",")
		}
		fmt.Fprintf(&input, `"field_%02d":%d`, i, i)
	}
	input.WriteString("}")
	long := mustRecord(t, testsupport.CompactRecord("2026-02-01T12:00:00Z", "Notification", input.String()))

	a := newTestApp(prefs.Prefs{})
	a = update(t, a, tea.WindowSizeMsg{Width: 120, Height: 24})
	a = update(t, a, recordsMsg{append([]core.Record{long}, sampleRecords(t)...)})
	a = update(t, a, key("tab"))
	if a.activePane != PaneDetail {
		t.Fatal("tab should focus the detail pane")
	}

	maxOffset := a.detail.TotalLineCount() - a.detail.Height
	if maxOffset <= 0 {
		t.Fatalf("record should overflow the pane: %d lines, height %d", a.detail.TotalLineCount(), a.detail.Height)
	}

	for i := 0; i < 200; i++ {
		a = update(t, a, key("down"))
	}
	if a.detail.YOffset != maxOffset {
		t.Fatalf("scroll offset %d, want it held at %d", a.detail.YOffset, maxOffset)
	}

	a = update(t, a, key("up"))
	if a.detail.YOffset != maxOffset-1 {
		t.Errorf("one step up should move the view, offset %d", a.detail.YOffset)
	}
	if !strings.Contains(a.View(), "field_39") {
		t.Error("the end of the record should be visible near the bottom")
	}

	// Selecting another record starts it at the top.
	a = update(t, a, key("esc"))
	a = update(t, a, key("j"))
	if a.detail.YOffset != 0 {
		t.Errorf("new selection should reset the scroll, offset %d", a.detail.YOffset)
	}
}
