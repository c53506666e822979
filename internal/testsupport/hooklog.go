// Package testsupport holds hook log fixtures shared by package tests.
package testsupport

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

// SampleDate is the day of the sample fixtures.
const SampleDate = "2026-02-01"

// CompactRecord renders a record on one line with keys in hook logger order.
// input must be a JSON object literal.
func CompactRecord(ts, event, input string) string {
	return fmt.Sprintf(`{"timestamp":%q,"hook_event":%q,"project_dir":"/test/project","input":%s}`, ts, event, input)
}

// PrettyRecord renders a record with the two-space indent the hook logger
// writes.
func PrettyRecord(ts, event, input string) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, []byte(CompactRecord(ts, event, input)), "", "  "); err != nil {
		panic(err)
	}
	return buf.String()
}

// SampleLog returns five well-formed records, one per line group, in the
// order PreToolUse, PostToolUse, Notification, UserPromptSubmit, Stop.
func SampleLog() string {
	records := []string{
		PrettyRecord("2026-02-01T10:00:00Z", "PreToolUse",
			`{"tool_name":"Bash","tool_input":{"command":"echo hello","description":"Print hello"},"session_id":"test-session-1"}`),
		PrettyRecord("2026-02-01T10:00:01Z", "PostToolUse",
			`{"tool_name":"Bash","tool_input":{"command":"echo hello","description":"Print hello"},"tool_response":{"stdout":"hello","stderr":""},"session_id":"test-session-1"}`),
		PrettyRecord("2026-02-01T10:00:02Z", "Notification",
			`{"message":"Claude is waiting for your input","notification_type":"idle_prompt","session_id":"test-session-1"}`),
		PrettyRecord("2026-02-01T10:00:03Z", "UserPromptSubmit",
			`{"prompt":"run tests","session_id":"test-session-1"}`),
		PrettyRecord("2026-02-01T10:00:04Z", "Stop",
			`{"stop_hook_active":true,"session_id":"test-session-1"}`),
	}
	return strings.Join(records, "\n") + "\n"
}

// CorruptedLog holds three records where the middle one was cut off by an
// interleaved write.
const CorruptedLog = `{
  "timestamp": "2026-02-01T10:00:00Z",
  "hook_event": "PreToolUse",
  "project_dir": "/test/project",
  "input": {
    "tool_name": "Bash",
    "session_id": "test-1"
  }
}
{
  "timestamp": "2026-02-01T10:00:01Z",
  "hook_event": "Notification",
{
  "project_dir": "/test/corrupted",
  "input": {
    "message": "corrupted entry"
  }
}
{
  "timestamp": "2026-02-01T10:00:02Z",
  "hook_event": "PostToolUse",
  "project_dir": "/test/project",
  "input": {
    "tool_name": "Read",
    "session_id": "test-2"
  }
}
`

// WriteDayFile writes content as the day file for date under dir.
func WriteDayFile(t testing.TB, fs afero.Fs, dir, date, content string) string {
	t.Helper()

	path := filepath.Join(dir, "hooks-"+date+".json")
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", dir, err)
	}
	if err := afero.WriteFile(fs, path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return path
}

// AppendFile appends content to path.
func AppendFile(t testing.TB, fs afero.Fs, path, content string) {
	t.Helper()

	f, err := fs.OpenFile(path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	if _, err := f.WriteString(content); err != nil {
		t.Fatalf("append %s: %v", path, err)
	}
}
