package core

import (
	"fmt"
	"strings"
)

// Required top-level keys of a hook log record.
const (
	KeyTimestamp = "timestamp"
	KeyHookEvent = "hook_event"
	KeyInput     = "input"
)

// RequiredKeys lists the keys every record must carry at top level.
var RequiredKeys = []string{KeyTimestamp, KeyHookEvent, KeyInput}

// Record is one hook log entry: a JSON object holding at least the
// required keys. Records are read-only once built.
type Record struct {
	v Value
}

// NewRecord wraps an object value. It does not check the required keys;
// callers that need that gate go through the extract package.
func NewRecord(v Value) Record {
	return Record{v: v}
}

// Value returns the underlying object.
func (r Record) Value() Value { return r.v }

// Timestamp returns the timestamp as display text. Non-string timestamps
// render as their JSON literal.
func (r Record) Timestamp() string {
	ts, ok := r.v.Field(KeyTimestamp)
	if !ok {
		return ""
	}
	return ts.Text()
}

// StringTimestamp returns the timestamp when it is a JSON string.
func (r Record) StringTimestamp() (string, bool) {
	return r.Get(KeyTimestamp).Str()
}

// HookEvent returns the hook_event string, or "" when it is not a string.
func (r Record) HookEvent() string {
	s, _ := r.Get(KeyHookEvent).Str()
	return s
}

// ToolName returns input.tool_name, or "" when absent.
func (r Record) ToolName() string {
	s, _ := r.Get("input.tool_name").Str()
	return s
}

// SessionID returns input.session_id, or "" when absent.
func (r Record) SessionID() string {
	s, _ := r.Get("input.session_id").Str()
	return s
}

// Get resolves a dotted path. Missing paths yield null.
func (r Record) Get(path string) Value {
	v, _ := r.v.LookupDotted(path)
	return v
}

// Summary is a one-line description used by list views.
func (r Record) Summary() string {
	in, _ := r.v.Field(KeyInput)
	for _, key := range []string{"tool_name", "prompt", "message", "notification_type"} {
		if v, ok := in.Field(key); ok && v.Truthy() {
			return strings.Join(strings.Fields(v.Text()), " ")
		}
	}
	return ""
}

// MarshalJSON encodes the record compactly in source key order.
func (r Record) MarshalJSON() ([]byte, error) {
	return r.v.MarshalJSON()
}

// UnmarshalJSON decodes a record sent over the wire.
func (r *Record) UnmarshalJSON(data []byte) error {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return err
	}
	if v.Kind() != KindObject {
		return fmt.Errorf("core: record must be an object, got %s", v.Kind())
	}
	r.v = v
	return nil
}
