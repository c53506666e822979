package uds

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/modoterra/hookscope/pkg/core"
)

var reqCounter atomic.Uint64

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// UnmarshalData decodes the message payload into v.
func (m Message) UnmarshalData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("%s: empty payload", m.Method)
	}
	if err := json.Unmarshal(m.Data, v); err != nil {
		return fmt.Errorf("%s: decode payload: %w", m.Method, err)
	}
	return nil
}

func marshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeReq,
		ID:     fmt.Sprintf("req-%d", reqCounter.Add(1)),
		Method: method,
		Data:   raw,
	}, nil
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Data:   raw,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Error:  errMsg,
	}
}

// NewEvent creates a server-pushed event.
func NewEvent(method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeEvt,
		ID:     fmt.Sprintf("evt-%d", reqCounter.Add(1)),
		Method: method,
		Data:   raw,
	}, nil
}

// Methods
const (
	MethodPing              = "Ping"
	MethodListDates         = "ListDates"
	MethodQueryLogs         = "QueryLogs"
	MethodGetLog            = "GetLog"
	MethodFacets            = "Facets"
	MethodStreamSubscribe   = "StreamSubscribe"
	MethodStreamUnsubscribe = "StreamUnsubscribe"

	EventStreamConnected = "stream.connected"
	EventStreamLog       = "stream.log"
	EventStreamNewDay    = "stream.newday"
	EventStreamError     = "stream.error"
	EventDatesDelta      = "dates.delta"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong    bool   `json:"pong"`
	Version string `json:"version,omitempty"`
}

// ListDatesResponse lists the day files known to the daemon.
type ListDatesResponse struct {
	Dates []string       `json:"dates"`
	Files []core.DayFile `json:"files,omitempty"`
	Today string         `json:"today"`
}

// QueryLogsRequest selects records. Empty fields do not filter; an empty
// date covers every day file.
type QueryLogsRequest struct {
	Date      string `json:"date,omitempty"`
	HookEvent string `json:"hook_event,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	Search    string `json:"search,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// QueryLogsResponse carries records newest first.
type QueryLogsResponse struct {
	Records []core.Record `json:"records"`
}

// GetLogRequest addresses one record by its position in a query result.
type GetLogRequest struct {
	QueryLogsRequest
	Index int `json:"index"`
}

// FacetsRequest asks for the filter choices of a date.
type FacetsRequest struct {
	Date string `json:"date,omitempty"`
}

// FacetsResponse lists distinct hook events and tool names.
type FacetsResponse struct {
	HookEvents []string `json:"hook_events"`
	ToolNames  []string `json:"tool_names"`
}

// StreamSubscribeRequest starts a live stream. Date pins the first day to
// follow; empty means today.
type StreamSubscribeRequest struct {
	Date string `json:"date,omitempty"`
}

// StreamSubscribeResponse identifies the new stream session.
type StreamSubscribeResponse struct {
	SessionID string `json:"session_id"`
	Watching  string `json:"watching"`
	Date      string `json:"date"`
}

// StreamUnsubscribeRequest ends a stream session.
type StreamUnsubscribeRequest struct {
	SessionID string `json:"session_id"`
}

// StreamEvent is the payload of every stream.* event.
type StreamEvent struct {
	SessionID string       `json:"session_id"`
	Watching  string       `json:"watching,omitempty"`
	Date      string       `json:"date,omitempty"`
	Record    *core.Record `json:"record,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// DatesDelta is broadcast when day files appear, grow or disappear.
type DatesDelta struct {
	Added   []core.DayFile `json:"added,omitempty"`
	Updated []core.DayFile `json:"updated,omitempty"`
	Removed []string       `json:"removed,omitempty"`
}

// HasChanges returns true if the delta contains any changes.
func (d DatesDelta) HasChanges() bool {
	return len(d.Added) > 0 || len(d.Updated) > 0 || len(d.Removed) > 0
}
