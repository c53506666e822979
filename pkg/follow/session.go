// Package follow tails the current hook day file and emits records as they
// are appended.
//
// A Session owns its cursor. Each poll re-reads the whole file when it has
// grown and decodes strictly from the cursor: the first value that does not
// decode stops the pass, and nothing after it is emitted until the bytes at
// the cursor become a complete value. Batch extraction in package extract
// is the corruption tolerant path.
package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/extract"
	"github.com/modoterra/hookscope/pkg/logdir"
)

// Default poll timings.
const (
	DefaultInterval = 500 * time.Millisecond
	DefaultBackoff  = time.Second
)

// ErrNotWatching is returned by Tick before Start or after termination.
var ErrNotWatching = errors.New("session is not watching")

// State is the lifecycle state of a Session.
type State int

const (
	StateIdle State = iota
	StateWatching
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateTerminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// EventType names a stream event.
type EventType string

const (
	EventConnected EventType = "connected"
	EventLog       EventType = "log"
	EventNewDay    EventType = "newday"
	EventError     EventType = "error"
)

// Event is one message on a live stream.
type Event struct {
	Type      EventType    `json:"type"`
	SessionID string       `json:"session_id"`
	Watching  string       `json:"watching,omitempty"`
	Date      string       `json:"date,omitempty"`
	Record    *core.Record `json:"record,omitempty"`
	Message   string       `json:"message,omitempty"`
}

// Options tune a Session. Zero values select the defaults.
type Options struct {
	// Date pins the first watched day. Empty means today.
	Date     string
	Interval time.Duration
	Backoff  time.Duration
	Now      func() time.Time
	Logger   *slog.Logger
}

// Session follows one day file for one subscriber.
type Session struct {
	id       string
	dir      logdir.Dir
	interval time.Duration
	backoff  time.Duration
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.Mutex
	state    State
	date     string
	wallDate string
	lastSize int64
	cursor   int64
}

// NewSession creates an idle session over dir.
func NewSession(dir logdir.Dir, opts Options) *Session {
	s := &Session{
		id:       uuid.NewString(),
		dir:      dir,
		interval: opts.Interval,
		backoff:  opts.Backoff,
		now:      opts.Now,
		logger:   opts.Logger,
		date:     opts.Date,
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.backoff <= 0 {
		s.backoff = DefaultBackoff
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// State returns the lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Date returns the watched day.
func (s *Session) Date() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.date
}

// Cursor returns the byte offset up to which the watched file is consumed.
func (s *Session) Cursor() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// Start moves the session to watching. Records already in the file are
// consumed without being emitted, so the subscriber only sees new ones.
func (s *Session) Start() (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return Event{}, fmt.Errorf("start session in state %s", s.state)
	}

	s.wallDate = logdir.Today(s.now())
	if s.date == "" {
		s.date = s.wallDate
	}
	path := s.dir.Path(s.date)

	data, err := afero.ReadFile(s.dir.FS, path)
	switch {
	case err == nil:
		_, end := extract.Consume(data, 0)
		s.cursor = int64(end)
		s.lastSize = int64(len(data))
	case errors.Is(err, os.ErrNotExist):
		s.cursor, s.lastSize = 0, 0
	default:
		return Event{}, fmt.Errorf("read %s: %w", path, err)
	}

	s.state = StateWatching
	s.logger.Debug("follow session started", "session", s.id, "path", path, "cursor", s.cursor)
	return Event{Type: EventConnected, SessionID: s.id, Watching: path, Date: s.date}, nil
}

// Tick polls once. It returns the log events for records appended since
// the previous tick and a newday event when the wall clock date changed.
func (s *Session) Tick() ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateWatching {
		return nil, ErrNotWatching
	}

	events, err := s.readGrowth()
	if err != nil {
		return events, err
	}

	if today := logdir.Today(s.now()); today != s.wallDate {
		s.wallDate = today
		s.date = today
		s.lastSize = 0
		s.cursor = 0
		s.logger.Info("follow session rolled over", "session", s.id, "date", today)
		events = append(events, Event{Type: EventNewDay, SessionID: s.id, Date: today})
	}
	return events, nil
}

func (s *Session) readGrowth() ([]Event, error) {
	size, ok, err := s.dir.Stat(s.date)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", s.dir.Path(s.date), err)
	}
	if !ok || size <= s.lastSize {
		return nil, nil
	}

	path := s.dir.Path(s.date)
	data, err := afero.ReadFile(s.dir.FS, path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	var events []Event
	decoded, end := extract.Consume(data, int(s.cursor))
	for _, d := range decoded {
		rec, ok := extract.Validate(d.Value)
		if !ok {
			continue
		}
		events = append(events, Event{Type: EventLog, SessionID: s.id, Record: &rec})
	}
	if int64(end) > s.cursor {
		s.cursor = int64(end)
	}
	s.lastSize = int64(len(data))
	return events, nil
}

// Run starts the session if needed and polls until ctx is done. Events are
// passed to emit in order from the calling goroutine. A failed tick is
// reported as an error event and polling resumes after the backoff.
func (s *Session) Run(ctx context.Context, emit func(Event)) error {
	defer s.terminate()

	if s.State() == StateIdle {
		evt, err := s.Start()
		if err != nil {
			return err
		}
		emit(evt)
	}

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}

		events, err := s.Tick()
		for _, evt := range events {
			emit(evt)
		}

		wait := s.interval
		if err != nil {
			if errors.Is(err, ErrNotWatching) {
				return err
			}
			s.logger.Warn("follow tick failed", "session", s.id, "err", err)
			emit(Event{Type: EventError, SessionID: s.id, Message: err.Error()})
			wait = s.backoff
		}
		timer.Reset(wait)
	}
}

func (s *Session) terminate() {
	s.mu.Lock()
	s.state = StateTerminated
	s.mu.Unlock()
	s.logger.Debug("follow session terminated", "session", s.id)
}
