package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/modoterra/hookscope/pkg/config"
	"github.com/modoterra/hookscope/pkg/core"
	"github.com/modoterra/hookscope/pkg/follow"
	"github.com/modoterra/hookscope/pkg/logdir"
	"github.com/modoterra/hookscope/pkg/query"
	"github.com/modoterra/hookscope/pkg/transport/uds"
)

// Options configure a Daemon.
type Options struct {
	Config  *config.Config
	Dir     logdir.Dir
	Version string
	// Now overrides the clock used by stream sessions.
	Now    func() time.Time
	Logger *slog.Logger
}

// Daemon is the main hookscoped process: it answers queries over the log
// directory and runs live streams for connected clients.
type Daemon struct {
	server   *uds.Server
	cfg      *config.Config
	dir      logdir.Dir
	runner   *query.Runner
	registry *follow.Registry
	files    map[string]core.DayFile
	mu       sync.RWMutex
	version  string
	now      func() time.Time
	logger   *slog.Logger
}

// New creates a new daemon instance.
func New(opts Options) *Daemon {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.Default()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	runner := query.NewRunner(opts.Dir, logger)
	runner.SetDetailLimit(cfg.DetailLimit)

	d := &Daemon{
		server:   uds.NewServer(cfg.Socket, logger),
		cfg:      cfg,
		dir:      opts.Dir,
		runner:   runner,
		registry: follow.NewRegistry(logger),
		files:    make(map[string]core.DayFile),
		version:  opts.Version,
		now:      now,
		logger:   logger,
	}
	d.registerHandlers()
	return d
}

// Run starts the daemon and blocks until the context is cancelled.
func (d *Daemon) Run(ctx context.Context) error {
	defer d.registry.Close()
	return d.server.Start(ctx)
}

// Shutdown cleans up resources.
func (d *Daemon) Shutdown() {
	d.registry.Close()
	d.server.Shutdown()
}

// Server returns the underlying UDS server (for broadcasting events).
func (d *Daemon) Server() *uds.Server {
	return d.server
}

// Streams returns the number of running stream sessions.
func (d *Daemon) Streams() int {
	return d.registry.Len()
}

func (d *Daemon) registerHandlers() {
	d.server.Handle(uds.MethodPing, d.handlePing)
	d.server.Handle(uds.MethodListDates, d.handleListDates)
	d.server.Handle(uds.MethodQueryLogs, d.handleQueryLogs)
	d.server.Handle(uds.MethodGetLog, d.handleGetLog)
	d.server.Handle(uds.MethodFacets, d.handleFacets)
	d.server.Handle(uds.MethodStreamSubscribe, d.handleStreamSubscribe)
	d.server.Handle(uds.MethodStreamUnsubscribe, d.handleStreamUnsubscribe)
}

func (d *Daemon) handlePing(_ context.Context, _ uds.Message) (any, error) {
	return uds.PingResponse{Pong: true, Version: d.version}, nil
}

func (d *Daemon) handleListDates(_ context.Context, _ uds.Message) (any, error) {
	files, err := d.dir.Files()
	if err != nil {
		return nil, err
	}
	dates := make([]string, len(files))
	for i, f := range files {
		dates[i] = f.Date
	}
	return uds.ListDatesResponse{
		Dates: dates,
		Files: files,
		Today: logdir.Today(d.now()),
	}, nil
}

func (d *Daemon) handleQueryLogs(_ context.Context, msg uds.Message) (any, error) {
	var req uds.QueryLogsRequest
	if err := decodeOptional(msg, &req); err != nil {
		return nil, err
	}
	q, err := d.toQuery(req)
	if err != nil {
		return nil, err
	}
	records, err := d.runner.Run(q)
	if err != nil {
		return nil, err
	}
	if records == nil {
		records = []core.Record{}
	}
	return uds.QueryLogsResponse{Records: records}, nil
}

func (d *Daemon) handleGetLog(_ context.Context, msg uds.Message) (any, error) {
	var req uds.GetLogRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	q, err := d.toQuery(req.QueryLogsRequest)
	if err != nil {
		return nil, err
	}
	return d.runner.Detail(q, req.Index)
}

func (d *Daemon) handleFacets(_ context.Context, msg uds.Message) (any, error) {
	var req uds.FacetsRequest
	if err := decodeOptional(msg, &req); err != nil {
		return nil, err
	}
	if err := checkDate(req.Date); err != nil {
		return nil, err
	}
	f, err := d.runner.Facets(req.Date)
	if err != nil {
		return nil, err
	}
	return uds.FacetsResponse{HookEvents: f.HookEvents, ToolNames: f.ToolNames}, nil
}

func (d *Daemon) handleStreamSubscribe(ctx context.Context, msg uds.Message) (any, error) {
	peer, ok := uds.PeerFromContext(ctx)
	if !ok {
		return nil, errors.New("stream requires a connection")
	}
	var req uds.StreamSubscribeRequest
	if err := decodeOptional(msg, &req); err != nil {
		return nil, err
	}
	if err := checkDate(req.Date); err != nil {
		return nil, err
	}

	session := follow.NewSession(d.dir, follow.Options{
		Date:     req.Date,
		Interval: d.cfg.PollInterval,
		Backoff:  d.cfg.ErrorBackoff,
		Now:      d.now,
		Logger:   d.logger,
	})
	connected, err := d.registry.Subscribe(ctx, peer.ID(), session, func(evt follow.Event) {
		d.sendStreamEvent(peer, evt)
	})
	if err != nil {
		return nil, err
	}
	return uds.StreamSubscribeResponse{
		SessionID: connected.SessionID,
		Watching:  connected.Watching,
		Date:      connected.Date,
	}, nil
}

func (d *Daemon) handleStreamUnsubscribe(ctx context.Context, msg uds.Message) (any, error) {
	peer, ok := uds.PeerFromContext(ctx)
	if !ok {
		return nil, errors.New("stream requires a connection")
	}
	var req uds.StreamUnsubscribeRequest
	if err := msg.UnmarshalData(&req); err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	if err := d.registry.Unsubscribe(peer.ID(), req.SessionID); err != nil {
		return nil, err
	}
	d.logger.Info("stream closed", "session", req.SessionID, "peer", peer.ID())
	return map[string]bool{"ok": true}, nil
}

var streamMethods = map[follow.EventType]string{
	follow.EventConnected: uds.EventStreamConnected,
	follow.EventLog:       uds.EventStreamLog,
	follow.EventNewDay:    uds.EventStreamNewDay,
	follow.EventError:     uds.EventStreamError,
}

func (d *Daemon) sendStreamEvent(peer *uds.Peer, evt follow.Event) {
	method, ok := streamMethods[evt.Type]
	if !ok {
		d.logger.Error("unknown stream event", "type", evt.Type)
		return
	}
	msg, err := uds.NewEvent(method, uds.StreamEvent{
		SessionID: evt.SessionID,
		Watching:  evt.Watching,
		Date:      evt.Date,
		Record:    evt.Record,
		Message:   evt.Message,
	})
	if err != nil {
		d.logger.Error("encode stream event", "session", evt.SessionID, "err", err)
		return
	}
	if err := peer.Send(msg); err != nil {
		d.logger.Debug("stream send failed", "session", evt.SessionID, "peer", peer.ID(), "err", err)
	}
}

func (d *Daemon) toQuery(req uds.QueryLogsRequest) (query.Query, error) {
	if err := checkDate(req.Date); err != nil {
		return query.Query{}, err
	}
	if req.Limit < 0 {
		return query.Query{}, fmt.Errorf("limit must not be negative, got %d", req.Limit)
	}
	limit := req.Limit
	if limit == 0 {
		limit = d.cfg.DefaultLimit
	}
	return query.Query{
		Date:      req.Date,
		HookEvent: req.HookEvent,
		ToolName:  req.ToolName,
		Search:    req.Search,
		Limit:     limit,
	}, nil
}

// decodeOptional decodes the payload into v when there is one.
func decodeOptional(msg uds.Message, v any) error {
	if len(msg.Data) == 0 {
		return nil
	}
	if err := msg.UnmarshalData(v); err != nil {
		return fmt.Errorf("invalid request: %w", err)
	}
	return nil
}

func checkDate(date string) error {
	if date == "" {
		return nil
	}
	if _, err := time.Parse(core.DateLayout, date); err != nil {
		return fmt.Errorf("invalid date %q: expected YYYY-MM-DD", date)
	}
	return nil
}
