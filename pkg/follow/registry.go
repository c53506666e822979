package follow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrRegistryClosed is returned by Subscribe after Close.
var ErrRegistryClosed = errors.New("follow registry closed")

// Registry runs follow sessions in the background and tracks them by id so
// they can be cancelled individually or per owner.
type Registry struct {
	subs   map[string]*subscription
	closed bool
	mu     sync.Mutex
	wg     sync.WaitGroup
	logger *slog.Logger
}

type subscription struct {
	owner   string
	cancel  context.CancelFunc
	session *Session
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		subs:   make(map[string]*subscription),
		logger: logger,
	}
}

// Subscribe starts s and runs it until ctx is done or the session is
// unsubscribed. The connected event is emitted before the session goroutine
// starts and is also returned.
func (r *Registry) Subscribe(ctx context.Context, owner string, s *Session, emit func(Event)) (Event, error) {
	if r.isClosed() {
		return Event{}, ErrRegistryClosed
	}

	connected, err := s.Start()
	if err != nil {
		return Event{}, err
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Event{}, ErrRegistryClosed
	}
	subCtx, cancel := context.WithCancel(ctx)
	r.subs[s.ID()] = &subscription{owner: owner, cancel: cancel, session: s}
	r.wg.Add(1)
	r.mu.Unlock()

	emit(connected)

	go func() {
		defer r.wg.Done()
		defer r.remove(s.ID())
		if err := s.Run(subCtx, emit); err != nil {
			r.logger.Error("follow session stopped", "session", s.ID(), "err", err)
		}
	}()

	r.logger.Info("following", "session", s.ID(), "owner", owner, "date", s.Date())
	return connected, nil
}

// Unsubscribe cancels the session id if owner started it.
func (r *Registry) Unsubscribe(owner, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[id]
	if !ok || sub.owner != owner {
		return fmt.Errorf("no session %s", id)
	}
	sub.cancel()
	delete(r.subs, id)
	return nil
}

// Sessions returns the ids of running sessions owned by owner.
func (r *Registry) Sessions(owner string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []string
	for id, sub := range r.subs {
		if sub.owner == owner {
			ids = append(ids, id)
		}
	}
	return ids
}

// Len returns the number of running sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.subs)
}

// Close cancels every session and waits for them to stop. Later
// subscriptions fail with ErrRegistryClosed.
func (r *Registry) Close() {
	r.mu.Lock()
	r.closed = true
	for id, sub := range r.subs {
		sub.cancel()
		delete(r.subs, id)
	}
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Registry) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.subs[id]; ok {
		sub.cancel()
		delete(r.subs, id)
	}
}
