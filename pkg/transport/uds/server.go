package uds

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"sync/atomic"
)

// HandlerFunc processes a request and returns a response data payload or error.
// The context carries the calling Peer and is cancelled when it disconnects.
type HandlerFunc func(ctx context.Context, req Message) (any, error)

var peerCounter atomic.Uint64

// Peer is one connected client. Writes are serialized so handlers,
// broadcasts and background streams can share the connection.
type Peer struct {
	id     string
	conn   net.Conn
	mu     sync.Mutex
	logger *slog.Logger
}

// ID returns the peer's connection id.
func (p *Peer) ID() string { return p.id }

// Send writes one message as an NDJSON line.
func (p *Peer) Send(msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", msg.Method, err)
	}
	data = append(data, '\n')

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := p.conn.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", msg.Method, err)
	}
	return nil
}

type peerKey struct{}

// PeerFromContext returns the peer a handler is serving.
func PeerFromContext(ctx context.Context) (*Peer, bool) {
	p, ok := ctx.Value(peerKey{}).(*Peer)
	return p, ok
}

// WithPeer attaches a peer to ctx.
func WithPeer(ctx context.Context, p *Peer) context.Context {
	return context.WithValue(ctx, peerKey{}, p)
}

// Server listens on a Unix domain socket and dispatches NDJSON messages.
type Server struct {
	socketPath string
	listener   net.Listener
	handlers   map[string]HandlerFunc
	clients    map[*Peer]struct{}
	ready      chan struct{}
	readyOnce  sync.Once
	mu         sync.RWMutex
	logger     *slog.Logger
}

// NewServer creates a new UDS server.
func NewServer(socketPath string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		socketPath: socketPath,
		handlers:   make(map[string]HandlerFunc),
		clients:    make(map[*Peer]struct{}),
		ready:      make(chan struct{}),
		logger:     logger,
	}
}

// Handle registers a handler for a method.
func (s *Server) Handle(method string, h HandlerFunc) {
	s.handlers[method] = h
}

// Start begins listening. It removes any stale socket file first.
func (s *Server) Start(ctx context.Context) error {
	// Remove stale socket
	if err := os.Remove(s.socketPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.socketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.logger.Info("server listening", "socket", s.socketPath)
	s.readyOnce.Do(func() { close(s.ready) })

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil // shutting down
			}
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.logger.Error("accept error", "err", err)
			continue
		}
		peer := &Peer{
			id:     fmt.Sprintf("peer-%d", peerCounter.Add(1)),
			conn:   conn,
			logger: s.logger,
		}
		s.mu.Lock()
		s.clients[peer] = struct{}{}
		s.mu.Unlock()
		go s.handleConn(ctx, peer)
	}
}

// Ready is closed once the socket is accepting connections.
func (s *Server) Ready() <-chan struct{} {
	return s.ready
}

// Clients returns the number of connected peers.
func (s *Server) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Broadcast sends an event to all connected clients.
func (s *Server) Broadcast(msg Message) {
	s.mu.RLock()
	peers := make([]*Peer, 0, len(s.clients))
	for p := range s.clients {
		peers = append(peers, p)
	}
	s.mu.RUnlock()

	for _, p := range peers {
		if err := p.Send(msg); err != nil {
			s.logger.Error("broadcast write error", "peer", p.id, "err", err)
		}
	}
}

// Shutdown cleanly stops the server.
func (s *Server) Shutdown() {
	s.mu.Lock()
	if s.listener != nil {
		s.listener.Close()
	}
	for p := range s.clients {
		p.conn.Close()
	}
	s.mu.Unlock()
	os.Remove(s.socketPath)
}

func (s *Server) handleConn(ctx context.Context, peer *Peer) {
	connCtx, cancel := context.WithCancel(WithPeer(ctx, peer))
	defer func() {
		cancel()
		peer.conn.Close()
		s.mu.Lock()
		delete(s.clients, peer)
		s.mu.Unlock()
		s.logger.Debug("peer disconnected", "peer", peer.id)
	}()
	s.logger.Debug("peer connected", "peer", peer.id)

	scanner := bufio.NewScanner(peer.conn)
	scanner.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024) // records can be large

	for scanner.Scan() {
		var msg Message
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			s.logger.Error("invalid message", "peer", peer.id, "err", err)
			continue
		}

		if msg.Type != MsgTypeReq {
			continue
		}

		handler, ok := s.handlers[msg.Method]
		if !ok {
			resp := NewErrorResponse(msg.ID, msg.Method, fmt.Sprintf("unknown method: %s", msg.Method))
			s.reply(peer, resp)
			continue
		}

		result, err := handler(connCtx, msg)
		var resp Message
		if err != nil {
			resp = NewErrorResponse(msg.ID, msg.Method, err.Error())
		} else if resp, err = NewResponse(msg.ID, msg.Method, result); err != nil {
			resp = NewErrorResponse(msg.ID, msg.Method, err.Error())
		}
		s.reply(peer, resp)
	}
}

func (s *Server) reply(peer *Peer, msg Message) {
	if err := peer.Send(msg); err != nil {
		s.logger.Error("write response error", "peer", peer.id, "err", err)
	}
}
