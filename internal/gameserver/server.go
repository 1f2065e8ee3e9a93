// Package gameserver implements the TCP session server: acceptor, one
// reader per connection, a single-consumer dispatcher that owns all room
// and player state, and a reaper that evicts silent connections.
package gameserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/udisondev/gomokugo/internal/config"
	"github.com/udisondev/gomokugo/internal/protocol"
)

// eventKind distinguishes dispatcher work items.
type eventKind int

const (
	eventMessage eventKind = iota
	eventDisconnect
)

// event is one unit of dispatcher work. Readers enqueue; the dispatcher is
// the only consumer, so every room mutation happens in a total order.
type event struct {
	client *Client
	kind   eventKind
	msg    protocol.Message
}

const eventQueueSize = 1024

// Server is the session server accepting game clients on a TCP port.
type Server struct {
	cfg      config.GameServer
	registry *Registry
	handler  *Handler
	events   chan event

	listener net.Listener
	mu       sync.Mutex
}

// NewServer creates a session server. recorder may be nil; finished matches
// are then not persisted.
func NewServer(cfg config.GameServer, recorder MatchRecorder) *Server {
	registry := NewRegistry()
	return &Server{
		cfg:      cfg,
		registry: registry,
		handler:  NewHandler(cfg, registry, recorder),
		events:   make(chan event, eventQueueSize),
	}
}

// Registry returns the client registry (for tests and stats).
func (s *Server) Registry() *Registry { return s.registry }

// Addr returns the address the server is listening on.
// Returns nil if the server hasn't started yet.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Close closes the listener and stops the server.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Run begins listening for client connections on cfg.BindAddress:cfg.Port.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.BindAddress, s.cfg.Port)
	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	return s.Serve(ctx, ln)
}

// Serve accepts connections on a ready listener. Split from Run so tests
// can bind to an ephemeral port.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go func() {
		<-ctx.Done()
		ln.Close()
		s.registry.ForEach(func(c *Client) bool {
			c.Close()
			return true
		})
	}()

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		s.dispatch(ctx)
	}()
	go func() {
		defer wg.Done()
		s.reap(ctx)
	}()
	go func() {
		defer wg.Done()
		slog.Info("game server started", "address", ln.Addr())
		s.acceptLoop(ctx, &wg, ln)
	}()

	wg.Wait()
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, wg *sync.WaitGroup, ln net.Listener) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				slog.Error("failed to accept new connection", "error", err)
				continue
			}

			client := NewClient(s.registry.NextClientID(), conn, s.cfg.SendQueueSize, s.cfg.WriteTimeout)
			s.registry.Add(client)
			slog.Info("new connection", "client", client.ID(), "remote", client.IP())

			wg.Add(2)
			go func() {
				defer wg.Done()
				client.writePump()
			}()
			go func() {
				defer wg.Done()
				s.readLoop(ctx, client)
			}()
		}
	}
}

// readLoop owns the connection's read half: frame lines, parse JSON,
// enqueue onto the dispatcher queue. Exiting routes the connection through
// the disconnect path exactly once.
func (s *Server) readLoop(ctx context.Context, c *Client) {
	defer s.enqueue(ctx, event{client: c, kind: eventDisconnect})

	fr := protocol.NewReader(c.conn, s.cfg.MaxFrameSize)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := c.conn.SetReadDeadline(time.Now().Add(s.cfg.ReadTimeout)); err != nil {
			return
		}

		line, err := fr.ReadLine()
		if err != nil {
			var nerr net.Error
			if errors.As(err, &nerr) && nerr.Timeout() {
				if time.Since(c.LastActivity()) > s.cfg.SilenceTimeout {
					slog.Info("client silent too long, dropping", "client", c.ID())
					return
				}
				continue
			}
			if errors.Is(err, protocol.ErrFrameTooLarge) {
				slog.Warn("oversized frame, closing connection", "client", c.ID())
			}
			return
		}

		msg, err := protocol.Decode(line)
		if err != nil {
			slog.Warn("invalid frame dropped", "client", c.ID(), "error", err)
			continue
		}

		c.Touch()
		s.enqueue(ctx, event{client: c, kind: eventMessage, msg: msg})
	}
}

func (s *Server) enqueue(ctx context.Context, ev event) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// dispatch is the single consumer of the event queue.
func (s *Server) dispatch(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-s.events:
			switch ev.kind {
			case eventMessage:
				s.handler.Handle(ev.client, ev.msg)
			case eventDisconnect:
				s.handler.OnDisconnect(ev.client)
			}
		}
	}
}

// reap periodically evicts clients past the ping deadline. Eviction closes
// the socket; the reader then falls through the normal disconnect path.
func (s *Server) reap(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.ReapInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			s.registry.ForEach(func(c *Client) bool {
				if now.Sub(c.LastActivity()) > s.cfg.PingDeadline {
					slog.Info("reaping silent client", "client", c.ID())
					c.Close()
				}
				return true
			})
			slog.Debug("server stats",
				"players", s.registry.Count(),
				"rooms", s.handler.RoomCount(),
				"total_connections", s.registry.TotalConnections())
		}
	}
}
