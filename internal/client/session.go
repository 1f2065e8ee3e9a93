// Package client implements the reference client session for the gomoku
// session server: typed request helpers, an event dispatch table, a
// keepalive loop, and bounded background reconnection with session-token
// resume.
package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/udisondev/gomokugo/internal/config"
	"github.com/udisondev/gomokugo/internal/protocol"
)

// Connection event names for OnEvent subscriptions.
const (
	EventConnect          = "connect"
	EventDisconnect       = "disconnect"
	EventConnectionLost   = "connection_lost"
	EventReconnecting     = "reconnecting"
	EventReconnectSuccess = "reconnect_success"
	EventReconnectFailed  = "reconnect_failed"
	EventError            = "error"
)

// Event describes one connection lifecycle notification.
// Attempt/Max are set for EventReconnecting, Err for EventError.
type Event struct {
	Name    string
	Attempt int
	Max     int
	Err     error
}

// EventFunc receives connection events. Called from session goroutines;
// handlers must not block.
type EventFunc func(Event)

// MessageFunc receives one decoded protocol message.
type MessageFunc func(msg protocol.Message)

// ErrNotConnected is returned by Send when no connection is up.
var ErrNotConnected = errors.New("not connected")

// Session is a client connection to the session server. Zero value is not
// usable; construct with New.
type Session struct {
	cfg config.Client

	mu           sync.Mutex
	conn         net.Conn
	done         chan struct{} // closed when the current connection dies
	connected    bool
	running      bool
	reconnecting bool

	lastHost string
	lastPort int

	clientID      string
	playerName    string
	sessionToken  string
	currentRoomID string

	writeMu sync.Mutex

	handlerMu sync.RWMutex
	handlers  map[string]MessageFunc
	events    map[string]EventFunc
}

// New creates a session with the given configuration.
func New(cfg config.Client) *Session {
	return &Session{
		cfg:      cfg,
		handlers: make(map[string]MessageFunc),
		events:   make(map[string]EventFunc),
	}
}

// OnMessage registers a handler for one protocol tag. The previous handler
// for that tag, if any, is replaced.
func (s *Session) OnMessage(msgType string, fn MessageFunc) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.handlers[msgType] = fn
}

// OnEvent registers a callback for a connection event name.
func (s *Session) OnEvent(name string, fn EventFunc) {
	s.handlerMu.Lock()
	defer s.handlerMu.Unlock()
	s.events[name] = fn
}

func (s *Session) emit(ev Event) {
	s.handlerMu.RLock()
	fn := s.events[ev.Name]
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

// Connect dials the server and spawns the reader and keepalive loops.
// Emits EventConnect on success.
func (s *Session) Connect(host string, port int) error {
	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	conn, err := net.DialTimeout("tcp", addr, s.cfg.DialTimeout)
	if err != nil {
		s.emit(Event{Name: EventError, Err: err})
		return fmt.Errorf("connecting to %s: %w", addr, err)
	}

	s.mu.Lock()
	if s.conn != nil {
		s.conn.Close()
	}
	s.closeDoneLocked()
	done := make(chan struct{})
	s.conn = conn
	s.done = done
	s.connected = true
	s.running = true
	s.reconnecting = false
	s.lastHost = host
	s.lastPort = port
	s.mu.Unlock()

	go s.readLoop(conn, done)
	go s.pingLoop(done)

	slog.Info("connected to server", "address", addr)
	s.emit(Event{Name: EventConnect})
	return nil
}

// Disconnect tears the session down cleanly. Disconnect callbacks are
// suppressed while a reconnection is in flight.
func (s *Session) Disconnect() {
	s.mu.Lock()
	wasReconnecting := s.reconnecting
	if !wasReconnecting {
		s.running = false
	}
	s.connected = false
	conn := s.conn
	s.conn = nil
	s.closeDoneLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	if !wasReconnecting {
		s.emit(Event{Name: EventDisconnect})
	}
}

// closeDoneLocked releases the current connection's reader and keepalive
// loops. Caller holds mu.
func (s *Session) closeDoneLocked() {
	if s.done == nil {
		return
	}
	select {
	case <-s.done:
	default:
		close(s.done)
	}
	s.done = nil
}

// Connected reports whether a connection is currently up.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

// ClientID returns the server-assigned id ("" before lobby_joined).
func (s *Session) ClientID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clientID
}

// SessionToken returns the stored lobby token.
func (s *Session) SessionToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionToken
}

// CurrentRoomID returns the room this session believes it is in.
func (s *Session) CurrentRoomID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentRoomID
}

// InRoom reports whether the session holds a room reference. Connection
// loss triggers reconnection only while in a room.
func (s *Session) InRoom() bool {
	return s.CurrentRoomID() != ""
}

// Send envelopes and writes one message. A write failure counts as
// connection loss.
func (s *Session) Send(msgType string, payload any) error {
	s.mu.Lock()
	conn := s.conn
	ok := s.connected
	s.mu.Unlock()
	if !ok || conn == nil {
		return ErrNotConnected
	}

	m, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	err = protocol.WriteMessage(conn, m)
	s.writeMu.Unlock()
	if err != nil {
		slog.Warn("send failed", "type", msgType, "error", err)
		conn.Close() // reader notices and runs the loss path
		return fmt.Errorf("sending %s: %w", msgType, err)
	}
	return nil
}

// JoinLobby registers the display name, resuming the stored session token
// if one exists.
func (s *Session) JoinLobby(playerName string) error {
	s.mu.Lock()
	s.playerName = playerName
	token := s.sessionToken
	s.mu.Unlock()
	return s.Send(protocol.TypeLobbyJoin, protocol.LobbyJoinData{
		PlayerName:   playerName,
		SessionToken: token,
	})
}

// CreateRoom asks the server for a new room with the sender as host.
func (s *Session) CreateRoom(roomName string) error {
	return s.Send(protocol.TypeRoomCreate, protocol.RoomCreateData{RoomName: roomName})
}

// JoinRoom joins an existing room by id.
func (s *Session) JoinRoom(roomID string) error {
	return s.Send(protocol.TypeRoomJoin, protocol.RoomJoinData{RoomID: roomID})
}

// LeaveRoom leaves the current room and drops the room reference.
func (s *Session) LeaveRoom() error {
	s.mu.Lock()
	s.currentRoomID = ""
	s.mu.Unlock()
	return s.Send(protocol.TypeRoomLeave, nil)
}

// GetRooms requests the room browser list.
func (s *Session) GetRooms() error {
	return s.Send(protocol.TypeRoomList, nil)
}

// SendGameMove submits a move for the given stone (1 = black, 2 = white).
func (s *Session) SendGameMove(row, col, playerID int) error {
	return s.Send(protocol.TypeGameMove, protocol.GameMoveData{
		Row: row, Col: col, PlayerID: playerID,
	})
}

// readLoop frames and dispatches inbound messages until the connection
// dies, then decides between reconnection and plain disconnect.
func (s *Session) readLoop(conn net.Conn, done chan struct{}) {
	fr := protocol.NewReader(conn, s.cfg.MaxFrameSize)

	for {
		line, err := fr.ReadLine()
		if err != nil {
			break
		}
		msg, err := protocol.Decode(line)
		if err != nil {
			slog.Warn("invalid frame from server dropped", "error", err)
			continue
		}
		s.track(msg)
		s.dispatch(msg)
	}

	select {
	case <-done:
		// Deliberate teardown; Disconnect already handled events.
		return
	default:
	}

	s.mu.Lock()
	wasConnected := s.connected
	alreadyReconnecting := s.reconnecting
	inRoom := s.currentRoomID != ""
	s.connected = false
	s.mu.Unlock()

	if !wasConnected || alreadyReconnecting {
		return
	}

	if inRoom {
		slog.Info("connection lost while in a room, reconnecting")
		s.startReconnect()
	} else {
		slog.Info("connection lost outside a room")
		s.Disconnect()
	}
}

// track updates session bookkeeping from server messages before user
// handlers run.
func (s *Session) track(msg protocol.Message) {
	switch msg.Type {
	case protocol.TypeLobbyJoined:
		var data protocol.LobbyJoinedData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		s.mu.Lock()
		s.clientID = data.ClientID
		s.sessionToken = data.SessionToken
		s.mu.Unlock()

	case protocol.TypeRoomInfo:
		var data protocol.RoomInfoData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		if data.Success && data.RoomInfo.RoomID != "" {
			s.mu.Lock()
			s.currentRoomID = data.RoomInfo.RoomID
			s.mu.Unlock()
		}

	case protocol.TypeGameEndedDisconnect:
		// The room is finished server-side; keep the reference so the UI
		// can show the game-over screen, but rematch is off the table.
	}
}

func (s *Session) dispatch(msg protocol.Message) {
	if msg.Type == protocol.TypePong {
		return
	}
	s.handlerMu.RLock()
	fn := s.handlers[msg.Type]
	s.handlerMu.RUnlock()
	if fn != nil {
		fn(msg)
	} else {
		slog.Debug("unhandled message", "type", msg.Type)
	}
}

// pingLoop sends a keepalive ping so the server-side reaper keeps the
// player alive. Pure liveness; RTT is not measured.
func (s *Session) pingLoop(done chan struct{}) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := s.Send(protocol.TypePing, nil); err != nil {
				return
			}
		}
	}
}

// startReconnect enters the reconnection state and spawns the retry loop.
func (s *Session) startReconnect() {
	s.mu.Lock()
	if s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	conn := s.conn
	s.conn = nil
	// Stop the dying connection's loops now; a successful reconnect spawns
	// fresh ones and must not leave the old keepalive ticking.
	s.closeDoneLocked()
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}

	s.emit(Event{Name: EventConnectionLost})
	go s.reconnectLoop()
}

// reconnectLoop retries Connect with a fixed delay, up to the configured
// attempt bound. A successful connect re-sends lobby_join with the stored
// session token; under graceful termination the game is already over
// server-side, so this lands the player back in the lobby.
func (s *Session) reconnectLoop() {
	max := s.cfg.ReconnectAttempts
	slog.Info("starting reconnection attempts", "max", max)

	for attempt := 1; attempt <= max; attempt++ {
		s.mu.Lock()
		running := s.running
		reconnecting := s.reconnecting
		host, port := s.lastHost, s.lastPort
		name := s.playerName
		s.mu.Unlock()
		if !running || !reconnecting {
			return
		}

		s.emit(Event{Name: EventReconnecting, Attempt: attempt, Max: max})

		if err := s.Connect(host, port); err == nil {
			if err := s.JoinLobby(name); err == nil {
				slog.Info("reconnected", "name", name, "attempt", attempt)
				s.emit(Event{Name: EventReconnectSuccess})
				return
			}
		}

		if attempt < max {
			time.Sleep(s.cfg.ReconnectDelay)
		}
	}

	slog.Warn("reconnection failed", "attempts", max)
	s.mu.Lock()
	s.reconnecting = false
	s.currentRoomID = ""
	s.mu.Unlock()

	s.emit(Event{Name: EventReconnectFailed})
	s.Disconnect()
}
