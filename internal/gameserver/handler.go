package gameserver

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/udisondev/gomokugo/internal/config"
	"github.com/udisondev/gomokugo/internal/engine"
	"github.com/udisondev/gomokugo/internal/protocol"
	"github.com/udisondev/gomokugo/internal/room"
)

// Handler processes dispatcher events. It owns the room map and all
// player identity state; every method runs on the dispatcher goroutine.
type Handler struct {
	cfg      config.GameServer
	registry *Registry
	recorder MatchRecorder

	rooms      map[string]*room.Room
	nextRoomID int
	roomCount  atomic.Int64 // mirror of len(rooms) for stats off-thread
}

// NewHandler creates the message handler. recorder may be nil.
func NewHandler(cfg config.GameServer, registry *Registry, recorder MatchRecorder) *Handler {
	return &Handler{
		cfg:      cfg,
		registry: registry,
		recorder: recorder,
		rooms:    make(map[string]*room.Room),
	}
}

// RoomCount returns the number of live rooms. Safe off the dispatcher.
func (h *Handler) RoomCount() int {
	return int(h.roomCount.Load())
}

// Room returns a live room by id (dispatcher-only, used by tests).
func (h *Handler) Room(id string) *room.Room {
	return h.rooms[id]
}

// Handle dispatches one inbound message against the room and player maps.
// Unknown tags are logged and ignored for forward compatibility.
func (h *Handler) Handle(c *Client, msg protocol.Message) {
	c.Touch()

	switch msg.Type {
	case protocol.TypePing:
		h.reply(c, protocol.TypePong, nil)
	case protocol.TypeLobbyJoin:
		h.handleLobbyJoin(c, msg)
	case protocol.TypeRoomCreate:
		h.handleRoomCreate(c, msg)
	case protocol.TypeRoomJoin:
		h.handleRoomJoin(c, msg)
	case protocol.TypeRoomLeave:
		h.handleRoomLeave(c)
	case protocol.TypeRoomList:
		h.sendRoomList(c)
	case protocol.TypeGameMove:
		h.handleGameMove(c, msg)
	case protocol.TypePlayerPause:
		h.handlePause(c, msg)
	case protocol.TypePlayerResume:
		h.handleResume(c, msg)
	case protocol.TypePlayerResign:
		h.handleResign(c)
	case protocol.TypeNewGameRequest:
		h.handleNewGameRequest(c)
	case protocol.TypeNewGameResponse:
		h.handleNewGameResponse(c, msg)
	default:
		slog.Warn("unknown message type ignored", "type", msg.Type, "client", c.ID())
	}
}

// reply encodes and queues one message; payload errors and write failures
// are logged, never propagated (the disconnect path handles dead sockets).
func (h *Handler) reply(c *Client, msgType string, payload any) {
	m, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("building message", "type", msgType, "error", err)
		return
	}
	if err := c.SendMessage(m); err != nil {
		slog.Warn("queueing message failed", "type", msgType, "client", c.ID(), "error", err)
	}
}

func (h *Handler) handleLobbyJoin(c *Client, msg protocol.Message) {
	var data protocol.LobbyJoinData
	if err := protocol.DecodeData(msg, &data); err != nil {
		slog.Warn("bad lobby_join payload", "client", c.ID(), "error", err)
		return
	}

	name := data.PlayerName
	if name == "" {
		name = fmt.Sprintf("Player_%s", c.ID())
	}
	c.name = name

	if data.SessionToken != "" {
		// Returning player: accept the stored token. Under graceful
		// termination there is no game to resume, only a lobby identity.
		c.sessionToken = data.SessionToken
		h.registry.AdoptToken(data.SessionToken)
	} else {
		token, err := h.registry.MintToken()
		if err != nil {
			slog.Error("minting session token", "client", c.ID(), "error", err)
			return
		}
		c.sessionToken = token
	}

	slog.Info("player joined lobby", "client", c.ID(), "name", name)

	h.reply(c, protocol.TypeLobbyJoined, protocol.LobbyJoinedData{
		ClientID:     c.ID(),
		Name:         c.name,
		SessionToken: c.sessionToken,
	})
	h.sendRoomList(c)
}

func (h *Handler) handleRoomCreate(c *Client, msg protocol.Message) {
	if c.roomID != "" {
		slog.Warn("room_create while already in a room", "client", c.ID(), "room", c.roomID)
		return
	}

	var data protocol.RoomCreateData
	if err := protocol.DecodeData(msg, &data); err != nil {
		slog.Warn("bad room_create payload", "client", c.ID(), "error", err)
		return
	}

	h.nextRoomID++
	roomID := fmt.Sprintf("room_%d", h.nextRoomID)
	roomName := data.RoomName
	if roomName == "" {
		roomName = fmt.Sprintf("Room %d", h.nextRoomID)
	}

	r := room.New(roomID, roomName, room.Member{ClientID: c.ID(), Name: c.name}, room.Config{
		BoardSize:     h.cfg.Rules.BoardSize,
		WinLength:     h.cfg.Rules.WinLength,
		MoveTimeLimit: h.cfg.Rules.MoveTimeLimit,
		PauseTokens:   h.cfg.Rules.PauseTokens,
	})
	h.rooms[roomID] = r
	h.roomCount.Store(int64(len(h.rooms)))
	c.roomID = roomID

	slog.Info("room created", "room", roomID, "name", roomName, "host", c.name)

	h.reply(c, protocol.TypeRoomInfo, protocol.RoomInfoData{
		Success:  true,
		RoomInfo: r.Summary(),
	})
	h.broadcastRoomList()
}

func (h *Handler) handleRoomJoin(c *Client, msg protocol.Message) {
	if c.roomID != "" {
		slog.Warn("room_join while already in a room", "client", c.ID(), "room", c.roomID)
		return
	}

	var data protocol.RoomJoinData
	if err := protocol.DecodeData(msg, &data); err != nil {
		slog.Warn("bad room_join payload", "client", c.ID(), "error", err)
		return
	}

	r, ok := h.rooms[data.RoomID]
	if !ok || !r.CanJoin() {
		// Joining a missing or full room changes nothing and sends nothing.
		slog.Warn("room_join rejected", "client", c.ID(), "room", data.RoomID, "exists", ok)
		return
	}

	if err := r.Add(room.Member{ClientID: c.ID(), Name: c.name}); err != nil {
		slog.Warn("room_join failed", "client", c.ID(), "room", data.RoomID, "error", err)
		return
	}
	c.roomID = r.ID()

	slog.Info("player joined room", "client", c.ID(), "name", c.name, "room", r.ID())

	info := protocol.RoomInfoData{Success: true, RoomInfo: r.Summary()}
	h.reply(c, protocol.TypeRoomInfo, info)
	for _, m := range r.Members() {
		if m.ClientID == c.ID() {
			continue
		}
		if peer := h.registry.Get(m.ClientID); peer != nil {
			h.reply(peer, protocol.TypeRoomInfo, info)
		}
	}

	if r.IsFull() {
		h.startGame(r)
	}
	h.broadcastRoomList()
}

// startGame seats the roster (index 0 = black, moves first) and sends a
// personalized game_started to each player.
func (h *Handler) startGame(r *room.Room) {
	if err := r.Start(time.Now()); err != nil {
		slog.Error("starting game", "room", r.ID(), "error", err)
		return
	}

	members := r.Members()
	black, white := members[0], members[1]
	players := map[string]string{"black": black.Name, "white": white.Name}

	slog.Info("game started", "room", r.ID(), "black", black.Name, "white", white.Name)

	for seat, m := range members {
		c := h.registry.Get(m.ClientID)
		if c == nil {
			continue
		}
		opponent := members[1-seat]
		h.reply(c, protocol.TypeGameStarted, protocol.GameStartedData{
			RoomID:       r.ID(),
			YourRole:     room.StoneOf(seat).String(),
			YourName:     m.Name,
			OpponentName: opponent.Name,
			Players:      players,
			YourTurn:     seat == 0,
		})
	}
}

func (h *Handler) handleRoomLeave(c *Client) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	leaverName := c.name
	_, hostChanged := r.Remove(c.ID())
	c.roomID = ""

	slog.Info("player left room", "client", c.ID(), "name", leaverName, "room", r.ID())

	h.broadcastToRoom(r, protocol.TypePlayerLeftRoom, protocol.PlayerLeftRoomData{
		PlayerName: leaverName,
	}, "")

	if r.Empty() {
		h.destroyRoom(r)
	} else if hostChanged {
		h.announceHostTransfer(r)
	}

	h.sendRoomList(c)
	h.broadcastRoomList()
}

// announceHostTransfer sends updated room_info to every remaining member,
// with the message personalized for the new host.
func (h *Handler) announceHostTransfer(r *room.Room) {
	slog.Info("host transferred", "room", r.ID(), "host", r.HostName())
	for _, m := range r.Members() {
		peer := h.registry.Get(m.ClientID)
		if peer == nil {
			continue
		}
		message := fmt.Sprintf("%s is now the host", r.HostName())
		if m.ClientID == r.HostID() {
			message = "You are now the host!"
		}
		h.reply(peer, protocol.TypeRoomInfo, protocol.RoomInfoData{
			Success:  true,
			RoomInfo: r.Summary(),
			Message:  message,
		})
	}
}

func (h *Handler) handleGameMove(c *Client, msg protocol.Message) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	var data protocol.GameMoveData
	if err := protocol.DecodeData(msg, &data); err != nil {
		slog.Warn("bad game_move payload", "client", c.ID(), "error", err)
		return
	}

	// The sender's seat decides the stone; the client-supplied player_id is
	// never trusted for admission.
	outcome, err := r.ApplyMove(c.ID(), data.Row, data.Col, time.Now())
	if err != nil {
		slog.Warn("move dropped", "client", c.ID(), "room", r.ID(),
			"row", data.Row, "col", data.Col, "reason", err)
		return
	}

	h.reply(c, protocol.TypeTimerSync, protocol.TimerSyncData{TimerState: outcome.Timer})

	timer := outcome.Timer
	h.broadcastToRoom(r, protocol.TypeGameMove, protocol.GameMoveData{
		Player:     outcome.Move.Player,
		Row:        outcome.Move.Row,
		Col:        outcome.Move.Col,
		PlayerID:   int(outcome.Stone),
		TimerState: &timer,
	}, c.ID())

	if outcome.Terminal.Result != engine.InProgress {
		slog.Info("game finished", "room", r.ID(),
			"winner", r.WinnerName(), "reason", r.EndReason(), "moves", r.MoveCount())
		h.recordMatch(r)
	}
}

func (h *Handler) handlePause(c *Client, msg protocol.Message) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	if err := r.Pause(c.ID(), time.Now()); err != nil {
		slog.Warn("pause ignored", "client", c.ID(), "room", r.ID(), "reason", err)
		return
	}

	// Relay the initiator's payload unchanged: the peer keys its countdown
	// off the stamped pause_timestamp, not its own clock.
	h.relayToRoom(r, msg, c.ID())
	slog.Debug("pause relayed", "client", c.ID(), "room", r.ID())
}

func (h *Handler) handleResume(c *Client, msg protocol.Message) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	var data protocol.PlayerResumeData
	if err := protocol.DecodeData(msg, &data); err != nil {
		slog.Warn("bad player_resume payload", "client", c.ID(), "error", err)
		return
	}

	remaining := time.Duration(data.RemainingTurn * float64(time.Second))
	if err := r.Resume(c.ID(), remaining, time.Now()); err != nil {
		slog.Warn("resume ignored", "client", c.ID(), "room", r.ID(), "reason", err)
		return
	}

	h.relayToRoom(r, msg, c.ID())
	slog.Debug("resume relayed", "client", c.ID(), "room", r.ID())
}

func (h *Handler) handleResign(c *Client) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	if err := r.Resign(c.ID()); err != nil {
		slog.Warn("resign ignored", "client", c.ID(), "room", r.ID(), "reason", err)
		return
	}

	slog.Info("player resigned", "client", c.ID(), "name", c.name, "room", r.ID())

	h.reply(c, protocol.TypeResignAck, protocol.ResignAckData{
		Message: fmt.Sprintf("You (%s) resigned.", c.name),
	})
	h.broadcastToRoom(r, protocol.TypePlayerResign, protocol.PlayerResignData{
		Player: c.name,
	}, c.ID())

	h.recordMatch(r)
}

func (h *Handler) handleNewGameRequest(c *Client) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	slog.Info("rematch requested", "client", c.ID(), "name", c.name, "room", r.ID())

	h.broadcastToRoom(r, protocol.TypeNewGameRequest, protocol.NewGameRequestData{
		RoomID:    r.ID(),
		Requester: c.name,
	}, c.ID())
}

func (h *Handler) handleNewGameResponse(c *Client, msg protocol.Message) {
	r := h.clientRoom(c)
	if r == nil {
		return
	}

	var data protocol.NewGameResponseData
	if err := protocol.DecodeData(msg, &data); err != nil {
		slog.Warn("bad new_game_response payload", "client", c.ID(), "error", err)
		return
	}

	if !data.Accepted {
		h.broadcastToRoom(r, protocol.TypeNewGameResponse, protocol.NewGameResponseData{
			RoomID:   r.ID(),
			Accepted: false,
			Message:  fmt.Sprintf("%s declined the new game", c.name),
		}, c.ID())
		return
	}

	if !r.IsFull() {
		slog.Warn("rematch accepted without a full roster", "room", r.ID())
		return
	}

	slog.Info("rematch accepted", "room", r.ID())
	r.ResetForRematch()
	h.startGame(r)
}

// clientRoom resolves the sender's room; nil means the message is dropped
// (protocol error, no reply defined).
func (h *Handler) clientRoom(c *Client) *room.Room {
	if c.roomID == "" {
		return nil
	}
	r, ok := h.rooms[c.roomID]
	if !ok {
		c.roomID = ""
		return nil
	}
	return r
}

// broadcastToRoom sends a freshly built message to every roster member
// except excludeID.
func (h *Handler) broadcastToRoom(r *room.Room, msgType string, payload any, excludeID string) {
	m, err := protocol.NewMessage(msgType, payload)
	if err != nil {
		slog.Error("building broadcast", "type", msgType, "error", err)
		return
	}
	for _, member := range r.Members() {
		if member.ClientID == excludeID {
			continue
		}
		if peer := h.registry.Get(member.ClientID); peer != nil {
			if err := peer.SendMessage(m); err != nil {
				slog.Warn("broadcast failed", "type", msgType, "client", peer.ID(), "error", err)
			}
		}
	}
}

// relayToRoom forwards an inbound message verbatim to the sender's peers.
func (h *Handler) relayToRoom(r *room.Room, msg protocol.Message, excludeID string) {
	for _, member := range r.Members() {
		if member.ClientID == excludeID {
			continue
		}
		if peer := h.registry.Get(member.ClientID); peer != nil {
			if err := peer.SendMessage(msg); err != nil {
				slog.Warn("relay failed", "type", msg.Type, "client", peer.ID(), "error", err)
			}
		}
	}
}

// sendRoomList replies with the currently joinable rooms.
func (h *Handler) sendRoomList(c *Client) {
	h.reply(c, protocol.TypeRoomList, h.roomList())
}

func (h *Handler) roomList() protocol.RoomListData {
	rooms := make([]protocol.RoomSummary, 0, len(h.rooms))
	for _, r := range h.rooms {
		if r.CanJoin() {
			rooms = append(rooms, r.Summary())
		}
	}
	return protocol.RoomListData{Rooms: rooms}
}

// broadcastRoomList refreshes the room browser for every lobby-resident
// player (those not in a room).
func (h *Handler) broadcastRoomList() {
	list := h.roomList()
	h.registry.ForEach(func(c *Client) bool {
		if c.roomID == "" {
			h.reply(c, protocol.TypeRoomList, list)
		}
		return true
	})
}

func (h *Handler) destroyRoom(r *room.Room) {
	delete(h.rooms, r.ID())
	h.roomCount.Store(int64(len(h.rooms)))
	slog.Info("room destroyed", "room", r.ID())
}
