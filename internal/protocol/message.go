// Package protocol implements the line-delimited JSON wire format shared by
// the session server and the client: one UTF-8 JSON object per LF-terminated
// line, wrapped in a {type, data, timestamp} envelope.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Message type tags, client -> server.
const (
	TypePing            = "ping"
	TypeLobbyJoin       = "lobby_join"
	TypeRoomCreate      = "room_create"
	TypeRoomJoin        = "room_join"
	TypeRoomLeave       = "room_leave"
	TypeRoomList        = "room_list"
	TypeGameMove        = "game_move"
	TypePlayerPause     = "player_pause"
	TypePlayerResume    = "player_resume"
	TypePlayerResign    = "player_resign"
	TypeNewGameRequest  = "new_game_request"
	TypeNewGameResponse = "new_game_response"
)

// Message type tags, server -> client.
const (
	TypePong                 = "pong"
	TypeLobbyJoined          = "lobby_joined"
	TypeRoomInfo             = "room_info"
	TypeGameStarted          = "game_started"
	TypeTimerSync            = "timer_sync"
	TypeGameEndedDisconnect  = "game_ended_disconnect"
	TypePlayerLeftRoom       = "player_left_room"
	TypeResignAck            = "resign_ack"
)

// Message is the wire envelope. Data stays raw until the dispatcher knows
// the tag; unknown tags are decoded (and then ignored) without error.
type Message struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data"`
	Timestamp float64         `json:"timestamp"`
}

// NewMessage builds an envelope around payload, stamping the current time.
// payload may be nil for tags with no data (ping, pong, room_leave).
func NewMessage(msgType string, payload any) (Message, error) {
	data := json.RawMessage("{}")
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return Message{}, fmt.Errorf("marshaling %s payload: %w", msgType, err)
		}
		data = raw
	}
	return Message{
		Type:      msgType,
		Data:      data,
		Timestamp: float64(time.Now().UnixNano()) / float64(time.Second),
	}, nil
}

// Encode serializes m as a single LF-terminated line.
func Encode(m Message) ([]byte, error) {
	out, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encoding %s message: %w", m.Type, err)
	}
	return append(out, '\n'), nil
}

// Decode parses one line (without the trailing LF) into a Message.
func Decode(line []byte) (Message, error) {
	var m Message
	if err := json.Unmarshal(line, &m); err != nil {
		return Message{}, fmt.Errorf("decoding message: %w", err)
	}
	if m.Type == "" {
		return Message{}, fmt.Errorf("decoding message: missing type tag")
	}
	return m, nil
}

// DecodeData parses the envelope payload into dst.
func DecodeData(m Message, dst any) error {
	if len(m.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(m.Data, dst); err != nil {
		return fmt.Errorf("decoding %s data: %w", m.Type, err)
	}
	return nil
}

// TimerState is the server's authoritative turn-timer anchor.
// TurnStartEpoch is nil while the game is paused.
type TimerState struct {
	TurnStartEpoch     *float64 `json:"turn_start_epoch"`
	ElapsedBeforePause float64  `json:"elapsed_before_pause"`
	MoveTimeLimit      float64  `json:"move_time_limit"`
}

// Epoch converts t to seconds since the Unix epoch for wire timestamps.
func Epoch(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

// LobbyJoinData registers a display name; SessionToken resumes a lobby identity.
type LobbyJoinData struct {
	PlayerName   string `json:"player_name"`
	SessionToken string `json:"session_token,omitempty"`
}

// LobbyJoinedData acknowledges registration.
type LobbyJoinedData struct {
	ClientID     string `json:"client_id"`
	Name         string `json:"name"`
	SessionToken string `json:"session_token"`
}

// RoomCreateData names a new room.
type RoomCreateData struct {
	RoomName string `json:"room_name"`
}

// RoomJoinData targets an existing room.
type RoomJoinData struct {
	RoomID string `json:"room_id"`
}

// RoomSummary is one entry in a room_list and the body of room_info.
type RoomSummary struct {
	RoomID     string `json:"room_id"`
	Name       string `json:"name"`
	HostName   string `json:"host_name"`
	Players    int    `json:"players"`
	MaxPlayers int    `json:"max_players"`
}

// RoomInfoData is a room-state delta sent to roster members.
type RoomInfoData struct {
	Success  bool        `json:"success"`
	RoomInfo RoomSummary `json:"room_info"`
	Message  string      `json:"message,omitempty"`
}

// RoomListData lists currently joinable rooms.
type RoomListData struct {
	Rooms []RoomSummary `json:"rooms"`
}

// GameStartedData is personalized per seat.
type GameStartedData struct {
	RoomID       string            `json:"room_id"`
	YourRole     string            `json:"your_role"` // "black" | "white"
	YourName     string            `json:"your_name"`
	OpponentName string            `json:"opponent_name"`
	Players      map[string]string `json:"players"` // role -> name
	YourTurn     bool              `json:"your_turn"`
}

// GameMoveData carries a move. Client -> server the server derives the seat
// from the sender and ignores PlayerID for admission; server -> client it
// echoes the mover's stone (1 = black, 2 = white) plus the fresh timer anchor.
type GameMoveData struct {
	Player     string      `json:"player,omitempty"`
	Row        int         `json:"row"`
	Col        int         `json:"col"`
	PlayerID   int         `json:"player_id"`
	TimerState *TimerState `json:"timer_state,omitempty"`
}

// TimerSyncData resets the mover's local countdown after a commit.
type TimerSyncData struct {
	TimerState TimerState `json:"timer_state"`
}

// PlayerPauseData is relayed verbatim; the peer adopts PauseTimestamp as the
// pause start so both countdowns freeze at the same instant.
type PlayerPauseData struct {
	Player          string  `json:"player"`
	RemainingTurn   float64 `json:"remaining_turn"`
	PausesRemaining *int    `json:"pauses_remaining,omitempty"`
	PauseTimestamp  float64 `json:"pause_timestamp"`
}

// PlayerResumeData is relayed verbatim; the peer rebases its move timer from
// RemainingTurn.
type PlayerResumeData struct {
	Player            string   `json:"player"`
	RemainingTurn     float64  `json:"remaining_turn"`
	PauseDurationUsed *float64 `json:"pause_duration_used,omitempty"`
}

// PlayerResignData terminates the game; the opponent wins.
type PlayerResignData struct {
	Player string `json:"player"`
}

// ResignAckData confirms the resignation to its sender.
type ResignAckData struct {
	Message string `json:"message"`
}

// GameEndedDisconnectData notifies the survivor of a graceful forfeit.
type GameEndedDisconnectData struct {
	Reason             string `json:"reason"`
	DisconnectedPlayer string `json:"disconnected_player"`
	Winner             string `json:"winner"`
	Message            string `json:"message"`
	Forfeit            bool   `json:"forfeit"`
	NoRematch          bool   `json:"no_rematch"`
}

// PlayerLeftRoomData notifies peers of a leave outside an active game.
type PlayerLeftRoomData struct {
	PlayerName string `json:"player_name"`
}

// NewGameRequestData starts the rematch handshake.
type NewGameRequestData struct {
	RoomID    string `json:"room_id"`
	Requester string `json:"requester,omitempty"`
}

// NewGameResponseData answers it.
type NewGameResponseData struct {
	RoomID   string `json:"room_id,omitempty"`
	Accepted bool   `json:"accepted"`
	Message  string `json:"message,omitempty"`
}
