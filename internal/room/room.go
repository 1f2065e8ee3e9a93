// Package room holds the authoritative per-room game state: roster, board
// mirror, turn order, move log, timer anchor, and pause ledger. All mutation
// happens on the server's dispatcher goroutine, so the type is deliberately
// not thread-safe.
package room

import (
	"errors"
	"fmt"
	"time"

	"github.com/udisondev/gomokugo/internal/engine"
	"github.com/udisondev/gomokugo/internal/protocol"
)

// Phase is the room lifecycle state.
type Phase int

const (
	Waiting Phase = iota
	Playing
	Paused
	Finished
)

// String returns the phase name for logs.
func (p Phase) String() string {
	switch p {
	case Waiting:
		return "waiting"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Finished:
		return "finished"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// MaxPlayers is fixed: gomoku is a two-seat game.
const MaxPlayers = 2

// Move admission errors. The server logs and drops; no negative ack exists
// on the wire.
var (
	ErrNotPlaying  = errors.New("room is not in the playing phase")
	ErrPaused      = errors.New("game is paused")
	ErrNotMember   = errors.New("sender is not in the roster")
	ErrNotYourTurn = errors.New("not the sender's turn")
	ErrIllegalMove = errors.New("illegal move")
	ErrRoomFull    = errors.New("room is full")
)

// Member is one roster entry. Roster index equals seat index while a game
// is active (seat 0 = black, seat 1 = white).
type Member struct {
	ClientID string
	Name     string
}

// Move is one committed move in log order.
type Move struct {
	Player string
	Row    int
	Col    int
}

// Config carries the gameplay parameters a room is created with.
type Config struct {
	BoardSize     int
	WinLength     int
	MoveTimeLimit time.Duration
	PauseTokens   int
}

// Room is the authoritative state for one game room.
type Room struct {
	id     string
	name   string
	hostID string
	roster []Member
	cfg    Config

	phase       Phase
	board       *engine.Board
	moveLog     []Move
	currentSeat int

	// Timer anchor. turnStart is zero while paused.
	turnStart          time.Time
	elapsedBeforePause time.Duration

	pausesRemaining  [MaxPlayers]int
	pauseInitiatorID string

	winnerName string
	loserName  string
	endReason  string
	startedAt  time.Time
	createdAt  time.Time
}

// New creates a room in the Waiting phase with host as its sole member.
func New(id, name string, host Member, cfg Config) *Room {
	if cfg.PauseTokens <= 0 {
		cfg.PauseTokens = 2
	}
	if cfg.MoveTimeLimit <= 0 {
		cfg.MoveTimeLimit = 30 * time.Second
	}
	r := &Room{
		id:        id,
		name:      name,
		hostID:    host.ClientID,
		roster:    []Member{host},
		cfg:       cfg,
		phase:     Waiting,
		board:     engine.New(cfg.BoardSize, cfg.WinLength),
		createdAt: time.Now(),
	}
	for i := range r.pausesRemaining {
		r.pausesRemaining[i] = cfg.PauseTokens
	}
	return r
}

// ID returns the room identifier.
func (r *Room) ID() string { return r.id }

// Name returns the human-readable room name.
func (r *Room) Name() string { return r.name }

// Phase returns the current lifecycle phase.
func (r *Room) Phase() Phase { return r.phase }

// HostID returns the current host's client id.
func (r *Room) HostID() string { return r.hostID }

// HostName returns the current host's display name, or "Unknown" if the
// host is not in the roster.
func (r *Room) HostName() string {
	for _, m := range r.roster {
		if m.ClientID == r.hostID {
			return m.Name
		}
	}
	return "Unknown"
}

// Members returns a copy of the roster in seat order.
func (r *Room) Members() []Member {
	out := make([]Member, len(r.roster))
	copy(out, r.roster)
	return out
}

// Len returns the roster size.
func (r *Room) Len() int { return len(r.roster) }

// IsFull reports whether the roster holds MaxPlayers members.
func (r *Room) IsFull() bool { return len(r.roster) >= MaxPlayers }

// CanJoin reports whether a new member may be appended.
func (r *Room) CanJoin() bool { return !r.IsFull() }

// Empty reports whether the roster is empty; an empty room must be deleted.
func (r *Room) Empty() bool { return len(r.roster) == 0 }

// WinnerName returns the declared winner for a finished room.
func (r *Room) WinnerName() string { return r.winnerName }

// LoserName returns the losing player for a finished room ("" for draws).
func (r *Room) LoserName() string { return r.loserName }

// EndReason returns how a finished game ended: "win", "draw", "resign",
// or "disconnect".
func (r *Room) EndReason() string { return r.endReason }

// MoveLog returns a copy of the committed moves.
func (r *Room) MoveLog() []Move {
	out := make([]Move, len(r.moveLog))
	copy(out, r.moveLog)
	return out
}

// MoveCount returns the number of committed moves.
func (r *Room) MoveCount() int { return len(r.moveLog) }

// StartedAt returns when the current game began (zero before the first start).
func (r *Room) StartedAt() time.Time { return r.startedAt }

// Board exposes the advisory board mirror.
func (r *Room) Board() *engine.Board { return r.board }

// PausesRemaining returns the pause tokens left for a seat.
func (r *Room) PausesRemaining(seat int) int {
	if seat < 0 || seat >= MaxPlayers {
		return 0
	}
	return r.pausesRemaining[seat]
}

// PauseInitiatorID returns who paused the game ("" when not paused).
func (r *Room) PauseInitiatorID() string { return r.pauseInitiatorID }

// SeatOf returns the seat index for a client id.
func (r *Room) SeatOf(clientID string) (int, bool) {
	for i, m := range r.roster {
		if m.ClientID == clientID {
			return i, true
		}
	}
	return 0, false
}

// MemberAt returns the roster entry for a seat.
func (r *Room) MemberAt(seat int) (Member, bool) {
	if seat < 0 || seat >= len(r.roster) {
		return Member{}, false
	}
	return r.roster[seat], true
}

// Opponent returns the other roster member, if any.
func (r *Room) Opponent(clientID string) (Member, bool) {
	for _, m := range r.roster {
		if m.ClientID != clientID {
			return m, true
		}
	}
	return Member{}, false
}

// StoneOf maps a seat index to its stone color.
func StoneOf(seat int) engine.Stone {
	if seat == 0 {
		return engine.Black
	}
	return engine.White
}

// Add appends a member to the roster.
func (r *Room) Add(m Member) error {
	if r.IsFull() {
		return ErrRoomFull
	}
	r.roster = append(r.roster, m)
	return nil
}

// Remove drops a member from the roster. If the host left and a peer
// remains, the host role transfers to the lowest seat; hostChanged reports
// that. Removing the last member leaves an Empty room for the caller to
// destroy.
func (r *Room) Remove(clientID string) (removed, hostChanged bool) {
	for i, m := range r.roster {
		if m.ClientID == clientID {
			r.roster = append(r.roster[:i], r.roster[i+1:]...)
			removed = true
			break
		}
	}
	if !removed {
		return false, false
	}
	if r.hostID == clientID && len(r.roster) > 0 {
		r.hostID = r.roster[0].ClientID
		hostChanged = true
	}
	return removed, hostChanged
}

// Start transitions a full Waiting (or rematch-reset Finished) room into
// Playing: black is seat 0, the timer anchors at now.
func (r *Room) Start(now time.Time) error {
	if !r.IsFull() {
		return fmt.Errorf("starting room %s: roster not full", r.id)
	}
	r.phase = Playing
	r.currentSeat = 0
	r.turnStart = now
	r.elapsedBeforePause = 0
	r.startedAt = now
	r.winnerName = ""
	r.loserName = ""
	r.endReason = ""
	return nil
}

// CurrentSeat returns whose turn it is.
func (r *Room) CurrentSeat() int { return r.currentSeat }

// MoveOutcome is the result of a committed move.
type MoveOutcome struct {
	Move     Move
	Seat     int
	Stone    engine.Stone
	Terminal engine.Status
	Timer    protocol.TimerState
}

// ApplyMove admits, validates, and commits a move from clientID.
// Authority checks run before legality; any failure leaves the room
// untouched. On commit the turn flips, the timer re-anchors at now, and
// terminal detection is routed through the engine.
func (r *Room) ApplyMove(clientID string, row, col int, now time.Time) (MoveOutcome, error) {
	switch r.phase {
	case Paused:
		return MoveOutcome{}, ErrPaused
	case Playing:
	default:
		return MoveOutcome{}, ErrNotPlaying
	}

	seat, ok := r.SeatOf(clientID)
	if !ok {
		return MoveOutcome{}, ErrNotMember
	}
	if seat != r.currentSeat {
		return MoveOutcome{}, ErrNotYourTurn
	}
	if !r.board.IsLegal(row, col) {
		return MoveOutcome{}, fmt.Errorf("%w: (%d,%d)", ErrIllegalMove, row, col)
	}

	stone := StoneOf(seat)
	if err := r.board.Apply(row, col, stone); err != nil {
		return MoveOutcome{}, err
	}

	mv := Move{Player: r.roster[seat].Name, Row: row, Col: col}
	r.moveLog = append(r.moveLog, mv)

	status := r.board.TerminalStatus(row, col)
	switch status.Result {
	case engine.Win:
		r.phase = Finished
		r.winnerName = r.roster[seat].Name
		if opp, ok := r.MemberAt(1 - seat); ok {
			r.loserName = opp.Name
		}
		r.endReason = "win"
	case engine.Draw:
		r.phase = Finished
		r.endReason = "draw"
	default:
		r.currentSeat = 1 - r.currentSeat
	}

	r.turnStart = now
	r.elapsedBeforePause = 0

	return MoveOutcome{
		Move:     mv,
		Seat:     seat,
		Stone:    stone,
		Terminal: status,
		Timer:    r.WireTimer(),
	}, nil
}

// Pause freezes the timer. The pause ledger is bookkeeping only: pauses are
// coordinated between the clients, so the server relays them even with zero
// tokens left.
func (r *Room) Pause(clientID string, now time.Time) error {
	if r.phase != Playing {
		return ErrNotPlaying
	}
	seat, ok := r.SeatOf(clientID)
	if !ok {
		return ErrNotMember
	}
	r.phase = Paused
	r.pauseInitiatorID = clientID
	if r.pausesRemaining[seat] > 0 {
		r.pausesRemaining[seat]--
	}
	if !r.turnStart.IsZero() {
		r.elapsedBeforePause += now.Sub(r.turnStart)
	}
	r.turnStart = time.Time{}
	return nil
}

// Resume unfreezes the timer, rebasing it so remainingTurn of the move
// budget is left.
func (r *Room) Resume(clientID string, remainingTurn time.Duration, now time.Time) error {
	if r.phase != Paused {
		return fmt.Errorf("resuming room %s: not paused", r.id)
	}
	if _, ok := r.SeatOf(clientID); !ok {
		return ErrNotMember
	}
	r.phase = Playing
	r.pauseInitiatorID = ""
	if remainingTurn < 0 {
		remainingTurn = 0
	}
	if remainingTurn > r.cfg.MoveTimeLimit {
		remainingTurn = r.cfg.MoveTimeLimit
	}
	r.elapsedBeforePause = r.cfg.MoveTimeLimit - remainingTurn
	r.turnStart = now
	return nil
}

// Resign finishes the game with the opponent of clientID as winner.
func (r *Room) Resign(clientID string) error {
	if r.phase != Playing && r.phase != Paused {
		return ErrNotPlaying
	}
	if _, ok := r.SeatOf(clientID); !ok {
		return ErrNotMember
	}
	r.phase = Finished
	r.pauseInitiatorID = ""
	if opp, ok := r.Opponent(clientID); ok {
		r.winnerName = opp.Name
	}
	if seat, ok := r.SeatOf(clientID); ok {
		r.loserName = r.roster[seat].Name
	}
	r.endReason = "resign"
	return nil
}

// ForfeitDisconnect removes the disconnected member and, if a game was in
// progress, finishes it with the survivor as winner. Returns the survivor
// (ok=false when the roster is now empty).
func (r *Room) ForfeitDisconnect(clientID string) (survivor Member, ok bool) {
	active := r.phase == Playing || r.phase == Paused
	var leaverName string
	if seat, found := r.SeatOf(clientID); found {
		leaverName = r.roster[seat].Name
	}
	r.Remove(clientID)
	if r.Empty() {
		return Member{}, false
	}
	survivor = r.roster[0]
	if active {
		r.phase = Finished
		r.winnerName = survivor.Name
		r.loserName = leaverName
		r.endReason = "disconnect"
		r.pauseInitiatorID = ""
	}
	return survivor, true
}

// ResetForRematch clears the board and log for a fresh game. The roster and
// pause ledger carry over; Start must be called to begin play.
func (r *Room) ResetForRematch() {
	r.board.Reset()
	r.moveLog = r.moveLog[:0]
	r.currentSeat = 0
	r.phase = Waiting
	r.pauseInitiatorID = ""
	r.winnerName = ""
	r.loserName = ""
	r.endReason = ""
	r.turnStart = time.Time{}
	r.elapsedBeforePause = 0
}

// Elapsed returns the effective time spent on the current turn.
func (r *Room) Elapsed(now time.Time) time.Duration {
	if r.turnStart.IsZero() {
		return r.elapsedBeforePause
	}
	return r.elapsedBeforePause + now.Sub(r.turnStart)
}

// WireTimer renders the timer anchor in wire form.
func (r *Room) WireTimer() protocol.TimerState {
	ts := protocol.TimerState{
		ElapsedBeforePause: r.elapsedBeforePause.Seconds(),
		MoveTimeLimit:      r.cfg.MoveTimeLimit.Seconds(),
	}
	if !r.turnStart.IsZero() {
		epoch := protocol.Epoch(r.turnStart)
		ts.TurnStartEpoch = &epoch
	}
	return ts
}

// Summary renders the room for room_list and room_info payloads.
func (r *Room) Summary() protocol.RoomSummary {
	return protocol.RoomSummary{
		RoomID:     r.id,
		Name:       r.name,
		HostName:   r.HostName(),
		Players:    len(r.roster),
		MaxPlayers: MaxPlayers,
	}
}
