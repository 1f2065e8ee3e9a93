package room

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/udisondev/gomokugo/internal/engine"
)

func testConfig() Config {
	return Config{
		BoardSize:     15,
		WinLength:     5,
		MoveTimeLimit: 30 * time.Second,
		PauseTokens:   2,
	}
}

// newStartedRoom returns a Playing room with Alice (seat 0, black) and
// Bob (seat 1, white).
func newStartedRoom(t *testing.T) *Room {
	t.Helper()
	r := New("room_1", "Test Room", Member{ClientID: "c1", Name: "Alice"}, testConfig())
	require.NoError(t, r.Add(Member{ClientID: "c2", Name: "Bob"}))
	require.NoError(t, r.Start(time.Now()))
	return r
}

func TestNewRoom(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())

	assert.Equal(t, Waiting, r.Phase())
	assert.Equal(t, "c1", r.HostID())
	assert.Equal(t, "Alice", r.HostName())
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.CanJoin())
	assert.Equal(t, 2, r.PausesRemaining(0))
	assert.Equal(t, 2, r.PausesRemaining(1))
}

func TestAddUntilFull(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())
	require.NoError(t, r.Add(Member{ClientID: "c2", Name: "Bob"}))

	assert.True(t, r.IsFull())
	assert.ErrorIs(t, r.Add(Member{ClientID: "c3", Name: "Carol"}), ErrRoomFull)
	assert.Equal(t, 2, r.Len())
}

func TestRemoveTransfersHost(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())
	require.NoError(t, r.Add(Member{ClientID: "c2", Name: "Bob"}))

	removed, hostChanged := r.Remove("c1")
	assert.True(t, removed)
	assert.True(t, hostChanged)
	assert.Equal(t, "c2", r.HostID())
	assert.Equal(t, "Bob", r.HostName())
}

func TestRemoveNonHostKeepsHost(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())
	require.NoError(t, r.Add(Member{ClientID: "c2", Name: "Bob"}))

	removed, hostChanged := r.Remove("c2")
	assert.True(t, removed)
	assert.False(t, hostChanged)
	assert.Equal(t, "c1", r.HostID())
}

func TestRemoveUnknownMember(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())

	removed, hostChanged := r.Remove("ghost")
	assert.False(t, removed)
	assert.False(t, hostChanged)
}

func TestStartRequiresFullRoster(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())
	assert.Error(t, r.Start(time.Now()))

	require.NoError(t, r.Add(Member{ClientID: "c2", Name: "Bob"}))
	require.NoError(t, r.Start(time.Now()))
	assert.Equal(t, Playing, r.Phase())
	assert.Equal(t, 0, r.CurrentSeat(), "black moves first")
}

func TestApplyMoveAdmission(t *testing.T) {
	tests := []struct {
		name     string
		clientID string
		row, col int
		setup    func(r *Room)
		wantErr  error
	}{
		{
			name:     "stranger rejected",
			clientID: "ghost", row: 7, col: 7,
			wantErr: ErrNotMember,
		},
		{
			name:     "out of turn rejected",
			clientID: "c2", row: 7, col: 7,
			wantErr: ErrNotYourTurn,
		},
		{
			name:     "occupied cell rejected",
			clientID: "c2", row: 7, col: 7,
			setup: func(r *Room) {
				_, err := r.ApplyMove("c1", 7, 7, time.Now())
				require.NoError(t, err)
			},
			wantErr: ErrIllegalMove,
		},
		{
			name:     "out of bounds rejected",
			clientID: "c1", row: -1, col: 99,
			wantErr: ErrIllegalMove,
		},
		{
			name:     "paused game rejects moves",
			clientID: "c1", row: 7, col: 7,
			setup: func(r *Room) {
				require.NoError(t, r.Pause("c1", time.Now()))
			},
			wantErr: ErrPaused,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newStartedRoom(t)
			if tt.setup != nil {
				tt.setup(r)
			}
			_, err := r.ApplyMove(tt.clientID, tt.row, tt.col, time.Now())
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestApplyMoveFlipsTurnAndResetsTimer(t *testing.T) {
	r := newStartedRoom(t)
	now := time.Now()

	outcome, err := r.ApplyMove("c1", 7, 7, now)
	require.NoError(t, err)

	assert.Equal(t, 0, outcome.Seat)
	assert.Equal(t, engine.Black, outcome.Stone)
	assert.Equal(t, engine.InProgress, outcome.Terminal.Result)
	assert.Equal(t, 1, r.CurrentSeat())
	assert.Equal(t, 1, r.MoveCount())

	// Timer anchor re-set at commit time with no carried elapsed.
	require.NotNil(t, outcome.Timer.TurnStartEpoch)
	assert.InDelta(t, float64(now.UnixNano())/1e9, *outcome.Timer.TurnStartEpoch, 0.001)
	assert.Zero(t, outcome.Timer.ElapsedBeforePause)
	assert.Equal(t, 30.0, outcome.Timer.MoveTimeLimit)
}

func TestApplyMoveFailureLeavesStateUntouched(t *testing.T) {
	r := newStartedRoom(t)
	_, err := r.ApplyMove("c2", 7, 7, time.Now())
	require.Error(t, err)

	assert.Equal(t, 0, r.CurrentSeat())
	assert.Zero(t, r.MoveCount())
	assert.Equal(t, engine.Empty, r.Board().At(7, 7))
}

// playOut alternates legal moves so black completes a horizontal five.
func playOut(t *testing.T, r *Room) MoveOutcome {
	t.Helper()
	for i := 0; i < 4; i++ {
		_, err := r.ApplyMove("c1", 7, 3+i, time.Now())
		require.NoError(t, err)
		_, err = r.ApplyMove("c2", 10, 3+i, time.Now())
		require.NoError(t, err)
	}
	outcome, err := r.ApplyMove("c1", 7, 7, time.Now())
	require.NoError(t, err)
	return outcome
}

func TestWinFinishesRoom(t *testing.T) {
	r := newStartedRoom(t)
	outcome := playOut(t, r)

	assert.Equal(t, engine.Win, outcome.Terminal.Result)
	assert.Equal(t, engine.Black, outcome.Terminal.Winner)
	assert.Equal(t, Finished, r.Phase())
	assert.Equal(t, "Alice", r.WinnerName())
	assert.Equal(t, "Bob", r.LoserName())
	assert.Equal(t, "win", r.EndReason())

	_, err := r.ApplyMove("c2", 0, 0, time.Now())
	assert.ErrorIs(t, err, ErrNotPlaying)
}

func TestPauseLedger(t *testing.T) {
	r := newStartedRoom(t)

	require.NoError(t, r.Pause("c1", time.Now()))
	assert.Equal(t, Paused, r.Phase())
	assert.Equal(t, "c1", r.PauseInitiatorID())
	assert.Equal(t, 1, r.PausesRemaining(0))
	assert.Equal(t, 2, r.PausesRemaining(1))

	require.NoError(t, r.Resume("c1", 20*time.Second, time.Now()))
	require.NoError(t, r.Pause("c1", time.Now()))
	assert.Equal(t, 0, r.PausesRemaining(0))

	// Zero tokens left: the pause still goes through, only the ledger
	// stops moving.
	require.NoError(t, r.Resume("c1", 20*time.Second, time.Now()))
	require.NoError(t, r.Pause("c1", time.Now()))
	assert.Equal(t, 0, r.PausesRemaining(0))
	assert.Equal(t, Paused, r.Phase())
}

func TestPauseFreezesTimer(t *testing.T) {
	r := newStartedRoom(t)
	start := time.Now()
	require.NoError(t, r.Start(start))

	pauseAt := start.Add(10 * time.Second)
	require.NoError(t, r.Pause("c1", pauseAt))

	// Frozen: elapsed no longer tracks the clock.
	assert.Equal(t, 10*time.Second, r.Elapsed(pauseAt.Add(time.Hour)))

	ts := r.WireTimer()
	assert.Nil(t, ts.TurnStartEpoch, "paused timer has no anchor")
	assert.Equal(t, 10.0, ts.ElapsedBeforePause)
}

func TestResumeRebasesTimer(t *testing.T) {
	// 30s budget paused with 22.5s remaining: resume must carry 7.5s of
	// consumed time into the new anchor.
	r := newStartedRoom(t)
	require.NoError(t, r.Pause("c1", time.Now()))

	resumeAt := time.Now()
	require.NoError(t, r.Resume("c1", 22500*time.Millisecond, resumeAt))

	assert.Equal(t, Playing, r.Phase())
	assert.Empty(t, r.PauseInitiatorID())
	assert.Equal(t, 7500*time.Millisecond, r.Elapsed(resumeAt))

	ts := r.WireTimer()
	require.NotNil(t, ts.TurnStartEpoch)
	assert.Equal(t, 7.5, ts.ElapsedBeforePause)
}

func TestResumeClampsRemaining(t *testing.T) {
	r := newStartedRoom(t)
	now := time.Now()

	require.NoError(t, r.Pause("c1", now))
	require.NoError(t, r.Resume("c1", 5*time.Minute, now))
	assert.Equal(t, time.Duration(0), r.Elapsed(now), "excess remaining clamps to the full budget")

	require.NoError(t, r.Pause("c1", now))
	require.NoError(t, r.Resume("c1", -3*time.Second, now))
	assert.Equal(t, 30*time.Second, r.Elapsed(now), "negative remaining clamps to zero budget")
}

func TestResign(t *testing.T) {
	r := newStartedRoom(t)
	require.NoError(t, r.Resign("c2"))

	assert.Equal(t, Finished, r.Phase())
	assert.Equal(t, "Alice", r.WinnerName())
	assert.Equal(t, "Bob", r.LoserName())
	assert.Equal(t, "resign", r.EndReason())
}

func TestResignWhilePaused(t *testing.T) {
	r := newStartedRoom(t)
	require.NoError(t, r.Pause("c1", time.Now()))
	require.NoError(t, r.Resign("c1"))

	assert.Equal(t, Finished, r.Phase())
	assert.Equal(t, "Bob", r.WinnerName())
}

func TestResignRequiresActiveGame(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())
	assert.ErrorIs(t, r.Resign("c1"), ErrNotPlaying)
}

func TestForfeitDisconnectMidGame(t *testing.T) {
	r := newStartedRoom(t)

	survivor, ok := r.ForfeitDisconnect("c1")
	require.True(t, ok)
	assert.Equal(t, "Bob", survivor.Name)
	assert.Equal(t, Finished, r.Phase())
	assert.Equal(t, "Bob", r.WinnerName())
	assert.Equal(t, "Alice", r.LoserName())
	assert.Equal(t, "disconnect", r.EndReason())
	assert.Equal(t, 1, r.Len())
}

func TestForfeitDisconnectLastMember(t *testing.T) {
	r := New("room_1", "Lounge", Member{ClientID: "c1", Name: "Alice"}, testConfig())

	_, ok := r.ForfeitDisconnect("c1")
	assert.False(t, ok)
	assert.True(t, r.Empty())
}

func TestResetForRematch(t *testing.T) {
	r := newStartedRoom(t)
	require.NoError(t, r.Pause("c1", time.Now()))
	require.NoError(t, r.Resume("c1", 20*time.Second, time.Now()))
	playOut(t, r)

	pausesLeft := r.PausesRemaining(0)
	r.ResetForRematch()

	assert.Equal(t, Waiting, r.Phase())
	assert.Zero(t, r.MoveCount())
	assert.Zero(t, r.Board().Stones())
	assert.Empty(t, r.WinnerName())
	assert.Empty(t, r.EndReason())
	assert.Equal(t, pausesLeft, r.PausesRemaining(0), "pause ledger carries over")

	require.NoError(t, r.Start(time.Now()))
	assert.Equal(t, 0, r.CurrentSeat())
}

func TestSummary(t *testing.T) {
	r := newStartedRoom(t)
	s := r.Summary()

	assert.Equal(t, "room_1", s.RoomID)
	assert.Equal(t, "Test Room", s.Name)
	assert.Equal(t, "Alice", s.HostName)
	assert.Equal(t, 2, s.Players)
	assert.Equal(t, MaxPlayers, s.MaxPlayers)
}

func TestSentinelErrorsWrap(t *testing.T) {
	r := newStartedRoom(t)
	_, err := r.ApplyMove("c1", 99, 99, time.Now())
	assert.True(t, errors.Is(err, ErrIllegalMove))
}
