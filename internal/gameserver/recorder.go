package gameserver

import (
	"context"
	"log/slog"
	"time"

	"github.com/udisondev/gomokugo/internal/db"
	"github.com/udisondev/gomokugo/internal/room"
)

// MatchRecorder persists finished games. Implementations must be safe for
// use from the dispatcher goroutine; recording runs on a short background
// deadline so the game path never blocks on storage.
type MatchRecorder interface {
	RecordMatch(ctx context.Context, m db.Match) error
}

const recordTimeout = 3 * time.Second

// recordMatch captures the finished room and hands it to the recorder.
// Nil recorder means history is disabled.
func (h *Handler) recordMatch(r *room.Room) {
	if h.recorder == nil || r.Phase() != room.Finished {
		return
	}

	m := db.Match{
		RoomID:     r.ID(),
		RoomName:   r.Name(),
		Winner:     r.WinnerName(),
		Loser:      r.LoserName(),
		EndReason:  r.EndReason(),
		Moves:      r.MoveCount(),
		FinishedAt: time.Now(),
	}
	if !r.StartedAt().IsZero() {
		m.Duration = m.FinishedAt.Sub(r.StartedAt())
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), recordTimeout)
		defer cancel()
		if err := h.recorder.RecordMatch(ctx, m); err != nil {
			slog.Error("recording match", "room", m.RoomID, "error", err)
		}
	}()
}
