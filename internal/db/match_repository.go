package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Match is one finished game as recorded in match_history.
// Winner is empty for draws.
type Match struct {
	RoomID     string
	RoomName   string
	Winner     string
	Loser      string
	EndReason  string // "win" | "draw" | "resign" | "disconnect"
	Moves      int
	Duration   time.Duration
	FinishedAt time.Time
}

// MatchRepository stores finished matches in PostgreSQL.
type MatchRepository struct {
	pool *pgxpool.Pool
}

// NewMatchRepository creates a PostgreSQL-backed match store.
func NewMatchRepository(pool *pgxpool.Pool) *MatchRepository {
	return &MatchRepository{pool: pool}
}

// RecordMatch inserts one finished game.
func (r *MatchRepository) RecordMatch(ctx context.Context, m Match) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO match_history (room_id, room_name, winner, loser, end_reason, moves, duration_ms, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.RoomID, m.RoomName, m.Winner, m.Loser, m.EndReason, m.Moves,
		m.Duration.Milliseconds(), m.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("recording match for room %q: %w", m.RoomID, err)
	}
	return nil
}

// RecentMatches returns up to limit matches, newest first.
func (r *MatchRepository) RecentMatches(ctx context.Context, limit int) ([]Match, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT room_id, room_name, winner, loser, end_reason, moves, duration_ms, finished_at
		 FROM match_history ORDER BY finished_at DESC LIMIT $1`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying match history: %w", err)
	}
	defer rows.Close()

	var out []Match
	for rows.Next() {
		var m Match
		var durMS int64
		if err := rows.Scan(&m.RoomID, &m.RoomName, &m.Winner, &m.Loser, &m.EndReason, &m.Moves, &durMS, &m.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning match row: %w", err)
		}
		m.Duration = time.Duration(durMS) * time.Millisecond
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating match history: %w", err)
	}
	return out, nil
}

// WinCount returns how many recorded wins a player name has.
func (r *MatchRepository) WinCount(ctx context.Context, player string) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM match_history WHERE winner = $1`, player,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting wins for %q: %w", player, err)
	}
	return n, nil
}
