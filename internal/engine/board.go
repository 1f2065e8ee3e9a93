// Package engine implements the five-in-a-row rule engine: board state,
// legal-move checks, and terminal detection. The session server consumes it
// behind this narrow surface and never re-derives rules itself.
package engine

import "fmt"

// Stone is the content of one board cell.
type Stone uint8

const (
	Empty Stone = iota
	Black
	White
)

// String returns the lowercase role name used on the wire.
func (s Stone) String() string {
	switch s {
	case Black:
		return "black"
	case White:
		return "white"
	default:
		return "empty"
	}
}

// Opponent returns the other player's stone. Empty maps to Empty.
func (s Stone) Opponent() Stone {
	switch s {
	case Black:
		return White
	case White:
		return Black
	default:
		return Empty
	}
}

// Result classifies a board position.
type Result int

const (
	InProgress Result = iota
	Win
	Draw
)

// Status is the outcome of terminal detection. Winner is set only for Win.
type Status struct {
	Result Result
	Winner Stone
}

// Board is a square grid with win-length tracking. The zero value is not
// usable; construct with New.
type Board struct {
	size   int
	winLen int
	cells  []Stone
	stones int
}

// DefaultSize and DefaultWinLength are the standard gomoku parameters.
const (
	DefaultSize      = 15
	DefaultWinLength = 5
)

// New creates an empty board. Non-positive arguments select the defaults.
func New(size, winLen int) *Board {
	if size <= 0 {
		size = DefaultSize
	}
	if winLen <= 0 {
		winLen = DefaultWinLength
	}
	return &Board{
		size:   size,
		winLen: winLen,
		cells:  make([]Stone, size*size),
	}
}

// Size returns the board edge length.
func (b *Board) Size() int {
	return b.size
}

// Stones returns the count of placed stones.
func (b *Board) Stones() int {
	return b.stones
}

// At returns the stone at (row, col). Out-of-range coordinates read Empty.
func (b *Board) At(row, col int) Stone {
	if !b.inBounds(row, col) {
		return Empty
	}
	return b.cells[row*b.size+col]
}

// IsLegal reports whether placing at (row, col) is allowed: in bounds and
// on an empty cell.
func (b *Board) IsLegal(row, col int) bool {
	return b.inBounds(row, col) && b.cells[row*b.size+col] == Empty
}

// Apply places s at (row, col).
func (b *Board) Apply(row, col int, s Stone) error {
	if s != Black && s != White {
		return fmt.Errorf("applying move: invalid stone %d", s)
	}
	if !b.IsLegal(row, col) {
		return fmt.Errorf("applying move: (%d,%d) is not a legal cell", row, col)
	}
	b.cells[row*b.size+col] = s
	b.stones++
	return nil
}

// TerminalStatus inspects the position after the move at (row, col).
// Only lines through the last move are scanned; a full board with no win
// is a draw.
func (b *Board) TerminalStatus(row, col int) Status {
	s := b.At(row, col)
	if s == Empty {
		return Status{Result: InProgress}
	}

	dirs := [4][2]int{{1, 0}, {0, 1}, {1, 1}, {1, -1}}
	for _, d := range dirs {
		count := 1
		for r, c := row+d[0], col+d[1]; b.At(r, c) == s; r, c = r+d[0], c+d[1] {
			count++
		}
		for r, c := row-d[0], col-d[1]; b.At(r, c) == s; r, c = r-d[0], c-d[1] {
			count++
		}
		if count >= b.winLen {
			return Status{Result: Win, Winner: s}
		}
	}

	if b.stones == b.size*b.size {
		return Status{Result: Draw}
	}
	return Status{Result: InProgress}
}

// Snapshot renders the grid as rows of {0,1,2} for state transfer.
func (b *Board) Snapshot() [][]int {
	grid := make([][]int, b.size)
	for r := 0; r < b.size; r++ {
		grid[r] = make([]int, b.size)
		for c := 0; c < b.size; c++ {
			grid[r][c] = int(b.cells[r*b.size+c])
		}
	}
	return grid
}

// Reset clears every cell.
func (b *Board) Reset() {
	clear(b.cells)
	b.stones = 0
}

func (b *Board) inBounds(row, col int) bool {
	return row >= 0 && row < b.size && col >= 0 && col < b.size
}
