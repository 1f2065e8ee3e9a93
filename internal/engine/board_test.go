package engine

import "testing"

func place(t *testing.T, b *Board, s Stone, cells [][2]int) {
	t.Helper()
	for _, c := range cells {
		if err := b.Apply(c[0], c[1], s); err != nil {
			t.Fatalf("Apply(%d,%d): %v", c[0], c[1], err)
		}
	}
}

func TestWinDetectionAllDirections(t *testing.T) {
	tests := []struct {
		name  string
		cells [][2]int
	}{
		{"horizontal", [][2]int{{7, 3}, {7, 4}, {7, 5}, {7, 6}, {7, 7}}},
		{"vertical", [][2]int{{3, 7}, {4, 7}, {5, 7}, {6, 7}, {7, 7}}},
		{"diagonal down-right", [][2]int{{3, 3}, {4, 4}, {5, 5}, {6, 6}, {7, 7}}},
		{"diagonal down-left", [][2]int{{3, 11}, {4, 10}, {5, 9}, {6, 8}, {7, 7}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := New(15, 5)
			// The last cell placed is the move terminal detection starts from.
			place(t, b, Black, tt.cells)
			last := tt.cells[len(tt.cells)-1]
			status := b.TerminalStatus(last[0], last[1])
			if status.Result != Win {
				t.Fatalf("Result = %v, want Win", status.Result)
			}
			if status.Winner != Black {
				t.Errorf("Winner = %v, want Black", status.Winner)
			}
		})
	}
}

func TestWinDetectionMidLine(t *testing.T) {
	// Completing the line from the middle must still be seen: x x [x] x x.
	b := New(15, 5)
	place(t, b, White, [][2]int{{7, 3}, {7, 4}, {7, 6}, {7, 7}})
	place(t, b, White, [][2]int{{7, 5}})

	status := b.TerminalStatus(7, 5)
	if status.Result != Win || status.Winner != White {
		t.Errorf("status = %+v, want White win", status)
	}
}

func TestOverlineCountsAsWin(t *testing.T) {
	b := New(15, 5)
	place(t, b, Black, [][2]int{{7, 2}, {7, 3}, {7, 4}, {7, 6}, {7, 7}})
	place(t, b, Black, [][2]int{{7, 5}}) // six in a row

	if status := b.TerminalStatus(7, 5); status.Result != Win {
		t.Errorf("Result = %v, want Win for six in a row", status.Result)
	}
}

func TestFourInARowIsNotTerminal(t *testing.T) {
	b := New(15, 5)
	place(t, b, Black, [][2]int{{7, 3}, {7, 4}, {7, 5}, {7, 6}})

	if status := b.TerminalStatus(7, 6); status.Result != InProgress {
		t.Errorf("Result = %v, want InProgress", status.Result)
	}
}

func TestDrawOnFullBoard(t *testing.T) {
	// 4x4 board with win length 5: no line can ever win, so filling the
	// board is a draw.
	b := New(4, 5)
	stone := Black
	var lastRow, lastCol int
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if err := b.Apply(row, col, stone); err != nil {
				t.Fatalf("Apply(%d,%d): %v", row, col, err)
			}
			stone = stone.Opponent()
			lastRow, lastCol = row, col
		}
	}

	if status := b.TerminalStatus(lastRow, lastCol); status.Result != Draw {
		t.Errorf("Result = %v, want Draw", status.Result)
	}
}

func TestIsLegal(t *testing.T) {
	b := New(15, 5)
	place(t, b, Black, [][2]int{{7, 7}})

	tests := []struct {
		name     string
		row, col int
		want     bool
	}{
		{"empty cell", 0, 0, true},
		{"occupied cell", 7, 7, false},
		{"negative row", -1, 0, false},
		{"row past edge", 15, 0, false},
		{"col past edge", 0, 15, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := b.IsLegal(tt.row, tt.col); got != tt.want {
				t.Errorf("IsLegal(%d,%d) = %v, want %v", tt.row, tt.col, got, tt.want)
			}
		})
	}
}

func TestApplyRejectsBadStone(t *testing.T) {
	b := New(15, 5)
	if err := b.Apply(0, 0, Empty); err == nil {
		t.Error("Expected error applying an empty stone")
	}
}

func TestResetClearsBoard(t *testing.T) {
	b := New(15, 5)
	place(t, b, Black, [][2]int{{7, 7}, {8, 8}})
	b.Reset()

	if b.Stones() != 0 {
		t.Errorf("Stones = %d after reset", b.Stones())
	}
	if b.At(7, 7) != Empty {
		t.Error("Expected cell cleared after reset")
	}
}

func TestSnapshot(t *testing.T) {
	b := New(3, 3)
	place(t, b, Black, [][2]int{{0, 0}})
	place(t, b, White, [][2]int{{1, 1}})

	grid := b.Snapshot()
	if grid[0][0] != 1 || grid[1][1] != 2 || grid[2][2] != 0 {
		t.Errorf("Snapshot = %v", grid)
	}
}
