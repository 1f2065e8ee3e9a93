// Command gamebot is a scripted headless client: it connects, joins the
// lobby, lists rooms, opens a room, and waits for an opponent. Useful for
// smoke-testing a running server and as a warm body to play against.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/udisondev/gomokugo/internal/client"
	"github.com/udisondev/gomokugo/internal/config"
	"github.com/udisondev/gomokugo/internal/protocol"
)

const ConfigPath = "config/client.yaml"

func main() {
	name := flag.String("name", "GomokuBot", "display name in the lobby")
	roomName := flag.String("room", "Bot Room", "name of the room to open")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	if err := run(*name, *roomName); err != nil {
		slog.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(name, roomName string) error {
	cfgPath := ConfigPath
	if p := os.Getenv("GOMOKUGO_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.LoadClient(cfgPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	session := client.New(cfg)

	// myStone is set by game_started; the bot answers every opponent move
	// by scanning for the first free cell.
	var myStone int
	var board [][]bool
	clock := &client.TurnClock{}

	session.OnMessage(protocol.TypeRoomList, func(msg protocol.Message) {
		var data protocol.RoomListData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		slog.Info("room list", "rooms", len(data.Rooms))
		for _, r := range data.Rooms {
			slog.Info("room", "name", r.Name, "host", r.HostName,
				"players", fmt.Sprintf("%d/%d", r.Players, r.MaxPlayers))
		}
	})

	session.OnMessage(protocol.TypeGameStarted, func(msg protocol.Message) {
		var data protocol.GameStartedData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		slog.Info("game started", "role", data.YourRole, "opponent", data.OpponentName,
			"my_turn", data.YourTurn)
		if data.YourRole == "black" {
			myStone = 1
		} else {
			myStone = 2
		}
		board = freshBoard(15)
		if data.YourTurn {
			// Black opens in the center.
			mid := len(board) / 2
			board[mid][mid] = true
			session.SendGameMove(mid, mid, myStone)
		}
	})

	session.OnMessage(protocol.TypeGameMove, func(msg protocol.Message) {
		var data protocol.GameMoveData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		slog.Info("opponent moved", "player", data.Player, "row", data.Row, "col", data.Col)
		if data.TimerState != nil {
			clock.Adopt(*data.TimerState, time.Now())
		}
		if board == nil {
			return
		}
		if !markCell(board, data.Row, data.Col) {
			slog.Warn("move outside the board ignored", "row", data.Row, "col", data.Col)
			return
		}
		if row, col, ok := firstFree(board); ok {
			board[row][col] = true
			session.SendGameMove(row, col, myStone)
		}
	})

	session.OnMessage(protocol.TypeTimerSync, func(msg protocol.Message) {
		var data protocol.TimerSyncData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		clock.Adopt(data.TimerState, time.Now())
	})

	session.OnMessage(protocol.TypeGameEndedDisconnect, func(msg protocol.Message) {
		var data protocol.GameEndedDisconnectData
		if err := protocol.DecodeData(msg, &data); err != nil {
			return
		}
		slog.Info("game ended", "reason", data.Reason, "winner", data.Winner)
	})

	session.OnEvent(client.EventReconnecting, func(ev client.Event) {
		slog.Info("reconnecting", "attempt", ev.Attempt, "max", ev.Max)
	})
	session.OnEvent(client.EventReconnectFailed, func(ev client.Event) {
		slog.Warn("reconnection failed, giving up")
	})

	if err := session.Connect(cfg.Host, cfg.Port); err != nil {
		return err
	}
	defer session.Disconnect()

	if err := session.JoinLobby(name); err != nil {
		return err
	}
	time.Sleep(time.Second)

	if err := session.GetRooms(); err != nil {
		return err
	}
	time.Sleep(time.Second)

	if err := session.CreateRoom(roomName); err != nil {
		return err
	}
	slog.Info("room opened, waiting for an opponent", "room", roomName)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	return nil
}

func freshBoard(size int) [][]bool {
	b := make([][]bool, size)
	for i := range b {
		b[i] = make([]bool, size)
	}
	return b
}

// markCell records an occupied cell, rejecting coordinates outside the
// board. The server is trusted for game outcomes, not for slice indexes.
func markCell(board [][]bool, row, col int) bool {
	if row < 0 || row >= len(board) || col < 0 || col >= len(board[row]) {
		return false
	}
	board[row][col] = true
	return true
}

func firstFree(board [][]bool) (int, int, bool) {
	for row := range board {
		for col := range board[row] {
			if !board[row][col] {
				return row, col, true
			}
		}
	}
	return 0, 0, false
}
