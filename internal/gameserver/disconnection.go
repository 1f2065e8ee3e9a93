package gameserver

import (
	"fmt"
	"log/slog"

	"github.com/udisondev/gomokugo/internal/protocol"
	"github.com/udisondev/gomokugo/internal/room"
)

// OnDisconnect handles a connection loss (reader EOF, socket error, or
// reaper eviction). Disconnect mid-game is irrecoverable: the abandoning
// player forfeits and the survivor is declared winner. The lobby identity
// (session token) stays valid for a fresh lobby_join.
func (h *Handler) OnDisconnect(c *Client) {
	// Readers and the reaper can both observe the same death; the registry
	// collapses them so the forfeit cascade runs exactly once.
	if !h.registry.Remove(c.ID()) {
		return
	}
	c.Close()

	slog.Info("client disconnected", "client", c.ID(), "name", c.name)

	r := h.clientRoom(c)
	if r == nil {
		return
	}
	c.roomID = ""

	active := r.Phase() == room.Playing || r.Phase() == room.Paused
	if !active {
		// No game in progress: treat like an ordinary leave.
		_, hostChanged := r.Remove(c.ID())
		h.broadcastToRoom(r, protocol.TypePlayerLeftRoom, protocol.PlayerLeftRoomData{
			PlayerName: c.name,
		}, "")
		if r.Empty() {
			h.destroyRoom(r)
		} else if hostChanged {
			h.announceHostTransfer(r)
		}
		h.broadcastRoomList()
		return
	}

	survivor, ok := r.ForfeitDisconnect(c.ID())
	if !ok {
		h.destroyRoom(r)
		h.broadcastRoomList()
		return
	}

	slog.Info("game forfeited on disconnect", "room", r.ID(),
		"disconnected", c.name, "winner", survivor.Name)

	if peer := h.registry.Get(survivor.ClientID); peer != nil {
		h.reply(peer, protocol.TypeGameEndedDisconnect, protocol.GameEndedDisconnectData{
			Reason:             "opponent_disconnected",
			DisconnectedPlayer: c.name,
			Winner:             survivor.Name,
			Message:            fmt.Sprintf("%s disconnected. You win by forfeit!", c.name),
			Forfeit:            true,
			NoRematch:          true,
		})
		h.reply(peer, protocol.TypeRoomInfo, protocol.RoomInfoData{
			Success:  true,
			RoomInfo: r.Summary(),
		})
	}

	h.recordMatch(r)
	h.broadcastRoomList()
}
