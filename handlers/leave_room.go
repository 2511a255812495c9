// handlers/leave_room.go
package handlers

import (
	"encoding/json"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
)

// LeaveRoomHandler removes the sender's player from its room. The same
// removal path backs the server's disconnect cleanup, so a dropped connection
// and an explicit leave converge on identical room state.
type LeaveRoomHandler struct {
	registry *room.Registry
	archive  *services.RoomArchive
}

func NewLeaveRoomHandler(registry *room.Registry, archive *services.RoomArchive) *LeaveRoomHandler {
	return &LeaveRoomHandler{
		registry: registry,
		archive:  archive,
	}
}

func (h *LeaveRoomHandler) MessageType() string {
	return network.MsgTypeLeaveRoom
}

func (h *LeaveRoomHandler) Handle(payload json.RawMessage, sess *session.Session) error {
	var req network.LeaveRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return newError(KindInvalidArgument, "invalid leave_room payload")
	}

	rm, exists := h.registry.Find(req.RoomName)
	if !exists {
		return newError(KindNotFound, "room %s does not exist", req.RoomName)
	}

	playerName := sess.PlayerName()
	if sess.RoomName() != req.RoomName || playerName == "" {
		return newError(KindNotFound, "not a member of room %s", req.RoomName)
	}

	if !h.removeMember(rm, sess, playerName) {
		return newError(KindNotFound, "room %s does not exist", req.RoomName)
	}
	return nil
}

// Disconnect runs the leave flow for a session whose connection is gone.
func (h *LeaveRoomHandler) Disconnect(sess *session.Session) {
	roomName := sess.RoomName()
	if roomName == "" {
		return
	}

	rm, exists := h.registry.Find(roomName)
	if !exists {
		return
	}

	playerName := sess.PlayerName()
	if playerName == "" {
		// A host connection that created the room but never joined as a
		// player. Dissolve the room if it is still empty.
		rm.Begin()
		defer rm.End()
		if current, ok := h.registry.Find(roomName); !ok || current != rm {
			return
		}
		if rm.PlayerCount() == 0 && rm.Host() == sess {
			h.registry.Remove(roomName)
			h.archive.DropRoom(roomName)
			logger.Log.Infof("Dissolved empty room %s after host disconnect", roomName)
		}
		return
	}

	h.removeMember(rm, sess, playerName)
}

// removeMember reports whether the player was actually removed; false means
// the room was dissolved (or the member removed) while waiting for the lock.
func (h *LeaveRoomHandler) removeMember(rm *room.Room, sess *session.Session, playerName string) bool {
	rm.Begin()
	defer rm.End()

	if current, ok := h.registry.Find(rm.Name()); !ok || current != rm {
		return false
	}

	if !rm.RemovePlayer(playerName) {
		return false
	}
	sess.UnbindRoom()

	logger.Log.Infof("Player %s left room %s", playerName, rm.Name())

	if rm.PlayerCount() == 0 {
		h.registry.Remove(rm.Name())
		h.archive.DropRoom(rm.Name())
		logger.Log.Infof("Dissolved empty room %s", rm.Name())
		return true
	}

	// The oldest remaining member inherits the room.
	if host := rm.Host(); host == nil || host.GetID() == sess.GetID() {
		next := rm.Players()[0].Session
		rm.SetHost(next)
		logger.Log.Infof("Promoted session %s to host of room %s", next.GetID(), rm.Name())
	}

	if err := rm.Broadcast(network.MsgTypeLeaveRoom, network.LeaveRoomNotice{
		RoomName:   rm.Name(),
		PlayerName: playerName,
	}); err != nil {
		logger.Log.Errorf("Failed to broadcast leave in room %s: %v", rm.Name(), err)
	}

	h.archive.SnapshotRoom(rm)
	return true
}
