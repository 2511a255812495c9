// handlers/join_room.go
package handlers

import (
	"encoding/json"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
)

// JoinRoomHandler appends the sender to a waiting room's player list and
// tells every member about it.
type JoinRoomHandler struct {
	registry *room.Registry
	archive  *services.RoomArchive
}

func NewJoinRoomHandler(registry *room.Registry, archive *services.RoomArchive) *JoinRoomHandler {
	return &JoinRoomHandler{
		registry: registry,
		archive:  archive,
	}
}

func (h *JoinRoomHandler) MessageType() string {
	return network.MsgTypeJoinRoom
}

func (h *JoinRoomHandler) Handle(payload json.RawMessage, sess *session.Session) error {
	var req network.JoinRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return newError(KindInvalidArgument, "invalid join_room payload")
	}
	if req.PlayerName == "" {
		return newError(KindInvalidArgument, "player name must not be empty")
	}

	rm, exists := h.registry.Find(req.RoomName)
	if !exists {
		return newError(KindNotFound, "room %s does not exist", req.RoomName)
	}

	rm.Begin()
	defer rm.End()

	// The room may have been dissolved while waiting for the operation lock.
	if current, ok := h.registry.Find(req.RoomName); !ok || current != rm {
		return newError(KindNotFound, "room %s does not exist", req.RoomName)
	}

	if rm.State() != room.StateWaiting {
		return newError(KindInvalidState, "room %s is not in waiting state", req.RoomName)
	}

	if rm.HasPlayer(req.PlayerName) {
		return newError(KindConflict, "player %s already in room %s", req.PlayerName, req.RoomName)
	}

	rm.AddPlayer(room.Player{Name: req.PlayerName, Session: sess})
	sess.BindRoom(req.RoomName, req.PlayerName)

	logger.Log.Infof("Player %s joined room %s", req.PlayerName, req.RoomName)

	// Every member, including the joiner, converges on the same membership view.
	if err := rm.Broadcast(network.MsgTypeJoinRoom, network.JoinRoomNotice{
		RoomName:   req.RoomName,
		PlayerName: req.PlayerName,
	}); err != nil {
		logger.Log.Errorf("Failed to broadcast join in room %s: %v", req.RoomName, err)
	}

	h.archive.SnapshotRoom(rm)
	return nil
}
