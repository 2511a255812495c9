// handlers/start_game.go
package handlers

import (
	"encoding/json"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
)

// StartGameHandler moves a waiting room into the in-game state. Only the
// room's host may start, and only with enough players.
type StartGameHandler struct {
	registry   *room.Registry
	archive    *services.RoomArchive
	minPlayers int
}

func NewStartGameHandler(registry *room.Registry, archive *services.RoomArchive, minPlayers int) *StartGameHandler {
	return &StartGameHandler{
		registry:   registry,
		archive:    archive,
		minPlayers: minPlayers,
	}
}

func (h *StartGameHandler) MessageType() string {
	return network.MsgTypeStartGame
}

func (h *StartGameHandler) Handle(payload json.RawMessage, sess *session.Session) error {
	var req network.StartGamePayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return newError(KindInvalidArgument, "invalid start_game payload")
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

	if rm.PlayerCount() < h.minPlayers {
		return newError(KindPreconditionFailed, "not enough players to start the game in room %s", req.RoomName)
	}

	if host := rm.Host(); host == nil || host.GetID() != sess.GetID() {
		return newError(KindForbidden, "only the host may start the game in room %s", req.RoomName)
	}

	rm.SetState(room.StateInGame)

	logger.Log.Infof("Game started in room %s with %d players", req.RoomName, rm.PlayerCount())

	if err := rm.Broadcast(network.MsgTypeStartGame, network.StartGameNotice{
		RoomName: req.RoomName,
	}); err != nil {
		logger.Log.Errorf("Failed to broadcast game start in room %s: %v", req.RoomName, err)
	}

	h.archive.RecordGameStart(rm)
	h.archive.SnapshotRoom(rm)
	return nil
}
