// handlers/create_room.go
package handlers

import (
	"encoding/json"
	"sync"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
)

// CreateRoomHandler creates a new waiting room with the sender as host.
type CreateRoomHandler struct {
	registry    *room.Registry
	broadcaster room.Broadcaster
	archive     *services.RoomArchive
	maxNameLen  int

	// Makes the exists-check and Add a single step when two clients race to
	// create the same name. The registry itself stays a dumb store.
	mutex sync.Mutex
}

func NewCreateRoomHandler(registry *room.Registry, broadcaster room.Broadcaster, archive *services.RoomArchive, maxNameLen int) *CreateRoomHandler {
	return &CreateRoomHandler{
		registry:    registry,
		broadcaster: broadcaster,
		archive:     archive,
		maxNameLen:  maxNameLen,
	}
}

func (h *CreateRoomHandler) MessageType() string {
	return network.MsgTypeCreateRoom
}

func (h *CreateRoomHandler) Handle(payload json.RawMessage, sess *session.Session) error {
	var req network.CreateRoomPayload
	if err := json.Unmarshal(payload, &req); err != nil {
		return newError(KindInvalidArgument, "invalid create_room payload")
	}

	if !validRoomName(req.RoomName, h.maxNameLen) {
		return newError(KindInvalidArgument, "room name must be 1-%d alphanumeric characters", h.maxNameLen)
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	if _, exists := h.registry.Find(req.RoomName); exists {
		return newError(KindConflict, "room %s already exists", req.RoomName)
	}

	rm := room.NewRoom(req.RoomName, sess, h.broadcaster)
	h.registry.Add(rm)
	sess.BindRoom(req.RoomName, "")

	logger.Log.Infof("Session %s created room %s", sess.GetID(), req.RoomName)

	// No peers yet, so nothing to broadcast; the creator gets the router's ack.
	h.archive.SnapshotRoom(rm)
	return nil
}

func validRoomName(name string, maxLen int) bool {
	if len(name) == 0 || len(name) > maxLen {
		return false
	}
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		default:
			return false
		}
	}
	return true
}
