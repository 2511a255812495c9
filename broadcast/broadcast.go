// broadcast/broadcast.go
package broadcast

import (
	"errors"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/room"
)

var (
	ErrRoomNotFound = errors.New("room not found")
)

// Broadcaster fans messages out to room members or to the whole lobby.
type Broadcaster interface {
	BroadcastToRoom(roomName, msgType string, payload any) error
	BroadcastToAll(msgType string, payload any) error
}

// RoomBroadcaster resolves rooms through the registry and sends to each
// member's session in player order. Delivery is best effort: a failed send to
// one recipient is logged and must not stop delivery to the rest.
type RoomBroadcaster struct {
	registry *room.Registry
}

func NewRoomBroadcaster(registry *room.Registry) *RoomBroadcaster {
	return &RoomBroadcaster{
		registry: registry,
	}
}

func (b *RoomBroadcaster) BroadcastToRoom(roomName, msgType string, payload any) error {
	rm, exists := b.registry.Find(roomName)
	if !exists {
		return ErrRoomNotFound
	}

	data, err := network.Encode(msgType, payload)
	if err != nil {
		return err
	}

	for _, p := range rm.Players() {
		if err := p.Session.Conn.Send(data); err != nil {
			logger.Log.Warnf("Broadcast to player %s in room %s failed: %v", p.Name, roomName, err)
			continue
		}
	}
	return nil
}

func (b *RoomBroadcaster) BroadcastToAll(msgType string, payload any) error {
	data, err := network.Encode(msgType, payload)
	if err != nil {
		return err
	}

	for _, rm := range b.registry.Rooms() {
		for _, p := range rm.Players() {
			if err := p.Session.Conn.Send(data); err != nil {
				logger.Log.Warnf("Broadcast to player %s in room %s failed: %v", p.Name, rm.Name(), err)
				continue
			}
		}
	}
	return nil
}
