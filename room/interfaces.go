package room

// Broadcaster defines the interface for fanning a message out to a room.
// This is defined here to break the import cycle between room and broadcast.
type Broadcaster interface {
	BroadcastToRoom(roomName, msgType string, payload any) error
}
