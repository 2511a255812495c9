// network/protocol.go
package network

import (
	"encoding/json"
)

// Message types carried in the envelope's messageType field.
const (
	MsgTypeCreateRoom = "create_room"
	MsgTypeJoinRoom   = "join_room"
	MsgTypeStartGame  = "start_game"
	MsgTypeLeaveRoom  = "leave_room"
	MsgTypeHeartbeat  = "heartbeat"
	MsgTypeSuccess    = "success"
	MsgTypeError      = "error"
	MsgTypeShutdown   = "shutdown"
)

// Envelope is the wire format for every message in both directions:
// a type tag plus a type-specific JSON payload.
type Envelope struct {
	MessageType string          `json:"messageType"`
	Payload     json.RawMessage `json:"payload"`
}

// Inbound payloads.

type CreateRoomPayload struct {
	RoomName string `json:"roomName"`
}

type JoinRoomPayload struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
}

type StartGamePayload struct {
	RoomName string `json:"roomName"`
}

type LeaveRoomPayload struct {
	RoomName string `json:"roomName"`
}

// Outbound payloads.

type SuccessPayload struct {
	Message string `json:"message"`
}

type ErrorPayload struct {
	Error string `json:"error"`
}

// JoinRoomNotice is broadcast to every member of a room when a player joins.
type JoinRoomNotice struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
}

// LeaveRoomNotice is broadcast to the remaining members when a player leaves.
type LeaveRoomNotice struct {
	RoomName   string `json:"roomName"`
	PlayerName string `json:"playerName"`
}

// StartGameNotice is broadcast to every member when the game starts.
type StartGameNotice struct {
	RoomName string `json:"roomName"`
}

// ShutdownNotice is broadcast to every room member when the server stops.
type ShutdownNotice struct {
	Message string `json:"message"`
}

// Encode wraps a payload in an Envelope and marshals it.
func Encode(msgType string, payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		MessageType: msgType,
		Payload:     raw,
	})
}
