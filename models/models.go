// models/models.go
package models

import (
	"time"
)

// PlayerInfo identifies one room member in a snapshot or record.
type PlayerInfo struct {
	Name      string `json:"name"`
	SessionID string `json:"session_id"`
}

// RoomSnapshot is the archived view of a room at some point in its life.
type RoomSnapshot struct {
	RoomName  string       `json:"room_name"`
	State     string       `json:"state"`
	HostID    string       `json:"host_id"`
	Players   []PlayerInfo `json:"players"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// GameRecord is written once when a room's game starts.
type GameRecord struct {
	RoomName  string       `json:"room_name"`
	Players   []PlayerInfo `json:"players"`
	StartedAt time.Time    `json:"started_at"`
}
