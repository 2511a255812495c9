// models/gorm_models.go
package models

import (
	"gorm.io/gorm"
)

// GormRoomSnapshot mirrors RoomSnapshot in the room_snapshots table.
type GormRoomSnapshot struct {
	gorm.Model
	RoomName string       `gorm:"uniqueIndex;not null"`
	State    string       `gorm:"not null"`
	HostID   string       `gorm:"not null"`
	Players  []PlayerInfo `gorm:"serializer:json;type:jsonb"`
}

func (GormRoomSnapshot) TableName() string {
	return "room_snapshots"
}

// GormGameRecord mirrors GameRecord in the game_records table.
type GormGameRecord struct {
	gorm.Model
	RoomName string       `gorm:"index;not null"`
	Players  []PlayerInfo `gorm:"serializer:json;type:jsonb;not null"`
}

func (GormGameRecord) TableName() string {
	return "game_records"
}
