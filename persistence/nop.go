// persistence/nop.go
package persistence

import (
	"github.com/wfunc/lobby/models"
)

// Nop is the Store used when no database is configured.
type Nop struct{}

func NewNop() *Nop {
	return &Nop{}
}

func (n *Nop) SaveRoomSnapshot(snap *models.RoomSnapshot) error {
	return nil
}

func (n *Nop) LoadRoomSnapshot(roomName string) (*models.RoomSnapshot, error) {
	return nil, ErrRecordNotFound
}

func (n *Nop) DeleteRoomSnapshot(roomName string) error {
	return nil
}

func (n *Nop) SaveGameRecord(record *models.GameRecord) error {
	return nil
}

func (n *Nop) CountGames(roomName string) (int64, error) {
	return 0, nil
}

func (n *Nop) Close() error {
	return nil
}
