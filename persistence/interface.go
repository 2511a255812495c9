// persistence/interface.go
package persistence

import (
	"fmt"

	"github.com/wfunc/lobby/models"
)

// Store archives room snapshots and game records. The lobby is correct
// without any store (rooms live for the process lifetime); a Store is an
// optional mirror, never consulted on the request path.
type Store interface {
	SaveRoomSnapshot(snap *models.RoomSnapshot) error
	LoadRoomSnapshot(roomName string) (*models.RoomSnapshot, error)
	DeleteRoomSnapshot(roomName string) error
	SaveGameRecord(record *models.GameRecord) error
	CountGames(roomName string) (int64, error)
	Close() error
}

var (
	ErrRecordNotFound = fmt.Errorf("record not found")
)
