// services/archive.go
package services

import (
	"errors"
	"time"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/models"
	"github.com/wfunc/lobby/persistence"
	"github.com/wfunc/lobby/room"
)

// RoomArchive mirrors room state into the configured store. It runs off the
// request path's critical section and its failures are logged, never surfaced
// to clients: the in-memory registry stays the source of truth.
type RoomArchive struct {
	store persistence.Store
}

func NewRoomArchive(store persistence.Store) *RoomArchive {
	return &RoomArchive{store: store}
}

// SnapshotRoom persists the room's current membership and state.
func (a *RoomArchive) SnapshotRoom(rm *room.Room) {
	if a == nil {
		return
	}

	snap := &models.RoomSnapshot{
		RoomName:  rm.Name(),
		State:     rm.State().String(),
		CreatedAt: rm.CreatedAt(),
		UpdatedAt: time.Now(),
	}
	if host := rm.Host(); host != nil {
		snap.HostID = host.GetID()
	}
	for _, p := range rm.Players() {
		snap.Players = append(snap.Players, models.PlayerInfo{
			Name:      p.Name,
			SessionID: p.Session.GetID(),
		})
	}

	if err := a.store.SaveRoomSnapshot(snap); err != nil {
		logger.Log.Errorf("Failed to archive snapshot of room %s: %v", rm.Name(), err)
	}
}

// DropRoom removes the archived snapshot of a dissolved room.
func (a *RoomArchive) DropRoom(roomName string) {
	if a == nil {
		return
	}
	if err := a.store.DeleteRoomSnapshot(roomName); err != nil {
		logger.Log.Errorf("Failed to drop archived room %s: %v", roomName, err)
	}
}

// RecordGameStart writes a game record for a room entering the in-game state.
func (a *RoomArchive) RecordGameStart(rm *room.Room) {
	if a == nil {
		return
	}

	record := &models.GameRecord{
		RoomName:  rm.Name(),
		StartedAt: time.Now(),
	}
	for _, p := range rm.Players() {
		record.Players = append(record.Players, models.PlayerInfo{
			Name:      p.Name,
			SessionID: p.Session.GetID(),
		})
	}

	if err := a.store.SaveGameRecord(record); err != nil {
		logger.Log.Errorf("Failed to record game start for room %s: %v", rm.Name(), err)
	}
}

// ArchivedRoom loads the stored snapshot of a room, typically one that no
// longer lives in the registry.
func (a *RoomArchive) ArchivedRoom(roomName string) (*models.RoomSnapshot, bool) {
	if a == nil {
		return nil, false
	}
	snap, err := a.store.LoadRoomSnapshot(roomName)
	if err != nil {
		if !errors.Is(err, persistence.ErrRecordNotFound) {
			logger.Log.Errorf("Failed to load archived room %s: %v", roomName, err)
		}
		return nil, false
	}
	return snap, true
}

// GamesPlayed reports how many games a room of this name has started.
func (a *RoomArchive) GamesPlayed(roomName string) int64 {
	if a == nil {
		return 0
	}
	count, err := a.store.CountGames(roomName)
	if err != nil {
		logger.Log.Errorf("Failed to count games for room %s: %v", roomName, err)
		return 0
	}
	return count
}
