// room/registry.go
package room

import (
	"sync"
)

// Registry is the process-wide lookup of rooms by name. It is a dumb store:
// the "already exists" rule lives in the create handler, which checks Find
// before Add so the error message can be contextual.
type Registry struct {
	rooms map[string]*Room
	mutex sync.RWMutex
}

func NewRegistry() *Registry {
	return &Registry{
		rooms: make(map[string]*Room),
	}
}

func (g *Registry) Find(name string) (*Room, bool) {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	room, exists := g.rooms[name]
	return room, exists
}

func (g *Registry) Add(room *Room) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	g.rooms[room.Name()] = room
}

// Remove drops a room from the registry. Only the leave/disconnect flow uses
// this, when the last member of a room is gone.
func (g *Registry) Remove(name string) {
	g.mutex.Lock()
	defer g.mutex.Unlock()
	delete(g.rooms, name)
}

func (g *Registry) Count() int {
	g.mutex.RLock()
	defer g.mutex.RUnlock()
	return len(g.rooms)
}

// Rooms returns a snapshot slice of all registered rooms.
func (g *Registry) Rooms() []*Room {
	g.mutex.RLock()
	defer g.mutex.RUnlock()

	result := make([]*Room, 0, len(g.rooms))
	for _, room := range g.rooms {
		result = append(result, room)
	}
	return result
}
