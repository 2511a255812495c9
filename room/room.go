// room/room.go
package room

import (
	"sync"
	"time"

	"github.com/wfunc/lobby/session"
)

// State is the lifecycle state of a room. Transitions only move forward:
// Waiting -> InGame -> Finished.
type State int

const (
	StateWaiting State = iota
	StateInGame
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateInGame:
		return "in-game"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Player is one member of a room. The session back-reference is non-owning;
// the transport layer controls the connection's lifetime.
type Player struct {
	Name    string
	Session *session.Session
}

// Room is a named lobby session: an ordered player list, the host session
// that created it, and a lifecycle state.
//
// Room is a state container, not a gatekeeper: it performs no business
// validation. Handlers own every precondition and hold the operation lock
// (Begin/End) so a check-then-mutate sequence is atomic with respect to other
// operations on the same room. Plain accessors stay individually safe for
// readers that do not hold the operation lock (broadcast, rpc, metrics).
type Room struct {
	name      string
	host      *session.Session
	createdAt time.Time

	broadcaster Broadcaster

	opMutex     sync.Mutex
	stateMutex  sync.RWMutex
	playerMutex sync.RWMutex
	state       State
	players     []Player
}

func NewRoom(name string, host *session.Session, broadcaster Broadcaster) *Room {
	return &Room{
		name:        name,
		host:        host,
		createdAt:   time.Now(),
		broadcaster: broadcaster,
		state:       StateWaiting,
	}
}

func (r *Room) Name() string {
	return r.name
}

func (r *Room) CreatedAt() time.Time {
	return r.createdAt
}

// Begin acquires the room's operation lock. One handler's precondition checks
// and mutations run as a single step relative to other operations on this
// room; operations on different rooms never contend.
func (r *Room) Begin() {
	r.opMutex.Lock()
}

func (r *Room) End() {
	r.opMutex.Unlock()
}

func (r *Room) Host() *session.Session {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	return r.host
}

// SetHost reassigns the host session. Only the leave/disconnect flow uses
// this, to promote the oldest remaining member.
func (r *Room) SetHost(host *session.Session) {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()
	r.host = host
}

func (r *Room) State() State {
	r.stateMutex.RLock()
	defer r.stateMutex.RUnlock()
	return r.state
}

// SetState records the new lifecycle state. Legality of the transition is a
// handler-level precondition, not enforced here.
func (r *Room) SetState(state State) {
	r.stateMutex.Lock()
	defer r.stateMutex.Unlock()
	r.state = state
}

// AddPlayer appends to the player list, preserving join order. The caller has
// already checked state and name uniqueness.
func (r *Room) AddPlayer(p Player) {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()
	r.players = append(r.players, p)
}

// RemovePlayer removes the named player, keeping the order of the rest.
// It reports whether the player was present.
func (r *Room) RemovePlayer(name string) bool {
	r.playerMutex.Lock()
	defer r.playerMutex.Unlock()

	for i, p := range r.players {
		if p.Name == name {
			r.players = append(r.players[:i], r.players[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Room) HasPlayer(name string) bool {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	for _, p := range r.players {
		if p.Name == name {
			return true
		}
	}
	return false
}

func (r *Room) PlayerCount() int {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()
	return len(r.players)
}

// Players returns a snapshot of the player list in join order.
func (r *Room) Players() []Player {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	players := make([]Player, len(r.players))
	copy(players, r.players)
	return players
}

// PlayerNames returns the player names in join order.
func (r *Room) PlayerNames() []string {
	r.playerMutex.RLock()
	defer r.playerMutex.RUnlock()

	names := make([]string, 0, len(r.players))
	for _, p := range r.players {
		names = append(names, p.Name)
	}
	return names
}

// Broadcast sends a message to every member of the room, best effort.
func (r *Room) Broadcast(msgType string, payload any) error {
	return r.broadcaster.BroadcastToRoom(r.name, msgType, payload)
}
