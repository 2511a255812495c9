// session/session.go
package session

import (
	"sync"
	"time"

	"github.com/wfunc/lobby/network"
)

// Session is the server-side handle for one connected client. The transport
// layer owns the underlying connection's lifecycle; a session only borrows it.
type Session struct {
	ID        string
	Conn      network.Connection
	CreatedAt time.Time

	mutex      sync.RWMutex
	roomName   string
	playerName string
	lastActive time.Time
	data       map[string]interface{}
}

func NewSession(id string, conn network.Connection) *Session {
	now := time.Now()
	return &Session{
		ID:         id,
		Conn:       conn,
		CreatedAt:  now,
		lastActive: now,
		data:       make(map[string]interface{}),
	}
}

func (s *Session) GetID() string {
	return s.ID
}

// SendMessage wraps the payload in an envelope and writes it to the connection.
func (s *Session) SendMessage(msgType string, payload any) error {
	data, err := network.Encode(msgType, payload)
	if err != nil {
		return err
	}
	return s.Conn.Send(data)
}

// BindRoom records which room and player name this session acts as.
func (s *Session) BindRoom(roomName, playerName string) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomName = roomName
	s.playerName = playerName
}

func (s *Session) UnbindRoom() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.roomName = ""
	s.playerName = ""
}

func (s *Session) RoomName() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.roomName
}

func (s *Session) PlayerName() string {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.playerName
}

// Touch refreshes the activity timestamp used by the idle sweep.
func (s *Session) Touch() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.lastActive = time.Now()
}

func (s *Session) LastActive() time.Time {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.lastActive
}

func (s *Session) Set(key string, value interface{}) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.data[key] = value
}

func (s *Session) Get(key string) interface{} {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.data[key]
}

func (s *Session) Close() error {
	return s.Conn.Close()
}

// Manager tracks all live sessions by ID.
type Manager struct {
	sessions map[string]*Session
	mutex    sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
	}
}

func (m *Manager) Add(session *Session) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.sessions[session.ID] = session
}

func (m *Manager) Remove(sessionID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.sessions, sessionID)
}

func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	session, exists := m.sessions[sessionID]
	return session, exists
}

func (m *Manager) Count() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.sessions)
}

// Sessions returns a snapshot slice of all live sessions.
func (m *Manager) Sessions() []*Session {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	result := make([]*Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		result = append(result, session)
	}
	return result
}

// IdleSessions returns sessions whose last activity is older than timeout.
func (m *Manager) IdleSessions(timeout time.Duration) []*Session {
	cutoff := time.Now().Add(-timeout)

	m.mutex.RLock()
	defer m.mutex.RUnlock()

	var result []*Session
	for _, session := range m.sessions {
		if session.LastActive().Before(cutoff) {
			result = append(result, session)
		}
	}
	return result
}
