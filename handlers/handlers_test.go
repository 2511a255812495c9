package handlers

import (
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/lobby/broadcast"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/persistence"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
)

// recordingConn is a test double for network.Connection that keeps every
// frame sent through it.
type recordingConn struct {
	mutex sync.Mutex
	sent  [][]byte
}

func (c *recordingConn) Send(data []byte) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.sent = append(c.sent, data)
	return nil
}

func (c *recordingConn) Close() error                    { return nil }
func (c *recordingConn) RemoteAddr() net.Addr            { return &net.TCPAddr{} }
func (c *recordingConn) SetWriteTimeout(d time.Duration) {}
func (c *recordingConn) ReadMessage() ([]byte, error)    { return nil, nil }

// received returns the payloads of every sent envelope of the given type.
func (c *recordingConn) received(t *testing.T, msgType string) []json.RawMessage {
	t.Helper()
	c.mutex.Lock()
	defer c.mutex.Unlock()

	var payloads []json.RawMessage
	for _, data := range c.sent {
		var env network.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			t.Fatalf("Sent data is not a valid envelope: %v", err)
		}
		if env.MessageType == msgType {
			payloads = append(payloads, env.Payload)
		}
	}
	return payloads
}

type lobby struct {
	registry *room.Registry
	create   *CreateRoomHandler
	join     *JoinRoomHandler
	start    *StartGameHandler
	leave    *LeaveRoomHandler
}

func newLobby() *lobby {
	registry := room.NewRegistry()
	broadcaster := broadcast.NewRoomBroadcaster(registry)
	archive := services.NewRoomArchive(persistence.NewNop())

	return &lobby{
		registry: registry,
		create:   NewCreateRoomHandler(registry, broadcaster, archive, 32),
		join:     NewJoinRoomHandler(registry, archive),
		start:    NewStartGameHandler(registry, archive, 2),
		leave:    NewLeaveRoomHandler(registry, archive),
	}
}

func newClient(id string) (*session.Session, *recordingConn) {
	conn := &recordingConn{}
	return session.NewSession(id, conn), conn
}

func payload(t *testing.T, v any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}
	return raw
}

func assertKind(t *testing.T, err error, want Kind) {
	t.Helper()
	if err == nil {
		t.Fatal("Expected a domain error, got nil")
	}
	var derr *Error
	if !errors.As(err, &derr) {
		t.Fatalf("Expected a domain error, got %v", err)
	}
	if derr.kind != want {
		t.Errorf("Expected error kind %s, got %s (%v)", want, derr.kind, derr)
	}
}

func TestCreateRoom(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")

	err := l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	if err != nil {
		t.Fatalf("create_room failed: %v", err)
	}

	rm, exists := l.registry.Find("ABC12")
	if !exists {
		t.Fatal("Created room should be registered")
	}
	if rm.State() != room.StateWaiting {
		t.Errorf("New room should be waiting, got %s", rm.State())
	}
	if rm.Host() != host {
		t.Error("Room host should be the creating session")
	}
	if rm.PlayerCount() != 0 {
		t.Errorf("New room should have no players, got %d", rm.PlayerCount())
	}
}

func TestCreateRoom_DuplicateName(t *testing.T) {
	l := newLobby()
	first, _ := newClient("first")
	second, _ := newClient("second")

	if err := l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), first); err != nil {
		t.Fatalf("First create failed: %v", err)
	}

	err := l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), second)
	assertKind(t, err, KindConflict)
	if err.Error() != "room ABC12 already exists" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}

	if l.registry.Count() != 1 {
		t.Errorf("Duplicate create must not add a room, registry has %d", l.registry.Count())
	}
}

func TestCreateRoom_InvalidNames(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")

	for _, name := range []string{"", "has space", "naughty!", strings.Repeat("x", 33)} {
		err := l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: name}), host)
		assertKind(t, err, KindInvalidArgument)
	}

	if l.registry.Count() != 0 {
		t.Errorf("Invalid names must not create rooms, registry has %d", l.registry.Count())
	}
}

func TestJoinRoom_NotFound(t *testing.T) {
	l := newLobby()
	alice, _ := newClient("alice")

	err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ghost", PlayerName: "Alice"}), alice)
	assertKind(t, err, KindNotFound)
	if err.Error() != "room ghost does not exist" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}
}

func TestJoinRoom_BroadcastCompleteness(t *testing.T) {
	l := newLobby()
	host, hostConn := newClient("host")
	alice, aliceConn := newClient("alice")
	bob, bobConn := newClient("bob")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)

	if err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice); err != nil {
		t.Fatalf("Alice join failed: %v", err)
	}
	if got := len(aliceConn.received(t, network.MsgTypeJoinRoom)); got != 1 {
		t.Errorf("Alice should see her own join, got %d notices", got)
	}

	if err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob); err != nil {
		t.Fatalf("Bob join failed: %v", err)
	}

	// Every current member gets exactly one notice per join.
	if got := len(aliceConn.received(t, network.MsgTypeJoinRoom)); got != 2 {
		t.Errorf("Alice should have 2 join notices, got %d", got)
	}
	bobNotices := bobConn.received(t, network.MsgTypeJoinRoom)
	if len(bobNotices) != 1 {
		t.Fatalf("Bob should have 1 join notice, got %d", len(bobNotices))
	}

	var notice network.JoinRoomNotice
	if err := json.Unmarshal(bobNotices[0], &notice); err != nil {
		t.Fatalf("Join notice did not decode: %v", err)
	}
	if notice.RoomName != "ABC12" || notice.PlayerName != "Bob" {
		t.Errorf("Unexpected join notice: %+v", notice)
	}

	// The host never joined as a player, so it gets no membership traffic.
	if got := len(hostConn.received(t, network.MsgTypeJoinRoom)); got != 0 {
		t.Errorf("Non-member host should get no join notices, got %d", got)
	}
}

func TestJoinRoom_DuplicatePlayerName(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, _ := newClient("alice")
	impostor, impostorConn := newClient("impostor")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)

	err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), impostor)
	assertKind(t, err, KindConflict)
	if err.Error() != "player Alice already in room ABC12" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}

	rm, _ := l.registry.Find("ABC12")
	if rm.PlayerCount() != 1 {
		t.Errorf("Rejected join must not change membership, got %d players", rm.PlayerCount())
	}
	if got := len(impostorConn.received(t, network.MsgTypeJoinRoom)); got != 0 {
		t.Errorf("Rejected join must not broadcast, impostor saw %d notices", got)
	}
}

func TestStartGame_Preconditions(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, _ := newClient("alice")
	bob, _ := newClient("bob")

	start := payload(t, network.StartGamePayload{RoomName: "ABC12"})

	assertKind(t, l.start.Handle(start, host), KindNotFound)

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)

	err := l.start.Handle(start, host)
	assertKind(t, err, KindPreconditionFailed)
	if err.Error() != "not enough players to start the game in room ABC12" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}

	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)

	// A member who is not the host may not start.
	assertKind(t, l.start.Handle(start, alice), KindForbidden)

	rm, _ := l.registry.Find("ABC12")
	if rm.State() != room.StateWaiting {
		t.Fatalf("Failed preconditions must not change state, got %s", rm.State())
	}
}

func TestStartGame_SuccessAndStateGating(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, aliceConn := newClient("alice")
	bob, bobConn := newClient("bob")
	carol, _ := newClient("carol")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)

	if err := l.start.Handle(payload(t, network.StartGamePayload{RoomName: "ABC12"}), host); err != nil {
		t.Fatalf("start_game failed: %v", err)
	}

	rm, _ := l.registry.Find("ABC12")
	if rm.State() != room.StateInGame {
		t.Fatalf("Expected in-game state, got %s", rm.State())
	}

	for name, conn := range map[string]*recordingConn{"Alice": aliceConn, "Bob": bobConn} {
		notices := conn.received(t, network.MsgTypeStartGame)
		if len(notices) != 1 {
			t.Fatalf("%s should get exactly one start notice, got %d", name, len(notices))
		}
		var notice network.StartGameNotice
		json.Unmarshal(notices[0], &notice)
		if notice.RoomName != "ABC12" {
			t.Errorf("Unexpected start notice for %s: %+v", name, notice)
		}
	}

	// The room is no longer joinable or startable.
	err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Carol"}), carol)
	assertKind(t, err, KindInvalidState)
	if err.Error() != "room ABC12 is not in waiting state" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}
	assertKind(t, l.start.Handle(payload(t, network.StartGamePayload{RoomName: "ABC12"}), host), KindInvalidState)

	if rm.PlayerCount() != 2 {
		t.Errorf("Gated operations must not mutate membership, got %d players", rm.PlayerCount())
	}
}

func TestRoomIsolation(t *testing.T) {
	l := newLobby()
	hostA, _ := newClient("hostA")
	hostB, _ := newClient("hostB")
	alice, _ := newClient("alice")
	zoe, zoeConn := newClient("zoe")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "roomA"}), hostA)
	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "roomB"}), hostB)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "roomB", PlayerName: "Zoe"}), zoe)

	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "roomA", PlayerName: "Alice"}), alice)

	rmB, _ := l.registry.Find("roomB")
	if rmB.PlayerCount() != 1 || rmB.State() != room.StateWaiting {
		t.Error("Operations on roomA must not mutate roomB")
	}
	if got := len(zoeConn.received(t, network.MsgTypeJoinRoom)); got != 1 {
		t.Errorf("roomB members must not see roomA traffic, Zoe has %d notices", got)
	}
}

func TestLeaveRoom(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, aliceConn := newClient("alice")
	bob, _ := newClient("bob")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)

	if err := l.leave.Handle(payload(t, network.LeaveRoomPayload{RoomName: "ABC12"}), bob); err != nil {
		t.Fatalf("leave_room failed: %v", err)
	}

	rm, _ := l.registry.Find("ABC12")
	if rm.PlayerCount() != 1 || rm.HasPlayer("Bob") {
		t.Error("Bob should be gone from the room")
	}
	if bob.RoomName() != "" {
		t.Error("Leaving should clear the session's room binding")
	}

	leaves := aliceConn.received(t, network.MsgTypeLeaveRoom)
	if len(leaves) != 1 {
		t.Fatalf("Alice should see Bob leave, got %d notices", len(leaves))
	}
	var notice network.LeaveRoomNotice
	json.Unmarshal(leaves[0], &notice)
	if notice.PlayerName != "Bob" || notice.RoomName != "ABC12" {
		t.Errorf("Unexpected leave notice: %+v", notice)
	}

	// A non-member cannot leave.
	stranger, _ := newClient("stranger")
	assertKind(t, l.leave.Handle(payload(t, network.LeaveRoomPayload{RoomName: "ABC12"}), stranger), KindNotFound)

	// The last player out dissolves the room.
	if err := l.leave.Handle(payload(t, network.LeaveRoomPayload{RoomName: "ABC12"}), alice); err != nil {
		t.Fatalf("Alice leave failed: %v", err)
	}
	if _, exists := l.registry.Find("ABC12"); exists {
		t.Error("Empty room should be removed from the registry")
	}
}

func TestLeaveRoom_HostPromotion(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	bob, _ := newClient("bob")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Hosty"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)

	if err := l.leave.Handle(payload(t, network.LeaveRoomPayload{RoomName: "ABC12"}), host); err != nil {
		t.Fatalf("Host leave failed: %v", err)
	}

	rm, _ := l.registry.Find("ABC12")
	if rm.Host() != bob {
		t.Error("Oldest remaining member should be promoted to host")
	}
}

func TestDisconnectCleanup(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, aliceConn := newClient("alice")
	bob, _ := newClient("bob")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)

	l.leave.Disconnect(bob)

	rm, _ := l.registry.Find("ABC12")
	if rm.HasPlayer("Bob") {
		t.Error("Disconnected player should be removed from the room")
	}
	if got := len(aliceConn.received(t, network.MsgTypeLeaveRoom)); got != 1 {
		t.Errorf("Remaining members should see the disconnect as a leave, got %d", got)
	}

	// Disconnecting a session with no room binding is a no-op.
	idle, _ := newClient("idle")
	l.leave.Disconnect(idle)
}

func TestDisconnect_HostOfEmptyRoomDissolvesIt(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "lonely"}), host)
	l.leave.Disconnect(host)

	if _, exists := l.registry.Find("lonely"); exists {
		t.Error("A never-joined room should be dissolved when its host disconnects")
	}
}

// The room can be dissolved between a handler's registry lookup and its
// acquisition of the room's operation lock. The handler must notice and fail
// rather than mutate an unregistered room.

func TestJoinRoom_DissolvedWhileWaitingForRoomLock(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, _ := newClient("alice")
	bob, _ := newClient("bob")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)

	rm, _ := l.registry.Find("ABC12")
	rm.Begin() // stand in for a leave holding the operation lock

	joinErr := make(chan error, 1)
	go func() {
		joinErr <- l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)
	}()

	// Let the join pass the lookup and queue on the lock, then dissolve.
	time.Sleep(20 * time.Millisecond)
	l.registry.Remove("ABC12")
	rm.End()

	err := <-joinErr
	assertKind(t, err, KindNotFound)
	if err.Error() != "room ABC12 does not exist" {
		t.Errorf("Unexpected error text: %q", err.Error())
	}
	if rm.HasPlayer("Bob") {
		t.Error("A join that lost the race must not add a member to the dissolved room")
	}
	if bob.RoomName() != "" {
		t.Error("A rejected join must not bind the session")
	}
}

func TestStartGame_DissolvedWhileWaitingForRoomLock(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, _ := newClient("alice")
	bob, _ := newClient("bob")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob)

	rm, _ := l.registry.Find("ABC12")
	rm.Begin()

	startErr := make(chan error, 1)
	go func() {
		startErr <- l.start.Handle(payload(t, network.StartGamePayload{RoomName: "ABC12"}), host)
	}()

	time.Sleep(20 * time.Millisecond)
	l.registry.Remove("ABC12")
	rm.End()

	assertKind(t, <-startErr, KindNotFound)
	if rm.State() != room.StateWaiting {
		t.Errorf("A start that lost the race must not change state, got %s", rm.State())
	}
}

func TestLeaveRoom_DissolvedWhileWaitingForRoomLock(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, _ := newClient("alice")

	l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host)
	l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice)

	rm, _ := l.registry.Find("ABC12")
	rm.Begin()

	leaveErr := make(chan error, 1)
	go func() {
		leaveErr <- l.leave.Handle(payload(t, network.LeaveRoomPayload{RoomName: "ABC12"}), alice)
	}()

	time.Sleep(20 * time.Millisecond)
	l.registry.Remove("ABC12")
	rm.End()

	assertKind(t, <-leaveErr, KindNotFound)
}

// TestLobbyScenario walks the canonical end-to-end sequence.
func TestLobbyScenario(t *testing.T) {
	l := newLobby()
	host, _ := newClient("host")
	alice, aliceConn := newClient("alice")
	bob, bobConn := newClient("bob")
	carol, _ := newClient("carol")

	if err := l.create.Handle(payload(t, network.CreateRoomPayload{RoomName: "ABC12"}), host); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), alice); err != nil {
		t.Fatalf("Alice join: %v", err)
	}
	if err := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Bob"}), bob); err != nil {
		t.Fatalf("Bob join: %v", err)
	}

	dupJoin := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Alice"}), carol)
	if dupJoin == nil || dupJoin.Error() != "player Alice already in room ABC12" {
		t.Fatalf("Expected duplicate-player error, got %v", dupJoin)
	}

	if err := l.start.Handle(payload(t, network.StartGamePayload{RoomName: "ABC12"}), host); err != nil {
		t.Fatalf("start: %v", err)
	}

	rm, _ := l.registry.Find("ABC12")
	if rm.State() != room.StateInGame {
		t.Fatalf("Expected in-game, got %s", rm.State())
	}
	if len(aliceConn.received(t, network.MsgTypeStartGame)) != 1 || len(bobConn.received(t, network.MsgTypeStartGame)) != 1 {
		t.Error("Both members should receive exactly one start notice")
	}

	lateJoin := l.join.Handle(payload(t, network.JoinRoomPayload{RoomName: "ABC12", PlayerName: "Carol"}), carol)
	if lateJoin == nil || lateJoin.Error() != "room ABC12 is not in waiting state" {
		t.Fatalf("Expected not-waiting error, got %v", lateJoin)
	}
}
