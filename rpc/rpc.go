package rpc

import (
	"net"
	"net/rpc"
	"time"

	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/models"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
)

// Server manages the RPC listener for the admin surface.
type Server struct {
	listener net.Listener
	address  string
}

func NewServer(addr string) (*Server, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &Server{
		listener: listener,
		address:  addr,
	}, nil
}

func (s *Server) Start() {
	logger.Log.Infof("RPC server listening on %s", s.address)
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if _, ok := err.(*net.OpError); ok {
				logger.Log.Info("RPC server listener closed.")
				return
			}
			logger.Log.Errorf("RPC server accept error: %v", err)
			continue
		}
		go rpc.ServeConn(conn)
	}
}

func (s *Server) Stop() {
	if s.listener != nil {
		logger.Log.Info("Stopping RPC server.")
		s.listener.Close()
	}
}

// LobbyService exposes registry introspection over net/rpc for operators.
// Rooms no longer in the registry are answered from the archive.
type LobbyService struct {
	registry *room.Registry
	sessions *session.Manager
	archive  *services.RoomArchive
}

func NewLobbyService(registry *room.Registry, sessions *session.Manager, archive *services.RoomArchive) *LobbyService {
	return &LobbyService{
		registry: registry,
		sessions: sessions,
		archive:  archive,
	}
}

type RoomSummary struct {
	Name        string
	State       string
	HostID      string
	Players     []string
	CreatedAt   time.Time
	GamesPlayed int64
}

func (s *LobbyService) summarize(rm *room.Room) RoomSummary {
	summary := RoomSummary{
		Name:        rm.Name(),
		State:       rm.State().String(),
		Players:     rm.PlayerNames(),
		CreatedAt:   rm.CreatedAt(),
		GamesPlayed: s.archive.GamesPlayed(rm.Name()),
	}
	if host := rm.Host(); host != nil {
		summary.HostID = host.GetID()
	}
	return summary
}

func (s *LobbyService) summarizeSnapshot(snap *models.RoomSnapshot) RoomSummary {
	names := make([]string, 0, len(snap.Players))
	for _, p := range snap.Players {
		names = append(names, p.Name)
	}
	return RoomSummary{
		Name:        snap.RoomName,
		State:       snap.State,
		HostID:      snap.HostID,
		Players:     names,
		CreatedAt:   snap.CreatedAt,
		GamesPlayed: s.archive.GamesPlayed(snap.RoomName),
	}
}

type ListRoomsArgs struct{}

type ListRoomsReply struct {
	Rooms    []RoomSummary
	Sessions int
}

func (s *LobbyService) ListRooms(args *ListRoomsArgs, reply *ListRoomsReply) error {
	for _, rm := range s.registry.Rooms() {
		reply.Rooms = append(reply.Rooms, s.summarize(rm))
	}
	reply.Sessions = s.sessions.Count()
	return nil
}

type GetRoomArgs struct {
	Name string
}

type GetRoomReply struct {
	Found    bool
	Archived bool
	Room     RoomSummary
}

func (s *LobbyService) GetRoom(args *GetRoomArgs, reply *GetRoomReply) error {
	if rm, exists := s.registry.Find(args.Name); exists {
		reply.Found = true
		reply.Room = s.summarize(rm)
		return nil
	}

	if snap, ok := s.archive.ArchivedRoom(args.Name); ok {
		reply.Found = true
		reply.Archived = true
		reply.Room = s.summarizeSnapshot(snap)
	}
	return nil
}
