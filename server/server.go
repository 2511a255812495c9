package server

import (
	"net/http"
	"net/rpc"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/wfunc/lobby/broadcast"
	"github.com/wfunc/lobby/config"
	"github.com/wfunc/lobby/handlers"
	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/monitor"
	"github.com/wfunc/lobby/network"
	"github.com/wfunc/lobby/persistence"
	"github.com/wfunc/lobby/room"
	"github.com/wfunc/lobby/router"
	lobbyrpc "github.com/wfunc/lobby/rpc"
	"github.com/wfunc/lobby/services"
	"github.com/wfunc/lobby/session"
	"github.com/wfunc/lobby/timer"
)

// LobbyServer accepts websocket clients and feeds their messages through the
// router. It owns the wiring: registry, sessions, broadcaster, handlers,
// metrics, timers and the admin RPC listener.
type LobbyServer struct {
	cfg      *config.Config
	upgrader websocket.Upgrader

	registry    *room.Registry
	sessions    *session.Manager
	router      *router.Router
	broadcaster *broadcast.RoomBroadcaster
	leave       *handlers.LeaveRoomHandler
	mon         *monitor.Monitor
	timers      *timer.Manager

	rpcServer    *lobbyrpc.Server
	shutdownChan chan struct{}
}

func NewLobbyServer(cfg *config.Config, store persistence.Store, mon *monitor.Monitor) (*LobbyServer, error) {
	s := &LobbyServer{
		cfg:          cfg,
		registry:     room.NewRegistry(),
		sessions:     session.NewManager(),
		mon:          mon,
		timers:       timer.NewManager(),
		shutdownChan: make(chan struct{}),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // the lobby has no origin policy of its own
			},
		},
	}

	broadcaster := broadcast.NewRoomBroadcaster(s.registry)
	s.broadcaster = broadcaster
	archive := services.NewRoomArchive(store)

	s.leave = handlers.NewLeaveRoomHandler(s.registry, archive)

	s.router = router.New(mon)
	for _, h := range []router.Handler{
		handlers.NewCreateRoomHandler(s.registry, broadcaster, archive, cfg.Lobby.MaxRoomNameLen),
		handlers.NewJoinRoomHandler(s.registry, archive),
		handlers.NewStartGameHandler(s.registry, archive, cfg.Lobby.MinPlayers),
		s.leave,
		handlers.NewHeartbeatHandler(),
	} {
		if err := s.router.Register(h); err != nil {
			return nil, err
		}
	}

	rpcServer, err := lobbyrpc.NewServer(cfg.Server.RPCAddress)
	if err != nil {
		return nil, err
	}
	s.rpcServer = rpcServer

	if err := rpc.Register(lobbyrpc.NewLobbyService(s.registry, s.sessions, archive)); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *LobbyServer) Start() error {
	go s.rpcServer.Start()
	s.mon.StartServer(s.cfg.Server.MetricsAddress)

	if s.cfg.Server.IdleTimeout > 0 {
		interval := s.cfg.Server.IdleTimeout / 2
		s.timers.Add(interval, interval, s.sweepIdleSessions)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)

	logger.Log.Infof("Lobby server listening on %s", s.cfg.Server.HTTPAddress)
	return http.ListenAndServe(s.cfg.Server.HTTPAddress, mux)
}

func (s *LobbyServer) Shutdown() {
	if err := s.broadcaster.BroadcastToAll(network.MsgTypeShutdown, network.ShutdownNotice{
		Message: "server shutting down",
	}); err != nil {
		logger.Log.Warnf("Failed to broadcast shutdown notice: %v", err)
	}

	close(s.shutdownChan)
	s.rpcServer.Stop()
	s.timers.Stop()
}

func (s *LobbyServer) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Log.Infof("Failed to upgrade connection: %v", err)
		return
	}
	s.handleConnection(conn)
}

func (s *LobbyServer) handleConnection(conn *websocket.Conn) {
	wsConn := network.NewWSConnection(conn)
	wsConn.SetWriteTimeout(s.cfg.Lobby.WriteTimeout)

	sess := session.NewSession(uuid.New().String(), wsConn)
	s.sessions.Add(sess)
	s.mon.IncConnectedSessions()

	logger.Log.Infof("New connection from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())

	defer func() {
		logger.Log.Infof("Connection closed from %s, session ID: %s", wsConn.RemoteAddr(), sess.GetID())
		s.leave.Disconnect(sess)
		s.sessions.Remove(sess.GetID())
		s.mon.DecConnectedSessions()
		s.mon.SetActiveRooms(s.registry.Count())
		wsConn.Close()
	}()

	for {
		select {
		case <-s.shutdownChan:
			return
		default:
			data, err := wsConn.ReadMessage()
			if err != nil {
				return
			}
			sess.Touch()
			s.router.Dispatch(data, sess)
			s.mon.SetActiveRooms(s.registry.Count())
		}
	}
}

// sweepIdleSessions closes connections with no traffic inside the idle
// timeout. Closing feeds the read loop's normal disconnect path, so room
// cleanup happens exactly as it would for a dropped client.
func (s *LobbyServer) sweepIdleSessions() {
	for _, sess := range s.sessions.IdleSessions(s.cfg.Server.IdleTimeout) {
		logger.Log.Infof("Closing idle session %s (last active %s)", sess.GetID(), sess.LastActive().Format(time.RFC3339))
		sess.Close()
	}
}
