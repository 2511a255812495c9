package main

import (
	"github.com/wfunc/lobby/config"
	"github.com/wfunc/lobby/logger"
	"github.com/wfunc/lobby/monitor"
	"github.com/wfunc/lobby/persistence"
	"github.com/wfunc/lobby/server"
)

func main() {
	logger.Init()
	defer logger.Sync()

	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	var store persistence.Store = persistence.NewNop()
	if cfg.Database.Enabled {
		pg := cfg.Database.Postgres
		store, err = persistence.NewGormPostgreSQL(pg.Host, pg.Port, pg.User, pg.Password, pg.DBName)
		if err != nil {
			logger.Log.Fatalf("Failed to connect to database: %v", err)
		}
		logger.Log.Info("Database connection successful.")
	}
	defer store.Close()

	mon := monitor.NewMonitor("lobby")

	lobbyServer, err := server.NewLobbyServer(cfg, store, mon)
	if err != nil {
		logger.Log.Fatalf("Failed to initialize lobby server: %v", err)
	}

	logger.Log.Infof("Starting lobby server on %s", cfg.Server.HTTPAddress)
	if err := lobbyServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
