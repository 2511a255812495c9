// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/wfunc/lobby/models"
)

// PostgreSQL is a plain database/sql Store implementation, for deployments
// that prefer explicit SQL over GORM.
type PostgreSQL struct {
	db *sql.DB
}

func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

func initTables(db *sql.DB) error {
	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS room_snapshots (
            id SERIAL PRIMARY KEY,
            room_name TEXT UNIQUE NOT NULL,
            state TEXT NOT NULL,
            host_id TEXT NOT NULL,
            players JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`
        CREATE TABLE IF NOT EXISTS game_records (
            id SERIAL PRIMARY KEY,
            room_name TEXT NOT NULL,
            players JSONB NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        )`)
	if err != nil {
		return err
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS idx_game_records_room ON game_records (room_name)`)
	return err
}

func (p *PostgreSQL) SaveRoomSnapshot(snap *models.RoomSnapshot) error {
	players, err := json.Marshal(snap.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO room_snapshots (room_name, state, host_id, players)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (room_name) DO UPDATE
        SET state = $2, host_id = $3, players = $4, updated_at = CURRENT_TIMESTAMP`,
		snap.RoomName, snap.State, snap.HostID, players)
	return err
}

func (p *PostgreSQL) LoadRoomSnapshot(roomName string) (*models.RoomSnapshot, error) {
	var (
		snap    models.RoomSnapshot
		players []byte
	)
	err := p.db.QueryRow(`
        SELECT room_name, state, host_id, players, created_at, updated_at
        FROM room_snapshots WHERE room_name = $1`, roomName).
		Scan(&snap.RoomName, &snap.State, &snap.HostID, &players, &snap.CreatedAt, &snap.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(players, &snap.Players); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (p *PostgreSQL) DeleteRoomSnapshot(roomName string) error {
	_, err := p.db.Exec(`DELETE FROM room_snapshots WHERE room_name = $1`, roomName)
	return err
}

func (p *PostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	players, err := json.Marshal(record.Players)
	if err != nil {
		return err
	}

	_, err = p.db.Exec(`
        INSERT INTO game_records (room_name, players) VALUES ($1, $2)`,
		record.RoomName, players)
	return err
}

func (p *PostgreSQL) CountGames(roomName string) (int64, error) {
	var count int64
	err := p.db.QueryRow(`SELECT COUNT(*) FROM game_records WHERE room_name = $1`, roomName).Scan(&count)
	return count, err
}

func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
