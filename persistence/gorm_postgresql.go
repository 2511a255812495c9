// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/lobby/models"
)

// GormPostgreSQL is the GORM-backed Store implementation.
type GormPostgreSQL struct {
	db *gorm.DB
}

func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&models.GormRoomSnapshot{}, &models.GormGameRecord{}); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

// SaveRoomSnapshot upserts the snapshot keyed by room name.
func (p *GormPostgreSQL) SaveRoomSnapshot(snap *models.RoomSnapshot) error {
	var row models.GormRoomSnapshot
	result := p.db.Where("room_name = ?", snap.RoomName).First(&row)

	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		row = models.GormRoomSnapshot{
			RoomName: snap.RoomName,
			State:    snap.State,
			HostID:   snap.HostID,
			Players:  snap.Players,
		}
		return p.db.Create(&row).Error
	} else if result.Error != nil {
		return result.Error
	}

	row.State = snap.State
	row.HostID = snap.HostID
	row.Players = snap.Players
	return p.db.Save(&row).Error
}

func (p *GormPostgreSQL) LoadRoomSnapshot(roomName string) (*models.RoomSnapshot, error) {
	var row models.GormRoomSnapshot
	if err := p.db.Where("room_name = ?", roomName).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}

	return &models.RoomSnapshot{
		RoomName:  row.RoomName,
		State:     row.State,
		HostID:    row.HostID,
		Players:   row.Players,
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}, nil
}

func (p *GormPostgreSQL) DeleteRoomSnapshot(roomName string) error {
	return p.db.Where("room_name = ?", roomName).Delete(&models.GormRoomSnapshot{}).Error
}

func (p *GormPostgreSQL) SaveGameRecord(record *models.GameRecord) error {
	row := models.GormGameRecord{
		RoomName: record.RoomName,
		Players:  record.Players,
	}
	return p.db.Create(&row).Error
}

func (p *GormPostgreSQL) CountGames(roomName string) (int64, error) {
	var count int64
	err := p.db.Model(&models.GormGameRecord{}).Where("room_name = ?", roomName).Count(&count).Error
	return count, err
}

// Transaction runs fn inside a database transaction.
func (p *GormPostgreSQL) Transaction(fn func(tx *gorm.DB) error) error {
	return p.db.Transaction(fn)
}

func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
