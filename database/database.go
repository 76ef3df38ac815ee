// database/database.go
package database

import (
	"database/sql"
	"fmt"
	"log"
	"time"

	"activity-reward-system/config"
	"activity-reward-system/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Open connects to the configured database. SQLite goes through the pure-Go modernc driver.
func Open(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	gormCfg := &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Warn),
		NowFunc: func() time.Time { return time.Now().UTC() },
	}

	switch cfg.DatabaseDriver {
	case config.DriverSQLite:
		return OpenSQLite(cfg.DatabaseURL, gormCfg)
	default:
		db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), gormCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return db, nil
	}
}

// OpenSQLite wraps a modernc connection in the gorm sqlite dialector.
// SQLite allows a single writer, so the pool is pinned to one connection.
func OpenSQLite(dsn string, gormCfg *gorm.Config) (*gorm.DB, error) {
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	conn.SetMaxOpenConns(1)

	db, err := gorm.Open(sqlite.Dialector{DriverName: "sqlite", DSN: dsn, Conn: conn}, gormCfg)
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to connect to sqlite: %w", err)
	}
	return db, nil
}

// Migrate creates or updates every table the engine owns.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.ActivityRun{},
		&models.ActivitySession{},
		&models.LocationSlot{},
		&models.PlayerFeed{},
		&models.SessionReward{},
		&models.Trainer{},
		&models.TrainerItem{},
		&models.OwnedMonster{},
		&models.Species{},
		&models.CatalogItem{},
	); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Println("✅ Database migrated")
	return nil
}
