package database

import (
	"fmt"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/Varietyz/banes-lab-bot/internal/config"
	"github.com/Varietyz/banes-lab-bot/internal/models"
)

const applicationName = "banes-lab-relay"

// Connect opens the configured database and optionally runs auto-migration.
func Connect(cfg *config.AppConfig, autoMigrate bool) (*gorm.DB, error) {
	db, err := Open(cfg.Database, resolveLogLevel(cfg))
	if err != nil {
		return nil, err
	}

	if autoMigrate {
		if err := Migrate(db); err != nil {
			return nil, fmt.Errorf("migration failed: %w", err)
		}
	}
	return db, nil
}

func resolveLogLevel(cfg *config.AppConfig) logger.LogLevel {
	if cfg.IsDev() {
		return logger.Info
	}
	return logger.Warn
}

// Open returns a gorm handle for the given driver without migrating.
func Open(cfg config.DatabaseRuntimeConfig, logLevel logger.LogLevel) (*gorm.DB, error) {
	var dialector gorm.Dialector
	dsn := cfg.DSNValue()
	switch cfg.Driver {
	case config.DriverPostgres:
		pgCfg, err := pgx.ParseConfig(dsn)
		if err != nil {
			return nil, fmt.Errorf("parse postgres dsn: %w", err)
		}
		if _, ok := pgCfg.RuntimeParams["application_name"]; !ok {
			pgCfg.RuntimeParams["application_name"] = applicationName
		}
		dialector = postgres.New(postgres.Config{Conn: stdlib.OpenDB(*pgCfg)})
	case config.DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		dialector = mysql.New(mysql.Config{
			DSN:               dsn,
			DefaultStringSize: 191,
		})
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("database connection failed (%s): %w", cfg.Driver, err)
	}

	// sqlite serialises writers; a single connection avoids SQLITE_BUSY.
	if cfg.Driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("resolve sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return db, nil
}

// Migrate runs GORM auto-migration for all models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Identity{},
		&models.Session{},
		&models.ChannelBinding{},
		&models.DiskReport{},
	)
}
