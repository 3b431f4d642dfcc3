package database

import (
	"context"
	"fmt"

	"depotbook/src/config"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// SetupDB opens the configured store.
func SetupDB(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*gorm.DB, error) {
	level := gormlogger.Warn
	if cfg.Databases.SQL.LogQueries {
		level = gormlogger.Info
	}
	gormConfig := &gorm.Config{
		Logger:         NewGormLogger(logger, level),
		TranslateError: true,
	}

	switch cfg.Databases.SQL.Driver {
	case "", DriverPostgres:
		return openPostgres(ctx, cfg, gormConfig)
	case DriverSQLite:
		return openSQLite(cfg.Databases.SQL.Database, gormConfig)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Databases.SQL.Driver)
	}
}

// Close releases the underlying connections.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// IsPostgres reports whether db talks to PostgreSQL.
func IsPostgres(db *gorm.DB) bool {
	return db.Dialector.Name() == DriverPostgres
}
