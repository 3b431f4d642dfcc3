// Package testutil builds the in-memory store the package tests run against.
package testutil

import (
	"context"
	"io"
	"testing"

	"depotbook/src/config"
	"depotbook/src/database"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewLogger returns a logger that discards everything.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// SetupTestDB opens a private, migrated in-memory database that is closed
// when the test ends.
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := &config.Config{}
	cfg.Databases.SQL.Driver = database.DriverSQLite
	cfg.Databases.SQL.Database = ":memory:"

	logger := NewLogger()
	ctx := context.Background()
	db, err := database.SetupDB(ctx, cfg, logger)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	if err := database.Migrate(ctx, db, logger); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	t.Cleanup(func() {
		_ = database.Close(db)
	})
	return db
}
