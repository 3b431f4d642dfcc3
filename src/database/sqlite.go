package database

import (
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/migrator"
	"gorm.io/gorm/schema"
)

// ledgerDialector is the SQLite dialector with fixed-point columns created as
// text. A numeric(p,s) column has NUMERIC affinity in SQLite, which rounds
// anything past 15 significant digits into a REAL.
type ledgerDialector struct {
	sqlite.Dialector
}

func (d ledgerDialector) Migrator(db *gorm.DB) gorm.Migrator {
	return sqlite.Migrator{Migrator: migrator.Migrator{Config: migrator.Config{
		DB:                          db,
		Dialector:                   d,
		CreateIndexAfterCreateTable: true,
	}}}
}

func (d ledgerDialector) DataTypeOf(field *schema.Field) string {
	if isFixedPoint(field.DataType) {
		return "text"
	}
	return d.Dialector.DataTypeOf(field)
}

func isFixedPoint(dataType schema.DataType) bool {
	t := strings.ToLower(string(dataType))
	return strings.HasPrefix(t, "numeric") || strings.HasPrefix(t, "decimal")
}

// openSQLite opens an embedded database. ":memory:" or "" gives a private
// in-memory database. SQLite serializes writers, so a single connection is
// used and bookings never interleave.
func openSQLite(path string, gormConfig *gorm.Config) (*gorm.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	if path == "" || path == ":memory:" {
		dsn = "file::memory:?_pragma=foreign_keys(1)"
	}

	db, err := gorm.Open(ledgerDialector{Dialector: sqlite.Dialector{DSN: dsn}}, gormConfig)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	return db, nil
}
