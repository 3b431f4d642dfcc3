package database

import (
	"context"
	"embed"

	"depotbook/src/models"

	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Models lists every table owned by the service, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Depot{},
		&models.Permission{},
		&models.Instrument{},
		&models.Market{},
		&models.Vendor{},
		&models.Symbol{},
		&models.Trade{},
		&models.TradeAllotment{},
		&models.Payment{},
		&models.Cashflow{},
		&models.Position{},
		&models.PriceStaging{},
		&models.Price{},
		&models.CorporateAction{},
	}
}

// Migrate brings the schema up to date. PostgreSQL runs the versioned goose
// migrations; SQLite is created from the models.
func Migrate(ctx context.Context, db *gorm.DB, logger *logrus.Logger) error {
	if !IsPostgres(db) {
		return db.WithContext(ctx).AutoMigrate(Models()...)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	goose.SetBaseFS(migrationsFS)
	goose.SetLogger(logger)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, "migrations")
}
