package repositories

import (
	"context"
	"time"

	"depotbook/src/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PositionRepository interface {
	Upsert(ctx context.Context, p *models.Position, tx *gorm.DB) error
	SyncLater(ctx context.Context, p *models.Position, tx *gorm.DB) error
	ListAsOf(ctx context.Context, depotIDs []uint, asOf time.Time) ([]models.Position, error)
}

type positionRepo struct {
	db *gorm.DB
}

func NewPositionRepository(db *gorm.DB) PositionRepository {
	return &positionRepo{db: db}
}

// Upsert overwrites the snapshot for (depot, instrument, valuedate, currency).
func (r *positionRepo) Upsert(ctx context.Context, p *models.Position, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "depot_id"},
			{Name: "instrument_id"},
			{Name: "valuedate"},
			{Name: "currency"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"qty", "vol", "updated_at"}),
	}).Create(p).Error
}

// SyncLater copies the quantities of p onto every snapshot of its key dated
// after p.Valuedate.
func (r *positionRepo) SyncLater(ctx context.Context, p *models.Position, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).
		Model(&models.Position{}).
		Where("depot_id = ? AND instrument_id = ? AND currency = ? AND valuedate > ?",
			p.DepotID, p.InstrumentID, p.Currency, p.Valuedate).
		Updates(map[string]interface{}{"qty": p.Qty, "vol": p.Vol}).Error
}

// ListAsOf returns, per (depot, instrument, currency), the latest snapshot
// dated on or before asOf.
func (r *positionRepo) ListAsOf(ctx context.Context, depotIDs []uint, asOf time.Time) ([]models.Position, error) {
	var positions []models.Position
	if len(depotIDs) == 0 {
		return positions, nil
	}
	err := r.db.WithContext(ctx).
		Where("depot_id IN ? AND valuedate <= ?", depotIDs, asOf).
		Where(`valuedate = (
			SELECT MAX(latest.valuedate) FROM positions latest
			WHERE latest.depot_id = positions.depot_id
			AND latest.instrument_id = positions.instrument_id
			AND latest.currency = positions.currency
			AND latest.valuedate <= ?)`, asOf).
		Order("depot_id ASC").
		Order("instrument_id ASC").
		Order("currency ASC").
		Find(&positions).Error
	return positions, err
}
