package repositories

import (
	"context"
	"time"

	"depotbook/src/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const stagingInsertBatch = 500

type PriceRepository interface {
	AppendStaging(ctx context.Context, rows []models.PriceStaging) error
	ListStaging(ctx context.Context, limit int) ([]models.PriceStaging, error)
	DeleteStaging(ctx context.Context, ids []uint, tx *gorm.DB) error
	UpsertPrices(ctx context.Context, prices []models.Price, tx *gorm.DB) error
	ListPrices(ctx context.Context, symbolID uint, from, to time.Time) ([]models.Price, error)
	LastCloseBefore(ctx context.Context, symbolID uint, date time.Time, tx *gorm.DB) (*models.Price, error)
	UpsertCorporateAction(ctx context.Context, a *models.CorporateAction, tx *gorm.DB) error
	ListCorporateActions(ctx context.Context, symbolID uint, after, upTo time.Time) ([]models.CorporateAction, error)
	ListSymbolActions(ctx context.Context, symbolID uint, tx *gorm.DB) ([]models.CorporateAction, error)
	UpdateActionFactor(ctx context.Context, id uint, factor float64, tx *gorm.DB) error
}

type priceRepo struct {
	db *gorm.DB
}

func NewPriceRepository(db *gorm.DB) PriceRepository {
	return &priceRepo{db: db}
}

func (r *priceRepo) AppendStaging(ctx context.Context, rows []models.PriceStaging) error {
	if len(rows) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).CreateInBatches(rows, stagingInsertBatch).Error
}

// ListStaging returns the oldest staged rows first.
func (r *priceRepo) ListStaging(ctx context.Context, limit int) ([]models.PriceStaging, error) {
	var rows []models.PriceStaging
	err := r.db.WithContext(ctx).Order("id ASC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *priceRepo) DeleteStaging(ctx context.Context, ids []uint, tx *gorm.DB) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db, tx).Where("id IN ?", ids).Delete(&models.PriceStaging{}).Error
}

// UpsertPrices writes prices, replacing existing rows for the same (symbol, date).
func (r *priceRepo) UpsertPrices(ctx context.Context, prices []models.Price, tx *gorm.DB) error {
	if len(prices) == 0 {
		return nil
	}
	return conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"open", "high", "low", "close", "volume"}),
	}).CreateInBatches(prices, stagingInsertBatch).Error
}

func (r *priceRepo) ListPrices(ctx context.Context, symbolID uint, from, to time.Time) ([]models.Price, error) {
	var prices []models.Price
	err := r.db.WithContext(ctx).
		Where("symbol_id = ? AND date >= ? AND date <= ?", symbolID, from, to).
		Order("date ASC").
		Find(&prices).Error
	return prices, err
}

func (r *priceRepo) LastCloseBefore(ctx context.Context, symbolID uint, date time.Time, tx *gorm.DB) (*models.Price, error) {
	var p models.Price
	err := conn(ctx, r.db, tx).
		Where("symbol_id = ? AND date < ?", symbolID, date).
		Order("date DESC").
		First(&p).Error
	return notFoundAsNil(&p, err)
}

func (r *priceRepo) UpsertCorporateAction(ctx context.Context, a *models.CorporateAction, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "symbol_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"dividend", "split_ratio", "factor"}),
	}).Create(a).Error
}

// ListCorporateActions returns the actions dated in (after, upTo], oldest first.
func (r *priceRepo) ListCorporateActions(ctx context.Context, symbolID uint, after, upTo time.Time) ([]models.CorporateAction, error) {
	var actions []models.CorporateAction
	err := r.db.WithContext(ctx).
		Where("symbol_id = ? AND date > ? AND date <= ?", symbolID, after, upTo).
		Order("date ASC").
		Find(&actions).Error
	return actions, err
}

func (r *priceRepo) ListSymbolActions(ctx context.Context, symbolID uint, tx *gorm.DB) ([]models.CorporateAction, error) {
	var actions []models.CorporateAction
	err := conn(ctx, r.db, tx).
		Where("symbol_id = ?", symbolID).
		Order("date ASC").
		Find(&actions).Error
	return actions, err
}

func (r *priceRepo) UpdateActionFactor(ctx context.Context, id uint, factor float64, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).
		Model(&models.CorporateAction{}).
		Where("id = ?", id).
		Update("factor", factor).Error
}
