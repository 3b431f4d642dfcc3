package repositories

import (
	"context"

	"depotbook/src/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TradeRepository interface {
	Create(ctx context.Context, t *models.Trade, tx *gorm.DB) error
	LockKey(ctx context.Context, key models.LotKey, tx *gorm.DB) error
	GetOpenLots(ctx context.Context, key models.LotKey, tx *gorm.DB) ([]models.Trade, error)
	UpdateQtyAllotted(ctx context.Context, tradeID uint, qty decimal.Decimal, tx *gorm.DB) error
	CreateAllotment(ctx context.Context, a *models.TradeAllotment, tx *gorm.DB) error
	ListByKey(ctx context.Context, key models.LotKey, tx *gorm.DB) ([]models.Trade, error)
	ListByDepots(ctx context.Context, depotIDs []uint) ([]models.Trade, error)
	ListAllotments(ctx context.Context, sellTradeID uint) ([]models.TradeAllotment, error)
}

type tradeRepo struct {
	db *gorm.DB
}

func NewTradeRepository(db *gorm.DB) TradeRepository {
	return &tradeRepo{db: db}
}

func (r *tradeRepo) Create(ctx context.Context, t *models.Trade, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Create(t).Error
}

// LockKey serializes transactions working on the same lots. It takes a
// transaction scoped advisory lock on PostgreSQL and is a no-op elsewhere.
func (r *tradeRepo) LockKey(ctx context.Context, key models.LotKey, tx *gorm.DB) error {
	if tx == nil || !isPostgres(tx) {
		return nil
	}
	return tx.WithContext(ctx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key.String()).Error
}

// GetOpenLots returns the trades of key that still hold unconsumed quantity,
// oldest value date first and by id within a day. Rows are locked for update
// when running inside a PostgreSQL transaction.
func (r *tradeRepo) GetOpenLots(ctx context.Context, key models.LotKey, tx *gorm.DB) ([]models.Trade, error) {
	q := conn(ctx, r.db, tx).
		Where("depot_id = ? AND instrument_id = ? AND currency = ? AND qty_allotted > 0",
			key.DepotID, key.InstrumentID, key.Currency).
		Order("valuedate ASC").
		Order("id ASC")
	if tx != nil && isPostgres(tx) {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}

	var lots []models.Trade
	err := q.Find(&lots).Error
	return lots, err
}

func (r *tradeRepo) UpdateQtyAllotted(ctx context.Context, tradeID uint, qty decimal.Decimal, tx *gorm.DB) error {
	result := conn(ctx, r.db, tx).
		Model(&models.Trade{}).
		Where("id = ?", tradeID).
		Update("qty_allotted", qty)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected != 1 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *tradeRepo) CreateAllotment(ctx context.Context, a *models.TradeAllotment, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Create(a).Error
}

func (r *tradeRepo) ListByKey(ctx context.Context, key models.LotKey, tx *gorm.DB) ([]models.Trade, error) {
	var trades []models.Trade
	err := conn(ctx, r.db, tx).
		Where("depot_id = ? AND instrument_id = ? AND currency = ?",
			key.DepotID, key.InstrumentID, key.Currency).
		Order("valuedate ASC").
		Order("id ASC").
		Find(&trades).Error
	return trades, err
}

func (r *tradeRepo) ListByDepots(ctx context.Context, depotIDs []uint) ([]models.Trade, error) {
	var trades []models.Trade
	if len(depotIDs) == 0 {
		return trades, nil
	}
	err := r.db.WithContext(ctx).
		Where("depot_id IN ?", depotIDs).
		Order("valuedate ASC").
		Order("id ASC").
		Find(&trades).Error
	return trades, err
}

func (r *tradeRepo) ListAllotments(ctx context.Context, sellTradeID uint) ([]models.TradeAllotment, error) {
	var allotments []models.TradeAllotment
	err := r.db.WithContext(ctx).
		Where("sell_trade_id = ?", sellTradeID).
		Order("id ASC").
		Find(&allotments).Error
	return allotments, err
}
