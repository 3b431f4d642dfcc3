package repositories

import (
	"context"

	"depotbook/src/models"

	"gorm.io/gorm"
)

// LedgerRepository stores the cash side of bookings: trade payments and cashflows.
type LedgerRepository interface {
	CreatePayment(ctx context.Context, p *models.Payment, tx *gorm.DB) error
	ListPayments(ctx context.Context, tradeID uint) ([]models.Payment, error)
	CreateCashflow(ctx context.Context, c *models.Cashflow, tx *gorm.DB) error
	ListCashflows(ctx context.Context, depotIDs []uint) ([]models.Cashflow, error)
}

type ledgerRepo struct {
	db *gorm.DB
}

func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepo{db: db}
}

func (r *ledgerRepo) CreatePayment(ctx context.Context, p *models.Payment, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Create(p).Error
}

func (r *ledgerRepo) ListPayments(ctx context.Context, tradeID uint) ([]models.Payment, error) {
	var payments []models.Payment
	err := r.db.WithContext(ctx).
		Where("trade_id = ?", tradeID).
		Order("id ASC").
		Find(&payments).Error
	return payments, err
}

func (r *ledgerRepo) CreateCashflow(ctx context.Context, c *models.Cashflow, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Create(c).Error
}

func (r *ledgerRepo) ListCashflows(ctx context.Context, depotIDs []uint) ([]models.Cashflow, error) {
	var cashflows []models.Cashflow
	if len(depotIDs) == 0 {
		return cashflows, nil
	}
	err := r.db.WithContext(ctx).
		Where("depot_id IN ?", depotIDs).
		Order("valuedate ASC").
		Order("id ASC").
		Find(&cashflows).Error
	return cashflows, err
}
