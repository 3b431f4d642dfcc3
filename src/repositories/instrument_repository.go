package repositories

import (
	"context"

	"depotbook/src/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type InstrumentRepository interface {
	GetByISIN(ctx context.Context, isin string, tx *gorm.DB) (*models.Instrument, error)
	GetByID(ctx context.Context, id uint, tx *gorm.DB) (*models.Instrument, error)
	CreateIfAbsent(ctx context.Context, inst *models.Instrument, tx *gorm.DB) error
	GetOrCreateMarket(ctx context.Context, name string, tx *gorm.DB) (*models.Market, error)
	GetOrCreateVendor(ctx context.Context, name string, tx *gorm.DB) (*models.Vendor, error)
	GetSymbolByListing(ctx context.Context, listing models.Symbol, tx *gorm.DB) (*models.Symbol, error)
	GetSymbolByTicker(ctx context.Context, vendor, symbol string, tx *gorm.DB) (*models.Symbol, error)
	SaveSymbol(ctx context.Context, s *models.Symbol, tx *gorm.DB) error
}

type instrumentRepo struct {
	db *gorm.DB
}

func NewInstrumentRepository(db *gorm.DB) InstrumentRepository {
	return &instrumentRepo{db: db}
}

func (r *instrumentRepo) GetByISIN(ctx context.Context, isin string, tx *gorm.DB) (*models.Instrument, error) {
	var inst models.Instrument
	err := conn(ctx, r.db, tx).Where("isin = ?", isin).First(&inst).Error
	return notFoundAsNil(&inst, err)
}

func (r *instrumentRepo) GetByID(ctx context.Context, id uint, tx *gorm.DB) (*models.Instrument, error) {
	var inst models.Instrument
	err := conn(ctx, r.db, tx).First(&inst, id).Error
	return notFoundAsNil(&inst, err)
}

// CreateIfAbsent inserts inst unless its ISIN is already known, and fills inst
// with the stored row either way. Concurrent creators end up with the same row.
func (r *instrumentRepo) CreateIfAbsent(ctx context.Context, inst *models.Instrument, tx *gorm.DB) error {
	db := conn(ctx, r.db, tx)
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "isin"}},
		DoNothing: true,
	}).Create(inst)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		isin := inst.ISIN
		*inst = models.Instrument{}
		return db.Where("isin = ?", isin).First(inst).Error
	}
	return nil
}

func (r *instrumentRepo) GetOrCreateMarket(ctx context.Context, name string, tx *gorm.DB) (*models.Market, error) {
	market := models.Market{Name: name}
	err := getOrCreateByName(conn(ctx, r.db, tx), &market, name)
	if err != nil {
		return nil, err
	}
	return &market, nil
}

func (r *instrumentRepo) GetOrCreateVendor(ctx context.Context, name string, tx *gorm.DB) (*models.Vendor, error) {
	vendor := models.Vendor{Name: name}
	err := getOrCreateByName(conn(ctx, r.db, tx), &vendor, name)
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

func getOrCreateByName(db *gorm.DB, row interface{}, name string) error {
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoNothing: true,
	}).Create(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return db.Where("name = ?", name).First(row).Error
	}
	return nil
}

// GetSymbolByListing looks a symbol up by (instrument, vendor, market, currency).
func (r *instrumentRepo) GetSymbolByListing(ctx context.Context, listing models.Symbol, tx *gorm.DB) (*models.Symbol, error) {
	var s models.Symbol
	err := conn(ctx, r.db, tx).
		Where("instrument_id = ? AND vendor_id = ? AND market_id = ? AND currency = ?",
			listing.InstrumentID, listing.VendorID, listing.MarketID, listing.Currency).
		First(&s).Error
	return notFoundAsNil(&s, err)
}

// GetSymbolByTicker resolves a vendor name and ticker.
func (r *instrumentRepo) GetSymbolByTicker(ctx context.Context, vendor, symbol string, tx *gorm.DB) (*models.Symbol, error) {
	var s models.Symbol
	err := conn(ctx, r.db, tx).
		Joins("JOIN vendors ON vendors.id = symbols.vendor_id").
		Where("vendors.name = ? AND symbols.symbol = ?", vendor, symbol).
		First(&s).Error
	return notFoundAsNil(&s, err)
}

func (r *instrumentRepo) SaveSymbol(ctx context.Context, s *models.Symbol, tx *gorm.DB) error {
	return conn(ctx, r.db, tx).Save(s).Error
}
