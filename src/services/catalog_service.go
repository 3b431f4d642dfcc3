package services

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/utils"
	redis_utils "depotbook/src/utils/redis"

	"github.com/Rhymond/go-money"
	"gorm.io/gorm"
)

var isinPattern = regexp.MustCompile(`^[A-Z]{2}[A-Z0-9]{9}[0-9]$`)

const (
	maxInstrumentName = 100
	maxReferenceName  = 50
)

type CatalogServiceI interface {
	GetOrCreateInstrument(ctx context.Context, tx *gorm.DB, isin, fallbackName, ccy string) (*models.Instrument, error)
	RememberInstrument(ctx context.Context, inst models.Instrument)
	AddOrUpdateSymbol(ctx context.Context, principal Principal, input SymbolInput) (*models.Symbol, error)
	GetOrCreateMarket(ctx context.Context, name string, tx *gorm.DB) (*models.Market, error)
	GetOrCreateVendor(ctx context.Context, name string, tx *gorm.DB) (*models.Vendor, error)
}

// SymbolInput maps a vendor ticker on a market onto the instrument with ISIN.
type SymbolInput struct {
	ISIN     string `json:"isin"`
	Vendor   string `json:"vendor"`
	Market   string `json:"market"`
	Currency string `json:"ccy"`
	Symbol   string `json:"symbol"`
}

type CatalogService struct {
	db             *gorm.DB
	instrumentRepo repositories.InstrumentRepository
	cache          InstrumentCache
}

func NewCatalogService(db *gorm.DB, instrumentRepo repositories.InstrumentRepository, cache InstrumentCache) *CatalogService {
	if cache == nil {
		cache = NewMemoryInstrumentCache(time.Hour)
	}
	return &CatalogService{
		db:             db,
		instrumentRepo: instrumentRepo,
		cache:          cache,
	}
}

// LookupCurrency returns the ISO 4217 currency for code.
func LookupCurrency(code string) (*money.Currency, error) {
	cur := money.GetCurrency(strings.ToUpper(code))
	if cur == nil || code == "" {
		return nil, utils.ConstraintError("unknown currency %q", code)
	}
	return cur, nil
}

func ValidateISIN(isin string) error {
	if !isinPattern.MatchString(isin) {
		return utils.ConstraintError("malformed ISIN %q", isin)
	}
	return nil
}

// GetOrCreateInstrument returns the instrument with isin, creating it when it
// is not known yet. The name defaults to the ISIN. Rows read or created inside
// tx are only cached once the caller hands them to RememberInstrument after
// commit.
func (s *CatalogService) GetOrCreateInstrument(ctx context.Context, tx *gorm.DB, isin, fallbackName, ccy string) (*models.Instrument, error) {
	if err := ValidateISIN(isin); err != nil {
		return nil, err
	}
	name := strings.TrimSpace(fallbackName)
	if name == "" {
		name = isin
	}
	if utf8.RuneCountInString(name) > maxInstrumentName {
		return nil, utils.ConstraintError("instrument name must be 1 to %d characters", maxInstrumentName)
	}
	cur, err := LookupCurrency(ccy)
	if err != nil {
		return nil, err
	}

	if inst, ok := s.cache.Get(ctx, isin); ok {
		return inst, nil
	}

	inst, err := s.instrumentRepo.GetByISIN(ctx, isin, tx)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		inst = &models.Instrument{ISIN: isin, Name: name, Currency: cur.Code}
		if err := s.instrumentRepo.CreateIfAbsent(ctx, inst, tx); err != nil {
			return nil, err
		}
		utils.LoggerFromContext(ctx).WithField("isin", isin).Info("created instrument")
	}
	if tx == nil {
		s.RememberInstrument(ctx, *inst)
	}
	return inst, nil
}

// RememberInstrument caches a committed instrument.
func (s *CatalogService) RememberInstrument(ctx context.Context, inst models.Instrument) {
	if inst.ID == 0 {
		return
	}
	s.cache.Set(ctx, inst)
}

// AddOrUpdateSymbol points the listing (instrument, vendor, market, currency)
// at input.Symbol, inserting the listing if needed.
func (s *CatalogService) AddOrUpdateSymbol(ctx context.Context, principal Principal, input SymbolInput) (*models.Symbol, error) {
	if !principal.Authenticated() {
		return nil, utils.AuthorizationError("authentication required")
	}
	if err := ValidateISIN(input.ISIN); err != nil {
		return nil, err
	}
	cur, err := LookupCurrency(input.Currency)
	if err != nil {
		return nil, err
	}
	ticker := strings.TrimSpace(input.Symbol)
	if ticker == "" || utf8.RuneCountInString(ticker) > maxReferenceName {
		return nil, utils.ConstraintError("symbol must be 1 to %d characters", maxReferenceName)
	}

	var symbol *models.Symbol
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inst, err := s.instrumentRepo.GetByISIN(ctx, input.ISIN, tx)
		if err != nil {
			return err
		}
		if inst == nil {
			return utils.NotFoundError("instrument %s not found", input.ISIN)
		}
		vendor, err := s.GetOrCreateVendor(ctx, input.Vendor, tx)
		if err != nil {
			return err
		}
		market, err := s.GetOrCreateMarket(ctx, input.Market, tx)
		if err != nil {
			return err
		}

		listing := models.Symbol{
			InstrumentID: inst.ID,
			VendorID:     vendor.ID,
			MarketID:     market.ID,
			Currency:     cur.Code,
		}
		existing, err := s.instrumentRepo.GetSymbolByListing(ctx, listing, tx)
		if err != nil {
			return err
		}
		taken, err := s.instrumentRepo.GetSymbolByTicker(ctx, vendor.Name, ticker, tx)
		if err != nil {
			return err
		}
		if taken != nil && (existing == nil || taken.ID != existing.ID) {
			return utils.ConflictError("symbol %s is already mapped for vendor %s", ticker, vendor.Name)
		}

		if existing == nil {
			existing = &listing
		}
		existing.Symbol = ticker
		if err := s.instrumentRepo.SaveSymbol(ctx, existing, tx); err != nil {
			if repositories.IsUniqueViolation(err) {
				return utils.ConflictError("symbol %s is already mapped for vendor %s", ticker, vendor.Name)
			}
			return err
		}
		symbol = existing
		return nil
	})
	if err != nil {
		return nil, err
	}
	return symbol, nil
}

func (s *CatalogService) GetOrCreateMarket(ctx context.Context, name string, tx *gorm.DB) (*models.Market, error) {
	name = strings.TrimSpace(name)
	if err := validateReferenceName("market", name); err != nil {
		return nil, err
	}
	return s.instrumentRepo.GetOrCreateMarket(ctx, name, tx)
}

func (s *CatalogService) GetOrCreateVendor(ctx context.Context, name string, tx *gorm.DB) (*models.Vendor, error) {
	name = strings.TrimSpace(name)
	if err := validateReferenceName("vendor", name); err != nil {
		return nil, err
	}
	return s.instrumentRepo.GetOrCreateVendor(ctx, name, tx)
}

func validateReferenceName(what, name string) error {
	if name == "" || utf8.RuneCountInString(name) > maxReferenceName {
		return utils.ConstraintError("%s name must be 1 to %d characters", what, maxReferenceName)
	}
	return nil
}

// InstrumentCache keeps committed instruments by ISIN.
type InstrumentCache interface {
	Get(ctx context.Context, isin string) (*models.Instrument, bool)
	Set(ctx context.Context, inst models.Instrument)
}

type memoryInstrumentCache struct {
	cache *utils.Cache[string, models.Instrument]
}

func NewMemoryInstrumentCache(ttl time.Duration) InstrumentCache {
	return &memoryInstrumentCache{cache: utils.NewCache[string, models.Instrument](ttl)}
}

func (c *memoryInstrumentCache) Get(_ context.Context, isin string) (*models.Instrument, bool) {
	inst, ok := c.cache.Get(isin)
	if !ok {
		return nil, false
	}
	return &inst, true
}

func (c *memoryInstrumentCache) Set(_ context.Context, inst models.Instrument) {
	c.cache.Set(inst.ISIN, inst)
}

type redisInstrumentCache struct {
	handler *redis_utils.RedisHandler
	ttl     time.Duration
}

// NewRedisInstrumentCache shares the instrument cache between processes.
// Redis failures are logged and behave like a miss.
func NewRedisInstrumentCache(handler *redis_utils.RedisHandler, ttl time.Duration) InstrumentCache {
	return &redisInstrumentCache{handler: handler, ttl: ttl}
}

func (c *redisInstrumentCache) Get(ctx context.Context, isin string) (*models.Instrument, bool) {
	var inst models.Instrument
	if err := c.handler.Get(ctx, "instrument:"+isin, &inst); err != nil {
		if !errors.Is(err, redis_utils.ErrKeyNotFound) {
			utils.LoggerFromContext(ctx).Warnf("instrument cache get failed: %v", err)
		}
		return nil, false
	}
	return &inst, true
}

func (c *redisInstrumentCache) Set(ctx context.Context, inst models.Instrument) {
	if err := c.handler.Set(ctx, "instrument:"+inst.ISIN, inst, c.ttl); err != nil {
		utils.LoggerFromContext(ctx).Warnf("instrument cache set failed: %v", err)
	}
}
