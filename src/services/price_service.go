package services

import (
	"context"
	"math"
	"sort"
	"strings"
	"time"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const mergeBatchSize = 1000

// PriceRow is one vendor quote as delivered by a feed.
type PriceRow struct {
	Vendor string          `json:"vendor"`
	Symbol string          `json:"symbol"`
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

// CorporateActionRow is a dividend and/or split. A zero SplitRatio means no split.
type CorporateActionRow struct {
	Vendor     string          `json:"vendor"`
	Symbol     string          `json:"symbol"`
	Date       string          `json:"date"`
	Dividend   decimal.Decimal `json:"dividend"`
	SplitRatio decimal.Decimal `json:"split_ratio"`
}

type BatchResult struct {
	BatchID string `json:"batch_id,omitempty"`
	Rows    int    `json:"rows"`
}

type MergeResult struct {
	Merged  int `json:"merged"`
	Dropped int `json:"dropped"`
}

type AdjustedPrice struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
	Factor float64         `json:"factor"`
}

type PriceServiceI interface {
	LoadPriceBatch(ctx context.Context, rows []PriceRow) (*BatchResult, error)
	MergeStagedPrices(ctx context.Context) (*MergeResult, error)
	LoadCorporateActions(ctx context.Context, rows []CorporateActionRow) (*BatchResult, error)
	CumulativeAdjustment(ctx context.Context, vendor, symbol string, from, to time.Time) (float64, error)
	AdjustedSeries(ctx context.Context, vendor, symbol string, from, to time.Time) ([]AdjustedPrice, error)
}

type PriceService struct {
	db             *gorm.DB
	priceRepo      repositories.PriceRepository
	instrumentRepo repositories.InstrumentRepository
}

func NewPriceService(db *gorm.DB, priceRepo repositories.PriceRepository, instrumentRepo repositories.InstrumentRepository) *PriceService {
	return &PriceService{
		db:             db,
		priceRepo:      priceRepo,
		instrumentRepo: instrumentRepo,
	}
}

// LoadPriceBatch appends rows to the staging table. They become visible as
// prices after the next merge.
func (s *PriceService) LoadPriceBatch(ctx context.Context, rows []PriceRow) (*BatchResult, error) {
	logger := utils.LoggerFromContext(ctx)
	if len(rows) == 0 {
		logger.Info("empty price batch, nothing to load")
		return &BatchResult{}, nil
	}

	staged := make([]models.PriceStaging, 0, len(rows))
	fingerprint := make([]string, 0, len(rows))
	for i, row := range rows {
		date, err := utils.ParseDate(row.Date)
		if err != nil {
			return nil, utils.ValidationError("row %d: %v", i, err)
		}
		if row.Vendor == "" || row.Symbol == "" {
			return nil, utils.ValidationError("row %d: vendor and symbol are required", i)
		}
		if !row.Close.IsPositive() {
			return nil, utils.ConstraintError("row %d: close must be positive", i)
		}
		staged = append(staged, models.PriceStaging{
			Vendor: row.Vendor,
			Symbol: row.Symbol,
			Date:   date,
			Open:   row.Open.Round(utils.LedgerScale),
			High:   row.High.Round(utils.LedgerScale),
			Low:    row.Low.Round(utils.LedgerScale),
			Close:  row.Close.Round(utils.LedgerScale),
			Volume: row.Volume.Round(utils.LedgerScale),
		})
		fingerprint = append(fingerprint, strings.Join([]string{
			row.Vendor, row.Symbol, row.Date, row.Open.String(), row.High.String(),
			row.Low.String(), row.Close.String(), row.Volume.String(),
		}, ","))
	}

	batchID := utils.GenerateUUID(fingerprint...)
	for i := range staged {
		staged[i].BatchID = batchID
	}
	if err := s.priceRepo.AppendStaging(ctx, staged); err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"batch": batchID, "rows": len(staged)}).Info("staged price batch")
	return &BatchResult{BatchID: batchID, Rows: len(staged)}, nil
}

// MergeStagedPrices moves staged rows into prices. Rows whose vendor symbol
// is unknown are dropped with a warning. Merging twice gives the same prices.
func (s *PriceService) MergeStagedPrices(ctx context.Context) (*MergeResult, error) {
	logger := utils.LoggerFromContext(ctx)
	result := &MergeResult{}
	symbols := map[string]uint{}

	for {
		staged, err := s.priceRepo.ListStaging(ctx, mergeBatchSize)
		if err != nil {
			return nil, err
		}
		if len(staged) == 0 {
			break
		}

		ids := make([]uint, 0, len(staged))
		latest := map[string]models.Price{}
		for _, row := range staged {
			ids = append(ids, row.ID)
			tickerKey := row.Vendor + "\x1f" + row.Symbol
			symbolID, ok := symbols[tickerKey]
			if !ok {
				symbol, err := s.instrumentRepo.GetSymbolByTicker(ctx, row.Vendor, row.Symbol, nil)
				if err != nil {
					return nil, err
				}
				if symbol != nil {
					symbolID = symbol.ID
				}
				symbols[tickerKey] = symbolID
			}
			if symbolID == 0 {
				logger.WithFields(logrus.Fields{"vendor": row.Vendor, "symbol": row.Symbol, "batch": row.BatchID}).
					Warn("dropping staged price of unknown symbol")
				result.Dropped++
				continue
			}
			// Later rows win when a (symbol, date) shows up twice.
			latest[tickerKey+row.Date.Format(utils.ShortDashDateLayout)] = models.Price{
				SymbolID: symbolID,
				Date:     row.Date,
				Open:     row.Open,
				High:     row.High,
				Low:      row.Low,
				Close:    row.Close,
				Volume:   row.Volume,
			}
		}

		prices := make([]models.Price, 0, len(latest))
		for _, p := range latest {
			prices = append(prices, p)
		}
		sort.Slice(prices, func(i, j int) bool {
			if prices[i].SymbolID != prices[j].SymbolID {
				return prices[i].SymbolID < prices[j].SymbolID
			}
			return prices[i].Date.Before(prices[j].Date)
		})

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := s.priceRepo.UpsertPrices(ctx, prices, tx); err != nil {
				return err
			}
			return s.priceRepo.DeleteStaging(ctx, ids, tx)
		})
		if err != nil {
			return nil, err
		}
		result.Merged += len(prices)
	}

	if result.Merged > 0 || result.Dropped > 0 {
		logger.WithFields(logrus.Fields{"merged": result.Merged, "dropped": result.Dropped}).Info("merged staged prices")
	}
	return result, nil
}

// LoadCorporateActions stores the actions and recomputes the adjustment
// factor of every action on the symbols they touch.
func (s *PriceService) LoadCorporateActions(ctx context.Context, rows []CorporateActionRow) (*BatchResult, error) {
	logger := utils.LoggerFromContext(ctx)
	if len(rows) == 0 {
		logger.Info("empty corporate action batch, nothing to load")
		return &BatchResult{}, nil
	}

	actions := make([]models.CorporateAction, 0, len(rows))
	for i, row := range rows {
		date, err := utils.ParseDate(row.Date)
		if err != nil {
			return nil, utils.ValidationError("row %d: %v", i, err)
		}
		if row.Dividend.IsNegative() {
			return nil, utils.ConstraintError("row %d: dividend must not be negative", i)
		}
		ratio := row.SplitRatio
		if ratio.IsZero() {
			ratio = decimal.NewFromInt(1)
		}
		if ratio.IsNegative() {
			return nil, utils.ConstraintError("row %d: split ratio must be positive", i)
		}
		symbol, err := s.resolveSymbol(ctx, row.Vendor, row.Symbol)
		if err != nil {
			return nil, err
		}
		actions = append(actions, models.CorporateAction{
			SymbolID:   symbol.ID,
			Date:       date,
			Dividend:   row.Dividend.Round(utils.LedgerScale),
			SplitRatio: ratio.Round(utils.LedgerScale),
			Factor:     1,
		})
	}

	affected := map[uint]bool{}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := range actions {
			if err := s.priceRepo.UpsertCorporateAction(ctx, &actions[i], tx); err != nil {
				return err
			}
			affected[actions[i].SymbolID] = true
		}
		for symbolID := range affected {
			if err := s.recomputeFactors(ctx, tx, symbolID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.WithFields(logrus.Fields{"rows": len(actions), "symbols": len(affected)}).Info("loaded corporate actions")
	return &BatchResult{Rows: len(actions)}, nil
}

func (s *PriceService) recomputeFactors(ctx context.Context, tx *gorm.DB, symbolID uint) error {
	actions, err := s.priceRepo.ListSymbolActions(ctx, symbolID, tx)
	if err != nil {
		return err
	}
	for _, action := range actions {
		last, err := s.priceRepo.LastCloseBefore(ctx, symbolID, action.Date, tx)
		if err != nil {
			return err
		}
		var prevClose decimal.Decimal
		if last != nil {
			prevClose = last.Close
		}
		factor, err := AdjustmentFactor(action.Dividend, prevClose, action.SplitRatio)
		if err != nil {
			return err
		}
		if last == nil && action.Dividend.IsPositive() {
			utils.LoggerFromContext(ctx).WithFields(logrus.Fields{"symbol_id": symbolID, "date": action.Date}).
				Warn("no close before dividend, leaving it unadjusted")
		}
		if err := s.priceRepo.UpdateActionFactor(ctx, action.ID, factor, tx); err != nil {
			return err
		}
	}
	return nil
}

// AdjustmentFactor is (1 - dividend/prevClose) / splitRatio. The dividend
// part is skipped when prevClose is unknown (zero).
func AdjustmentFactor(dividend, prevClose, splitRatio decimal.Decimal) (float64, error) {
	if !splitRatio.IsPositive() {
		return 0, utils.ConstraintError("split ratio must be positive")
	}
	factor := decimal.NewFromInt(1)
	if prevClose.IsPositive() && dividend.IsPositive() {
		if dividend.GreaterThanOrEqual(prevClose) {
			return 0, utils.ConstraintError("dividend %s is not below the previous close %s", dividend, prevClose)
		}
		factor = factor.Sub(dividend.Div(prevClose))
	}
	f, _ := factor.Div(splitRatio).Float64()
	return f, nil
}

// CumulativeFactor multiplies factors in log space.
func CumulativeFactor(factors []float64) float64 {
	sum := 0.0
	for _, f := range factors {
		sum += math.Log(f)
	}
	return math.Exp(sum)
}

// CumulativeAdjustment is the product of the factors of the actions dated
// in (from, to].
func (s *PriceService) CumulativeAdjustment(ctx context.Context, vendor, symbol string, from, to time.Time) (float64, error) {
	sym, err := s.resolveSymbol(ctx, vendor, symbol)
	if err != nil {
		return 0, err
	}
	actions, err := s.priceRepo.ListCorporateActions(ctx, sym.ID, utils.TruncateDay(from), utils.TruncateDay(to))
	if err != nil {
		return 0, err
	}
	factors := make([]float64, 0, len(actions))
	for _, a := range actions {
		factors = append(factors, a.Factor)
	}
	return CumulativeFactor(factors), nil
}

// AdjustedSeries returns the raw prices in [from, to], each scaled by the
// factors of the actions after its date up to to.
func (s *PriceService) AdjustedSeries(ctx context.Context, vendor, symbol string, from, to time.Time) ([]AdjustedPrice, error) {
	from, to = utils.TruncateDay(from), utils.TruncateDay(to)
	if to.Before(from) {
		return nil, utils.ValidationError("from must not be after to")
	}
	sym, err := s.resolveSymbol(ctx, vendor, symbol)
	if err != nil {
		return nil, err
	}
	prices, err := s.priceRepo.ListPrices(ctx, sym.ID, from, to)
	if err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return []AdjustedPrice{}, nil
	}
	actions, err := s.priceRepo.ListCorporateActions(ctx, sym.ID, prices[0].Date, to)
	if err != nil {
		return nil, err
	}

	series := make([]AdjustedPrice, len(prices))
	logSum := 0.0
	next := len(actions) - 1
	for i := len(prices) - 1; i >= 0; i-- {
		p := prices[i]
		for next >= 0 && actions[next].Date.After(p.Date) {
			logSum += math.Log(actions[next].Factor)
			next--
		}
		factor := math.Exp(logSum)
		scale := decimal.NewFromFloat(factor)
		series[i] = AdjustedPrice{
			Date:   p.Date,
			Open:   p.Open.Mul(scale).Round(utils.LedgerScale),
			High:   p.High.Mul(scale).Round(utils.LedgerScale),
			Low:    p.Low.Mul(scale).Round(utils.LedgerScale),
			Close:  p.Close.Mul(scale).Round(utils.LedgerScale),
			Volume: p.Volume,
			Factor: factor,
		}
	}
	return series, nil
}

func (s *PriceService) resolveSymbol(ctx context.Context, vendor, symbol string) (*models.Symbol, error) {
	sym, err := s.instrumentRepo.GetSymbolByTicker(ctx, vendor, symbol, nil)
	if err != nil {
		return nil, err
	}
	if sym == nil {
		return nil, utils.NotFoundError("symbol %s of vendor %s not found", symbol, vendor)
	}
	return sym, nil
}
