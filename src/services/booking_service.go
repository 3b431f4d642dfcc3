package services

import (
	"context"
	"time"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

type BookingServiceI interface {
	BookTicket(ctx context.Context, principal Principal, ticket *Ticket) (*BookingResult, error)
	BookTrade(ctx context.Context, principal Principal, ticket *Ticket) (*BookingResult, error)
	BookCashflow(ctx context.Context, principal Principal, ticket *Ticket) (*BookingResult, error)
	PreviewSell(ctx context.Context, principal Principal, req SellPreviewRequest) (*MatchResult, error)
	GetPositions(ctx context.Context, principal Principal, asOf time.Time) ([]models.Position, error)
	GetTrades(ctx context.Context, principal Principal) ([]models.Trade, error)
	GetCashflows(ctx context.Context, principal Principal) ([]models.Cashflow, error)
}

// BookingResult is everything a ticket wrote.
type BookingResult struct {
	Kind       string                  `json:"kind"`
	Instrument *models.Instrument      `json:"instrument,omitempty"`
	Trade      *models.Trade           `json:"trade,omitempty"`
	Payments   []models.Payment        `json:"payments,omitempty"`
	Allotments []models.TradeAllotment `json:"allotments,omitempty"`
	Position   *models.Position        `json:"position,omitempty"`
	Cashflows  []models.Cashflow       `json:"cashflows,omitempty"`
}

type SellPreviewRequest struct {
	Broker     string          `json:"broker"`
	ExternalID string          `json:"external_id"`
	ISIN       string          `json:"isin"`
	Currency   string          `json:"ccy"`
	Qty        decimal.Decimal `json:"qty"`
}

type BookingService struct {
	db             *gorm.DB
	auth           AuthServiceI
	catalog        CatalogServiceI
	matcher        *LotMatcher
	depotRepo      repositories.DepotRepository
	instrumentRepo repositories.InstrumentRepository
	tradeRepo      repositories.TradeRepository
	ledgerRepo     repositories.LedgerRepository
	positionRepo   repositories.PositionRepository
}

func NewBookingService(
	db *gorm.DB,
	auth AuthServiceI,
	catalog CatalogServiceI,
	depotRepo repositories.DepotRepository,
	instrumentRepo repositories.InstrumentRepository,
	tradeRepo repositories.TradeRepository,
	ledgerRepo repositories.LedgerRepository,
	positionRepo repositories.PositionRepository,
) *BookingService {
	return &BookingService{
		db:             db,
		auth:           auth,
		catalog:        catalog,
		matcher:        NewLotMatcher(tradeRepo),
		depotRepo:      depotRepo,
		instrumentRepo: instrumentRepo,
		tradeRepo:      tradeRepo,
		ledgerRepo:     ledgerRepo,
		positionRepo:   positionRepo,
	}
}

// BookTicket validates the ticket, checks that principal may write to its
// depot and books it as a trade or as cashflows in one transaction. On error
// nothing is written.
func (s *BookingService) BookTicket(ctx context.Context, principal Principal, ticket *Ticket) (*BookingResult, error) {
	kind, err := ticket.Classify()
	if err != nil {
		return nil, err
	}
	return s.book(ctx, principal, ticket, kind)
}

func (s *BookingService) BookTrade(ctx context.Context, principal Principal, ticket *Ticket) (*BookingResult, error) {
	return s.bookKind(ctx, principal, ticket, TicketTrade)
}

func (s *BookingService) BookCashflow(ctx context.Context, principal Principal, ticket *Ticket) (*BookingResult, error) {
	return s.bookKind(ctx, principal, ticket, TicketCashflow)
}

func (s *BookingService) bookKind(ctx context.Context, principal Principal, ticket *Ticket, want TicketKind) (*BookingResult, error) {
	kind, err := ticket.Classify()
	if err != nil {
		return nil, err
	}
	if kind != want {
		return nil, utils.ValidationError("expected a %s ticket, got a %s ticket", want, kind)
	}
	return s.book(ctx, principal, ticket, kind)
}

func (s *BookingService) book(ctx context.Context, principal Principal, ticket *Ticket, kind TicketKind) (*BookingResult, error) {
	// Exclusivity is checked again right before dispatch.
	if (ticket.Trade != nil) == (ticket.Cashflow != nil) {
		return nil, utils.ValidationError("ambiguous ticket: exactly one of trade and cashflow is required")
	}

	logger := utils.LoggerFromContext(ctx).WithFields(logrus.Fields{
		"user":   principal.Username,
		"broker": ticket.Depot.Broker,
		"depot":  ticket.Depot.ExternalID,
		"kind":   kind.String(),
	})

	var result *BookingResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		depot, err := s.auth.RequirePermission(ctx, tx, principal, ticket.Depot.Broker, ticket.Depot.ExternalID, models.PermissionWrite)
		if err != nil {
			return err
		}
		switch kind {
		case TicketTrade:
			result, err = s.bookTrade(ctx, tx, depot, ticket)
		case TicketCashflow:
			result, err = s.bookCashflows(ctx, tx, depot, ticket)
		default:
			err = utils.ValidationError("unclassified ticket")
		}
		return err
	})
	if err != nil {
		logger.WithError(err).Warn("ticket rejected")
		return nil, err
	}
	if result.Instrument != nil {
		s.catalog.RememberInstrument(ctx, *result.Instrument)
	}
	logger.Info("ticket booked")
	return result, nil
}

func (s *BookingService) bookTrade(ctx context.Context, tx *gorm.DB, depot *models.Depot, ticket *Ticket) (*BookingResult, error) {
	qty := ticket.Trade.Qty.Round(utils.LedgerScale)
	price := ticket.Trade.Price.Round(utils.LedgerScale)
	if qty.IsZero() {
		return nil, utils.ConstraintError("trade quantity must not be zero")
	}
	if price.IsNegative() {
		return nil, utils.ConstraintError("trade price must not be negative")
	}
	cur, err := LookupCurrency(ticket.Trade.Currency)
	if err != nil {
		return nil, err
	}

	inst, err := s.catalog.GetOrCreateInstrument(ctx, tx, ticket.ISIN, "", cur.Code)
	if err != nil {
		return nil, err
	}
	key := models.LotKey{DepotID: depot.ID, InstrumentID: inst.ID, Currency: cur.Code}
	if err := s.tradeRepo.LockKey(ctx, key, tx); err != nil {
		return nil, err
	}

	volume := qty.Mul(price).Round(utils.LedgerScale)
	sell := qty.IsNegative()

	var preview *MatchResult
	if sell {
		preview, err = s.matcher.Match(ctx, tx, key, qty.Neg(), MatchPreview, 0)
		if err != nil {
			return nil, err
		}
	}

	valuedate := ticket.ValueDate()
	trade := &models.Trade{
		DepotID:      depot.ID,
		InstrumentID: inst.ID,
		Currency:     cur.Code,
		Valuedate:    valuedate,
		Qty:          qty,
		Price:        price,
		Volume:       volume,
		QtyAllotted:  decimal.Max(qty, decimal.Zero),
	}
	if err := s.tradeRepo.Create(ctx, trade, tx); err != nil {
		return nil, err
	}

	result := &BookingResult{Kind: TicketTrade.String(), Instrument: inst, Trade: trade}
	addPayment := func(kind models.PaymentType, amount decimal.Decimal, ccy string) error {
		p := models.Payment{TradeID: trade.ID, Type: kind, Amount: amount.Round(utils.LedgerScale), Currency: ccy}
		if err := s.ledgerRepo.CreatePayment(ctx, &p, tx); err != nil {
			return err
		}
		result.Payments = append(result.Payments, p)
		return nil
	}

	// Cash moves opposite to the position.
	if sell {
		err = addPayment(models.PaymentSell, volume.Neg(), cur.Code)
	} else {
		err = addPayment(models.PaymentBuy, volume.Neg(), cur.Code)
	}
	if err != nil {
		return nil, err
	}

	if sell {
		invested := preview.InvestedVolume.Round(utils.LedgerScale)
		if err := addPayment(models.PaymentPnL, volume.Neg().Sub(invested), cur.Code); err != nil {
			return nil, err
		}
		if _, err := s.matcher.Match(ctx, tx, key, qty.Neg(), MatchCommit, trade.ID); err != nil {
			return nil, err
		}
		for _, step := range preview.Consumed {
			result.Allotments = append(result.Allotments, models.TradeAllotment{
				SellTradeID: trade.ID,
				BuyTradeID:  step.BuyTradeID,
				Qty:         step.Qty,
			})
		}
	}

	position, err := s.refreshPosition(ctx, tx, key, valuedate)
	if err != nil {
		return nil, err
	}
	result.Position = position

	for _, extra := range ticket.Payment {
		pcur, err := LookupCurrency(extra.Currency)
		if err != nil {
			return nil, err
		}
		if err := addPayment(extra.Type, *extra.Amount, pcur.Code); err != nil {
			return nil, err
		}
	}
	return result, nil
}

// refreshPosition rewrites the snapshot of key at valuedate from the lots
// that are still open. Snapshots dated later hold the same lots and are
// rewritten too.
func (s *BookingService) refreshPosition(ctx context.Context, tx *gorm.DB, key models.LotKey, valuedate time.Time) (*models.Position, error) {
	trades, err := s.tradeRepo.ListByKey(ctx, key, tx)
	if err != nil {
		return nil, err
	}
	qty, vol := decimal.Zero, decimal.Zero
	for _, t := range trades {
		qty = qty.Add(t.QtyAllotted)
		vol = vol.Add(t.QtyAllotted.Mul(t.Price))
	}
	position := &models.Position{
		DepotID:      key.DepotID,
		InstrumentID: key.InstrumentID,
		Valuedate:    valuedate,
		Currency:     key.Currency,
		Qty:          qty.Round(utils.LedgerScale),
		Vol:          vol.Round(utils.LedgerScale),
	}
	if err := s.positionRepo.Upsert(ctx, position, tx); err != nil {
		return nil, err
	}
	if err := s.positionRepo.SyncLater(ctx, position, tx); err != nil {
		return nil, err
	}
	return position, nil
}

func (s *BookingService) bookCashflows(ctx context.Context, tx *gorm.DB, depot *models.Depot, ticket *Ticket) (*BookingResult, error) {
	result := &BookingResult{Kind: TicketCashflow.String()}
	valuedate := ticket.ValueDate()
	for _, entry := range ticket.Cashflow {
		cur, err := LookupCurrency(entry.Currency)
		if err != nil {
			return nil, err
		}
		cashflow := models.Cashflow{
			DepotID:   depot.ID,
			Type:      entry.Type,
			Valuedate: valuedate,
			Amount:    entry.Amount.Round(utils.LedgerScale),
			Currency:  cur.Code,
		}
		if entry.Type == models.CashflowDividend {
			inst, err := s.catalog.GetOrCreateInstrument(ctx, tx, ticket.ISIN, "", cur.Code)
			if err != nil {
				return nil, err
			}
			cashflow.InstrumentID = &inst.ID
			result.Instrument = inst
		}
		if err := s.ledgerRepo.CreateCashflow(ctx, &cashflow, tx); err != nil {
			return nil, err
		}
		result.Cashflows = append(result.Cashflows, cashflow)
	}
	return result, nil
}

// PreviewSell reports the lots a sell of req.Qty would consume right now,
// without booking anything.
func (s *BookingService) PreviewSell(ctx context.Context, principal Principal, req SellPreviewRequest) (*MatchResult, error) {
	depot, err := s.auth.RequirePermission(ctx, nil, principal, req.Broker, req.ExternalID, models.PermissionRead)
	if err != nil {
		return nil, err
	}
	if err := ValidateISIN(req.ISIN); err != nil {
		return nil, err
	}
	cur, err := LookupCurrency(req.Currency)
	if err != nil {
		return nil, err
	}
	inst, err := s.instrumentRepo.GetByISIN(ctx, req.ISIN, nil)
	if err != nil {
		return nil, err
	}
	if inst == nil {
		return nil, utils.NotFoundError("instrument %s not found", req.ISIN)
	}
	key := models.LotKey{DepotID: depot.ID, InstrumentID: inst.ID, Currency: cur.Code}
	return s.matcher.Match(ctx, nil, key, req.Qty.Round(utils.LedgerScale), MatchPreview, 0)
}

// GetPositions returns the latest snapshot on or before asOf of every
// position in the depots principal can read.
func (s *BookingService) GetPositions(ctx context.Context, principal Principal, asOf time.Time) ([]models.Position, error) {
	depotIDs, err := s.readableDepots(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.positionRepo.ListAsOf(ctx, depotIDs, utils.TruncateDay(asOf))
}

func (s *BookingService) GetTrades(ctx context.Context, principal Principal) ([]models.Trade, error) {
	depotIDs, err := s.readableDepots(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.tradeRepo.ListByDepots(ctx, depotIDs)
}

func (s *BookingService) GetCashflows(ctx context.Context, principal Principal) ([]models.Cashflow, error) {
	depotIDs, err := s.readableDepots(ctx, principal)
	if err != nil {
		return nil, err
	}
	return s.ledgerRepo.ListCashflows(ctx, depotIDs)
}

func (s *BookingService) readableDepots(ctx context.Context, principal Principal) ([]uint, error) {
	if !principal.Authenticated() {
		return nil, utils.AuthorizationError("authentication required")
	}
	return s.depotRepo.ListDepotIDsWith(ctx, principal.UserID, models.PermissionRead)
}
