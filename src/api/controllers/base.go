package controllers

import (
	"context"
	"time"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/schemas"
	"depotbook/src/services"

	"github.com/go-chi/jwtauth"
	"gorm.io/gorm"
)

type IController interface {
	PostToken(ctx context.Context, username, password string) (*schemas.TokenResponse, error)
	PrincipalFromClaims(ctx context.Context, claims map[string]interface{}) (services.Principal, error)

	CreateUser(ctx context.Context, principal services.Principal, req schemas.UserRequest) (*models.User, error)
	CreateDepot(ctx context.Context, principal services.Principal, req schemas.DepotRequest) (*models.Depot, error)
	GrantPermission(ctx context.Context, principal services.Principal, broker, externalID string, req schemas.PermissionRequest) (*schemas.PermissionResponse, error)
	RevokePermission(ctx context.Context, principal services.Principal, broker, externalID string, req schemas.PermissionRequest) error

	CreateInstrument(ctx context.Context, principal services.Principal, req schemas.InstrumentRequest) (*models.Instrument, error)
	PutSymbol(ctx context.Context, principal services.Principal, input services.SymbolInput) (*models.Symbol, error)

	BookTicket(ctx context.Context, principal services.Principal, body []byte) (*services.BookingResult, error)
	PreviewSell(ctx context.Context, principal services.Principal, req services.SellPreviewRequest) (*services.MatchResult, error)
	GetPositions(ctx context.Context, principal services.Principal, asOf time.Time) ([]models.Position, error)
	GetTrades(ctx context.Context, principal services.Principal) ([]models.Trade, error)
	GetCashflows(ctx context.Context, principal services.Principal) ([]models.Cashflow, error)
}

type Controller struct {
	AuthService    services.AuthServiceI
	CatalogService services.CatalogServiceI
	BookingService services.BookingServiceI
	TokenAuth      *jwtauth.JWTAuth
	TokenTTL       time.Duration
}

// NewController builds the services of the API on top of db.
func NewController(db *gorm.DB, cache services.InstrumentCache, tokenAuth *jwtauth.JWTAuth, tokenTTL time.Duration) *Controller {
	userRepo := repositories.NewUserRepository(db)
	depotRepo := repositories.NewDepotRepository(db)
	instrumentRepo := repositories.NewInstrumentRepository(db)

	authService := services.NewAuthService(db, userRepo, depotRepo)
	catalogService := services.NewCatalogService(db, instrumentRepo, cache)
	bookingService := services.NewBookingService(
		db,
		authService,
		catalogService,
		depotRepo,
		instrumentRepo,
		repositories.NewTradeRepository(db),
		repositories.NewLedgerRepository(db),
		repositories.NewPositionRepository(db),
	)

	return &Controller{
		AuthService:    authService,
		CatalogService: catalogService,
		BookingService: bookingService,
		TokenAuth:      tokenAuth,
		TokenTTL:       tokenTTL,
	}
}

func (c *Controller) PreviewSell(ctx context.Context, principal services.Principal, req services.SellPreviewRequest) (*services.MatchResult, error) {
	return c.BookingService.PreviewSell(ctx, principal, req)
}

func (c *Controller) GetPositions(ctx context.Context, principal services.Principal, asOf time.Time) ([]models.Position, error) {
	return c.BookingService.GetPositions(ctx, principal, asOf)
}

func (c *Controller) GetTrades(ctx context.Context, principal services.Principal) ([]models.Trade, error) {
	return c.BookingService.GetTrades(ctx, principal)
}

func (c *Controller) GetCashflows(ctx context.Context, principal services.Principal) ([]models.Cashflow, error) {
	return c.BookingService.GetCashflows(ctx, principal)
}

func (c *Controller) BookTicket(ctx context.Context, principal services.Principal, body []byte) (*services.BookingResult, error) {
	ticket, err := services.ParseTicket(body)
	if err != nil {
		return nil, err
	}
	return c.BookingService.BookTicket(ctx, principal, ticket)
}

