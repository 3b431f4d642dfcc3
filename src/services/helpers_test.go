package services_test

import (
	"context"
	"testing"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/services"
	"depotbook/src/testutil"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	testISIN   = "US0378331005"
	otherISIN  = "DE0007164600"
	testBroker = "broker"
)

type testEnv struct {
	ctx            context.Context
	db             *gorm.DB
	auth           *services.AuthService
	catalog        *services.CatalogService
	booking        *services.BookingService
	prices         *services.PriceService
	depotRepo      repositories.DepotRepository
	instrumentRepo repositories.InstrumentRepository
	tradeRepo      repositories.TradeRepository
	ledgerRepo     repositories.LedgerRepository
	positionRepo   repositories.PositionRepository
	priceRepo      repositories.PriceRepository
	admin          services.Principal
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)

	env := &testEnv{
		ctx:            utils.WithLogger(context.Background(), testutil.NewLogger()),
		db:             db,
		depotRepo:      repositories.NewDepotRepository(db),
		instrumentRepo: repositories.NewInstrumentRepository(db),
		tradeRepo:      repositories.NewTradeRepository(db),
		ledgerRepo:     repositories.NewLedgerRepository(db),
		positionRepo:   repositories.NewPositionRepository(db),
		priceRepo:      repositories.NewPriceRepository(db),
	}
	env.auth = services.NewAuthService(db, repositories.NewUserRepository(db), env.depotRepo)
	env.catalog = services.NewCatalogService(db, env.instrumentRepo, nil)
	env.booking = services.NewBookingService(db, env.auth, env.catalog, env.depotRepo,
		env.instrumentRepo, env.tradeRepo, env.ledgerRepo, env.positionRepo)
	env.prices = services.NewPriceService(db, env.priceRepo, env.instrumentRepo)

	require.NoError(t, env.auth.EnsureAdmin(env.ctx, "admin", "admin-password"))
	admin, err := env.auth.Authenticate(env.ctx, "admin", "admin-password")
	require.NoError(t, err)
	env.admin = admin
	return env
}

// newUser adds a regular user and returns its principal.
func (e *testEnv) newUser(t *testing.T, username string) services.Principal {
	t.Helper()
	user, err := e.auth.AddUser(e.ctx, e.admin, username, "password-"+username)
	require.NoError(t, err)
	return services.Principal{UserID: user.ID, Username: user.Username}
}

func (e *testEnv) newDepot(t *testing.T, owner services.Principal, externalID string) *models.Depot {
	t.Helper()
	depot, err := e.auth.AddDepot(e.ctx, owner, testBroker, externalID, "EUR")
	require.NoError(t, err)
	return depot
}

func (e *testEnv) book(t *testing.T, principal services.Principal, ticket *services.Ticket) *services.BookingResult {
	t.Helper()
	result, err := e.booking.BookTicket(e.ctx, principal, ticket)
	require.NoError(t, err)
	return result
}

func (e *testEnv) countRows(t *testing.T, model interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func dec(value string) *decimal.Decimal {
	d := decimal.RequireFromString(value)
	return &d
}

func tradeTicket(externalID, isin, date, qty, price string) *services.Ticket {
	return &services.Ticket{
		Valuedate: date,
		Depot:     &services.DepotRef{Broker: testBroker, ExternalID: externalID},
		ISIN:      isin,
		Trade:     &services.TradeLeg{Qty: dec(qty), Price: dec(price), Currency: "EUR"},
	}
}

func cashflowTicket(externalID, isin, date string, entries ...services.CashflowEntry) *services.Ticket {
	return &services.Ticket{
		Valuedate: date,
		Depot:     &services.DepotRef{Broker: testBroker, ExternalID: externalID},
		ISIN:      isin,
		Cashflow:  entries,
	}
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

func assertKind(t *testing.T, kind utils.ErrorKind, err error) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, utils.KindOf(err), err.Error())
}
