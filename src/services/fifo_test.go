package services_test

import (
	"testing"

	"depotbook/src/models"
	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// setupLots books three buys of 10 whose insertion order differs from their
// FIFO order: 2024-01-02 @1 first, then two on 2024-01-01 @2 and @3.
func setupLots(t *testing.T, env *testEnv) (models.LotKey, []models.Trade) {
	t.Helper()
	owner := env.newUser(t, "owner")
	depot := env.newDepot(t, owner, "D1")

	var trades []models.Trade
	for _, buy := range []struct{ date, price string }{
		{"2024-01-02", "1"},
		{"2024-01-01", "2"},
		{"2024-01-01", "3"},
	} {
		result := env.book(t, owner, tradeTicket("D1", testISIN, buy.date, "10", buy.price))
		trades = append(trades, *result.Trade)
	}

	inst, err := env.instrumentRepo.GetByISIN(env.ctx, testISIN, nil)
	require.NoError(t, err)
	require.NotNil(t, inst)
	return models.LotKey{DepotID: depot.ID, InstrumentID: inst.ID, Currency: "EUR"}, trades
}

func openQty(t *testing.T, env *testEnv, key models.LotKey) map[uint]decimal.Decimal {
	t.Helper()
	trades, err := env.tradeRepo.ListByKey(env.ctx, key, nil)
	require.NoError(t, err)
	open := map[uint]decimal.Decimal{}
	for _, trade := range trades {
		open[trade.ID] = trade.QtyAllotted
	}
	return open
}

func TestLotMatcher(t *testing.T) {
	t.Run("Preview walks lots by valuedate then id", func(t *testing.T) {
		env := newTestEnv(t)
		key, trades := setupLots(t, env)
		matcher := services.NewLotMatcher(env.tradeRepo)

		result, err := matcher.Match(env.ctx, nil, key, decimal.NewFromInt(15), services.MatchPreview, 0)
		require.NoError(t, err)

		require.Len(t, result.Consumed, 2)
		assert.Equal(t, trades[1].ID, result.Consumed[0].BuyTradeID)
		assertDecimal(t, "10", result.Consumed[0].Qty)
		assert.Equal(t, trades[2].ID, result.Consumed[1].BuyTradeID)
		assertDecimal(t, "5", result.Consumed[1].Qty)
		assertDecimal(t, "35", result.InvestedVolume)

		for _, qty := range openQty(t, env, key) {
			assertDecimal(t, "10", qty)
		}
	})

	t.Run("Commit consumes exactly what preview planned", func(t *testing.T) {
		env := newTestEnv(t)
		key, trades := setupLots(t, env)
		matcher := services.NewLotMatcher(env.tradeRepo)
		q := decimal.NewFromInt(25)

		preview, err := matcher.Match(env.ctx, nil, key, q, services.MatchPreview, 0)
		require.NoError(t, err)

		var committed *services.MatchResult
		err = env.db.Transaction(func(tx *gorm.DB) error {
			var err error
			committed, err = matcher.Match(env.ctx, tx, key, q, services.MatchCommit, 999)
			return err
		})
		require.NoError(t, err)

		assert.True(t, preview.InvestedVolume.Equal(committed.InvestedVolume))
		assertDecimal(t, "55", committed.InvestedVolume)

		open := openQty(t, env, key)
		assertDecimal(t, "5", open[trades[0].ID])
		assertDecimal(t, "0", open[trades[1].ID])
		assertDecimal(t, "0", open[trades[2].ID])

		allotments, err := env.tradeRepo.ListAllotments(env.ctx, 999)
		require.NoError(t, err)
		total := decimal.Zero
		for _, a := range allotments {
			total = total.Add(a.Qty)
		}
		assert.True(t, q.Equal(total))
		require.Len(t, allotments, 3)
		assert.Equal(t, trades[1].ID, allotments[0].BuyTradeID)
		assert.Equal(t, trades[2].ID, allotments[1].BuyTradeID)
		assert.Equal(t, trades[0].ID, allotments[2].BuyTradeID)
	})

	t.Run("Insufficient lots fail without touching them", func(t *testing.T) {
		env := newTestEnv(t)
		key, _ := setupLots(t, env)
		matcher := services.NewLotMatcher(env.tradeRepo)
		before := openQty(t, env, key)

		err := env.db.Transaction(func(tx *gorm.DB) error {
			_, err := matcher.Match(env.ctx, tx, key, decimal.NewFromInt(31), services.MatchCommit, 999)
			return err
		})
		assertKind(t, utils.KindInsufficientLots, err)

		assert.Equal(t, len(before), len(openQty(t, env, key)))
		for id, qty := range openQty(t, env, key) {
			assert.True(t, before[id].Equal(qty))
		}
		assert.Zero(t, env.countRows(t, &models.TradeAllotment{}))
	})

	t.Run("Quantity must be positive", func(t *testing.T) {
		env := newTestEnv(t)
		key, _ := setupLots(t, env)
		matcher := services.NewLotMatcher(env.tradeRepo)

		_, err := matcher.Match(env.ctx, nil, key, decimal.Zero, services.MatchPreview, 0)
		assertKind(t, utils.KindConstraint, err)
		_, err = matcher.Match(env.ctx, nil, key, decimal.NewFromInt(-1), services.MatchPreview, 0)
		assertKind(t, utils.KindConstraint, err)
	})

	t.Run("Unknown key has no lots", func(t *testing.T) {
		env := newTestEnv(t)
		key, _ := setupLots(t, env)
		key.Currency = "USD"
		matcher := services.NewLotMatcher(env.tradeRepo)

		_, err := matcher.Match(env.ctx, nil, key, decimal.NewFromInt(1), services.MatchPreview, 0)
		assertKind(t, utils.KindInsufficientLots, err)
	})
}
