package services_test

import (
	"strings"
	"testing"
	"time"

	"depotbook/src/models"
	"depotbook/src/services"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(d int) time.Time {
	return time.Date(2024, 1, d, 0, 0, 0, 0, time.UTC)
}

func quote(symbol, date, close string) services.PriceRow {
	c := decimal.RequireFromString(close)
	return services.PriceRow{
		Vendor: "yahoo", Symbol: symbol, Date: date,
		Open: c, High: c, Low: c, Close: c, Volume: decimal.NewFromInt(1000),
	}
}

// withSymbol registers AAPL at vendor yahoo.
func withSymbol(t *testing.T, env *testEnv) {
	t.Helper()
	_, err := env.catalog.GetOrCreateInstrument(env.ctx, nil, testISIN, "Apple", "USD")
	require.NoError(t, err)
	_, err = env.catalog.AddOrUpdateSymbol(env.ctx, env.admin, services.SymbolInput{
		ISIN: testISIN, Vendor: "yahoo", Market: "NASDAQ", Currency: "USD", Symbol: "AAPL",
	})
	require.NoError(t, err)
}

func loadAndMerge(t *testing.T, env *testEnv, rows ...services.PriceRow) *services.MergeResult {
	t.Helper()
	_, err := env.prices.LoadPriceBatch(env.ctx, rows)
	require.NoError(t, err)
	result, err := env.prices.MergeStagedPrices(env.ctx)
	require.NoError(t, err)
	return result
}

func TestMergeStagedPrices(t *testing.T) {
	env := newTestEnv(t)
	withSymbol(t, env)

	rows := []services.PriceRow{
		quote("AAPL", "2024-01-02", "10"),
		quote("AAPL", "2024-01-03", "11"),
		quote("AAPL", "2024-01-02", "10.5"),
		quote("MSFT", "2024-01-02", "5"),
	}

	batch, err := env.prices.LoadPriceBatch(env.ctx, rows)
	require.NoError(t, err)
	assert.Equal(t, 4, batch.Rows)
	assert.NotEmpty(t, batch.BatchID)
	assert.Equal(t, int64(4), env.countRows(t, &models.PriceStaging{}))

	result, err := env.prices.MergeStagedPrices(env.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Merged)
	assert.Equal(t, 1, result.Dropped)
	assert.Zero(t, env.countRows(t, &models.PriceStaging{}))

	series, err := env.prices.AdjustedSeries(env.ctx, "yahoo", "AAPL", day(1), day(31))
	require.NoError(t, err)
	require.Len(t, series, 2)
	assertDecimal(t, "10.5", series[0].Close)
	assertDecimal(t, "11", series[1].Close)

	t.Run("Reloading the same batch changes nothing", func(t *testing.T) {
		again, err := env.prices.LoadPriceBatch(env.ctx, rows)
		require.NoError(t, err)
		assert.Equal(t, batch.BatchID, again.BatchID)

		_, err = env.prices.MergeStagedPrices(env.ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(2), env.countRows(t, &models.Price{}))

		replay, err := env.prices.AdjustedSeries(env.ctx, "yahoo", "AAPL", day(1), day(31))
		require.NoError(t, err)
		assert.Equal(t, series, replay)
	})

	t.Run("Nothing staged", func(t *testing.T) {
		result, err := env.prices.MergeStagedPrices(env.ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Merged)
		assert.Zero(t, result.Dropped)
	})
}

func TestLoadPriceBatch(t *testing.T) {
	env := newTestEnv(t)

	result, err := env.prices.LoadPriceBatch(env.ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, result.Rows)
	assert.Empty(t, result.BatchID)

	_, err = env.prices.LoadPriceBatch(env.ctx, []services.PriceRow{quote("AAPL", "2024-01-02", "0")})
	assertKind(t, utils.KindConstraint, err)
	_, err = env.prices.LoadPriceBatch(env.ctx, []services.PriceRow{quote("AAPL", "02.01.2024", "1")})
	assertKind(t, utils.KindValidation, err)
	_, err = env.prices.LoadPriceBatch(env.ctx, []services.PriceRow{quote("", "2024-01-02", "1")})
	assertKind(t, utils.KindValidation, err)

	assert.Zero(t, env.countRows(t, &models.PriceStaging{}))
}

func TestAdjustmentFactor(t *testing.T) {
	testCases := []struct {
		name                       string
		dividend, prevClose, ratio string
		want                       float64
		kind                       utils.ErrorKind
	}{
		{name: "split", dividend: "0", prevClose: "50", ratio: "2", want: 0.5},
		{name: "dividend", dividend: "1", prevClose: "50", ratio: "1", want: 0.98},
		{name: "dividend and split", dividend: "1", prevClose: "100", ratio: "2", want: 0.495},
		{name: "unknown close skips the dividend", dividend: "1", prevClose: "0", ratio: "4", want: 0.25},
		{name: "dividend at close", dividend: "50", prevClose: "50", ratio: "1", kind: utils.KindConstraint},
		{name: "zero ratio", dividend: "0", prevClose: "50", ratio: "0", kind: utils.KindConstraint},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := services.AdjustmentFactor(
				decimal.RequireFromString(tc.dividend),
				decimal.RequireFromString(tc.prevClose),
				decimal.RequireFromString(tc.ratio))
			if tc.kind != "" {
				assertKind(t, tc.kind, err)
				return
			}
			require.NoError(t, err)
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestCumulativeFactor(t *testing.T) {
	assert.Equal(t, 1.0, services.CumulativeFactor(nil))

	factors := []float64{0.5, 0.98, 0.25, 0.999, 0.1}
	product := 1.0
	for _, f := range factors {
		product *= f
	}
	assert.InDelta(t, product, services.CumulativeFactor(factors), 1e-12)
}

func TestCorporateActions(t *testing.T) {
	env := newTestEnv(t)
	withSymbol(t, env)

	split := services.CorporateActionRow{Vendor: "yahoo", Symbol: "AAPL", Date: "2024-01-04", SplitRatio: decimal.NewFromInt(2)}
	dividend := services.CorporateActionRow{Vendor: "yahoo", Symbol: "AAPL", Date: "2024-01-05", Dividend: decimal.NewFromInt(1)}

	// Without a close before it the dividend stays unadjusted.
	result, err := env.prices.LoadCorporateActions(env.ctx, []services.CorporateActionRow{dividend})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Rows)
	factor, err := env.prices.CumulativeAdjustment(env.ctx, "yahoo", "AAPL", day(4), day(5))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, factor, 1e-12)

	loadAndMerge(t, env,
		quote("AAPL", "2024-01-02", "100"),
		quote("AAPL", "2024-01-03", "100"),
		quote("AAPL", "2024-01-04", "50"),
		quote("AAPL", "2024-01-05", "49"),
	)

	// Loading the split recomputes the dividend against the close now known.
	_, err = env.prices.LoadCorporateActions(env.ctx, []services.CorporateActionRow{split})
	require.NoError(t, err)

	t.Run("Cumulative adjustment covers (from, to]", func(t *testing.T) {
		factor, err := env.prices.CumulativeAdjustment(env.ctx, "yahoo", "AAPL", day(4), day(5))
		require.NoError(t, err)
		assert.InDelta(t, 0.98, factor, 1e-12)

		factor, err = env.prices.CumulativeAdjustment(env.ctx, "yahoo", "AAPL", day(3), day(5))
		require.NoError(t, err)
		assert.InDelta(t, 0.49, factor, 1e-12)

		factor, err = env.prices.CumulativeAdjustment(env.ctx, "yahoo", "AAPL", day(5), day(9))
		require.NoError(t, err)
		assert.InDelta(t, 1.0, factor, 1e-12)
	})

	t.Run("Adjusted series", func(t *testing.T) {
		series, err := env.prices.AdjustedSeries(env.ctx, "yahoo", "AAPL", day(2), day(5))
		require.NoError(t, err)
		require.Len(t, series, 4)

		wantFactors := []float64{0.49, 0.49, 0.98, 1}
		for i, p := range series {
			assert.InDelta(t, wantFactors[i], p.Factor, 1e-12, p.Date)
			assertDecimal(t, "49", p.Close)
			assertDecimal(t, "1000", p.Volume)
		}

		// Actions after to are not applied.
		series, err = env.prices.AdjustedSeries(env.ctx, "yahoo", "AAPL", day(2), day(3))
		require.NoError(t, err)
		require.Len(t, series, 2)
		assertDecimal(t, "100", series[0].Close)
	})

	t.Run("Rejected requests", func(t *testing.T) {
		_, err := env.prices.AdjustedSeries(env.ctx, "yahoo", "AAPL", day(5), day(2))
		assertKind(t, utils.KindValidation, err)
		_, err = env.prices.AdjustedSeries(env.ctx, "yahoo", "MSFT", day(2), day(5))
		assertKind(t, utils.KindNotFound, err)

		_, err = env.prices.LoadCorporateActions(env.ctx, []services.CorporateActionRow{
			{Vendor: "yahoo", Symbol: "MSFT", Date: "2024-01-04", SplitRatio: decimal.NewFromInt(2)},
		})
		assertKind(t, utils.KindNotFound, err)

		_, err = env.prices.LoadCorporateActions(env.ctx, []services.CorporateActionRow{
			{Vendor: "yahoo", Symbol: "AAPL", Date: "2024-01-05", Dividend: decimal.NewFromInt(60)},
		})
		assertKind(t, utils.KindConstraint, err)

		factor, err := env.prices.CumulativeAdjustment(env.ctx, "yahoo", "AAPL", day(4), day(5))
		require.NoError(t, err)
		assert.InDelta(t, 0.98, factor, 1e-12)
	})
}

func TestParsePriceCSV(t *testing.T) {
	input := "Vendor,Symbol,Date,Open,High,Low,Close,Volume\n" +
		"yahoo,AAPL,2024-01-02,1.5,2,1,1.75,\n" +
		"yahoo,AAPL,2024-01-03,1.75,2.5,1.5,2.25,1200\n"

	rows, err := services.ParsePriceCSV(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "AAPL", rows[0].Symbol)
	assert.Equal(t, "2024-01-02", rows[0].Date)
	assertDecimal(t, "1.75", rows[0].Close)
	assertDecimal(t, "0", rows[0].Volume)
	assertDecimal(t, "1200", rows[1].Volume)

	_, err = services.ParsePriceCSV(strings.NewReader("vendor,symbol,date,close\nyahoo,AAPL,2024-01-02,abc\n"))
	assertKind(t, utils.KindValidation, err)
}
