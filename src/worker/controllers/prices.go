package controllers

import (
	"context"
	"time"

	"depotbook/src/services"
)

func (c *Controller) LoadPrices(ctx context.Context, rows []services.PriceRow) (*services.BatchResult, error) {
	return c.PriceService.LoadPriceBatch(ctx, rows)
}

func (c *Controller) MergePrices(ctx context.Context) (*services.MergeResult, error) {
	return c.PriceService.MergeStagedPrices(ctx)
}

func (c *Controller) LoadCorporateActions(ctx context.Context, rows []services.CorporateActionRow) (*services.BatchResult, error) {
	return c.PriceService.LoadCorporateActions(ctx, rows)
}

// GetAdjustedSeries returns the adjusted series and the cumulative factor
// over the whole range.
func (c *Controller) GetAdjustedSeries(ctx context.Context, vendor, symbol string, from, to time.Time) ([]services.AdjustedPrice, float64, error) {
	series, err := c.PriceService.AdjustedSeries(ctx, vendor, symbol, from, to)
	if err != nil {
		return nil, 0, err
	}
	factor, err := c.PriceService.CumulativeAdjustment(ctx, vendor, symbol, from, to)
	if err != nil {
		return nil, 0, err
	}
	return series, factor, nil
}
