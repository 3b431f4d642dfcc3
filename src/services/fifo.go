package services

import (
	"context"

	"depotbook/src/models"
	"depotbook/src/repositories"
	"depotbook/src/utils"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type MatchMode int

const (
	// MatchPreview only computes what a sell would consume.
	MatchPreview MatchMode = iota
	// MatchCommit consumes the lots and records allotments.
	MatchCommit
)

// LotConsumption is one step of a lot walk: Qty taken from the buy trade at Price.
type LotConsumption struct {
	BuyTradeID uint            `json:"buy_trade_id"`
	Qty        decimal.Decimal `json:"qty"`
	Price      decimal.Decimal `json:"price"`
}

type MatchResult struct {
	InvestedVolume decimal.Decimal  `json:"invested_volume"`
	Consumed       []LotConsumption `json:"consumed"`
}

// LotMatcher consumes open buy lots first in, first out.
type LotMatcher struct {
	tradeRepo repositories.TradeRepository
}

func NewLotMatcher(tradeRepo repositories.TradeRepository) *LotMatcher {
	return &LotMatcher{tradeRepo: tradeRepo}
}

// Match walks the open lots of key by (valuedate, id) until q is covered.
// Preview and commit share the walk; commit then applies every step for
// sellTradeID. Nothing is written when the lots cannot cover q.
func (m *LotMatcher) Match(ctx context.Context, tx *gorm.DB, key models.LotKey, q decimal.Decimal, mode MatchMode, sellTradeID uint) (*MatchResult, error) {
	if !q.IsPositive() {
		return nil, utils.ConstraintError("quantity to match must be positive, got %s", q)
	}
	if mode == MatchCommit && sellTradeID == 0 {
		return nil, utils.ConstraintError("commit requires the sell trade")
	}

	lots, err := m.tradeRepo.GetOpenLots(ctx, key, tx)
	if err != nil {
		return nil, err
	}

	result := &MatchResult{InvestedVolume: decimal.Zero}
	remaining := q
	open := make(map[uint]decimal.Decimal, len(lots))
	for _, lot := range lots {
		if !remaining.IsPositive() {
			break
		}
		take := lot.QtyAllotted
		if remaining.LessThanOrEqual(lot.QtyAllotted) {
			take = remaining
		}
		result.InvestedVolume = result.InvestedVolume.Add(take.Mul(lot.Price))
		result.Consumed = append(result.Consumed, LotConsumption{BuyTradeID: lot.ID, Qty: take, Price: lot.Price})
		open[lot.ID] = lot.QtyAllotted
		remaining = remaining.Sub(take)
	}
	if remaining.IsPositive() {
		return nil, utils.InsufficientLotsError("%s lacks %s of the requested %s", key, remaining, q)
	}

	if mode == MatchPreview {
		return result, nil
	}
	for _, step := range result.Consumed {
		left := open[step.BuyTradeID].Sub(step.Qty)
		if err := m.tradeRepo.UpdateQtyAllotted(ctx, step.BuyTradeID, left, tx); err != nil {
			return nil, err
		}
		allotment := &models.TradeAllotment{SellTradeID: sellTradeID, BuyTradeID: step.BuyTradeID, Qty: step.Qty}
		if err := m.tradeRepo.CreateAllotment(ctx, allotment, tx); err != nil {
			return nil, err
		}
	}
	return result, nil
}
