package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Trade is a booked buy (Qty > 0) or sell (Qty < 0). QtyAllotted is the part
// of a buy that no sell has consumed yet; it is always zero for sells.
type Trade struct {
	ID           uint            `gorm:"primaryKey;column:id" json:"id"`
	DepotID      uint            `gorm:"column:depot_id;not null;index:idx_trade_lot_key" json:"depot_id"`
	InstrumentID uint            `gorm:"column:instrument_id;not null;index:idx_trade_lot_key" json:"instrument_id"`
	Currency     string          `gorm:"column:currency;size:3;not null;index:idx_trade_lot_key" json:"currency"`
	Valuedate    time.Time       `gorm:"column:valuedate;type:date;not null" json:"valuedate"`
	Qty          decimal.Decimal `gorm:"column:qty;type:numeric(28,8);not null" json:"qty"`
	Price        decimal.Decimal `gorm:"column:price;type:numeric(28,8);not null" json:"price"`
	Volume       decimal.Decimal `gorm:"column:volume;type:numeric(28,8);not null" json:"volume"`
	QtyAllotted  decimal.Decimal `gorm:"column:qty_allotted;type:numeric(28,8);not null" json:"qty_allotted"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Trade) TableName() string {
	return "trades"
}

func (t Trade) IsSell() bool {
	return t.Qty.IsNegative()
}

// TradeAllotment records that a sell consumed Qty of a buy lot.
type TradeAllotment struct {
	ID          uint            `gorm:"primaryKey;column:id" json:"id"`
	SellTradeID uint            `gorm:"column:sell_trade_id;not null;index" json:"sell_trade_id"`
	BuyTradeID  uint            `gorm:"column:buy_trade_id;not null;index" json:"buy_trade_id"`
	Qty         decimal.Decimal `gorm:"column:qty;type:numeric(28,8);not null" json:"qty"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (TradeAllotment) TableName() string {
	return "trade_allotments"
}

type PaymentType string

const (
	PaymentFee        PaymentType = "fee"
	PaymentCommission PaymentType = "commission"
	PaymentTax        PaymentType = "tax"
	PaymentBuy        PaymentType = "buy"
	PaymentSell       PaymentType = "sell"
	PaymentPnL        PaymentType = "pnl"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentFee, PaymentCommission, PaymentTax, PaymentBuy, PaymentSell, PaymentPnL:
		return true
	}
	return false
}

type Payment struct {
	ID        uint            `gorm:"primaryKey;column:id" json:"id"`
	TradeID   uint            `gorm:"column:trade_id;not null;index" json:"trade_id"`
	Type      PaymentType     `gorm:"column:type;size:20;not null" json:"type"`
	Amount    decimal.Decimal `gorm:"column:amount;type:numeric(28,8);not null" json:"amount"`
	Currency  string          `gorm:"column:currency;size:3;not null" json:"currency"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Payment) TableName() string {
	return "payments"
}

// LotKey identifies the lots a sell can consume: same depot, instrument and currency.
type LotKey struct {
	DepotID      uint
	InstrumentID uint
	Currency     string
}

func (k LotKey) String() string {
	return fmt.Sprintf("lots:%d:%d:%s", k.DepotID, k.InstrumentID, k.Currency)
}
