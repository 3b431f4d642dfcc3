package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceStaging holds raw vendor rows until they are merged into prices.
type PriceStaging struct {
	ID        uint            `gorm:"primaryKey;column:id" json:"id"`
	BatchID   string          `gorm:"column:batch_id;size:36;not null;index" json:"batch_id"`
	Vendor    string          `gorm:"column:vendor;size:50;not null" json:"vendor"`
	Symbol    string          `gorm:"column:symbol;size:50;not null" json:"symbol"`
	Date      time.Time       `gorm:"column:date;type:date;not null" json:"date"`
	Open      decimal.Decimal `gorm:"column:open;type:numeric(28,8)" json:"open"`
	High      decimal.Decimal `gorm:"column:high;type:numeric(28,8)" json:"high"`
	Low       decimal.Decimal `gorm:"column:low;type:numeric(28,8)" json:"low"`
	Close     decimal.Decimal `gorm:"column:close;type:numeric(28,8);not null" json:"close"`
	Volume    decimal.Decimal `gorm:"column:volume;type:numeric(28,8)" json:"volume"`
	CreatedAt time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (PriceStaging) TableName() string {
	return "price_staging"
}

type Price struct {
	ID       uint            `gorm:"primaryKey;column:id" json:"id"`
	SymbolID uint            `gorm:"column:symbol_id;not null;uniqueIndex:idx_price_symbol_date" json:"symbol_id"`
	Date     time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:idx_price_symbol_date" json:"date"`
	Open     decimal.Decimal `gorm:"column:open;type:numeric(28,8)" json:"open"`
	High     decimal.Decimal `gorm:"column:high;type:numeric(28,8)" json:"high"`
	Low      decimal.Decimal `gorm:"column:low;type:numeric(28,8)" json:"low"`
	Close    decimal.Decimal `gorm:"column:close;type:numeric(28,8);not null" json:"close"`
	Volume   decimal.Decimal `gorm:"column:volume;type:numeric(28,8)" json:"volume"`
}

func (Price) TableName() string {
	return "prices"
}

// CorporateAction is a dividend and/or split on a symbol. SplitRatio is new
// shares per old share (2 for a 2-for-1 split). Factor is the price
// back-adjustment the action implies.
type CorporateAction struct {
	ID         uint            `gorm:"primaryKey;column:id" json:"id"`
	SymbolID   uint            `gorm:"column:symbol_id;not null;uniqueIndex:idx_action_symbol_date" json:"symbol_id"`
	Date       time.Time       `gorm:"column:date;type:date;not null;uniqueIndex:idx_action_symbol_date" json:"date"`
	Dividend   decimal.Decimal `gorm:"column:dividend;type:numeric(28,8);not null" json:"dividend"`
	SplitRatio decimal.Decimal `gorm:"column:split_ratio;type:numeric(28,8);not null" json:"split_ratio"`
	Factor     float64         `gorm:"column:factor;not null" json:"factor"`
}

func (CorporateAction) TableName() string {
	return "corporate_actions"
}
