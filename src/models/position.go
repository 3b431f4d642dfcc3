package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the holding of an instrument in a depot as of Valuedate. It is
// derived from the open lots and rewritten after every trade on its key.
type Position struct {
	ID           uint            `gorm:"primaryKey;column:id" json:"id"`
	DepotID      uint            `gorm:"column:depot_id;not null;uniqueIndex:idx_position_key" json:"depot_id"`
	InstrumentID uint            `gorm:"column:instrument_id;not null;uniqueIndex:idx_position_key" json:"instrument_id"`
	Valuedate    time.Time       `gorm:"column:valuedate;type:date;not null;uniqueIndex:idx_position_key" json:"valuedate"`
	Currency     string          `gorm:"column:currency;size:3;not null;uniqueIndex:idx_position_key" json:"currency"`
	Qty          decimal.Decimal `gorm:"column:qty;type:numeric(28,8);not null" json:"qty"`
	Vol          decimal.Decimal `gorm:"column:vol;type:numeric(28,8);not null" json:"vol"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Position) TableName() string {
	return "positions"
}
