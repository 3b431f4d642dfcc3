package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type CashflowType string

const (
	CashflowDeposit    CashflowType = "deposit"
	CashflowWithdrawal CashflowType = "withdrawal"
	CashflowDividend   CashflowType = "dividend"
	CashflowInterest   CashflowType = "interest"
	CashflowFee        CashflowType = "fee"
	CashflowTax        CashflowType = "tax"
)

func (t CashflowType) Valid() bool {
	switch t {
	case CashflowDeposit, CashflowWithdrawal, CashflowDividend, CashflowInterest, CashflowFee, CashflowTax:
		return true
	}
	return false
}

// Cashflow is a cash movement on a depot. InstrumentID is only set for dividends.
type Cashflow struct {
	ID           uint            `gorm:"primaryKey;column:id" json:"id"`
	DepotID      uint            `gorm:"column:depot_id;not null;index" json:"depot_id"`
	InstrumentID *uint           `gorm:"column:instrument_id" json:"instrument_id,omitempty"`
	Type         CashflowType    `gorm:"column:type;size:20;not null" json:"type"`
	Valuedate    time.Time       `gorm:"column:valuedate;type:date;not null" json:"valuedate"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(28,8);not null" json:"amount"`
	Currency     string          `gorm:"column:currency;size:3;not null" json:"currency"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Cashflow) TableName() string {
	return "cashflows"
}
