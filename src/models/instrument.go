package models

import "time"

type Instrument struct {
	ID        uint      `gorm:"primaryKey;column:id" json:"id"`
	ISIN      string    `gorm:"column:isin;size:12;not null;uniqueIndex" json:"isin"`
	Name      string    `gorm:"column:name;size:100;not null" json:"name"`
	Currency  string    `gorm:"column:currency;size:3;not null" json:"currency"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Instrument) TableName() string {
	return "instruments"
}

type Market struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;size:50;not null;uniqueIndex" json:"name"`
}

func (Market) TableName() string {
	return "markets"
}

// Vendor is a price data source; symbols are unique per vendor.
type Vendor struct {
	ID   uint   `gorm:"primaryKey;column:id" json:"id"`
	Name string `gorm:"column:name;size:50;not null;uniqueIndex" json:"name"`
}

func (Vendor) TableName() string {
	return "vendors"
}

// Symbol maps a vendor/market ticker onto an instrument.
type Symbol struct {
	ID           uint      `gorm:"primaryKey;column:id" json:"id"`
	InstrumentID uint      `gorm:"column:instrument_id;not null;uniqueIndex:idx_symbol_listing" json:"instrument_id"`
	VendorID     uint      `gorm:"column:vendor_id;not null;uniqueIndex:idx_symbol_listing;uniqueIndex:idx_symbol_vendor_ticker" json:"vendor_id"`
	MarketID     uint      `gorm:"column:market_id;not null;uniqueIndex:idx_symbol_listing" json:"market_id"`
	Currency     string    `gorm:"column:currency;size:3;not null;uniqueIndex:idx_symbol_listing" json:"currency"`
	Symbol       string    `gorm:"column:symbol;size:50;not null;uniqueIndex:idx_symbol_vendor_ticker" json:"symbol"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Symbol) TableName() string {
	return "symbols"
}
