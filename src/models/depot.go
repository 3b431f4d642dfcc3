package models

import "time"

// Depot is a brokerage account, identified by the broker and the broker's own id.
type Depot struct {
	ID         uint      `gorm:"primaryKey;column:id" json:"id"`
	Broker     string    `gorm:"column:broker;size:100;not null;uniqueIndex:idx_depot_broker_external" json:"broker"`
	ExternalID string    `gorm:"column:external_id;size:100;not null;uniqueIndex:idx_depot_broker_external" json:"external_id"`
	Currency   string    `gorm:"column:currency;size:3;not null" json:"currency"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Depot) TableName() string {
	return "depots"
}
