package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// ValuationTick is one observation of the reference asset's market cap
// from the upstream feed. Settlement reads the last tick at or before a
// round's end time; trading never depends on ticks.
type ValuationTick struct {
	ID     uint64 `gorm:"primaryKey;autoIncrement"`
	Source string `gorm:"type:varchar(30);not null"`

	MarketCap decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	ObservedAt time.Time `gorm:"type:timestamptz;not null;index"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
}

func (ValuationTick) TableName() string {
	return "valuation_ticks"
}
