package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusActive    = "active"
	OrderStatusFilled    = "filled"
	OrderStatusCancelled = "cancelled"
)

// LimitOrder is a resting order in the book. Price is probability-like:
// a higher order at p and a lower order at q cross only when p + q >= 1.
type LimitOrder struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	UserID  uint64 `gorm:"not null;index"`
	RoundID string `gorm:"type:varchar(40);not null;index:idx_limit_orders_round_side,priority:1"`

	Side   string          `gorm:"type:varchar(10);not null;index:idx_limit_orders_round_side,priority:2"`
	Amount decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Price  decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	Filled decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	Status string `gorm:"type:varchar(20);not null;default:'active';index"`

	FilledAt    *time.Time `gorm:"type:timestamptz"`
	CancelledAt *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (LimitOrder) TableName() string {
	return "limit_orders"
}

func (o *LimitOrder) Remaining() decimal.Decimal {
	return o.Amount.Sub(o.Filled)
}
