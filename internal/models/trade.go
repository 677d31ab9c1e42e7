package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TradeTypeMarket = "market"
	TradeTypeLimit  = "limit"
)

// Trade is immutable once written; the trade log is the source of truth
// for volume statistics. Seller and order ids are nil for AMM fills.
type Trade struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	RoundID string `gorm:"type:varchar(40);not null;index"`

	Side      string          `gorm:"type:varchar(10);not null"`
	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	Price     decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	TotalCost decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	BuyerID     uint64  `gorm:"not null;index"`
	SellerID    *uint64 `gorm:"index"`
	BuyOrderID  *uint64
	SellOrderID *uint64

	TradeType string `gorm:"type:varchar(20);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (Trade) TableName() string {
	return "trades"
}
