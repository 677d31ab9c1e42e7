package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement is written once per (user, round, side) when a round settles.
// Re-settling may overwrite a row until its claimed flag is set; a claimed
// row is final.
type Settlement struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	UserID  uint64 `gorm:"not null;uniqueIndex:ux_settlements_user_round_side,priority:1"`
	RoundID string `gorm:"type:varchar(40);not null;uniqueIndex:ux_settlements_user_round_side,priority:2;index"`
	Side    string `gorm:"type:varchar(10);not null;uniqueIndex:ux_settlements_user_round_side,priority:3"`

	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null"`
	TotalCost decimal.Decimal `gorm:"type:numeric(30,10);not null"`

	Won        bool            `gorm:"not null"`
	Payout     decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	ProfitLoss decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	Claimed     bool       `gorm:"not null;default:false;index"`
	ClaimedAt   *time.Time `gorm:"type:timestamptz"`
	ClaimRef    string     `gorm:"type:varchar(64)"`
	ClaimTxHash string     `gorm:"type:varchar(120)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Settlement) TableName() string {
	return "user_settlements"
}
