package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position aggregates a user's net exposure per round and side.
// Fills only ever add to it: amount and total cost grow, and the average
// price is recomputed as total_cost / amount.
type Position struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	UserID  uint64 `gorm:"not null;uniqueIndex:ux_positions_user_round_side,priority:1"`
	RoundID string `gorm:"type:varchar(40);not null;uniqueIndex:ux_positions_user_round_side,priority:2;index"`
	Side    string `gorm:"type:varchar(10);not null;uniqueIndex:ux_positions_user_round_side,priority:3"`

	Amount    decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	AvgPrice  decimal.Decimal `gorm:"type:numeric(20,10);not null;default:0"`
	TotalCost decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Position) TableName() string {
	return "user_positions"
}
