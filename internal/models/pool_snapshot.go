package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PoolSnapshot is an append-only record of the AMM reserves after each
// execution. The latest snapshot for a round is its current state; older
// rows are kept as the audit trail.
type PoolSnapshot struct {
	ID      uint64 `gorm:"primaryKey;autoIncrement"`
	RoundID string `gorm:"type:varchar(40);not null;index"`

	HigherReserve decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	LowerReserve  decimal.Decimal `gorm:"type:numeric(30,10);not null"`
	K             decimal.Decimal `gorm:"column:k_constant;type:numeric(40,10);not null"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (PoolSnapshot) TableName() string {
	return "pool_snapshots"
}
