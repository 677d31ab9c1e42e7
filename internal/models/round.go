package models

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoundStatusActive  = "active"
	RoundStatusClosed  = "closed"
	RoundStatusSettled = "settled"
)

// Round is the canonical time-boxed market for one duration class.
// The ID is derived from duration and end boundary ("15m-1760000000"),
// so concurrent creation requests collapse onto the same row.
type Round struct {
	ID              string `gorm:"type:varchar(40);primaryKey"`
	DurationMinutes int    `gorm:"not null;index"`

	StartTime time.Time `gorm:"type:timestamptz;not null"`
	EndTime   time.Time `gorm:"type:timestamptz;not null;index"`

	Status string `gorm:"type:varchar(20);not null;default:'active';index"`

	StartValuation decimal.Decimal  `gorm:"type:numeric(30,10);not null;default:0"`
	FinalValuation *decimal.Decimal `gorm:"type:numeric(30,10)"`

	WinningSide string     `gorm:"type:varchar(10)"`
	ClosedAt    *time.Time `gorm:"type:timestamptz"`
	SettledAt   *time.Time `gorm:"type:timestamptz"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (Round) TableName() string {
	return "rounds"
}
