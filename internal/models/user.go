package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID            uint64 `gorm:"primaryKey;autoIncrement"`
	WalletAddress string `gorm:"type:varchar(100);not null;uniqueIndex"`

	TotalVolume decimal.Decimal `gorm:"type:numeric(30,10);not null;default:0"`
	TotalTrades int64           `gorm:"not null;default:0"`

	LastSeenAt time.Time `gorm:"type:timestamptz"`
	CreatedAt  time.Time `gorm:"type:timestamptz;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"type:timestamptz;autoUpdateTime"`
}

func (User) TableName() string {
	return "users"
}
