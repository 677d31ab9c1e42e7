package models

import (
	"time"

	"gorm.io/datatypes"
)

type AuditEntry struct {
	ID     uint64  `gorm:"primaryKey;autoIncrement"`
	UserID *uint64 `gorm:"index"`

	Action  string         `gorm:"type:varchar(50);not null;index"`
	Details datatypes.JSON `gorm:"type:jsonb"`

	IPAddress string `gorm:"type:varchar(60)"`
	UserAgent string `gorm:"type:varchar(300)"`

	CreatedAt time.Time `gorm:"type:timestamptz;autoCreateTime;index"`
}

func (AuditEntry) TableName() string {
	return "audit_log"
}
