package db

import (
	"updown/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.Round{},
		&models.PoolSnapshot{},
		&models.LimitOrder{},
		&models.Trade{},
		&models.Position{},
		&models.Settlement{},
		&models.AuditEntry{},
		&models.ValuationTick{},
	)
}
