package db

import (
	"fmt"

	"github.com/giftar/giftpin/internal/models"
	"gorm.io/gorm"
)

// Migrate creates or updates every table the service owns.
func Migrate(conn *gorm.DB) error {
	if conn == nil {
		return fmt.Errorf("db: migrate: nil connection")
	}
	if errMigrate := conn.AutoMigrate(
		&models.ShopAccount{},
		&models.Gift{},
		&models.PinClaim{},
		&models.CreditReservation{},
		&models.CreditEntry{},
		&models.BindingEvent{},
		&models.Operator{},
	); errMigrate != nil {
		return fmt.Errorf("db: migrate: %w", errMigrate)
	}
	return nil
}
