package models

import (
	"time"

	"gorm.io/gorm"
)

// ShopAccount represents a tenant that issues gifts against a credit balance.
type ShopAccount struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name    string `gorm:"type:text;not null"`                                    // Shop display name.
	Balance int64  `gorm:"not null;default:0;check:chk_shop_balance,balance >= 0"` // Remaining gift credits.
	Blocked bool   `gorm:"not null;default:false;index"`                          // Refuses issuance and redemption when true.

	CreatedAt time.Time      `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time      `gorm:"not null;autoUpdateTime"` // Last update timestamp.
	DeletedAt gorm.DeletedAt `gorm:"index"`                   // Soft delete marker.
}
