package models

import "time"

// PinClaim reserves a PIN. A claim without a gift belongs to an in-flight creation.
type PinClaim struct {
	Pin string `gorm:"type:text;primaryKey"` // Claimed code.

	GiftID *uint64 `gorm:"uniqueIndex"` // Gift using the PIN once persisted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Claim timestamp.
}
