package models

import (
	"time"

	"gorm.io/datatypes"
)

// Gift represents one PIN-protected content unit.
type Gift struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Pin         string       `gorm:"type:text;not null;uniqueIndex"` // Uppercase redemption code.
	OwnerShopID uint64       `gorm:"not null;index"`                 // Shop billed for the gift.
	OwnerShop   *ShopAccount `gorm:"foreignKey:OwnerShopID"`         // Owning shop record.

	ContentRef string         `gorm:"type:text;not null"` // Opaque storage reference.
	Metadata   datatypes.JSON `gorm:"type:jsonb"`         // Shop-supplied display payload.

	BoundDeviceID *string    `gorm:"type:text;index"` // Device holding the binding, nil when unbound.
	BoundAt       *time.Time // Time of the current binding.

	ScanCount     int64      `gorm:"not null;default:0"` // Successful redemptions.
	LastScannedAt *time.Time // Last successful redemption.

	ReservationID int64 `gorm:"not null;uniqueIndex"` // Credit reservation that paid for the gift.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// Bound reports whether the gift is bound to a device.
func (g *Gift) Bound() bool {
	return g != nil && g.BoundDeviceID != nil
}
