package models

import "time"

// Binding event kinds.
const (
	BindingEventBind  = "bind"
	BindingEventReset = "reset"
)

// BindingEvent records a device binding transition of a gift.
type BindingEvent struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	GiftID   uint64 `gorm:"not null;index"`     // Gift whose binding changed.
	DeviceID string `gorm:"type:text;not null"` // Device bound, or the device released by a reset.
	Kind     string `gorm:"type:text;not null"` // bind or reset.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
