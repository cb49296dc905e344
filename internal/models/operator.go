package models

import (
	"time"

	"gorm.io/datatypes"
)

// Operator represents a back-office account allowed to run override actions.
type Operator struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Username string `gorm:"type:text;not null;uniqueIndex"` // Unique login name.
	Password string `gorm:"type:text;not null"`             // Hashed password.

	Active bool `gorm:"not null;default:true"` // Whether the operator can sign in.

	IsSuperOperator bool `gorm:"not null;default:false"` // Grants all permissions when true.

	Permissions datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // Permission keys in JSON.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
