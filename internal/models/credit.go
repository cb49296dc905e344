package models

import "time"

// Credit journal entry kinds.
const (
	CreditEntryDebit  = "debit"
	CreditEntryCredit = "credit"
	CreditEntryRefund = "refund"
)

// CreditReservation records one debit that must end committed or compensated.
type CreditReservation struct {
	ID int64 `gorm:"primaryKey;autoIncrement:false"` // Snowflake reservation handle.

	ShopID uint64 `gorm:"not null;index"` // Debited shop.
	Amount int64  `gorm:"not null"`       // Debited credits.

	CommittedAt   *time.Time // Set once a gift is persisted against the reservation.
	CompensatedAt *time.Time // Set once the debit is refunded.

	CreatedAt time.Time `gorm:"not null;autoCreateTime;index"` // Debit timestamp.
}

// CreditEntry is an append-only journal row for every balance change.
type CreditEntry struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ShopID        uint64 `gorm:"not null;index"`     // Affected shop.
	Kind          string `gorm:"type:text;not null"` // debit, credit or refund.
	Delta         int64  `gorm:"not null"`           // Signed balance change.
	BalanceAfter  int64  `gorm:"not null"`           // Balance after the change.
	ReservationID *int64 `gorm:"index"`              // Related reservation, if any.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
}
