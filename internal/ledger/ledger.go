// Package ledger keeps per-shop credit balances. Every debit is backed by a
// reservation row that ends either committed (a gift was persisted) or compensated.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/apperr"
	"github.com/giftar/giftpin/internal/models"
)

// Ledger errors outside the shared taxonomy.
var (
	// ErrInvalidAmount indicates a non-positive amount.
	ErrInvalidAmount = errors.New("ledger: amount must be positive")
	// ErrReservationNotFound indicates an unknown reservation handle.
	ErrReservationNotFound = errors.New("ledger: reservation not found")
	// ErrReservationCommitted indicates a compensation attempt on a reservation backing a gift.
	ErrReservationCommitted = errors.New("ledger: reservation already committed")
	// ErrReservationSettled indicates a commit attempt on a reservation that was already settled.
	ErrReservationSettled = errors.New("ledger: reservation already settled")
)

var errAlreadyCompensated = errors.New("ledger: reservation already compensated")

// Reservation is the handle returned by a successful debit.
type Reservation struct {
	Handle    int64
	ShopID    uint64
	Amount    int64
	CreatedAt time.Time
}

// Ledger mutates shop balances with conditional updates, one row per shop.
type Ledger struct {
	db   *gorm.DB
	node *snowflake.Node
	now  func() time.Time
}

// New constructs a Ledger whose reservation handles come from the given snowflake node.
func New(db *gorm.DB, nodeID int64) (*Ledger, error) {
	if db == nil {
		return nil, fmt.Errorf("ledger: nil db")
	}
	node, errNode := snowflake.NewNode(nodeID)
	if errNode != nil {
		return nil, fmt.Errorf("ledger: snowflake node: %w", errNode)
	}
	return &Ledger{
		db:   db,
		node: node,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// ReserveAndDebit takes amount credits from an unblocked shop with enough balance.
// The balance check and decrement are a single UPDATE, so concurrent callers can
// never drive the balance below zero.
func (l *Ledger) ReserveAndDebit(ctx context.Context, shopID uint64, amount int64) (Reservation, error) {
	if amount <= 0 {
		return Reservation{}, ErrInvalidAmount
	}
	reservation := Reservation{
		Handle:    l.node.Generate().Int64(),
		ShopID:    shopID,
		Amount:    amount,
		CreatedAt: l.now(),
	}

	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ShopAccount{}).
			Where("id = ? AND blocked = ? AND balance >= ?", shopID, false, amount).
			Update("balance", gorm.Expr("balance - ?", amount))
		if res.Error != nil {
			return fmt.Errorf("ledger: debit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return debitRefusal(tx, shopID)
		}

		if errCreate := tx.Create(&models.CreditReservation{
			ID:        reservation.Handle,
			ShopID:    shopID,
			Amount:    amount,
			CreatedAt: reservation.CreatedAt,
		}).Error; errCreate != nil {
			return fmt.Errorf("ledger: create reservation: %w", errCreate)
		}
		_, errEntry := appendEntry(tx, shopID, models.CreditEntryDebit, -amount, &reservation.Handle)
		return errEntry
	})
	if errTx != nil {
		return Reservation{}, errTx
	}
	return reservation, nil
}

// debitRefusal explains why the conditional debit matched no row.
func debitRefusal(tx *gorm.DB, shopID uint64) error {
	var shop models.ShopAccount
	if errFind := tx.Select("id", "blocked", "balance").First(&shop, shopID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return fmt.Errorf("ledger: shop %d: %w", shopID, apperr.ErrNotFound)
		}
		return fmt.Errorf("ledger: load shop: %w", errFind)
	}
	if shop.Blocked {
		return fmt.Errorf("ledger: shop %d: %w", shopID, apperr.ErrTenantBlocked)
	}
	return fmt.Errorf("ledger: shop %d: %w", shopID, apperr.ErrInsufficientBalance)
}

// Credit adds amount credits to an existing shop and returns the new balance.
func (l *Ledger) Credit(ctx context.Context, shopID uint64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	var balance int64
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.ShopAccount{}).
			Where("id = ?", shopID).
			Update("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("ledger: credit: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("ledger: shop %d: %w", shopID, apperr.ErrNotFound)
		}
		after, errEntry := appendEntry(tx, shopID, models.CreditEntryCredit, amount, nil)
		balance = after
		return errEntry
	})
	if errTx != nil {
		return 0, errTx
	}
	return balance, nil
}

// Compensate refunds a reservation exactly once. Repeated calls for the same handle
// are no-ops. The refund amount comes from the stored reservation.
func (l *Ledger) Compensate(ctx context.Context, reservation Reservation) error {
	errTx := l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.CreditReservation{}).
			Where("id = ? AND committed_at IS NULL AND compensated_at IS NULL", reservation.Handle).
			Update("compensated_at", l.now())
		if res.Error != nil {
			return fmt.Errorf("ledger: mark compensated: %w", res.Error)
		}

		var stored models.CreditReservation
		if errFind := tx.First(&stored, reservation.Handle).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return ErrReservationNotFound
			}
			return fmt.Errorf("ledger: load reservation: %w", errFind)
		}
		if res.RowsAffected == 0 {
			if stored.CommittedAt != nil {
				return ErrReservationCommitted
			}
			return errAlreadyCompensated
		}

		// Refunds land on soft-deleted shops too, so the journal always balances.
		if errRefund := tx.Unscoped().Model(&models.ShopAccount{}).
			Where("id = ?", stored.ShopID).
			Update("balance", gorm.Expr("balance + ?", stored.Amount)).Error; errRefund != nil {
			return fmt.Errorf("ledger: refund: %w", errRefund)
		}
		_, errEntry := appendEntry(tx, stored.ShopID, models.CreditEntryRefund, stored.Amount, &stored.ID)
		return errEntry
	})
	if errors.Is(errTx, errAlreadyCompensated) {
		return nil
	}
	return errTx
}

// CommitTx marks a pending reservation as backing a persisted gift. It runs inside the
// caller's transaction so the gift row and the commit land together.
func (l *Ledger) CommitTx(ctx context.Context, tx *gorm.DB, handle int64) error {
	res := tx.WithContext(ctx).Model(&models.CreditReservation{}).
		Where("id = ? AND committed_at IS NULL AND compensated_at IS NULL", handle).
		Update("committed_at", l.now())
	if res.Error != nil {
		return fmt.Errorf("ledger: commit reservation: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationSettled
	}
	return nil
}

// Balance returns the current balance of a non-deleted shop.
func (l *Ledger) Balance(ctx context.Context, shopID uint64) (int64, error) {
	var shop models.ShopAccount
	if errFind := l.db.WithContext(ctx).Select("id", "balance").First(&shop, shopID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return 0, fmt.Errorf("ledger: shop %d: %w", shopID, apperr.ErrNotFound)
		}
		return 0, fmt.Errorf("ledger: load shop: %w", errFind)
	}
	return shop.Balance, nil
}

// Entries returns the newest journal entries of a shop.
func (l *Ledger) Entries(ctx context.Context, shopID uint64, limit int) ([]models.CreditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var entries []models.CreditEntry
	if errFind := l.db.WithContext(ctx).
		Where("shop_id = ?", shopID).
		Order("id DESC").
		Limit(limit).
		Find(&entries).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: list entries: %w", errFind)
	}
	return entries, nil
}

// PendingBefore lists reservations neither committed nor compensated that were
// created before cutoff.
func (l *Ledger) PendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]Reservation, error) {
	var rows []models.CreditReservation
	if errFind := l.db.WithContext(ctx).
		Where("committed_at IS NULL AND compensated_at IS NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error; errFind != nil {
		return nil, fmt.Errorf("ledger: list pending: %w", errFind)
	}
	out := make([]Reservation, 0, len(rows))
	for _, row := range rows {
		out = append(out, Reservation{
			Handle:    row.ID,
			ShopID:    row.ShopID,
			Amount:    row.Amount,
			CreatedAt: row.CreatedAt,
		})
	}
	return out, nil
}

// appendEntry journals a balance change and returns the balance after it.
func appendEntry(tx *gorm.DB, shopID uint64, kind string, delta int64, reservationID *int64) (int64, error) {
	var balance int64
	if errScan := tx.Unscoped().Model(&models.ShopAccount{}).
		Select("balance").
		Where("id = ?", shopID).
		Row().Scan(&balance); errScan != nil {
		return 0, fmt.Errorf("ledger: read balance: %w", errScan)
	}
	entry := models.CreditEntry{
		ShopID:        shopID,
		Kind:          kind,
		Delta:         delta,
		BalanceAfter:  balance,
		ReservationID: reservationID,
	}
	if errCreate := tx.Create(&entry).Error; errCreate != nil {
		return 0, fmt.Errorf("ledger: append entry: %w", errCreate)
	}
	return balance, nil
}
