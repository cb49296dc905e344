// Package binding enforces the first-device binding of gifts.
//
// A gift is Unbound or Bound(device). Binding is a conditional UPDATE on
// bound_device_id IS NULL, so among concurrent redemptions exactly one device wins.
// Failed redemptions never write.
package binding

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/giftar/giftpin/internal/apperr"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/pins"
)

const (
	maxDeviceIDLength = 255
	// maxVerifyRounds bounds re-evaluation when a reset lands between reading and binding.
	maxVerifyRounds = 3
)

var (
	// ErrInvalidDevice indicates a blank or oversized device identifier.
	ErrInvalidDevice = errors.New("binding: invalid device id")
	// ErrBindingContention indicates the binding kept changing while verifying.
	ErrBindingContention = errors.New("binding: binding changed during verification")
)

// Redemption is the result of a successful verification.
type Redemption struct {
	GiftID     uint64
	ContentRef string
	ScanCount  int64
	FirstBind  bool
}

// Guard verifies and resets device bindings.
type Guard struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGuard constructs a Guard.
func NewGuard(db *gorm.DB) *Guard {
	return &Guard{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// Verify redeems the gift identified by pin on deviceID.
func (g *Guard) Verify(ctx context.Context, pin, deviceID string) (Redemption, error) {
	pin = pins.NormalizePin(pin)
	deviceID = strings.TrimSpace(deviceID)
	if deviceID == "" || len(deviceID) > maxDeviceIDLength {
		return Redemption{}, ErrInvalidDevice
	}
	if pin == "" {
		return Redemption{}, apperr.ErrNotFound
	}

	gift, errFind := g.loadGift(ctx, "pin = ?", pin)
	if errFind != nil {
		return Redemption{}, errFind
	}
	if errTenant := g.ensureTenantActive(ctx, gift.OwnerShopID); errTenant != nil {
		return Redemption{}, errTenant
	}

	for round := 0; round < maxVerifyRounds; round++ {
		var bind bool
		switch {
		case gift.BoundDeviceID == nil:
			bind = true
		case *gift.BoundDeviceID == deviceID:
			bind = false
		default:
			return Redemption{}, apperr.ErrDeviceMismatch
		}

		scanCount, ok, errAdvance := g.advance(ctx, gift.ID, deviceID, bind)
		if errAdvance != nil {
			return Redemption{}, errAdvance
		}
		if ok {
			return Redemption{
				GiftID:     gift.ID,
				ContentRef: gift.ContentRef,
				ScanCount:  scanCount,
				FirstBind:  bind,
			}, nil
		}

		// Lost a race with another device or a reset; judge the new state.
		gift, errFind = g.loadGift(ctx, "id = ?", gift.ID)
		if errFind != nil {
			return Redemption{}, errFind
		}
	}
	return Redemption{}, ErrBindingContention
}

// advance performs the bind (bind=true) or same-device rescan as one guarded UPDATE
// and reports whether the guard matched.
func (g *Guard) advance(ctx context.Context, giftID uint64, deviceID string, bind bool) (int64, bool, error) {
	now := g.now()
	var (
		scanCount int64
		matched   bool
	)
	errTx := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.Gift{})
		updates := map[string]any{
			"scan_count":      gorm.Expr("scan_count + 1"),
			"last_scanned_at": now,
		}
		if bind {
			query = query.Where("id = ? AND bound_device_id IS NULL", giftID)
			updates["bound_device_id"] = deviceID
			updates["bound_at"] = now
		} else {
			query = query.Where("id = ? AND bound_device_id = ?", giftID, deviceID)
		}
		res := query.Updates(updates)
		if res.Error != nil {
			return fmt.Errorf("binding: update gift: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		matched = true

		if bind {
			if errEvent := tx.Create(&models.BindingEvent{
				GiftID:    giftID,
				DeviceID:  deviceID,
				Kind:      models.BindingEventBind,
				CreatedAt: now,
			}).Error; errEvent != nil {
				return fmt.Errorf("binding: record bind: %w", errEvent)
			}
		}

		var fresh models.Gift
		if errFind := tx.Select("id", "scan_count").First(&fresh, giftID).Error; errFind != nil {
			return fmt.Errorf("binding: reload gift: %w", errFind)
		}
		scanCount = fresh.ScanCount
		return nil
	})
	if errTx != nil {
		return 0, false, errTx
	}
	return scanCount, matched, nil
}

// Reset returns a gift to Unbound. Resetting an Unbound gift is a no-op.
// Scan count, balance and PIN are untouched.
func (g *Guard) Reset(ctx context.Context, giftID uint64) error {
	now := g.now()
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gift models.Gift
		if errFind := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id", "bound_device_id").
			First(&gift, giftID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("binding: gift %d: %w", giftID, apperr.ErrNotFound)
			}
			return fmt.Errorf("binding: load gift: %w", errFind)
		}
		if gift.BoundDeviceID == nil {
			return nil
		}

		res := tx.Model(&models.Gift{}).
			Where("id = ? AND bound_device_id IS NOT NULL", giftID).
			Updates(map[string]any{
				"bound_device_id": nil,
				"bound_at":        nil,
			})
		if res.Error != nil {
			return fmt.Errorf("binding: reset gift: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return nil
		}
		if errEvent := tx.Create(&models.BindingEvent{
			GiftID:    giftID,
			DeviceID:  *gift.BoundDeviceID,
			Kind:      models.BindingEventReset,
			CreatedAt: now,
		}).Error; errEvent != nil {
			return fmt.Errorf("binding: record reset: %w", errEvent)
		}
		return nil
	})
}

// Events returns the binding history of a gift, oldest first.
func (g *Guard) Events(ctx context.Context, giftID uint64) ([]models.BindingEvent, error) {
	var events []models.BindingEvent
	if errFind := g.db.WithContext(ctx).
		Where("gift_id = ?", giftID).
		Order("id ASC").
		Find(&events).Error; errFind != nil {
		return nil, fmt.Errorf("binding: list events: %w", errFind)
	}
	return events, nil
}

func (g *Guard) loadGift(ctx context.Context, query string, arg any) (models.Gift, error) {
	var gift models.Gift
	if errFind := g.db.WithContext(ctx).
		Select("id", "owner_shop_id", "content_ref", "bound_device_id", "scan_count").
		Where(query, arg).
		First(&gift).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.Gift{}, apperr.ErrNotFound
		}
		return models.Gift{}, fmt.Errorf("binding: load gift: %w", errFind)
	}
	return gift, nil
}

// ensureTenantActive refuses gifts whose shop is blocked or soft-deleted.
func (g *Guard) ensureTenantActive(ctx context.Context, shopID uint64) error {
	var shop models.ShopAccount
	if errFind := g.db.WithContext(ctx).Unscoped().
		Select("id", "blocked", "deleted_at").
		First(&shop, shopID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return apperr.ErrTenantBlocked
		}
		return fmt.Errorf("binding: load shop: %w", errFind)
	}
	if shop.Blocked || shop.DeletedAt.Valid {
		return apperr.ErrTenantBlocked
	}
	return nil
}
