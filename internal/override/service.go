// Package override implements operator actions that bypass the shop and viewer
// guards: top-ups, binding resets, tenant blocking and gift deletion.
package override

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/apperr"
	"github.com/giftar/giftpin/internal/binding"
	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/permissions"
	"github.com/giftar/giftpin/internal/pins"
	"github.com/giftar/giftpin/internal/security"
	"github.com/giftar/giftpin/internal/util"
)

var (
	// ErrForbidden indicates the capability lacks the required permission.
	ErrForbidden = errors.New("override: permission denied")
	// ErrInvalidShop indicates a shop request with a blank name or negative balance.
	ErrInvalidShop = errors.New("override: shop name is required and balance must not be negative")
)

// GiftDetail is a gift with its binding history.
type GiftDetail struct {
	Gift   models.Gift
	Events []models.BindingEvent
}

// Service runs operator actions.
type Service struct {
	db     *gorm.DB
	ledger *ledger.Ledger
	guard  *binding.Guard
	pins   *pins.Registry
}

// NewService constructs a Service.
func NewService(db *gorm.DB, l *ledger.Ledger, guard *binding.Guard, registry *pins.Registry) *Service {
	return &Service{db: db, ledger: l, guard: guard, pins: registry}
}

// Authorize fails with ErrForbidden unless the capability carries permission.
func (s *Service) Authorize(op Capability, permission string) error {
	if !op.Allows(permission) {
		return fmt.Errorf("%w: %s", ErrForbidden, permission)
	}
	return nil
}

// CreateShop opens a shop account. A positive initial balance is booked as a ledger credit.
func (s *Service) CreateShop(ctx context.Context, op Capability, name string, initialBalance int64) (models.ShopAccount, error) {
	if errAuth := s.Authorize(op, permissions.ShopsCreate); errAuth != nil {
		return models.ShopAccount{}, errAuth
	}
	name = strings.TrimSpace(name)
	if name == "" || initialBalance < 0 {
		return models.ShopAccount{}, ErrInvalidShop
	}

	shop := models.ShopAccount{Name: name}
	if errCreate := s.db.WithContext(ctx).Create(&shop).Error; errCreate != nil {
		return models.ShopAccount{}, fmt.Errorf("override: create shop: %w", errCreate)
	}
	if initialBalance > 0 {
		balance, errCredit := s.ledger.Credit(ctx, shop.ID, initialBalance)
		if errCredit != nil {
			return shop, errCredit
		}
		shop.Balance = balance
	}
	s.audit(op, "create shop", log.Fields{"shop_id": shop.ID, "balance": shop.Balance})
	return shop, nil
}

// GetShop loads a shop, including soft-deleted ones.
func (s *Service) GetShop(ctx context.Context, op Capability, shopID uint64) (models.ShopAccount, error) {
	if errAuth := s.Authorize(op, permissions.ShopsRead); errAuth != nil {
		return models.ShopAccount{}, errAuth
	}
	var shop models.ShopAccount
	if errFind := s.db.WithContext(ctx).Unscoped().First(&shop, shopID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return models.ShopAccount{}, fmt.Errorf("override: shop %d: %w", shopID, apperr.ErrNotFound)
		}
		return models.ShopAccount{}, fmt.Errorf("override: load shop: %w", errFind)
	}
	return shop, nil
}

// ListShops returns a page of live shops ordered by id.
func (s *Service) ListShops(ctx context.Context, op Capability, limit, offset int) ([]models.ShopAccount, int64, error) {
	if errAuth := s.Authorize(op, permissions.ShopsRead); errAuth != nil {
		return nil, 0, errAuth
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&models.ShopAccount{})
	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("override: count shops: %w", errCount)
	}
	var shops []models.ShopAccount
	if errFind := query.Order("id ASC").Limit(limit).Offset(offset).Find(&shops).Error; errFind != nil {
		return nil, 0, fmt.Errorf("override: list shops: %w", errFind)
	}
	return shops, total, nil
}

// CreditShop tops up a shop and returns its new balance.
func (s *Service) CreditShop(ctx context.Context, op Capability, shopID uint64, amount int64) (int64, error) {
	if errAuth := s.Authorize(op, permissions.ShopsCredit); errAuth != nil {
		return 0, errAuth
	}
	balance, errCredit := s.ledger.Credit(ctx, shopID, amount)
	if errCredit != nil {
		return 0, errCredit
	}
	s.audit(op, "credit shop", log.Fields{"shop_id": shopID, "amount": amount, "balance": balance})
	return balance, nil
}

// IssueShopToken signs a bearer token for a live shop.
func (s *Service) IssueShopToken(ctx context.Context, op Capability, shopID uint64, secret string, ttl time.Duration) (string, error) {
	if errAuth := s.Authorize(op, permissions.ShopsToken); errAuth != nil {
		return "", errAuth
	}
	var shop models.ShopAccount
	if errFind := s.db.WithContext(ctx).Select("id").First(&shop, shopID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("override: shop %d: %w", shopID, apperr.ErrNotFound)
		}
		return "", fmt.Errorf("override: load shop: %w", errFind)
	}
	token, errToken := security.GenerateShopToken(secret, shop.ID, ttl)
	if errToken != nil {
		return "", fmt.Errorf("override: sign shop token: %w", errToken)
	}
	s.audit(op, "issue shop token", log.Fields{"shop_id": shop.ID})
	return token, nil
}

// BlockShop refuses further issuance and redemption for the shop.
func (s *Service) BlockShop(ctx context.Context, op Capability, shopID uint64) error {
	return s.setBlocked(ctx, op, shopID, true)
}

// UnblockShop lifts a block.
func (s *Service) UnblockShop(ctx context.Context, op Capability, shopID uint64) error {
	return s.setBlocked(ctx, op, shopID, false)
}

func (s *Service) setBlocked(ctx context.Context, op Capability, shopID uint64, blocked bool) error {
	if errAuth := s.Authorize(op, permissions.ShopsBlock); errAuth != nil {
		return errAuth
	}
	res := s.db.WithContext(ctx).Model(&models.ShopAccount{}).
		Where("id = ?", shopID).
		Update("blocked", blocked)
	if res.Error != nil {
		return fmt.Errorf("override: update shop: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("override: shop %d: %w", shopID, apperr.ErrNotFound)
	}
	s.audit(op, "set shop blocked", log.Fields{"shop_id": shopID, "blocked": blocked})
	return nil
}

// ResetBinding returns a gift to Unbound.
func (s *Service) ResetBinding(ctx context.Context, op Capability, giftID uint64) error {
	if errAuth := s.Authorize(op, permissions.GiftsReset); errAuth != nil {
		return errAuth
	}
	if errReset := s.guard.Reset(ctx, giftID); errReset != nil {
		return errReset
	}
	s.audit(op, "reset binding", log.Fields{"gift_id": giftID})
	return nil
}

// GetGift loads a gift and its binding history.
func (s *Service) GetGift(ctx context.Context, op Capability, giftID uint64) (GiftDetail, error) {
	if errAuth := s.Authorize(op, permissions.GiftsRead); errAuth != nil {
		return GiftDetail{}, errAuth
	}
	var gift models.Gift
	if errFind := s.db.WithContext(ctx).First(&gift, giftID).Error; errFind != nil {
		if errors.Is(errFind, gorm.ErrRecordNotFound) {
			return GiftDetail{}, fmt.Errorf("override: gift %d: %w", giftID, apperr.ErrNotFound)
		}
		return GiftDetail{}, fmt.Errorf("override: load gift: %w", errFind)
	}
	events, errEvents := s.guard.Events(ctx, giftID)
	if errEvents != nil {
		return GiftDetail{}, errEvents
	}
	return GiftDetail{Gift: gift, Events: events}, nil
}

// ListGifts returns a page of gifts, newest first. A zero shopID lists every shop.
func (s *Service) ListGifts(ctx context.Context, op Capability, shopID uint64, limit, offset int) ([]models.Gift, int64, error) {
	if errAuth := s.Authorize(op, permissions.GiftsRead); errAuth != nil {
		return nil, 0, errAuth
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := s.db.WithContext(ctx).Model(&models.Gift{})
	if shopID != 0 {
		query = query.Where("owner_shop_id = ?", shopID)
	}
	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("override: count gifts: %w", errCount)
	}
	var gifts []models.Gift
	if errFind := query.Order("id DESC").Limit(limit).Offset(offset).Find(&gifts).Error; errFind != nil {
		return nil, 0, fmt.Errorf("override: list gifts: %w", errFind)
	}
	return gifts, total, nil
}

// DeleteGift removes a gift and frees its PIN. The consumed credit is not refunded.
func (s *Service) DeleteGift(ctx context.Context, op Capability, giftID uint64) error {
	if errAuth := s.Authorize(op, permissions.GiftsDelete); errAuth != nil {
		return errAuth
	}
	var pin string
	errTx := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var gift models.Gift
		if errFind := tx.Select("id", "pin").First(&gift, giftID).Error; errFind != nil {
			if errors.Is(errFind, gorm.ErrRecordNotFound) {
				return fmt.Errorf("override: gift %d: %w", giftID, apperr.ErrNotFound)
			}
			return fmt.Errorf("override: load gift: %w", errFind)
		}
		res := tx.Delete(&models.Gift{}, gift.ID)
		if res.Error != nil {
			return fmt.Errorf("override: delete gift: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("override: gift %d: %w", giftID, apperr.ErrNotFound)
		}
		pin = gift.Pin
		return s.pins.ReleaseTx(ctx, tx, gift.Pin)
	})
	if errTx != nil {
		return errTx
	}
	s.audit(op, "delete gift", log.Fields{"gift_id": giftID, "pin": util.MaskSecret(pin)})
	return nil
}

func (s *Service) audit(op Capability, action string, fields log.Fields) {
	fields["operator_id"] = op.OperatorID
	fields["operator"] = op.Username
	log.WithFields(fields).Info("override: " + action)
}
