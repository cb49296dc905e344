// Package issuance creates gifts as one logical transaction: debit a credit, claim a
// PIN, then persist the gift. Any failure after the debit is compensated before the
// error is returned.
package issuance

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/pins"
)

// giftCost is the number of credits one gift consumes.
const giftCost = 1

// ErrInvalidContent indicates a missing content reference.
var ErrInvalidContent = errors.New("issuance: content reference is required")

// Payload describes the gift a shop asks for.
type Payload struct {
	RequestedPin string
	ContentRef   string
	Metadata     datatypes.JSON
}

// Coordinator sequences gift creation across the ledger and the PIN registry.
type Coordinator struct {
	db      *gorm.DB
	ledger  *ledger.Ledger
	pins    *pins.Registry
	persist func(ctx context.Context, gift *models.Gift) error
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(db *gorm.DB, l *ledger.Ledger, registry *pins.Registry) *Coordinator {
	c := &Coordinator{db: db, ledger: l, pins: registry}
	c.persist = c.persistGift
	return c
}

// Create issues a new Unbound gift owned by shopID.
func (c *Coordinator) Create(ctx context.Context, shopID uint64, payload Payload) (models.Gift, error) {
	contentRef := strings.TrimSpace(payload.ContentRef)
	if contentRef == "" {
		return models.Gift{}, ErrInvalidContent
	}
	if errCheck := pins.CheckRequested(payload.RequestedPin); errCheck != nil {
		return models.Gift{}, errCheck
	}

	reservation, errDebit := c.ledger.ReserveAndDebit(ctx, shopID, giftCost)
	if errDebit != nil {
		return models.Gift{}, errDebit
	}

	pin, errAssign := c.pins.Assign(ctx, payload.RequestedPin)
	if errAssign != nil {
		c.compensate(ctx, reservation)
		return models.Gift{}, errAssign
	}

	gift := models.Gift{
		Pin:           pin,
		OwnerShopID:   shopID,
		ContentRef:    contentRef,
		Metadata:      payload.Metadata,
		ReservationID: reservation.Handle,
	}
	if errPersist := c.persist(ctx, &gift); errPersist != nil {
		c.release(ctx, pin)
		c.compensate(ctx, reservation)
		return models.Gift{}, fmt.Errorf("issuance: persist gift: %w", errPersist)
	}

	log.WithFields(log.Fields{
		"gift_id": gift.ID,
		"shop_id": shopID,
	}).Info("issuance: gift created")
	return gift, nil
}

// persistGift writes the gift, attaches its PIN claim and commits the reservation together.
func (c *Coordinator) persistGift(ctx context.Context, gift *models.Gift) error {
	return c.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if errCreate := tx.Create(gift).Error; errCreate != nil {
			return errCreate
		}
		if errBind := c.pins.BindTx(ctx, tx, gift.Pin, gift.ID); errBind != nil {
			return errBind
		}
		return c.ledger.CommitTx(ctx, tx, gift.ReservationID)
	})
}

// compensate refunds the reservation even when the request context is gone.
// A failure is left for the Reaper.
func (c *Coordinator) compensate(ctx context.Context, reservation ledger.Reservation) {
	if errComp := c.ledger.Compensate(context.WithoutCancel(ctx), reservation); errComp != nil {
		log.WithError(errComp).WithFields(log.Fields{
			"shop_id":     reservation.ShopID,
			"reservation": reservation.Handle,
		}).Error("issuance: compensate reservation failed")
	}
}

func (c *Coordinator) release(ctx context.Context, pin string) {
	if errRelease := c.pins.Release(context.WithoutCancel(ctx), pin); errRelease != nil {
		log.WithError(errRelease).WithField("pin", pin).Error("issuance: release pin failed")
	}
}

// ListByShop returns a page of a shop's gifts, newest first.
func (c *Coordinator) ListByShop(ctx context.Context, shopID uint64, limit, offset int) ([]models.Gift, int64, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	query := c.db.WithContext(ctx).Model(&models.Gift{}).Where("owner_shop_id = ?", shopID)
	var total int64
	if errCount := query.Count(&total).Error; errCount != nil {
		return nil, 0, fmt.Errorf("issuance: count gifts: %w", errCount)
	}
	var gifts []models.Gift
	if errFind := query.Order("id DESC").Limit(limit).Offset(offset).Find(&gifts).Error; errFind != nil {
		return nil, 0, fmt.Errorf("issuance: list gifts: %w", errFind)
	}
	return gifts, total, nil
}
