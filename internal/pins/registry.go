// Package pins assigns globally unique gift PINs. Uniqueness is enforced by the
// primary key of the pin_claims table, so concurrent claims of one PIN cannot both win.
package pins

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/apperr"
	"github.com/giftar/giftpin/internal/db"
	"github.com/giftar/giftpin/internal/models"
)

// Alphabet is used for generated PINs. It omits I, O, 0 and 1.
const Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	defaultLength      = 6
	defaultMaxAttempts = 10
	minRequestedLength = 3
	maxRequestedLength = 32
)

var (
	// ErrInvalidPin indicates a requested PIN outside [A-Z0-9]{3,32}.
	ErrInvalidPin = errors.New("pins: pin must be 3 to 32 letters or digits")
	// ErrPinReleased indicates the claim was released before the gift was persisted.
	ErrPinReleased = errors.New("pins: claim no longer held")
)

// Options configures generated PINs.
type Options struct {
	Length      int
	MaxAttempts int
	// Generate overrides the random candidate source.
	Generate func(length int) (string, error)
}

// Registry claims and releases PINs.
type Registry struct {
	db          *gorm.DB
	length      int
	maxAttempts int
	generate    func(length int) (string, error)
	now         func() time.Time
}

// NewRegistry constructs a Registry. Zero options select the defaults.
func NewRegistry(db *gorm.DB, opts Options) *Registry {
	length := opts.Length
	if length <= 0 {
		length = defaultLength
	}
	attempts := opts.MaxAttempts
	if attempts <= 0 {
		attempts = defaultMaxAttempts
	}
	generate := opts.Generate
	if generate == nil {
		generate = generateCode
	}
	return &Registry{
		db:          db,
		length:      length,
		maxAttempts: attempts,
		generate:    generate,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// NormalizePin trims and uppercases a PIN as entered by a person.
func NormalizePin(pin string) string {
	return strings.ToUpper(strings.TrimSpace(pin))
}

// Assign claims the requested PIN, or a generated one when requested is blank.
func (r *Registry) Assign(ctx context.Context, requested string) (string, error) {
	pin := NormalizePin(requested)
	if pin != "" {
		if errCheck := CheckRequested(pin); errCheck != nil {
			return "", errCheck
		}
		claimed, err := r.claim(ctx, pin)
		if err != nil {
			return "", err
		}
		if !claimed {
			return "", fmt.Errorf("pins: %s: %w", pin, apperr.ErrPinConflict)
		}
		return pin, nil
	}

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		candidate, errGen := r.generate(r.length)
		if errGen != nil {
			return "", fmt.Errorf("pins: generate: %w", errGen)
		}
		claimed, err := r.claim(ctx, candidate)
		if err != nil {
			return "", err
		}
		if claimed {
			return candidate, nil
		}
	}
	log.WithFields(log.Fields{
		"length":   r.length,
		"attempts": r.maxAttempts,
	}).Warn("pins: every generated candidate collided")
	return "", apperr.ErrPinGenerationExhausted
}

// claim inserts the PIN and reports false when it is already held.
func (r *Registry) claim(ctx context.Context, pin string) (bool, error) {
	errCreate := r.db.WithContext(ctx).Create(&models.PinClaim{Pin: pin, CreatedAt: r.now()}).Error
	if errCreate == nil {
		return true, nil
	}
	if db.IsUniqueViolation(errCreate) {
		return false, nil
	}
	return false, fmt.Errorf("pins: claim: %w", errCreate)
}

// BindTx attaches a held claim to a persisted gift inside the caller's transaction.
func (r *Registry) BindTx(ctx context.Context, tx *gorm.DB, pin string, giftID uint64) error {
	res := tx.WithContext(ctx).Model(&models.PinClaim{}).
		Where("pin = ? AND gift_id IS NULL", pin).
		Update("gift_id", giftID)
	if res.Error != nil {
		return fmt.Errorf("pins: bind claim: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrPinReleased
	}
	return nil
}

// Release frees a PIN for reuse. Releasing an unclaimed PIN is a no-op.
func (r *Registry) Release(ctx context.Context, pin string) error {
	return r.ReleaseTx(ctx, r.db, pin)
}

// ReleaseTx frees a PIN inside the caller's transaction.
func (r *Registry) ReleaseTx(ctx context.Context, tx *gorm.DB, pin string) error {
	if errDelete := tx.WithContext(ctx).
		Where("pin = ?", NormalizePin(pin)).
		Delete(&models.PinClaim{}).Error; errDelete != nil {
		return fmt.Errorf("pins: release: %w", errDelete)
	}
	return nil
}

// ReleaseOrphans frees claims never attached to a gift that are older than cutoff.
func (r *Registry) ReleaseOrphans(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("gift_id IS NULL AND created_at < ?", cutoff).
		Delete(&models.PinClaim{})
	if res.Error != nil {
		return 0, fmt.Errorf("pins: release orphans: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CheckRequested validates a requested PIN without claiming it. Blank means none requested.
func CheckRequested(requested string) error {
	pin := NormalizePin(requested)
	if pin == "" || validRequested(pin) {
		return nil
	}
	return ErrInvalidPin
}

func validRequested(pin string) bool {
	if len(pin) < minRequestedLength || len(pin) > maxRequestedLength {
		return false
	}
	for i := 0; i < len(pin); i++ {
		c := pin[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}

func generateCode(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, length)
	for i, b := range buf {
		out[i] = Alphabet[int(b)%len(Alphabet)]
	}
	return string(out), nil
}
