// Package apperr defines the error taxonomy shared by the ledger, PIN registry,
// binding guard and issuance path, and maps it to wire codes.
package apperr

import (
	"errors"
	"net/http"
)

// Taxonomy errors. Every failure surfaced to a caller wraps one of these.
var (
	// ErrNotFound indicates an unknown PIN, gift or shop.
	ErrNotFound = errors.New("not found")
	// ErrDeviceMismatch indicates the gift is bound to a different device.
	ErrDeviceMismatch = errors.New("device mismatch")
	// ErrTenantBlocked indicates the owning shop is blocked.
	ErrTenantBlocked = errors.New("tenant blocked")
	// ErrInsufficientBalance indicates the shop lacks credits.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrPinConflict indicates a requested PIN is already in use.
	ErrPinConflict = errors.New("pin conflict")
	// ErrPinGenerationExhausted indicates every generated candidate collided.
	ErrPinGenerationExhausted = errors.New("pin generation exhausted")
)

// Wire codes returned to callers.
const (
	CodeNotFound               = "NotFound"
	CodeDeviceMismatch         = "DeviceMismatch"
	CodeTenantBlocked          = "TenantBlocked"
	CodeInsufficientBalance    = "InsufficientBalance"
	CodePinConflict            = "PinConflict"
	CodePinGenerationExhausted = "PinGenerationExhausted"
)

var taxonomy = []struct {
	err    error
	code   string
	status int
}{
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrDeviceMismatch, CodeDeviceMismatch, http.StatusConflict},
	{ErrTenantBlocked, CodeTenantBlocked, http.StatusForbidden},
	{ErrInsufficientBalance, CodeInsufficientBalance, http.StatusPaymentRequired},
	{ErrPinConflict, CodePinConflict, http.StatusConflict},
	{ErrPinGenerationExhausted, CodePinGenerationExhausted, http.StatusServiceUnavailable},
}

// Code returns the wire code for err, or "" when err is outside the taxonomy.
func Code(err error) string {
	for _, entry := range taxonomy {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ""
}

// HTTPStatus returns the response status for err. Errors outside the taxonomy map to 500.
func HTTPStatus(err error) int {
	for _, entry := range taxonomy {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}
