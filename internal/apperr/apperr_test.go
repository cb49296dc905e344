package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeMatchesWrappedErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		code   string
		status int
	}{
		{"not found", fmt.Errorf("binding: lookup: %w", ErrNotFound), CodeNotFound, http.StatusNotFound},
		{"device mismatch", ErrDeviceMismatch, CodeDeviceMismatch, http.StatusConflict},
		{"blocked", fmt.Errorf("ledger: %w", ErrTenantBlocked), CodeTenantBlocked, http.StatusForbidden},
		{"balance", ErrInsufficientBalance, CodeInsufficientBalance, http.StatusPaymentRequired},
		{"conflict", ErrPinConflict, CodePinConflict, http.StatusConflict},
		{"exhausted", ErrPinGenerationExhausted, CodePinGenerationExhausted, http.StatusServiceUnavailable},
		{"other", errors.New("boom"), "", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Code(tc.err); got != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, got)
			}
			if got := HTTPStatus(tc.err); got != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, got)
			}
		})
	}
}
