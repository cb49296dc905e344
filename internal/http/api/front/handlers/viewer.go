package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/binding"
	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/ratelimit"
	"github.com/giftar/giftpin/internal/storage"
)

// ViewerHandler serves PIN verification for anonymous viewers.
type ViewerHandler struct {
	guard   *binding.Guard
	limiter *ratelimit.Limiter
	store   *storage.Store
}

// NewViewerHandler constructs a ViewerHandler. limiter and store may be nil.
func NewViewerHandler(guard *binding.Guard, limiter *ratelimit.Limiter, store *storage.Store) *ViewerHandler {
	return &ViewerHandler{guard: guard, limiter: limiter, store: store}
}

// VerifyPin redeems a PIN for a device and returns the gift content.
func (h *ViewerHandler) VerifyPin(c *gin.Context) {
	if !h.limiter.Allow(c.Request.Context(), c.ClientIP()) {
		response.Fail(c, http.StatusTooManyRequests, "too many attempts")
		return
	}

	var body verifyPinRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if errValidate := body.Validate(); errValidate != nil {
		response.Fail(c, http.StatusBadRequest, errValidate.Error())
		return
	}

	redemption, errVerify := h.guard.Verify(c.Request.Context(), body.Pin, body.DeviceID)
	if errVerify != nil {
		if errors.Is(errVerify, binding.ErrInvalidDevice) {
			response.Fail(c, http.StatusBadRequest, errVerify.Error())
			return
		}
		if errors.Is(errVerify, binding.ErrBindingContention) {
			response.Fail(c, http.StatusServiceUnavailable, "binding changed, retry")
			return
		}
		response.Error(c, errVerify)
		return
	}

	out := gin.H{
		"success":    true,
		"content":    redemption.ContentRef,
		"scan_count": redemption.ScanCount,
	}
	if h.store != nil {
		contentURL, errSign := h.store.PresignedURL(c.Request.Context(), redemption.ContentRef)
		if errSign != nil {
			log.WithError(errSign).WithField("gift_id", redemption.GiftID).Warn("presign content failed")
		} else {
			out["content_url"] = contentURL
		}
	}
	c.JSON(http.StatusOK, out)
}
