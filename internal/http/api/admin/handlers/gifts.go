package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/override"
)

// GiftHandler serves operator gift endpoints.
type GiftHandler struct {
	service *override.Service
}

// NewGiftHandler constructs a GiftHandler.
func NewGiftHandler(service *override.Service) *GiftHandler {
	return &GiftHandler{service: service}
}

func formatGift(gift *models.Gift) gin.H {
	return gin.H{
		"id":              gift.ID,
		"pin":             gift.Pin,
		"owner_shop_id":   gift.OwnerShopID,
		"content_ref":     gift.ContentRef,
		"metadata":        gift.Metadata,
		"bound_device_id": gift.BoundDeviceID,
		"bound_at":        gift.BoundAt,
		"scan_count":      gift.ScanCount,
		"last_scanned_at": gift.LastScannedAt,
		"created_at":      gift.CreatedAt,
	}
}

// List returns a page of gifts, optionally filtered by shop_id.
func (h *GiftHandler) List(c *gin.Context) {
	var shopID uint64
	if raw := strings.TrimSpace(c.Query("shop_id")); raw != "" {
		parsed, errParse := strconv.ParseUint(raw, 10, 64)
		if errParse != nil {
			response.Fail(c, http.StatusBadRequest, "invalid shop_id")
			return
		}
		shopID = parsed
	}
	limit, offset := parsePage(c)

	gifts, total, errList := h.service.ListGifts(c.Request.Context(), getCapability(c), shopID, limit, offset)
	if errList != nil {
		writeOverrideError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(gifts))
	for i := range gifts {
		out = append(out, formatGift(&gifts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"gifts": out, "total": total})
}

// Get returns a gift with its binding history.
func (h *GiftHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	detail, errGet := h.service.GetGift(c.Request.Context(), getCapability(c), id)
	if errGet != nil {
		writeOverrideError(c, errGet)
		return
	}
	events := make([]gin.H, 0, len(detail.Events))
	for _, event := range detail.Events {
		events = append(events, gin.H{
			"kind":       event.Kind,
			"device_id":  event.DeviceID,
			"created_at": event.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"gift": formatGift(&detail.Gift), "events": events})
}

// ResetBinding returns a gift to Unbound.
func (h *GiftHandler) ResetBinding(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errReset := h.service.ResetBinding(c.Request.Context(), getCapability(c), id); errReset != nil {
		writeOverrideError(c, errReset)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Delete removes a gift and frees its PIN.
func (h *GiftHandler) Delete(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errDelete := h.service.DeleteGift(c.Request.Context(), getCapability(c), id); errDelete != nil {
		writeOverrideError(c, errDelete)
		return
	}
	c.Status(http.StatusNoContent)
}
