package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/giftar/giftpin/internal/models"
)

// getShopID extracts the shop ID from gin context.
func getShopID(c *gin.Context) uint64 {
	val, exists := c.Get("shopID")
	if !exists {
		return 0
	}
	switch v := val.(type) {
	case uint64:
		return v
	case int64:
		return uint64(v)
	case uint:
		return uint64(v)
	case int:
		return uint64(v)
	default:
		return 0
	}
}

// parsePage reads limit and offset query parameters.
func parsePage(c *gin.Context) (int, int) {
	limit, errLimit := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("limit", "50")))
	if errLimit != nil || limit <= 0 {
		limit = 50
	}
	offset, errOffset := strconv.Atoi(strings.TrimSpace(c.DefaultQuery("offset", "0")))
	if errOffset != nil || offset < 0 {
		offset = 0
	}
	return limit, offset
}

// giftDTO is the shop-facing gift payload. The bound device stays private.
type giftDTO struct {
	ID            uint64         `json:"id"`
	Pin           string         `json:"pin"`
	ContentRef    string         `json:"content_ref"`
	Metadata      datatypes.JSON `json:"metadata,omitempty"`
	Bound         bool           `json:"bound"`
	ScanCount     int64          `json:"scan_count"`
	LastScannedAt *time.Time     `json:"last_scanned_at"`
	CreatedAt     time.Time      `json:"created_at"`
}

func toGiftDTO(gift *models.Gift) giftDTO {
	return giftDTO{
		ID:            gift.ID,
		Pin:           gift.Pin,
		ContentRef:    gift.ContentRef,
		Metadata:      gift.Metadata,
		Bound:         gift.Bound(),
		ScanCount:     gift.ScanCount,
		LastScannedAt: gift.LastScannedAt,
		CreatedAt:     gift.CreatedAt,
	}
}
