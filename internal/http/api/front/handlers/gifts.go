package handlers

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/datatypes"

	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/issuance"
	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/pins"
)

// GiftHandler serves the shop gift and balance endpoints.
type GiftHandler struct {
	coordinator *issuance.Coordinator
	ledger      *ledger.Ledger
}

// NewGiftHandler constructs a GiftHandler.
func NewGiftHandler(coordinator *issuance.Coordinator, l *ledger.Ledger) *GiftHandler {
	return &GiftHandler{coordinator: coordinator, ledger: l}
}

// Create issues a gift for the current shop, charging one credit.
func (h *GiftHandler) Create(c *gin.Context) {
	shopID := getShopID(c)
	if shopID == 0 {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body createGiftRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if errValidate := body.Validate(); errValidate != nil {
		response.Fail(c, http.StatusBadRequest, errValidate.Error())
		return
	}

	payload := issuance.Payload{
		RequestedPin: body.RequestedPin,
		ContentRef:   body.ContentRef,
	}
	if len(body.Metadata) > 0 && !bytes.Equal(bytes.TrimSpace(body.Metadata), []byte("null")) {
		payload.Metadata = datatypes.JSON(body.Metadata)
	}

	gift, errCreate := h.coordinator.Create(c.Request.Context(), shopID, payload)
	if errCreate != nil {
		if errors.Is(errCreate, issuance.ErrInvalidContent) || errors.Is(errCreate, pins.ErrInvalidPin) {
			response.Fail(c, http.StatusBadRequest, errCreate.Error())
			return
		}
		response.Error(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"gift": toGiftDTO(&gift)})
}

// List returns the current shop's gifts, newest first.
func (h *GiftHandler) List(c *gin.Context) {
	shopID := getShopID(c)
	if shopID == 0 {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, offset := parsePage(c)
	gifts, total, errList := h.coordinator.ListByShop(c.Request.Context(), shopID, limit, offset)
	if errList != nil {
		response.Error(c, errList)
		return
	}
	out := make([]giftDTO, 0, len(gifts))
	for i := range gifts {
		out = append(out, toGiftDTO(&gifts[i]))
	}
	c.JSON(http.StatusOK, gin.H{"gifts": out, "total": total})
}

// Balance returns the current shop's credit balance.
func (h *GiftHandler) Balance(c *gin.Context) {
	shopID := getShopID(c)
	if shopID == 0 {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	balance, errBalance := h.ledger.Balance(c.Request.Context(), shopID)
	if errBalance != nil {
		response.Error(c, errBalance)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// Ledger returns the most recent credit journal entries of the current shop.
func (h *GiftHandler) Ledger(c *gin.Context) {
	shopID := getShopID(c)
	if shopID == 0 {
		response.Fail(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	limit, _ := parsePage(c)
	entries, errEntries := h.ledger.Entries(c.Request.Context(), shopID, limit)
	if errEntries != nil {
		response.Error(c, errEntries)
		return
	}
	out := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		out = append(out, gin.H{
			"id":             entry.ID,
			"kind":           entry.Kind,
			"delta":          entry.Delta,
			"balance_after":  entry.BalanceAfter,
			"reservation_id": entry.ReservationID,
			"created_at":     entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"entries": out})
}
