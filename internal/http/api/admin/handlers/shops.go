package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/override"
)

// ShopHandler serves operator shop management endpoints.
type ShopHandler struct {
	service *override.Service
	jwtCfg  config.JWTConfig
}

// NewShopHandler constructs a ShopHandler.
func NewShopHandler(service *override.Service, jwtCfg config.JWTConfig) *ShopHandler {
	return &ShopHandler{service: service, jwtCfg: jwtCfg}
}

func formatShop(shop *models.ShopAccount) gin.H {
	out := gin.H{
		"id":         shop.ID,
		"name":       shop.Name,
		"balance":    shop.Balance,
		"blocked":    shop.Blocked,
		"created_at": shop.CreatedAt,
		"updated_at": shop.UpdatedAt,
	}
	if shop.DeletedAt.Valid {
		out["deleted_at"] = shop.DeletedAt.Time
	}
	return out
}

// Create opens a shop with an optional initial balance.
func (h *ShopHandler) Create(c *gin.Context) {
	var body createShopRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if errValidate := body.Validate(); errValidate != nil {
		response.Fail(c, http.StatusBadRequest, errValidate.Error())
		return
	}

	shop, errCreate := h.service.CreateShop(c.Request.Context(), getCapability(c), body.Name, body.Balance)
	if errCreate != nil {
		writeOverrideError(c, errCreate)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"shop": formatShop(&shop)})
}

// List returns a page of shops.
func (h *ShopHandler) List(c *gin.Context) {
	limit, offset := parsePage(c)
	shops, total, errList := h.service.ListShops(c.Request.Context(), getCapability(c), limit, offset)
	if errList != nil {
		writeOverrideError(c, errList)
		return
	}
	out := make([]gin.H, 0, len(shops))
	for i := range shops {
		out = append(out, formatShop(&shops[i]))
	}
	c.JSON(http.StatusOK, gin.H{"shops": out, "total": total})
}

// Get fetches a single shop by ID.
func (h *ShopHandler) Get(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	shop, errGet := h.service.GetShop(c.Request.Context(), getCapability(c), id)
	if errGet != nil {
		writeOverrideError(c, errGet)
		return
	}
	c.JSON(http.StatusOK, gin.H{"shop": formatShop(&shop)})
}

// Credit tops up a shop balance.
func (h *ShopHandler) Credit(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	var body creditShopRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if errValidate := body.Validate(); errValidate != nil {
		response.Fail(c, http.StatusBadRequest, errValidate.Error())
		return
	}

	balance, errCredit := h.service.CreditShop(c.Request.Context(), getCapability(c), id, body.Amount)
	if errCredit != nil {
		writeOverrideError(c, errCredit)
		return
	}
	c.JSON(http.StatusOK, gin.H{"new_balance": balance})
}

// Block refuses issuance and redemption for a shop.
func (h *ShopHandler) Block(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errBlock := h.service.BlockShop(c.Request.Context(), getCapability(c), id); errBlock != nil {
		writeOverrideError(c, errBlock)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Unblock lifts a shop block.
func (h *ShopHandler) Unblock(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	if errUnblock := h.service.UnblockShop(c.Request.Context(), getCapability(c), id); errUnblock != nil {
		writeOverrideError(c, errUnblock)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// IssueToken signs a bearer token the shop client authenticates with.
func (h *ShopHandler) IssueToken(c *gin.Context) {
	id, ok := parseIDParam(c)
	if !ok {
		return
	}
	token, errToken := h.service.IssueShopToken(c.Request.Context(), getCapability(c), id, h.jwtCfg.Secret, h.jwtCfg.ShopTokenTTL)
	if errToken != nil {
		writeOverrideError(c, errToken)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"expires_at": time.Now().UTC().Add(h.jwtCfg.ShopTokenTTL),
	})
}
