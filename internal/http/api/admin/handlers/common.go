package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/override"
)

// getCapability extracts the operator capability from gin context.
func getCapability(c *gin.Context) override.Capability {
	val, exists := c.Get("operatorCapability")
	if !exists {
		return override.Capability{}
	}
	capability, _ := val.(override.Capability)
	return capability
}

// parseIDParam reads the :id path parameter and writes a 400 when it is malformed.
func parseIDParam(c *gin.Context) (uint64, bool) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Param("id")), 10, 64)
	if errParse != nil || id == 0 {
		response.Fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
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

// writeOverrideError maps override failures onto responses.
func writeOverrideError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, override.ErrForbidden):
		response.Fail(c, http.StatusForbidden, "permission denied")
	case errors.Is(err, override.ErrInvalidShop), errors.Is(err, ledger.ErrInvalidAmount):
		response.Fail(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, err)
	}
}
