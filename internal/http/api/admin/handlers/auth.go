package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/security"
)

// AuthHandler handles operator authentication endpoints.
type AuthHandler struct {
	db     *gorm.DB
	jwtCfg config.JWTConfig
}

// NewAuthHandler constructs an AuthHandler.
func NewAuthHandler(db *gorm.DB, jwtCfg config.JWTConfig) *AuthHandler {
	return &AuthHandler{db: db, jwtCfg: jwtCfg}
}

// Login authenticates an operator and issues an operator JWT.
func (h *AuthHandler) Login(c *gin.Context) {
	var body loginRequest
	if errBind := c.ShouldBindJSON(&body); errBind != nil {
		response.Fail(c, http.StatusBadRequest, "invalid json")
		return
	}
	if errValidate := body.Validate(); errValidate != nil {
		response.Fail(c, http.StatusBadRequest, "username and password are required")
		return
	}

	var operator models.Operator
	if errFind := h.db.WithContext(c.Request.Context()).Where("username = ?", body.Username).First(&operator).Error; errFind != nil {
		response.Fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !security.CheckPassword(operator.Password, body.Password) {
		response.Fail(c, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if !operator.Active {
		response.Fail(c, http.StatusForbidden, "operator account is disabled")
		return
	}

	token, errToken := security.GenerateOperatorToken(h.jwtCfg.Secret, operator.ID, operator.Username, h.jwtCfg.OperatorTokenTTL)
	if errToken != nil {
		log.WithError(errToken).Error("sign operator token failed")
		response.Fail(c, http.StatusInternalServerError, "generate token failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"token":    token,
		"operator": gin.H{"id": operator.ID, "username": operator.Username, "is_super_operator": operator.IsSuperOperator},
	})
}
