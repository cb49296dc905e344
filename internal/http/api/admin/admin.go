package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/http/api/admin/handlers"
	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/override"
	"github.com/giftar/giftpin/internal/security"
)

// RegisterAdminRoutes registers operator login and the override routes.
func RegisterAdminRoutes(r *gin.Engine, db *gorm.DB, jwtCfg config.JWTConfig, service *override.Service) {
	if r == nil || db == nil || service == nil {
		return
	}

	admin := r.Group("/v0/admin")

	authHandler := handlers.NewAuthHandler(db, jwtCfg)
	admin.POST("/login", authHandler.Login)

	authed := admin.Group("")
	authed.Use(operatorAuthMiddleware(db, jwtCfg))
	authed.Use(adminPermissionMiddleware())

	shopHandler := handlers.NewShopHandler(service, jwtCfg)
	authed.GET("/shops", shopHandler.List)
	authed.POST("/shops", shopHandler.Create)
	authed.GET("/shops/:id", shopHandler.Get)
	authed.POST("/shops/:id/credit", shopHandler.Credit)
	authed.POST("/shops/:id/block", shopHandler.Block)
	authed.POST("/shops/:id/unblock", shopHandler.Unblock)
	authed.POST("/shops/:id/token", shopHandler.IssueToken)

	giftHandler := handlers.NewGiftHandler(service)
	authed.GET("/gifts", giftHandler.List)
	authed.GET("/gifts/:id", giftHandler.Get)
	authed.POST("/gifts/:id/reset-binding", giftHandler.ResetBinding)
	authed.DELETE("/gifts/:id", giftHandler.Delete)
}

// operatorAuthMiddleware validates operator JWTs and stores the operator capability in context.
func operatorAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Abort(c, http.StatusUnauthorized, "missing authorization header")
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		if token == authHeader {
			response.Abort(c, http.StatusUnauthorized, "invalid authorization format")
			return
		}
		token = strings.TrimSpace(token)
		if token == "" {
			response.Abort(c, http.StatusUnauthorized, "empty token")
			return
		}

		claims, errJWT := security.ParseOperatorToken(jwtCfg.Secret, token)
		if errJWT != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		var operator models.Operator
		if errFind := db.WithContext(c.Request.Context()).First(&operator, claims.OperatorID).Error; errFind != nil {
			response.Abort(c, http.StatusUnauthorized, "operator not found")
			return
		}
		if !operator.Active {
			response.Abort(c, http.StatusForbidden, "operator disabled")
			return
		}

		c.Set("operatorID", operator.ID)
		c.Set("operatorCapability", override.NewCapability(operator))
		c.Next()
	}
}
