package front

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/binding"
	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/http/api/front/handlers"
	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/issuance"
	"github.com/giftar/giftpin/internal/ledger"
	"github.com/giftar/giftpin/internal/models"
	"github.com/giftar/giftpin/internal/ratelimit"
	"github.com/giftar/giftpin/internal/security"
	"github.com/giftar/giftpin/internal/storage"
)

// Deps holds the collaborators of the viewer and shop routes.
type Deps struct {
	DB             *gorm.DB
	JWT            config.JWTConfig
	Guard          *binding.Guard
	Coordinator    *issuance.Coordinator
	Ledger         *ledger.Ledger
	Limiter        *ratelimit.Limiter
	Store          *storage.Store
	MaxUploadBytes int64
}

// RegisterFrontRoutes registers the public viewer routes and the shop routes.
func RegisterFrontRoutes(r *gin.Engine, deps Deps) {
	if r == nil || deps.DB == nil {
		return
	}

	viewer := r.Group("/v0/viewer")
	viewerHandler := handlers.NewViewerHandler(deps.Guard, deps.Limiter, deps.Store)
	viewer.POST("/verify-pin", viewerHandler.VerifyPin)

	shop := r.Group("/v0/shop")
	shop.Use(shopAuthMiddleware(deps.DB, deps.JWT))

	giftHandler := handlers.NewGiftHandler(deps.Coordinator, deps.Ledger)
	shop.POST("/gifts", giftHandler.Create)
	shop.GET("/gifts", giftHandler.List)
	shop.GET("/balance", giftHandler.Balance)
	shop.GET("/ledger", giftHandler.Ledger)

	contentHandler := handlers.NewContentHandler(deps.Store, deps.MaxUploadBytes)
	shop.POST("/content", contentHandler.Upload)
}

// shopAuthMiddleware validates shop JWTs and loads the shop into context.
// Blocked shops pass so their reads keep working; issuance refuses them.
func shopAuthMiddleware(db *gorm.DB, jwtCfg config.JWTConfig) gin.HandlerFunc {
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

		claims, errJWT := security.ParseShopToken(jwtCfg.Secret, token)
		if errJWT != nil {
			response.Abort(c, http.StatusUnauthorized, "invalid token")
			return
		}

		var shop models.ShopAccount
		if errFind := db.WithContext(c.Request.Context()).Select("id").First(&shop, claims.ShopID).Error; errFind != nil {
			response.Abort(c, http.StatusUnauthorized, "shop not found")
			return
		}

		c.Set("shopID", shop.ID)
		c.Next()
	}
}
