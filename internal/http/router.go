// Package http assembles the gin engine serving the viewer, shop and admin APIs.
package http

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/giftar/giftpin/internal/config"
	"github.com/giftar/giftpin/internal/http/api/admin"
	adminhandlers "github.com/giftar/giftpin/internal/http/api/admin/handlers"
	"github.com/giftar/giftpin/internal/http/api/front"
	"github.com/giftar/giftpin/internal/override"
)

// RouterDeps holds everything the routes need.
type RouterDeps struct {
	DB       *gorm.DB
	Server   config.ServerConfig
	JWT      config.JWTConfig
	Front    front.Deps
	Override *override.Service
}

// NewRouter builds the gin engine with middleware and all route groups.
func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Server.Mode != "" {
		gin.SetMode(deps.Server.Mode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestid.New())
	engine.Use(RequestLogger())
	engine.Use(cors.New(corsConfig(deps.Server.AllowedOrigins)))

	healthHandler := adminhandlers.NewHealthHandler(deps.DB)
	engine.GET("/healthz", healthHandler.Healthz)

	frontDeps := deps.Front
	frontDeps.DB = deps.DB
	frontDeps.JWT = deps.JWT
	front.RegisterFrontRoutes(engine, frontDeps)
	admin.RegisterAdminRoutes(engine, deps.DB, deps.JWT, deps.Override)
	return engine
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders: []string{"X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
