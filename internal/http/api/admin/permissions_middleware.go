package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/giftar/giftpin/internal/http/api/response"
	"github.com/giftar/giftpin/internal/override"
	"github.com/giftar/giftpin/internal/permissions"
)

// adminPermissionMiddleware enforces permission checks for admin routes.
// Routes without a definition are refused.
func adminPermissionMiddleware() gin.HandlerFunc {
	permissionMap := permissions.DefinitionMap()

	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		path := c.FullPath()
		if path == "" {
			response.Abort(c, http.StatusForbidden, "permission denied")
			return
		}

		def, ok := permissionMap[permissions.Key(c.Request.Method, path)]
		if !ok {
			response.Abort(c, http.StatusForbidden, "permission denied")
			return
		}

		capability, okCapability := readCapabilityFromContext(c)
		if !okCapability {
			response.Abort(c, http.StatusUnauthorized, "operator not found")
			return
		}
		if !capability.Allows(def.Permission) {
			response.Abort(c, http.StatusForbidden, "permission denied")
			return
		}

		c.Next()
	}
}

// readCapabilityFromContext extracts the operator capability from the gin context.
func readCapabilityFromContext(c *gin.Context) (override.Capability, bool) {
	value, ok := c.Get("operatorCapability")
	if !ok {
		return override.Capability{}, false
	}
	capability, ok := value.(override.Capability)
	return capability, ok
}
