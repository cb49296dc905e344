// Package response writes the JSON failure bodies shared by every API group.
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/apperr"
)

// Error renders err with its taxonomy code and status. Errors outside the
// taxonomy are logged and reported as a generic 500.
func Error(c *gin.Context, err error) {
	code := apperr.Code(err)
	if code == "" {
		log.WithError(err).WithField("path", c.FullPath()).Error("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": "internal error"})
		return
	}
	c.JSON(apperr.HTTPStatus(err), gin.H{"success": false, "error": code})
}

// Fail renders a failure with an explicit status and message.
func Fail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "error": message})
}

// Abort is Fail for middleware.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}
