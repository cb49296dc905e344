package http

import (
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/giftar/giftpin/internal/util"
)

// RequestLogger logs one line per request through logrus, tagged with the request id.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		entry := log.WithFields(log.Fields{
			"request_id": requestid.Get(c),
			"method":     c.Request.Method,
			"path":       path,
			"query":      util.MaskSensitiveQuery(c.Request.URL.RawQuery),
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"client_ip":  c.ClientIP(),
		})
		switch status := c.Writer.Status(); {
		case status >= 500:
			entry.Error("request")
		case status >= 400:
			entry.Warn("request")
		default:
			entry.Debug("request")
		}
	}
}
