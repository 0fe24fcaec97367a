package api

import (
	"crypto/sha256"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/hypernova-labs/nfse-dashboard/internal/models"
	"github.com/sirupsen/logrus"
)

// AdminAuth valida el header X-API-Key contra la clave de administración.
// Sin clave configurada solo se permite el acceso en desarrollo.
func AdminAuth(apiKey string, development bool, logger *logrus.Logger) gin.HandlerFunc {
	expected := sha256.Sum256([]byte(apiKey))

	return func(c *gin.Context) {
		if apiKey == "" {
			if development {
				c.Next()
				return
			}
			logger.Error("ADMIN_API_KEY not configured, rejecting request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("Admin access not configured"))
			return
		}

		provided := c.GetHeader("X-API-Key")
		if provided == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("API key required"))
			return
		}

		got := sha256.Sum256([]byte(provided))
		if subtle.ConstantTimeCompare(got[:], expected[:]) != 1 {
			logger.WithField("client_ip", c.ClientIP()).Warn("Invalid admin API key")
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.NewUnauthorizedError("Invalid API key"))
			return
		}
		c.Next()
	}
}

// RequestLogger registra cada request con logrus
func RequestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := logger.WithFields(logrus.Fields{
			"method":    c.Request.Method,
			"path":      c.FullPath(),
			"status":    c.Writer.Status(),
			"latency":   time.Since(start).String(),
			"client_ip": c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			entry.Error("Request failed")
		case c.Writer.Status() >= http.StatusBadRequest:
			entry.Warn("Request rejected")
		default:
			entry.Debug("Request handled")
		}
	}
}
