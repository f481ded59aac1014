package utils

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// GetRealClientIP resolves the originating client address for the auth audit
// logs, preferring proxy-set headers over the socket peer.
func GetRealClientIP(c *gin.Context) string {
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	return c.ClientIP()
}
