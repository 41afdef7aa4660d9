package main

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lanbeam/lanbeam/internal/ratelimit"
)

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// rateLimitMiddleware consults the shared guard before any request
// reaches ingestion, retrieval or the real-time endpoint. The client key
// is the caller's network address.
func rateLimitMiddleware(guard *ratelimit.Guard) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !guard.Allow(c.ClientIP()) {
			c.String(http.StatusTooManyRequests, "rate limit exceeded, try again later")
			c.Abort()
			return
		}
		c.Next()
	}
}
