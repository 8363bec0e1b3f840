package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger reports whether the search engine answers.
type Pinger interface {
	IsAvailable(ctx context.Context) bool
}

func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "ckan-search",
		"time":    time.Now().Unix(),
	})
}

// Ready answers 503 until Elasticsearch is reachable.
func Ready(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !p.IsAvailable(c.Request.Context()) {
			c.JSON(http.StatusServiceUnavailable, gin.H{"ready": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ready": true})
	}
}
