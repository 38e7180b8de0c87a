package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/playgomoku/backend/internal/game"
)

var startTime = time.Now()

const version = "1.0.0"

// HealthCheck returns server health status plus matchmaking gauges.
func HealthCheck(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		queued := 0
		for _, depth := range manager.QueueDepths() {
			queued += depth
		}
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"service":         "playgomoku-api",
			"version":         version,
			"uptime":          time.Since(startTime).String(),
			"queued_players":  queued,
			"active_sessions": manager.ActiveSessionCount(),
		})
	}
}
