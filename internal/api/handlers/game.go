package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/playgomoku/backend/internal/game"
)

// ListLiveRooms returns the ephemeral rooms open to spectators, for the
// lobby screen.
func ListLiveRooms(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"rooms": manager.LiveRooms()})
	}
}

// GetSessionState returns the current state of one session. Falls back to
// the redis snapshot for sessions no longer held in memory.
func GetSessionState(manager *game.Manager) gin.HandlerFunc {
	return func(c *gin.Context) {
		state, err := manager.SessionState(c.Request.Context(), c.Param("id"))
		if err == game.ErrSessionNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load session"})
			return
		}
		c.JSON(http.StatusOK, state)
	}
}
