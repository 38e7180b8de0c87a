package handlers

import (
	"database/sql"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"

	"github.com/playgomoku/backend/internal/auth"
	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/models"
)

// authedPlayerID resolves the bearer token to a player id, writing the
// error response itself on failure.
func authedPlayerID(c *gin.Context, cfg *config.Config) (string, bool) {
	token := c.GetHeader("Authorization")
	if len(token) > 7 && token[:7] == "Bearer " {
		token = token[7:]
	}
	if token == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return "", false
	}
	playerID, err := auth.VerifyToken(cfg.JWTSecret, token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return "", false
	}
	return playerID, true
}

// GetProfile returns the authenticated player's profile, balance and stats.
func GetProfile(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, ok := authedPlayerID(c, cfg)
		if !ok {
			return
		}
		var p models.Player
		err := db.GetContext(c.Request.Context(), &p, "SELECT * FROM players WHERE id = $1", playerID)
		if err == sql.ErrNoRows {
			c.JSON(http.StatusNotFound, gin.H{"error": "player not found"})
			return
		}
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load player"})
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

// GetTransactions returns the authenticated player's ledger, newest first.
func GetTransactions(db *sqlx.DB, cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID, ok := authedPlayerID(c, cfg)
		if !ok {
			return
		}
		var txs []models.Transaction
		err := db.SelectContext(c.Request.Context(), &txs,
			"SELECT * FROM transactions WHERE player_id = $1 ORDER BY created_at DESC LIMIT 100", playerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"transactions": txs})
	}
}

// GetLeaderboard returns the top players by wins.
func GetLeaderboard(db *sqlx.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var players []models.Player
		err := db.SelectContext(c.Request.Context(), &players,
			"SELECT * FROM players ORDER BY wins DESC, games_played ASC LIMIT 50")
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load leaderboard"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"players": players})
	}
}
