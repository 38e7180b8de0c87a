package api

import (
	"log"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/playgomoku/backend/internal/api/handlers"
	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/game"
	"github.com/playgomoku/backend/internal/middleware"
	"github.com/playgomoku/backend/internal/ws"
)

// SetupRoutes configures all API routes
func SetupRoutes(router *gin.Engine, manager *game.Manager, hub *ws.Hub, db *sqlx.DB, rdb *redis.Client, cfg *config.Config) {
	router.Use(middleware.CORSMiddleware(cfg))

	if cfg.Environment != "production" {
		router.Use(func(c *gin.Context) {
			c.Header("Cache-Control", "no-store, no-cache, must-revalidate, max-age=0")
			c.Next()
		})
		log.Println("[DEV MODE] No-cache headers enabled for all routes")
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck(manager))

		gameGroup := v1.Group("/game")
		{
			gameGroup.GET("/live-rooms", handlers.ListLiveRooms(manager))
			gameGroup.GET("/sessions/:id", handlers.GetSessionState(manager))
		}

		playerGroup := v1.Group("/player")
		{
			playerGroup.GET("/me", handlers.GetProfile(db, cfg))
			playerGroup.GET("/transactions", handlers.GetTransactions(db, cfg))
		}

		v1.GET("/leaderboard", handlers.GetLeaderboard(db))
	}

	// WebSocket endpoint for the realtime game protocol
	router.GET("/ws/game", ws.HandleWebSocket(hub, manager, db, cfg))
}
