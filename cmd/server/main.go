package main

import (
	"context"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/playgomoku/backend/internal/api"
	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/database"
	"github.com/playgomoku/backend/internal/game"
	"github.com/playgomoku/backend/internal/migrations"
	"github.com/playgomoku/backend/internal/redis"
	"github.com/playgomoku/backend/internal/wallet"
	"github.com/playgomoku/backend/internal/ws"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Run migrations on start if requested
	if os.Getenv("MIGRATE_ON_START") == "true" {
		log.Println("Running DB migrations on startup...")
		if err := migrations.RunMigrations(cfg.DatabaseURL); err != nil {
			log.Fatalf("Failed to run migrations: %v", err)
		}
	}

	rdb, err := redis.Connect(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	// Wire the engine: the hub delivers events and answers presence checks.
	hub := ws.NewHub()
	walletStore := wallet.NewSQLStore(db)
	sessionStore := game.NewSQLSessionStore(db)
	manager := game.NewManager(cfg, walletStore, sessionStore, rdb, hub, hub)

	ctx := context.Background()
	go manager.StartExpiryWorker(ctx)
	ws.StartEventSubscriber(ctx, rdb, hub)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	api.SetupRoutes(router, manager, hub, db, rdb, cfg)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	log.Printf("Starting PlayGomoku server on port %s", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
