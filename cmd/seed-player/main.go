package main

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/playgomoku/backend/internal/auth"
	"github.com/playgomoku/backend/internal/config"
	"github.com/playgomoku/backend/internal/database"
)

// seed-player creates a development player row and prints a signed token
// for connecting to the WebSocket endpoint.
func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := config.Load()

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	name := os.Getenv("PLAYER_NAME")
	if name == "" {
		name = "Dev Player"
	}

	playerID := "player_" + uuid.New().String()[:8]
	now := time.Now()
	_, err = db.Exec(`
		INSERT INTO players (id, display_name, coins, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)`,
		playerID, name, cfg.StartingCoins, now)
	if err != nil {
		log.Fatalf("Failed to insert player: %v", err)
	}

	token, err := auth.MintToken(cfg.JWTSecret, playerID, 30*24*time.Hour)
	if err != nil {
		log.Fatalf("Failed to mint token: %v", err)
	}

	fmt.Printf("player id: %s\n", playerID)
	fmt.Printf("coins:     %d\n", cfg.StartingCoins)
	fmt.Printf("token:     %s\n", token)
	fmt.Printf("connect:   ws://localhost:%s/ws/game?token=%s\n", cfg.Port, token)
}
