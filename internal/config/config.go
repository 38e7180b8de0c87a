package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	// Environment
	Environment string

	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Server
	Port        string
	FrontendURL string

	// Game Settings
	RakePercent         int // % of the pot retained on a win payout
	TimeoutForfeitLimit int // auto-play moves before the game is forfeited
	RoomExpiryMinutes   int // how long a waiting room may sit unjoined
	SeriesLengthMax     int // hard cap on best-of-N series length
	MinStakeAmount      int
	StartingCoins       int

	// Security
	JWTSecret         string
	SessionTimeoutMin int
}

func Load() *Config {
	// Load .env file if it exists
	godotenv.Load()

	return &Config{
		// Environment
		Environment: getEnv("APP_ENV", "development"),

		// Database
		DatabaseURL: getEnv("DATABASE_URL", "postgres://localhost:5432/playgomoku?sslmode=disable"),

		// Redis
		RedisURL: getEnv("REDIS_URL", "redis://localhost:6379/0"),

		// Server
		Port:        getEnv("APP_PORT", "8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:5173"),

		// Game Settings
		RakePercent:         getEnvInt("RAKE_PERCENT", 10),
		TimeoutForfeitLimit: getEnvInt("TIMEOUT_FORFEIT_LIMIT", 5),
		RoomExpiryMinutes:   getEnvInt("ROOM_EXPIRY_MINUTES", 10),
		SeriesLengthMax:     getEnvInt("SERIES_LENGTH_MAX", 9),
		MinStakeAmount:      getEnvInt("MIN_STAKE_AMOUNT", 0),
		StartingCoins:       getEnvInt("STARTING_COINS", 1000),

		// Security
		JWTSecret:         getEnv("JWT_SECRET", "change-me-in-production"),
		SessionTimeoutMin: getEnvInt("SESSION_TIMEOUT_MINUTES", 30),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
