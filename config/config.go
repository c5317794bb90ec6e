package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds the application configuration
type Config struct {
	// Server
	ServerPort string

	// Store
	StoreBackend string // redis | postgres | memory
	RedisAddr    string
	DatabaseURL  string

	// Trainer
	TrainerCommand string

	// Watchdog; zero disables
	MaxJobRuntime time.Duration

	// AWS pricing refresh
	PricingRefresh bool
	AWSRegion      string
}

// Load loads configuration from environment variables
func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8000"),
		StoreBackend:   getEnv("STORE_BACKEND", "redis"),
		RedisAddr:      getEnv("REDIS_ADDR", "localhost:6379"),
		DatabaseURL:    getEnv("DATABASE_URL", "postgres://localhost/finetune?sslmode=disable"),
		TrainerCommand: getEnv("TRAINER_COMMAND", "python3 -m felafax.trainer_engine.trainer"),
		MaxJobRuntime:  getDuration("MAX_JOB_RUNTIME", 24*time.Hour),
		PricingRefresh: getBool("PRICING_REFRESH", false),
		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
