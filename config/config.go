package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Raffle holds every parameter fixed at construction: the entry gate, the
// draw cadence, and the oracle-facing settings passed through on each
// randomness request. Values never change after LoadRaffle returns.
type Raffle struct {
	EntranceFee      decimal.Decimal
	DrawInterval     time.Duration
	CoordinatorURL   string // empty = in-process dev coordinator
	KeyHash          string
	SubscriptionID   uint64
	CallbackGasLimit uint32
	OracleToken      string // shared secret the fulfillment callback must present
	DevOracleDelay   time.Duration
}

// LoadRaffle reads raffle settings from .env / environment variables
func LoadRaffle() Raffle {
	if err := godotenv.Load(); err != nil {
		log.Println("[INFO] No .env file found, reading environment variables")
	}

	fee, err := decimal.NewFromString(getEnv("ENTRANCE_FEE", "0.01"))
	if err != nil {
		log.Fatalf("[FATAL] ENTRANCE_FEE must be a decimal number: %v", err)
	}

	cfg := Raffle{
		EntranceFee:      fee,
		DrawInterval:     time.Duration(mustInt("DRAW_INTERVAL_SECONDS", 30)) * time.Second,
		CoordinatorURL:   os.Getenv("COORDINATOR_URL"),
		KeyHash:          getEnv("ORACLE_KEY_HASH", "dev-keyhash"),
		SubscriptionID:   uint64(mustInt("ORACLE_SUBSCRIPTION_ID", 1)),
		CallbackGasLimit: uint32(mustInt("ORACLE_CALLBACK_GAS_LIMIT", 500000)),
		OracleToken:      os.Getenv("ORACLE_TOKEN"),
		DevOracleDelay:   time.Duration(mustInt("DEV_ORACLE_DELAY_SECONDS", 3)) * time.Second,
	}

	if cfg.EntranceFee.LessThanOrEqual(decimal.Zero) {
		log.Fatal("[FATAL] ENTRANCE_FEE must be positive")
	}
	if cfg.CoordinatorURL != "" && cfg.OracleToken == "" {
		log.Fatal("[FATAL] ORACLE_TOKEN is required when COORDINATOR_URL is set")
	}
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func mustInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("[FATAL] %s must be an integer, got %q", key, v)
	}
	return n
}
