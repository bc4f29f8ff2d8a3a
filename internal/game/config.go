package game

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config carries the game constants for one room. Values are fixed at
// startup; nothing here is runtime-mutable.
type Config struct {
	Countdown     time.Duration // betting window before the round starts
	TickInterval  time.Duration // multiplier broadcast interval while running
	Cooldown      time.Duration // pause after a crash before the next round
	GrowthRate    float64       // multiplier gained per second
	HouseEdge     float64       // operator cut of winning payouts
	MinBet        float64
	MaxBet        float64
	MaxMultiplier float64
	QueueSize     int // inbound request queue capacity
}

func DefaultConfig() Config {
	return Config{
		Countdown:     5 * time.Second,
		TickInterval:  100 * time.Millisecond,
		Cooldown:      3 * time.Second,
		GrowthRate:    0.1,
		HouseEdge:     0.05,
		MinBet:        1.0,
		MaxBet:        10000.0,
		MaxMultiplier: 1000000.0,
		QueueSize:     1000,
	}
}

// ConfigFromEnv returns DefaultConfig with CRASH_* overrides applied.
func ConfigFromEnv() Config {
	cfg := DefaultConfig()
	cfg.Countdown = getEnvAsDuration("CRASH_COUNTDOWN", cfg.Countdown)
	cfg.TickInterval = getEnvAsDuration("CRASH_TICK_INTERVAL", cfg.TickInterval)
	cfg.Cooldown = getEnvAsDuration("CRASH_COOLDOWN", cfg.Cooldown)
	cfg.GrowthRate = getEnvAsFloat("CRASH_GROWTH_RATE", cfg.GrowthRate)
	cfg.HouseEdge = getEnvAsFloat("CRASH_HOUSE_EDGE", cfg.HouseEdge)
	cfg.MinBet = getEnvAsFloat("CRASH_MIN_BET", cfg.MinBet)
	cfg.MaxBet = getEnvAsFloat("CRASH_MAX_BET", cfg.MaxBet)
	cfg.MaxMultiplier = getEnvAsFloat("CRASH_MAX_MULTIPLIER", cfg.MaxMultiplier)
	return cfg
}

func getEnvAsFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvAsDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
