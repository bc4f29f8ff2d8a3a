package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/redis/go-redis/v9"

	"crashpit/internal/game"
)

const (
	roundKeyPrefix = "crash:round:"
	historyKey     = "crash:history"
	historyLength  = 50
	roundTTL       = 1 * time.Hour
	archiveTimeout = 3 * time.Second
)

// Service is the redis-backed round archive: it stores finished round
// summaries and serves the recent crash-point history.
type Service interface {
	GetClient() *redis.Client
	Health() map[string]string
	Close() error

	// SaveRound archives a finished round. Satisfies game.RoundRecorder.
	SaveRound(rec game.RoundRecord)
	// RecentCrashes returns the latest finished rounds, newest first.
	RecentCrashes(ctx context.Context, n int) ([]game.RoundRecord, error)
}

type service struct {
	client *redis.Client
}

var (
	redisAddr     = getEnv("REDIS_URL", "localhost:6379")
	redisPassword = getEnv("REDIS_PASSWORD", "")
	redisDB       = getEnvAsInt("REDIS_DB", 0)
	cacheInstance *service
)

func New() Service {
	if cacheInstance != nil {
		return cacheInstance
	}

	client := redis.NewClient(&redis.Options{
		Addr:         redisAddr,
		Password:     redisPassword,
		DB:           redisDB,
		PoolSize:     100,
		MinIdleConns: 10,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Printf("[CACHE] Redis connection failed: %v", err)
		return nil
	}

	log.Println("[CACHE] Redis connected")

	cacheInstance = &service{client: client}
	return cacheInstance
}

func (s *service) GetClient() *redis.Client {
	return s.client
}

// SaveRound writes the round summary and prepends it to the bounded crash
// history list.
func (s *service) SaveRound(rec game.RoundRecord) {
	ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
	defer cancel()

	data, err := json.Marshal(rec)
	if err != nil {
		log.Printf("[CACHE] marshal round %s failed: %v", rec.RoundID, err)
		return
	}

	if err := s.client.Set(ctx, roundKeyPrefix+rec.RoundID, data, roundTTL).Err(); err != nil {
		log.Printf("[CACHE] archive round %s failed: %v", rec.RoundID, err)
	}

	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, historyKey, data)
	pipe.LTrim(ctx, historyKey, 0, historyLength-1)
	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[CACHE] history push for round %s failed: %v", rec.RoundID, err)
	}
}

func (s *service) RecentCrashes(ctx context.Context, n int) ([]game.RoundRecord, error) {
	if n <= 0 || n > historyLength {
		n = historyLength
	}

	vals, err := s.client.LRange(ctx, historyKey, 0, int64(n-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("crash history: %w", err)
	}

	records := make([]game.RoundRecord, 0, len(vals))
	for _, v := range vals {
		var rec game.RoundRecord
		if err := json.Unmarshal([]byte(v), &rec); err != nil {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *service) Health() map[string]string {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	stats := make(map[string]string)

	_, err := s.client.Ping(ctx).Result()
	if err != nil {
		stats["status"] = "down"
		stats["error"] = fmt.Sprintf("redis down: %v", err)
		return stats
	}

	stats["status"] = "up"
	stats["message"] = "Redis is healthy"

	poolStats := s.client.PoolStats()
	stats["hits"] = strconv.FormatUint(uint64(poolStats.Hits), 10)
	stats["misses"] = strconv.FormatUint(uint64(poolStats.Misses), 10)
	stats["timeouts"] = strconv.FormatUint(uint64(poolStats.Timeouts), 10)
	stats["total_conns"] = strconv.FormatUint(uint64(poolStats.TotalConns), 10)
	stats["idle_conns"] = strconv.FormatUint(uint64(poolStats.IdleConns), 10)

	return stats
}

func (s *service) Close() error {
	log.Println("[CACHE] disconnecting from Redis")
	return s.client.Close()
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}
