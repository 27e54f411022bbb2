package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"codearena/internal/platform/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var RDB *redis.Client

func ConnectRedis() {
	RDB = redis.NewClient(&redis.Options{
		Addr:     config.AppConfig.RedisAddr,
		Password: config.AppConfig.RedisPassword,
		DB:       config.AppConfig.RedisDB,
	})

	ctx := context.Background()
	if _, err := RDB.Ping(ctx).Result(); err != nil {
		log.Fatalf("Could not connect to Redis: %v", err)
	}
}

func CloseRedis() {
	if RDB != nil {
		RDB.Close()
	}
}

// GetJSON loads a cached value into dest. Returns false on a miss; cache
// read errors are treated as misses so callers always fall through to the
// source of truth.
func GetJSON(ctx context.Context, rdb *redis.Client, key string, dest interface{}, logger *zap.Logger) bool {
	raw, err := rdb.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("cache read failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		logger.Warn("malformed cache entry dropped", zap.String("key", key), zap.Error(err))
		rdb.Del(ctx, key)
		return false
	}
	return true
}

// SetJSON stores a value with a TTL. Failures are logged, never surfaced;
// the cache is strictly best-effort.
func SetJSON(ctx context.Context, rdb *redis.Client, key string, value interface{}, ttl time.Duration, logger *zap.Logger) {
	raw, err := json.Marshal(value)
	if err != nil {
		logger.Warn("failed to marshal cache entry", zap.String("key", key), zap.Error(err))
		return
	}
	if err := rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}
