package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

var RedisClient *redis.Client

var errRedisNotInitialized = errors.New("redis client not initialized")

// InitRedis initializes the Redis client
func InitRedis() error {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://redis:6379" // Default Redis address for Docker
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return fmt.Errorf("failed to parse Redis URL: %v", err)
	}

	RedisClient = redis.NewClient(opt)

	// Test the connection
	ctx := context.Background()
	_, err = RedisClient.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %v", err)
	}

	return nil
}

// AllowRequest increments the fixed-window counter for key within scope and
// reports whether the caller is still under the limit. The window expires
// lazily via the key TTL.
func AllowRequest(ctx context.Context, scope, key string, limit int, window time.Duration) (bool, error) {
	if RedisClient == nil {
		return false, errRedisNotInitialized
	}
	redisKey := fmt.Sprintf("ratelimit:%s:%s", scope, key)

	count, err := RedisClient.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := RedisClient.Expire(ctx, redisKey, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// CacheAvailability stores an availability check result for a short period.
func CacheAvailability(ctx context.Context, vehicleID uint, start, end string, result interface{}) error {
	if RedisClient == nil {
		return errRedisNotInitialized
	}
	key := fmt.Sprintf("availability:%d:%s:%s", vehicleID, start, end)
	data, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return RedisClient.Set(ctx, key, data, time.Minute).Err()
}

// GetCachedAvailability retrieves a cached availability check result.
func GetCachedAvailability(ctx context.Context, vehicleID uint, start, end string) (map[string]interface{}, error) {
	if RedisClient == nil {
		return nil, errRedisNotInitialized
	}
	key := fmt.Sprintf("availability:%d:%s:%s", vehicleID, start, end)
	data, err := RedisClient.Get(ctx, key).Result()
	if err != nil {
		return nil, err
	}

	var result map[string]interface{}
	if err := json.Unmarshal([]byte(data), &result); err != nil {
		return nil, err
	}
	return result, nil
}

// InvalidateAvailability drops all cached availability entries for a vehicle.
// Called after a booking is created or changes state.
func InvalidateAvailability(ctx context.Context, vehicleID uint) error {
	if RedisClient == nil {
		return nil
	}
	pattern := fmt.Sprintf("availability:%d:*", vehicleID)
	iter := RedisClient.Scan(ctx, 0, pattern, 0).Iterator()
	for iter.Next(ctx) {
		if err := RedisClient.Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// PublishBookingUpdate publishes a booking status change to Redis pub/sub.
func PublishBookingUpdate(ctx context.Context, bookingID uint, status string, data map[string]interface{}) error {
	if RedisClient == nil {
		return nil
	}
	updateData := map[string]interface{}{
		"bookingId": bookingID,
		"status":    status,
		"data":      data,
		"timestamp": time.Now().Unix(),
	}

	jsonData, err := json.Marshal(updateData)
	if err != nil {
		return err
	}

	return RedisClient.Publish(ctx, "booking:updates", jsonData).Err()
}
