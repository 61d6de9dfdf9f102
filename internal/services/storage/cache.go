package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/phambaophuc/image-optimizer/internal/services/processor"
	"github.com/redis/go-redis/v9"
)

func (s *StorageService) GetFromCache(ctx context.Context, cacheKey string) ([]byte, error) {
	data, err := s.redisClient.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("cache get error: %w", err)
	}
	return data, nil
}

func (s *StorageService) SetCache(ctx context.Context, cacheKey string, data []byte) error {
	return s.redisClient.Set(ctx, cacheKey, data, s.cacheDuration).Err()
}

// CleanupCache drops optimizer entries that lost their expiry.
func (s *StorageService) CleanupCache(ctx context.Context) (int, error) {
	removed := 0
	iter := s.redisClient.Scan(ctx, 0, processor.CacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		ttl, err := s.redisClient.TTL(ctx, key).Result()
		if err != nil {
			return removed, err
		}
		// -1 means the key exists without an expiry.
		if ttl == -1 {
			if err := s.redisClient.Del(ctx, key).Err(); err != nil {
				return removed, err
			}
			removed++
		}
	}
	return removed, iter.Err()
}

func (s *StorageService) GetCacheStats(ctx context.Context) (map[string]interface{}, error) {
	dbSize, err := s.redisClient.DBSize(ctx).Result()
	if err != nil {
		return nil, err
	}

	var cached int64
	iter := s.redisClient.Scan(ctx, 0, processor.CacheKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		cached++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	stats := map[string]interface{}{
		"db_keys":        dbSize,
		"cached_results": cached,
		"ttl":            s.cacheDuration.String(),
	}

	return stats, nil
}
