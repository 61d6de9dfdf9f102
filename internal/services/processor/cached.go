package processor

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
	"go.uber.org/zap"
)

const CacheKeyPrefix = "img_opt:"

// Cache is the subset of the storage service used for result caching.
type Cache interface {
	GetFromCache(ctx context.Context, cacheKey string) ([]byte, error)
	SetCache(ctx context.Context, cacheKey string, data []byte) error
}

type cachedEncoding struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data"`
}

// CachedProcessor serves repeat optimizations of identical bytes from a cache.
type CachedProcessor struct {
	inner  ItemProcessor
	cache  Cache
	logger *zap.Logger
}

func NewCachedProcessor(inner ItemProcessor, cache Cache, logger *zap.Logger) *CachedProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedProcessor{inner: inner, cache: cache, logger: logger}
}

// GenerateCacheKey hashes content, declared type and clamped quality. The
// name is left out so renamed copies share an entry.
func GenerateCacheKey(input models.ImageInput, quality int) string {
	hash := sha256.New()
	hash.Write(input.Data)
	hash.Write([]byte(fmt.Sprintf("|%s|q%d", utils.NormalizeMimeType(input.MimeType), ClampQuality(quality))))
	return fmt.Sprintf("%s%x", CacheKeyPrefix, hash.Sum(nil))
}

func (c *CachedProcessor) Optimize(ctx context.Context, input models.ImageInput, quality int) (*models.OptimizationResult, error) {
	// A cache hit must not outlive a canceled batch.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return c.inner.Optimize(ctx, input, quality)
	}

	key := GenerateCacheKey(input, quality)
	if hit := c.lookup(ctx, key); hit != nil {
		c.logger.Debug("Cache hit", zap.String("filename", input.Name))
		return &models.OptimizationResult{
			OriginalName:   input.Name,
			OriginalSize:   originalSize(input),
			OptimizedBytes: hit.Data,
			OptimizedSize:  int64(len(hit.Data)),
			OutputMimeType: hit.MimeType,
			OriginalBytes:  input.Data,
		}, nil
	}

	result, err := c.inner.Optimize(ctx, input, quality)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(cachedEncoding{MimeType: result.OutputMimeType, Data: result.OptimizedBytes})
	if err == nil {
		err = c.cache.SetCache(ctx, key, payload)
	}
	if err != nil {
		c.logger.Warn("Failed to cache result", zap.String("filename", input.Name), zap.Error(err))
	}

	return result, nil
}

func (c *CachedProcessor) lookup(ctx context.Context, key string) *cachedEncoding {
	data, err := c.cache.GetFromCache(ctx, key)
	if err != nil {
		c.logger.Warn("Cache lookup failed", zap.String("cache_key", key), zap.Error(err))
		return nil
	}
	if data == nil {
		return nil
	}

	var hit cachedEncoding
	if err := json.Unmarshal(data, &hit); err != nil || len(hit.Data) == 0 {
		c.logger.Warn("Discarding unreadable cache entry", zap.String("cache_key", key))
		return nil
	}
	return &hit
}
