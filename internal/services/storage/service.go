package storage

import (
	"time"

	"github.com/phambaophuc/image-optimizer/internal/config"
	"github.com/redis/go-redis/v9"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// StorageService backs the result cache with Redis and archive uploads with
// Supabase Storage. The Supabase client is nil when no credentials are set.
type StorageService struct {
	sbClient      *storage_go.Client
	redisClient   *redis.Client
	bucket        string
	archivePrefix string
	cacheDuration time.Duration
	logger        *zap.Logger
}

func NewStorageService(cfg *config.Config, logger *zap.Logger) (*StorageService, error) {
	var sbClient *storage_go.Client
	if cfg.Supabase.Enabled() {
		sbClient = storage_go.NewClient(cfg.Supabase.URL+"/storage/v1", cfg.Supabase.KEY, nil)
	} else {
		logger.Warn("Supabase is not configured, archive uploads are disabled")
	}

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	return &StorageService{
		sbClient:      sbClient,
		redisClient:   redisClient,
		bucket:        cfg.Supabase.BUCKET,
		archivePrefix: cfg.Storage.ArchivePrefix,
		cacheDuration: cfg.Storage.CacheDuration,
		logger:        logger,
	}, nil
}

// UploadsEnabled reports whether archives can be pushed to object storage.
func (s *StorageService) UploadsEnabled() bool {
	return s.sbClient != nil
}

func (s *StorageService) Close() error {
	return s.redisClient.Close()
}
