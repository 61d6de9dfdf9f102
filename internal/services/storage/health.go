package storage

import (
	"context"

	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

// HealthCheck checks Redis + Supabase
func (s *StorageService) HealthCheck(ctx context.Context) map[string]string {
	status := make(map[string]string)

	if err := s.redisClient.Ping(ctx).Err(); err != nil {
		status["redis"] = "unhealthy: " + err.Error()
	} else {
		status["redis"] = "healthy"
	}

	if s.sbClient == nil {
		status["supabase"] = "disabled"
		return status
	}

	if _, err := s.sbClient.ListFiles(s.bucket, s.archivePrefix, storage_go.FileSearchOptions{Limit: 1}); err != nil {
		s.logger.Warn("Supabase health check failed", zap.Error(err))
		status["supabase"] = "unhealthy: " + err.Error()
	} else {
		status["supabase"] = "healthy"
	}

	return status
}
