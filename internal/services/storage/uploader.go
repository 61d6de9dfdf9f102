package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"github.com/phambaophuc/image-optimizer/pkg/utils"
	storage_go "github.com/supabase-community/storage-go"
	"go.uber.org/zap"
)

var ErrUploadsDisabled = errors.New("object storage is not configured")

// UploadArchive stores a built archive and returns its public URL.
func (s *StorageService) UploadArchive(ctx context.Context, batchID string, data []byte) (string, error) {
	return s.Upload(ctx, data, ArchiveFilename(batchID), "application/zip")
}

// Upload uploads file to Supabase Storage
func (s *StorageService) Upload(ctx context.Context, data []byte, filename, contentType string) (string, error) {
	if s.sbClient == nil {
		return "", ErrUploadsDisabled
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	key := utils.GenerateStorageKey(s.archivePrefix, filename)

	_, err := s.sbClient.UploadFile(s.bucket, key, bytes.NewReader(data), storage_go.FileOptions{
		ContentType: &contentType,
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to supabase: %w", err)
	}

	s.logger.Info("Uploaded to storage",
		zap.String("key", key),
		zap.Int("size", len(data)))

	publicURL := s.sbClient.GetPublicUrl(s.bucket, key)
	return publicURL.SignedURL, nil
}

// ArchiveFilename is the object name used for a batch archive.
func ArchiveFilename(batchID string) string {
	if batchID == "" {
		return "optimized-images.zip"
	}
	return "optimized-images-" + batchID + ".zip"
}
