package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/phambaophuc/image-optimizer/internal/config"
	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services/archive"
	"github.com/phambaophuc/image-optimizer/internal/services/batch"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
	"go.uber.org/zap"
)

const (
	imagesParamKey  = "images"
	qualityParamKey = "quality"
	variantOriginal = "original"
)

// Optimizer is the batch service the handlers drive.
type Optimizer interface {
	Optimize(ctx context.Context, req batch.Request) (*models.BatchJob, error)
	Lookup(id string) (*models.BatchJob, error)
	Archive(ctx context.Context, id string) ([]byte, error)
	UploadArchive(ctx context.Context, id string) (*models.ArchiveUploadResponse, error)
	Stats() map[string]interface{}
}

type StorageStatus interface {
	HealthCheck(ctx context.Context) map[string]string
	GetCacheStats(ctx context.Context) (map[string]interface{}, error)
}

type QueueStatus interface {
	PublishJob(ctx context.Context, job *models.OptimizeJob) error
	HealthCheck() string
	GetQueueStats() (map[string]interface{}, error)
}

type BatchHandler struct {
	optimizer Optimizer
	storage   StorageStatus
	queue     QueueStatus
	logger    *zap.Logger
	config    *config.Config
}

type Option func(*BatchHandler)

func WithStorage(s StorageStatus) Option {
	return func(h *BatchHandler) { h.storage = s }
}

func WithQueue(q QueueStatus) Option {
	return func(h *BatchHandler) { h.queue = q }
}

func NewBatchHandler(optimizer Optimizer, logger *zap.Logger, config *config.Config, opts ...Option) *BatchHandler {
	h := &BatchHandler{
		optimizer: optimizer,
		logger:    logger,
		config:    config,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// === MAIN API ENDPOINTS ===

func (h *BatchHandler) CreateBatch(c *gin.Context) {
	inputs, quality, err := h.parseBatchRequest(c)
	if err != nil {
		h.respondRequestError(c, err)
		return
	}

	job, err := h.optimizer.Optimize(c.Request.Context(), batch.Request{
		ID:      uuid.New().String(),
		Inputs:  inputs,
		Quality: quality,
	})
	switch {
	case err == nil:
		c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: h.buildBatchResponse(job)})
	case errors.Is(err, batch.ErrNoSuccessfulItems) && job != nil:
		c.JSON(http.StatusUnprocessableEntity, models.APIResponse{
			Success: false,
			Data:    h.buildBatchResponse(job),
			Error:   "no image could be optimized",
		})
	default:
		h.respondServiceError(c, err)
	}
}

func (h *BatchHandler) CreateBatchAsync(c *gin.Context) {
	if h.queue == nil {
		h.respondError(c, http.StatusServiceUnavailable, "queue is not available")
		return
	}

	inputs, quality, err := h.parseBatchRequest(c)
	if err != nil {
		h.respondRequestError(c, err)
		return
	}

	job := &models.OptimizeJob{
		ID:        uuid.New().String(),
		Quality:   &quality,
		Inputs:    inputs,
		CreatedAt: time.Now(),
	}
	if err := h.queue.PublishJob(c.Request.Context(), job); err != nil {
		h.logger.Error("Failed to queue batch", zap.String("batch_id", job.ID), zap.Error(err))
		h.respondError(c, http.StatusServiceUnavailable, "failed to queue batch")
		return
	}

	c.JSON(http.StatusAccepted, models.APIResponse{
		Success: true,
		Data: gin.H{
			"job_id": job.ID,
			"status": "queued",
			"items":  len(job.Inputs),
		},
	})
}

func (h *BatchHandler) GetBatch(c *gin.Context) {
	job, err := h.optimizer.Lookup(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: h.buildBatchResponse(job)})
}

// DownloadImage serves one optimized image, or its original with
// ?variant=original.
func (h *BatchHandler) DownloadImage(c *gin.Context) {
	job, err := h.optimizer.Lookup(c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		h.respondError(c, http.StatusBadRequest, "invalid image index")
		return
	}
	if index < 0 || index >= len(job.Results) {
		h.respondError(c, http.StatusNotFound, fmt.Sprintf("no image at index %d", index))
		return
	}

	item := job.Results[index]
	if !item.OK() {
		failure := models.NewItemFailure(index, job.Inputs[index].Name, item.Err)
		c.JSON(http.StatusUnprocessableEntity, models.APIResponse{
			Success: false,
			Data:    failure,
			Error:   failure.Error,
		})
		return
	}

	result := item.Result
	if c.Query("variant") == variantOriginal {
		input := job.Inputs[index]
		h.respondAttachment(c, utils.DetectMimeType(input.MimeType, input.Data), utils.Stem(input.Name)+"."+utils.ExtensionForMime(input.MimeType), result.OriginalBytes)
		return
	}

	h.respondAttachment(c, result.OutputMimeType, utils.OptimizedFilename(result.OriginalName, result.OutputMimeType), result.OptimizedBytes)
}

func (h *BatchHandler) DownloadArchive(c *gin.Context) {
	data, err := h.optimizer.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	h.respondAttachment(c, archive.MimeType, archive.DefaultFilename, data)
}

func (h *BatchHandler) UploadArchive(c *gin.Context) {
	resp, err := h.optimizer.UploadArchive(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: resp})
}

// HealthCheck
func (h *BatchHandler) HealthCheck(c *gin.Context) {
	services := map[string]string{"optimizer": "healthy"}
	if h.storage != nil {
		for name, status := range h.storage.HealthCheck(c.Request.Context()) {
			services[name] = status
		}
	}
	if h.queue != nil {
		services["rabbitmq"] = h.queue.HealthCheck()
	} else {
		services["rabbitmq"] = "not configured"
	}

	overall := h.calculateOverallHealth(services)

	statusCode := http.StatusOK
	if overall == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, models.APIResponse{
		Success: overall == "healthy",
		Data: models.HealthCheck{
			Status:    overall,
			Timestamp: time.Now(),
			Services:  services,
		},
	})
}

func (h *BatchHandler) GetStats(c *gin.Context) {
	stats := map[string]interface{}{
		"optimizer": h.optimizer.Stats(),
		"timestamp": time.Now(),
	}

	if h.storage != nil {
		cacheStats, err := h.storage.GetCacheStats(c.Request.Context())
		if err != nil {
			h.logger.Error("Failed to get cache stats", zap.Error(err))
		} else {
			stats["cache"] = cacheStats
		}
	}

	if h.queue != nil {
		queueStats, err := h.queue.GetQueueStats()
		if err != nil {
			h.logger.Error("Failed to get queue stats", zap.Error(err))
		} else {
			stats["queue"] = queueStats
		}
	}

	c.JSON(http.StatusOK, models.APIResponse{
		Success: true,
		Data:    stats,
	})
}
