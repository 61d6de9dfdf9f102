package handlers

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services"
	"github.com/phambaophuc/image-optimizer/internal/services/archive"
	"github.com/phambaophuc/image-optimizer/internal/services/processor"
	"github.com/phambaophuc/image-optimizer/pkg/utils"
	"go.uber.org/zap"
)

// === REQUEST PARSING ===

// parseBatchRequest parses the form before reading any field so body read
// errors surface here instead of being swallowed by PostForm.
func (h *BatchHandler) parseBatchRequest(c *gin.Context) ([]models.ImageInput, int, error) {
	files, err := h.parseMultipartFiles(c)
	if err != nil {
		return nil, 0, err
	}

	quality, err := h.parseQuality(c.PostForm(qualityParamKey))
	if err != nil {
		return nil, 0, err
	}

	inputs, err := h.readFiles(files)
	if err != nil {
		return nil, 0, err
	}

	return inputs, quality, nil
}

func (h *BatchHandler) parseMultipartFiles(c *gin.Context) ([]*multipart.FileHeader, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, fmt.Errorf("failed to parse form data: %w", err)
	}

	files := form.File[imagesParamKey]
	if len(files) == 0 {
		return nil, fmt.Errorf("no images provided")
	}
	if limit := h.config.Storage.MaxBatchFiles; limit > 0 && len(files) > limit {
		return nil, fmt.Errorf("too many images: %d (max %d)", len(files), limit)
	}

	return files, nil
}

// parseQuality falls back to the configured default when the field is
// missing. Out-of-range values are clamped downstream.
func (h *BatchHandler) parseQuality(value string) (int, error) {
	if value == "" {
		return h.config.Optimizer.DefaultQuality, nil
	}

	quality, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid quality: must be a number")
	}

	return processor.ClampQuality(quality), nil
}

// === FILE OPERATIONS ===

// readFiles loads every upload into memory. Oversized files are kept as
// inputs so they fail individually instead of rejecting the whole batch.
func (h *BatchHandler) readFiles(files []*multipart.FileHeader) ([]models.ImageInput, error) {
	inputs := make([]models.ImageInput, 0, len(files))
	limit := h.config.Storage.MaxFileSize

	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %v", fh.Filename, err)
		}

		// Read one byte past the limit so the processor can report the overflow.
		data, err := io.ReadAll(io.LimitReader(f, limit+1))
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", fh.Filename, err)
		}

		input := models.NewImageInput(fh.Filename, utils.DetectMimeType(fh.Header.Get("Content-Type"), data), data)
		input.Size = fh.Size
		inputs = append(inputs, input)
	}

	return inputs, nil
}

// === RESPONSE HANDLING ===

func (h *BatchHandler) respondError(c *gin.Context, statusCode int, message string) {
	c.JSON(statusCode, models.APIResponse{
		Success: false,
		Error:   message,
	})
}

// respondRequestError maps upload parsing failures to a client error.
func (h *BatchHandler) respondRequestError(c *gin.Context, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.respondError(c, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("request body exceeds %s", utils.FormatBytes(tooLarge.Limit)))
		return
	}
	h.respondError(c, http.StatusBadRequest, err.Error())
}

func (h *BatchHandler) respondServiceError(c *gin.Context, err error) {
	var archiveErr *archive.ArchiveError

	switch {
	case errors.Is(err, services.ErrBatchNotFound):
		h.respondError(c, http.StatusNotFound, "batch not found")
	case errors.Is(err, services.ErrBatchSuperseded):
		h.respondError(c, http.StatusConflict, "batch was superseded by a newer request")
	case errors.Is(err, models.ErrInvalidTransition):
		h.respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, services.ErrUploadDisabled):
		h.respondError(c, http.StatusServiceUnavailable, "archive upload is not configured")
	case errors.As(err, &archiveErr):
		if errors.Is(err, archive.ErrNoEntries) {
			h.respondError(c, http.StatusUnprocessableEntity, "no optimized images to archive")
			return
		}
		h.logger.Error("Archive failed", zap.Error(err))
		h.respondError(c, http.StatusInternalServerError, "failed to build archive")
	default:
		h.logger.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		h.respondError(c, http.StatusInternalServerError, "internal server error")
	}
}

func (h *BatchHandler) respondAttachment(c *gin.Context, contentType, filename string, data []byte) {
	// Quotes and non-ASCII names come from user uploads; let mime escape them.
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	c.Data(http.StatusOK, contentType, data)
}

func (h *BatchHandler) buildBatchResponse(job *models.BatchJob) models.BatchResponse {
	successes := job.Successes()
	entries := make([]archive.Entry, len(successes))
	for i, r := range successes {
		entries[i] = archive.Entry{Name: r.OriginalName, MimeType: r.OutputMimeType}
	}
	names := archive.Names(entries)

	images := make([]models.ImageResponse, 0, len(successes))
	for i, r := range job.Results {
		if !r.OK() {
			continue
		}
		url := fmt.Sprintf("/api/v1/batches/%s/images/%d", job.ID, i)
		images = append(images, models.ImageResponse{
			Index:            i,
			OriginalName:     r.Result.OriginalName,
			OriginalSize:     r.Result.OriginalSize,
			OptimizedSize:    r.Result.OptimizedSize,
			OutputMimeType:   r.Result.OutputMimeType,
			ReductionPercent: r.Result.ReductionPercent(),
			DownloadName:     names[len(images)],
			URL:              url,
			OriginalURL:      url + "?variant=" + variantOriginal,
		})
	}

	summary := job.Summary()
	return models.BatchResponse{
		JobID:       job.ID,
		Status:      job.Status,
		Quality:     job.Quality,
		Summary:     summary,
		Images:      images,
		Failures:    job.Failures(),
		Archivable:  job.Status.Archivable() && summary.Succeeded > 0,
		ArchiveURL:  job.ArchiveURL,
		ProcessedAt: job.CompletedAt,
	}
}

// === UTILITY METHODS ===

func (h *BatchHandler) calculateOverallHealth(services map[string]string) string {
	for _, status := range services {
		if status != "healthy" && status != "not configured" && status != "disabled" {
			return "unhealthy"
		}
	}
	return "healthy"
}
