package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services/archive"
	"github.com/phambaophuc/image-optimizer/internal/services/batch"
	"go.uber.org/zap"
)

var (
	ErrBatchSuperseded = errors.New("batch superseded by a newer request")
	ErrBatchNotFound   = errors.New("batch not found")
	ErrUploadDisabled  = errors.New("archive upload is not configured")
)

// ArchiveUploader publishes a built archive and returns where it can be fetched.
type ArchiveUploader interface {
	UploadArchive(ctx context.Context, batchID string, data []byte) (string, error)
}

// Optimizer keeps the latest batch. Starting a batch cancels and discards
// whatever was in flight before it.
type Optimizer struct {
	orchestrator *batch.Orchestrator
	builder      *archive.Builder
	uploader     ArchiveUploader
	logger       *zap.Logger

	mu         sync.Mutex
	generation uint64
	cancel     context.CancelFunc
	current    *models.BatchJob
	archive    []byte
	building   *archiveBuild

	batches    atomic.Int64
	superseded atomic.Int64
	succeeded  atomic.Int64
	failed     atomic.Int64
	archives   atomic.Int64
}

// archiveBuild is an archive being packed for job. Callers arriving while it
// runs wait on done and share its outcome.
type archiveBuild struct {
	job  *models.BatchJob
	done chan struct{}
	data []byte
	err  error
}

// NewOptimizer wires the pipeline. uploader may be nil.
func NewOptimizer(orchestrator *batch.Orchestrator, builder *archive.Builder, uploader ArchiveUploader, logger *zap.Logger) *Optimizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{
		orchestrator: orchestrator,
		builder:      builder,
		uploader:     uploader,
		logger:       logger,
	}
}

// Optimize runs req as the current batch. If another Optimize call starts
// before this one finishes, this one returns ErrBatchSuperseded and its
// results are dropped.
func (o *Optimizer) Optimize(ctx context.Context, req batch.Request) (*models.BatchJob, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	o.mu.Lock()
	if o.cancel != nil {
		o.cancel()
	}
	o.generation++
	gen := o.generation
	o.cancel = cancel
	o.current = nil
	o.archive = nil
	o.mu.Unlock()

	job, err := o.orchestrator.Run(runCtx, req)

	o.mu.Lock()
	defer o.mu.Unlock()

	if gen != o.generation {
		o.superseded.Add(1)
		id := req.ID
		if job != nil {
			id = job.ID
		}
		o.logger.Info("Discarding superseded batch", zap.String("batch_id", id))
		return nil, fmt.Errorf("batch %s: %w", id, ErrBatchSuperseded)
	}
	o.cancel = nil

	if job == nil {
		return nil, err
	}

	o.batches.Add(1)
	summary := job.Summary()
	o.succeeded.Add(int64(summary.Succeeded))
	o.failed.Add(int64(summary.Failed))

	o.current = job
	return snapshot(job), err
}

// Lookup returns a copy of the current batch if it has the given id.
func (o *Optimizer) Lookup(id string) (*models.BatchJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.current == nil || o.current.ID != id {
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	return snapshot(o.current), nil
}

// Archive packs the successful results of batch id. A built archive is
// reused until the batch is replaced and concurrent callers share one build.
// Failures leave the results untouched and archiving can be retried.
func (o *Optimizer) Archive(ctx context.Context, id string) ([]byte, error) {
	o.mu.Lock()
	job := o.current
	if job == nil || job.ID != id {
		o.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrBatchNotFound, id)
	}
	if job.Status == models.StatusArchived && o.archive != nil {
		data := o.archive
		o.mu.Unlock()
		return data, nil
	}
	if job.Status == models.StatusFailed {
		o.mu.Unlock()
		return nil, &archive.ArchiveError{Err: archive.ErrNoEntries}
	}
	if b := o.building; b != nil && b.job == job {
		o.mu.Unlock()
		return o.awaitBuild(ctx, id, b)
	}
	if err := job.Transition(models.StatusArchiving); err != nil {
		o.mu.Unlock()
		return nil, err
	}
	b := &archiveBuild{job: job, done: make(chan struct{})}
	o.building = b
	o.mu.Unlock()

	data, buildErr := o.builder.Build(ctx, archive.EntriesFromJob(job))

	o.mu.Lock()
	defer o.mu.Unlock()
	b.data, b.err = o.finishBuild(id, job, data, buildErr)
	if o.building == b {
		o.building = nil
	}
	close(b.done)

	return b.data, b.err
}

// finishBuild records the outcome of a build. Callers hold o.mu.
func (o *Optimizer) finishBuild(id string, job *models.BatchJob, data []byte, buildErr error) ([]byte, error) {
	if o.current != job {
		return nil, fmt.Errorf("batch %s: %w", id, ErrBatchSuperseded)
	}

	if buildErr != nil {
		_ = job.Transition(models.StatusArchiveFailed)
		o.logger.Warn("Archive failed", zap.String("batch_id", id), zap.Error(buildErr))
		return nil, buildErr
	}

	_ = job.Transition(models.StatusArchived)
	o.archive = data
	o.archives.Add(1)
	o.logger.Info("Archive built",
		zap.String("batch_id", id),
		zap.Int("size", len(data)))

	return data, nil
}

// awaitBuild waits for another caller's build of batch id. If that caller
// gave up on its own context, the build is retried under ctx.
func (o *Optimizer) awaitBuild(ctx context.Context, id string, b *archiveBuild) ([]byte, error) {
	select {
	case <-b.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if b.err != nil && isContextErr(b.err) && ctx.Err() == nil {
		return o.Archive(ctx, id)
	}
	return b.data, b.err
}

func isContextErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// UploadArchive builds (or reuses) the archive of batch id and publishes it.
func (o *Optimizer) UploadArchive(ctx context.Context, id string) (*models.ArchiveUploadResponse, error) {
	if o.uploader == nil {
		return nil, ErrUploadDisabled
	}

	data, err := o.Archive(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := o.uploader.UploadArchive(ctx, id, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload archive: %w", err)
	}

	o.mu.Lock()
	entries := 0
	if o.current != nil && o.current.ID == id {
		o.current.ArchiveURL = url
		entries = len(o.current.Successes())
	}
	o.mu.Unlock()

	return &models.ArchiveUploadResponse{
		JobID:   id,
		URL:     url,
		Entries: entries,
		Size:    int64(len(data)),
	}, nil
}

// Cancel stops the batch in flight, if any.
func (o *Optimizer) Cancel() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.cancel != nil {
		o.cancel()
	}
}

func (o *Optimizer) Stats() map[string]interface{} {
	return map[string]interface{}{
		"batches":          o.batches.Load(),
		"superseded":       o.superseded.Load(),
		"items_succeeded":  o.succeeded.Load(),
		"items_failed":     o.failed.Load(),
		"archives_created": o.archives.Load(),
	}
}

func snapshot(job *models.BatchJob) *models.BatchJob {
	cp := *job
	return &cp
}
