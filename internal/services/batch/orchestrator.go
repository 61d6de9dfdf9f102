package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services/processor"
	"go.uber.org/zap"
)

const DefaultWorkers = 5

// ErrNoSuccessfulItems is returned when a non-empty batch produced nothing.
var ErrNoSuccessfulItems = errors.New("no image could be optimized")

// ProgressFunc is called once per finished item, from a worker goroutine.
type ProgressFunc func(index int, err error)

type Option func(*Orchestrator)

// WithProgress registers a callback invoked after every item.
func WithProgress(fn ProgressFunc) Option {
	return func(o *Orchestrator) {
		o.progress = fn
	}
}

type Request struct {
	ID      string
	Inputs  []models.ImageInput
	Quality int
}

// Orchestrator fans a batch out over a bounded pool of workers.
type Orchestrator struct {
	processor processor.ItemProcessor
	workers   int
	progress  ProgressFunc
	logger    *zap.Logger
}

func New(proc processor.ItemProcessor, workers int, logger *zap.Logger, opts ...Option) *Orchestrator {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{
		processor: proc,
		workers:   workers,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run optimizes every input and returns the job with one result per input,
// in input order. A failed item never stops its siblings.
func (o *Orchestrator) Run(ctx context.Context, req Request) (*models.BatchJob, error) {
	id := req.ID
	if id == "" {
		id = uuid.New().String()
	}

	job := models.NewBatchJob(id, req.Inputs, processor.ClampQuality(req.Quality))
	if err := job.Transition(models.StatusProcessing); err != nil {
		return nil, err
	}

	start := time.Now()
	o.logger.Info("Batch started",
		zap.String("batch_id", job.ID),
		zap.Int("items", len(job.Inputs)),
		zap.Int("quality", job.Quality))

	o.process(ctx, job)

	job.CompletedAt = time.Now()
	summary := job.Summary()

	if summary.Total > 0 && summary.Succeeded == 0 {
		if err := job.Transition(models.StatusFailed); err != nil {
			return job, err
		}
		o.logger.Warn("Batch failed",
			zap.String("batch_id", job.ID),
			zap.Int("failed", summary.Failed),
			zap.Duration("duration", time.Since(start)))
		return job, fmt.Errorf("batch %s: %w", job.ID, ErrNoSuccessfulItems)
	}

	if err := job.Transition(models.StatusCompleted); err != nil {
		return job, err
	}

	o.logger.Info("Batch completed",
		zap.String("batch_id", job.ID),
		zap.Int("succeeded", summary.Succeeded),
		zap.Int("failed", summary.Failed),
		zap.String("reduction_percent", summary.ReductionPercent),
		zap.Duration("duration", time.Since(start)))

	return job, nil
}

func (o *Orchestrator) process(ctx context.Context, job *models.BatchJob) {
	if len(job.Inputs) == 0 {
		return
	}

	numWorkers := o.workers
	if len(job.Inputs) < numWorkers {
		numWorkers = len(job.Inputs)
	}

	jobs := make(chan int, len(job.Inputs))
	var wg sync.WaitGroup

	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				job.Results[i] = o.processItem(ctx, job.ID, i, job.Inputs[i], job.Quality)
				if o.progress != nil {
					o.progress(i, job.Results[i].Err)
				}
			}
		}()
	}

	for i := range job.Inputs {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
}

func (o *Orchestrator) processItem(ctx context.Context, batchID string, index int, input models.ImageInput, quality int) (res models.ItemResult) {
	defer func() {
		if r := recover(); r != nil {
			res = models.ItemResult{Err: fmt.Errorf("panic while optimizing %s: %v", input.Name, r)}
		}
	}()

	result, err := o.processor.Optimize(ctx, input, quality)
	if err == nil && result == nil {
		err = fmt.Errorf("optimizing %s: %w", input.Name, processor.ErrNoOutput)
	}
	if err != nil {
		o.logger.Warn("Item failed",
			zap.String("batch_id", batchID),
			zap.Int("index", index),
			zap.String("filename", input.Name),
			zap.Error(err))
		return models.ItemResult{Err: err}
	}

	return models.ItemResult{Result: result}
}
