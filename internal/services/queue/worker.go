package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services"
	"github.com/phambaophuc/image-optimizer/internal/services/batch"
	"github.com/phambaophuc/image-optimizer/internal/services/processor"
	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

func (q *QueueService) StartWorker(ctx context.Context, workerID int) error {
	msgs, err := q.channel.Consume(
		q.queueName,                        // queue
		fmt.Sprintf("worker-%d", workerID), // consumer
		false,                              // auto-ack
		false,                              // exclusive
		false,                              // no-local
		false,                              // no-wait
		nil,                                // args
	)
	if err != nil {
		return fmt.Errorf("failed to register consumer: %w", err)
	}

	q.logger.Info("Worker started", zap.Int("worker_id", workerID))

	go func() {
		for {
			select {
			case <-ctx.Done():
				q.logger.Info("Worker stopping", zap.Int("worker_id", workerID))
				return
			case msg, ok := <-msgs:
				if !ok {
					q.logger.Warn("Message channel closed", zap.Int("worker_id", workerID))
					return
				}

				q.processMessage(ctx, msg, workerID)
			}
		}
	}()

	return nil
}

func (q *QueueService) processMessage(ctx context.Context, msg amqp.Delivery, workerID int) {
	job, err := decodeJob(msg.Body)
	if err != nil {
		q.rejected.Add(1)
		q.logger.Error("Rejecting malformed job",
			zap.Error(err),
			zap.Int("worker_id", workerID))
		msg.Nack(false, false) // Don't requeue malformed messages
		return
	}

	q.logger.Info("Processing job",
		zap.String("job_id", job.ID),
		zap.Int("items", len(job.Inputs)),
		zap.Int("worker_id", workerID))

	q.runMu.Lock()
	result, err := q.runner.Optimize(ctx, q.requestFor(job))
	q.runMu.Unlock()

	switch {
	case err == nil:
		q.completed.Add(1)
		summary := result.Summary()
		q.logger.Info("Job completed",
			zap.String("job_id", job.ID),
			zap.Int("succeeded", summary.Succeeded),
			zap.Int("failed", summary.Failed))
	case ctx.Err() != nil:
		// Shutting down: hand the job to another consumer.
		q.requeue(msg, job.ID, "Job interrupted, requeueing")
		return
	case errors.Is(err, services.ErrBatchSuperseded):
		// A synchronous request took over the optimizer; run this job again.
		q.requeue(msg, job.ID, "Job superseded, requeueing")
		return
	default:
		// All-failed batches are a final outcome, not a retry.
		q.failed.Add(1)
		q.logger.Warn("Job finished with error",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}

	if err := msg.Ack(false); err != nil {
		q.logger.Error("Failed to ack message",
			zap.String("job_id", job.ID),
			zap.Error(err))
	}
}

func (q *QueueService) requeue(msg amqp.Delivery, jobID, reason string) {
	q.requeued.Add(1)
	q.logger.Warn(reason, zap.String("job_id", jobID))
	if err := msg.Nack(false, true); err != nil {
		q.logger.Error("Failed to requeue message",
			zap.String("job_id", jobID),
			zap.Error(err))
	}
}

func decodeJob(body []byte) (*models.OptimizeJob, error) {
	var job models.OptimizeJob
	if err := json.Unmarshal(body, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	if err := job.Validate(); err != nil {
		return nil, err
	}
	return &job, nil
}

// requestFor applies the default quality only when the message carries none;
// explicit values are clamped like any other request.
func (q *QueueService) requestFor(job *models.OptimizeJob) batch.Request {
	quality := q.defaultQuality
	if job.Quality != nil {
		quality = processor.ClampQuality(*job.Quality)
	}

	inputs := make([]models.ImageInput, len(job.Inputs))
	for i, in := range job.Inputs {
		inputs[i] = models.NewImageInput(in.Name, in.MimeType, in.Data)
	}

	return batch.Request{ID: job.ID, Inputs: inputs, Quality: quality}
}
