package models

import (
	"errors"
	"fmt"
	"time"
)

// BatchStatus is the lifecycle state of a BatchJob.
type BatchStatus string

const (
	StatusIdle          BatchStatus = "idle"
	StatusProcessing    BatchStatus = "processing"
	StatusCompleted     BatchStatus = "completed"
	StatusFailed        BatchStatus = "failed"
	StatusArchiving     BatchStatus = "archiving"
	StatusArchived      BatchStatus = "archived"
	StatusArchiveFailed BatchStatus = "archive_failed"
)

var ErrInvalidTransition = errors.New("invalid batch status transition")

// Archiving may be retried after either outcome.
var transitions = map[BatchStatus][]BatchStatus{
	StatusIdle:          {StatusProcessing},
	StatusProcessing:    {StatusCompleted, StatusFailed},
	StatusCompleted:     {StatusArchiving},
	StatusArchiving:     {StatusArchived, StatusArchiveFailed},
	StatusArchived:      {StatusArchiving},
	StatusArchiveFailed: {StatusArchiving},
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to BatchStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Archivable reports whether the batch holds results ready for packaging.
func (s BatchStatus) Archivable() bool {
	return CanTransition(s, StatusArchiving)
}

// OptimizeJob is the queue message for an asynchronous batch. A nil
// Quality means the consumer's default.
type OptimizeJob struct {
	ID        string       `json:"id"`
	Quality   *int         `json:"quality,omitempty"`
	Inputs    []ImageInput `json:"inputs"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate rejects messages that cannot be turned into a batch request.
func (j *OptimizeJob) Validate() error {
	if j.ID == "" {
		return fmt.Errorf("job id is required")
	}
	for i, in := range j.Inputs {
		if in.Name == "" {
			return fmt.Errorf("input %d has no name", i)
		}
	}
	return nil
}
