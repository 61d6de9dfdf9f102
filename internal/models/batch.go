package models

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// FailureKind labels the stage an item failed in.
type FailureKind string

const (
	FailureDecode   FailureKind = "decode"
	FailureEncode   FailureKind = "encode"
	FailureCanceled FailureKind = "canceled"
	FailureInternal FailureKind = "internal"
)

// KindedError is implemented by pipeline errors that know their stage.
type KindedError interface {
	error
	FailureKind() FailureKind
}

// ItemResult is the slot for one input: exactly one of Result and Err is set.
type ItemResult struct {
	Result *OptimizationResult
	Err    error
}

// OK reports whether the item produced a result.
func (r ItemResult) OK() bool {
	return r.Err == nil && r.Result != nil
}

// ItemFailure names the input that failed and why.
type ItemFailure struct {
	Index int         `json:"index"`
	Name  string      `json:"name"`
	Kind  FailureKind `json:"kind"`
	Error string      `json:"error"`
}

// NewItemFailure classifies err for the input at index.
func NewItemFailure(index int, name string, err error) ItemFailure {
	kind := FailureInternal
	var ke KindedError
	switch {
	case errors.As(err, &ke):
		kind = ke.FailureKind()
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		kind = FailureCanceled
	}
	return ItemFailure{Index: index, Name: name, Kind: kind, Error: err.Error()}
}

// BatchJob is the state of one optimize request.
type BatchJob struct {
	ID          string
	Inputs      []ImageInput
	Quality     int
	Results     []ItemResult
	Status      BatchStatus
	CreatedAt   time.Time
	CompletedAt time.Time
	ArchiveURL  string
}

// NewBatchJob prepares an idle job with one result slot per input.
func NewBatchJob(id string, inputs []ImageInput, quality int) *BatchJob {
	return &BatchJob{
		ID:        id,
		Inputs:    inputs,
		Quality:   quality,
		Results:   make([]ItemResult, len(inputs)),
		Status:    StatusIdle,
		CreatedAt: time.Now(),
	}
}

// Transition moves the job to the next lifecycle state.
func (j *BatchJob) Transition(to BatchStatus) error {
	if !CanTransition(j.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, j.Status, to)
	}
	j.Status = to
	return nil
}

// Successes returns the successful results in input order.
func (j *BatchJob) Successes() []*OptimizationResult {
	out := make([]*OptimizationResult, 0, len(j.Results))
	for _, r := range j.Results {
		if r.OK() {
			out = append(out, r.Result)
		}
	}
	return out
}

// Failures returns one labeled failure per failed input, in input order.
func (j *BatchJob) Failures() []ItemFailure {
	var out []ItemFailure
	for i, r := range j.Results {
		if r.OK() {
			continue
		}
		err := r.Err
		if err == nil {
			err = errors.New("no result recorded")
		}
		out = append(out, NewItemFailure(i, j.Inputs[i].Name, err))
	}
	return out
}

// Summary aggregates sizes and counts over the batch.
func (j *BatchJob) Summary() BatchSummary {
	s := BatchSummary{Total: len(j.Inputs)}
	for _, r := range j.Results {
		if !r.OK() {
			s.Failed++
			continue
		}
		s.Succeeded++
		s.OriginalBytes += r.Result.OriginalSize
		s.OptimizedBytes += r.Result.OptimizedSize
	}
	s.ReductionPercent = ReductionPercent(s.OriginalBytes, s.OptimizedBytes)
	return s
}

type BatchSummary struct {
	Total            int    `json:"total"`
	Succeeded        int    `json:"succeeded"`
	Failed           int    `json:"failed"`
	OriginalBytes    int64  `json:"original_bytes"`
	OptimizedBytes   int64  `json:"optimized_bytes"`
	ReductionPercent string `json:"reduction_percent"`
}

// Complete reports whether every input succeeded.
func (s BatchSummary) Complete() bool {
	return s.Failed == 0
}

type BatchResponse struct {
	JobID       string          `json:"job_id"`
	Status      BatchStatus     `json:"status"`
	Quality     int             `json:"quality"`
	Summary     BatchSummary    `json:"summary"`
	Images      []ImageResponse `json:"images"`
	Failures    []ItemFailure   `json:"failures,omitempty"`
	Archivable  bool            `json:"archivable"`
	ArchiveURL  string          `json:"archive_url,omitempty"`
	ProcessedAt time.Time       `json:"processed_at,omitempty"`
}

type ArchiveUploadResponse struct {
	JobID   string `json:"job_id"`
	URL     string `json:"url"`
	Entries int    `json:"entries"`
	Size    int64  `json:"size"`
}
