package queue

import (
	"context"

	"github.com/phambaophuc/image-optimizer/internal/models"
	"github.com/phambaophuc/image-optimizer/internal/services/batch"
)

// Runner executes a batch; the Optimizer service satisfies it.
type Runner interface {
	Optimize(ctx context.Context, req batch.Request) (*models.BatchJob, error)
}
