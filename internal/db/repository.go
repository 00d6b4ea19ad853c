package db

import (
	"context"

	"github.com/vleroux/upscale-pipeline/internal/model"
)

// Repository defines persistence operations for the run ledger
type Repository interface {
	// Jobs
	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id int64) (*model.Job, error)
	UpdateJob(ctx context.Context, job *model.Job) error
	ListJobs(ctx context.Context, opts ListOptions) ([]model.Job, error)

	// Batches
	CreateBatches(ctx context.Context, jobID int64, batches []model.Batch) error
	UpdateBatch(ctx context.Context, batch *model.Batch) error
	ListBatches(ctx context.Context, jobID int64) ([]model.Batch, error)
}

// ListOptions configures job listing
type ListOptions struct {
	Status *model.JobStatus
	Limit  int
	Offset int
}
