package storage

import (
	"context"

	"github.com/mafzaal/letstalk-index/internal/app/domain/job"
)

// JobStore persists scheduler job definitions.
type JobStore interface {
	CreateJob(ctx context.Context, def job.Definition) (job.Definition, error)
	UpdateJob(ctx context.Context, def job.Definition) (job.Definition, error)
	GetJob(ctx context.Context, id string) (job.Definition, error)
	ListJobs(ctx context.Context) ([]job.Definition, error)
	DeleteJob(ctx context.Context, id string) error
}
