// Package jobhistory records every job status transition as an append-only
// row. Entries are never updated or deleted.
package jobhistory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
)

type Entry struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	JobID     uuid.UUID
	From      job.Status
	To        job.Status
	ChangedBy uuid.UUID
	Notes     string
	CreatedAt time.Time
}

type Repository interface {
	Insert(ctx context.Context, entry Entry) (Entry, error)
	ListForJob(ctx context.Context, jobID uuid.UUID) ([]Entry, error)
}
