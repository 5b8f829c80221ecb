package invoice

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FindParams struct {
	Status      Status
	CustomerID  uuid.UUID
	JobID       uuid.UUID
	CreatedFrom time.Time
	CreatedTo   time.Time
	Limit       int
	Offset      int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Invoice, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Invoice, int64, error)
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	// Update rewrites the draft's mutable fields and replaces its line items.
	Update(ctx context.Context, inv Invoice) (Invoice, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, issuedAt, paidAt *time.Time) (Invoice, error)
	ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error)
	NumberExists(ctx context.Context, number string) (bool, error)
}
