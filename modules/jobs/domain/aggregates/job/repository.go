package job

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldrow/fieldrow/pkg/repo"
)

// SortField names a caller-selectable list ordering.
type SortField string

const (
	SortFieldCreatedAt   SortField = "created_at"
	SortFieldScheduledAt SortField = "scheduled_at"
	SortFieldTitle       SortField = "title"
)

type FindParams struct {
	Q             string
	Status        Status
	CustomerID    uuid.UUID
	DepartmentID  uuid.UUID
	Active        *bool
	ScheduledFrom time.Time
	ScheduledTo   time.Time
	SortBy        repo.SortBy[SortField]
	Limit         int
	Offset        int
}

// Patch carries partial updates. Price fields travel together: setting either
// one recomputes the final price from both effective values. ClearSchedule
// removes the scheduled date; a nil ScheduledAt alone means "unchanged".
type Patch struct {
	Title         *string
	Description   *string
	ScheduledAt   *time.Time
	ClearSchedule bool
	DepartmentID  *uuid.UUID
	BasePrice     *decimal.Decimal
	Discount      *decimal.Decimal
}

func (p Patch) Empty() bool {
	return p.Title == nil &&
		p.Description == nil &&
		p.ScheduledAt == nil &&
		!p.ClearSchedule &&
		p.DepartmentID == nil &&
		p.BasePrice == nil &&
		p.Discount == nil
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Job, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Job, int64, error)
	Create(ctx context.Context, j Job) (Job, error)
	Update(ctx context.Context, updated Job) (Job, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, to Status, startedAt, completedAt *time.Time) (Job, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Job, error)
}
