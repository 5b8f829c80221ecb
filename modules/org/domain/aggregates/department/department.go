package department

import (
	"context"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound         = gerrors.New("department not found")
	ErrNameTaken        = gerrors.New("department name already in use")
	ErrHasActiveJobs    = gerrors.New("department has active job assignments")
	ErrNoFieldsToUpdate = gerrors.New("no fields to update")
)

type Department struct {
	id          uuid.UUID
	tenantID    uuid.UUID
	name        string
	description string
	isActive    bool
	createdBy   uuid.UUID
	createdAt   time.Time
	updatedAt   time.Time
}

func New(tenantID uuid.UUID, name, description string, createdBy uuid.UUID) Department {
	return Department{
		tenantID:    tenantID,
		name:        strings.TrimSpace(name),
		description: strings.TrimSpace(description),
		isActive:    true,
		createdBy:   createdBy,
	}
}

func Hydrate(
	id, tenantID uuid.UUID,
	name, description string,
	isActive bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Department {
	return Department{
		id:          id,
		tenantID:    tenantID,
		name:        name,
		description: description,
		isActive:    isActive,
		createdBy:   createdBy,
		createdAt:   createdAt,
		updatedAt:   updatedAt,
	}
}

func (d Department) ID() uuid.UUID        { return d.id }
func (d Department) TenantID() uuid.UUID  { return d.tenantID }
func (d Department) Name() string         { return d.name }
func (d Department) Description() string  { return d.description }
func (d Department) IsActive() bool       { return d.isActive }
func (d Department) CreatedBy() uuid.UUID { return d.createdBy }
func (d Department) CreatedAt() time.Time { return d.createdAt }
func (d Department) UpdatedAt() time.Time { return d.updatedAt }

type Snapshot struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	IsActive    bool   `json:"is_active"`
}

func (d Department) Snapshot() Snapshot {
	return Snapshot{Name: d.name, Description: d.description, IsActive: d.isActive}
}

type Patch struct {
	Name        *string
	Description *string
}

func (p Patch) Empty() bool { return p.Name == nil && p.Description == nil }

type FindParams struct {
	Q      string
	Active *bool
	Limit  int
	Offset int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Department, error)
	GetAll(ctx context.Context, params *FindParams) ([]Department, error)
	Create(ctx context.Context, d Department) (Department, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Department, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Department, error)
	NameExists(ctx context.Context, name string, excludeID uuid.UUID) (bool, error)
	ActiveJobCount(ctx context.Context, id uuid.UUID) (int64, error)
}
