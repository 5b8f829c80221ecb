package equipment

import (
	"context"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound         = gerrors.New("equipment not found")
	ErrTagTaken         = gerrors.New("equipment tag already in use")
	ErrNoFieldsToUpdate = gerrors.New("no fields to update")
)

type Status string

const (
	StatusAvailable Status = "available"
	StatusAssigned  Status = "assigned"
	StatusRetired   Status = "retired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusAvailable, StatusAssigned, StatusRetired:
		return true
	}
	return false
}

type Asset struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	tag          string
	name         string
	category     string
	purchaseDate *time.Time
	status       Status
	currentJobID uuid.UUID // Nil unless assigned
	isActive     bool
	createdBy    uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
}

func New(tenantID uuid.UUID, tag, name, category string, purchaseDate *time.Time, createdBy uuid.UUID) Asset {
	return Asset{
		tenantID:     tenantID,
		tag:          strings.ToUpper(strings.TrimSpace(tag)),
		name:         strings.TrimSpace(name),
		category:     strings.TrimSpace(category),
		purchaseDate: purchaseDate,
		status:       StatusAvailable,
		isActive:     true,
		createdBy:    createdBy,
	}
}

func Hydrate(
	id, tenantID uuid.UUID,
	tag, name, category string,
	purchaseDate *time.Time,
	status Status,
	currentJobID uuid.UUID,
	isActive bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Asset {
	return Asset{
		id:           id,
		tenantID:     tenantID,
		tag:          tag,
		name:         name,
		category:     category,
		purchaseDate: purchaseDate,
		status:       status,
		currentJobID: currentJobID,
		isActive:     isActive,
		createdBy:    createdBy,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (a Asset) ID() uuid.UUID            { return a.id }
func (a Asset) TenantID() uuid.UUID      { return a.tenantID }
func (a Asset) Tag() string              { return a.tag }
func (a Asset) Name() string             { return a.name }
func (a Asset) Category() string         { return a.category }
func (a Asset) PurchaseDate() *time.Time { return a.purchaseDate }
func (a Asset) Status() Status           { return a.status }
func (a Asset) CurrentJobID() uuid.UUID  { return a.currentJobID }
func (a Asset) IsActive() bool           { return a.isActive }
func (a Asset) CreatedBy() uuid.UUID     { return a.createdBy }
func (a Asset) CreatedAt() time.Time     { return a.createdAt }
func (a Asset) UpdatedAt() time.Time     { return a.updatedAt }

type Snapshot struct {
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Category     string `json:"category,omitempty"`
	Status       string `json:"status"`
	CurrentJobID string `json:"current_job_id,omitempty"`
	IsActive     bool   `json:"is_active"`
}

func (a Asset) Snapshot() Snapshot {
	s := Snapshot{
		Tag:      a.tag,
		Name:     a.name,
		Category: a.category,
		Status:   string(a.status),
		IsActive: a.isActive,
	}
	if a.currentJobID != uuid.Nil {
		s.CurrentJobID = a.currentJobID.String()
	}
	return s
}

type Patch struct {
	Name     *string
	Category *string
}

func (p Patch) Empty() bool { return p.Name == nil && p.Category == nil }

type FindParams struct {
	Q        string
	Status   Status
	Category string
	Active   *bool
	Limit    int
	Offset   int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Asset, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Asset, int64, error)
	Create(ctx context.Context, a Asset) (Asset, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Asset, error)
	// SetAssignment moves the asset between statuses and records which job,
	// if any, currently holds it.
	SetAssignment(ctx context.Context, id uuid.UUID, status Status, jobID uuid.UUID) (Asset, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Asset, error)
	TagExists(ctx context.Context, tag string) (bool, error)
}
