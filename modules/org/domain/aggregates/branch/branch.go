package branch

import (
	"context"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound           = gerrors.New("branch not found")
	ErrAssignmentNotFound = gerrors.New("branch assignment not found")
)

type Branch struct {
	id        uuid.UUID
	tenantID  uuid.UUID
	name      string
	address   string
	isActive  bool
	createdBy uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

func New(tenantID uuid.UUID, name, address string, createdBy uuid.UUID) Branch {
	return Branch{
		tenantID:  tenantID,
		name:      strings.TrimSpace(name),
		address:   strings.TrimSpace(address),
		isActive:  true,
		createdBy: createdBy,
	}
}

func Hydrate(
	id, tenantID uuid.UUID,
	name, address string,
	isActive bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Branch {
	return Branch{
		id:        id,
		tenantID:  tenantID,
		name:      name,
		address:   address,
		isActive:  isActive,
		createdBy: createdBy,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (b Branch) ID() uuid.UUID        { return b.id }
func (b Branch) TenantID() uuid.UUID  { return b.tenantID }
func (b Branch) Name() string         { return b.name }
func (b Branch) Address() string      { return b.address }
func (b Branch) IsActive() bool       { return b.isActive }
func (b Branch) CreatedBy() uuid.UUID { return b.createdBy }
func (b Branch) CreatedAt() time.Time { return b.createdAt }
func (b Branch) UpdatedAt() time.Time { return b.updatedAt }

type Snapshot struct {
	Name     string `json:"name"`
	Address  string `json:"address,omitempty"`
	IsActive bool   `json:"is_active"`
}

func (b Branch) Snapshot() Snapshot {
	return Snapshot{Name: b.name, Address: b.address, IsActive: b.isActive}
}

// Assignment links a user to a branch. At most one assignment per
// (tenant, user) carries IsPrimary, enforced by a partial unique index, so
// two concurrent SetPrimary calls cannot both win.
type Assignment struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	UserID    uuid.UUID
	BranchID  uuid.UUID
	IsPrimary bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Branch, error)
	GetAll(ctx context.Context) ([]Branch, error)
	Create(ctx context.Context, b Branch) (Branch, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Branch, error)

	AssignUser(ctx context.Context, userID, branchID uuid.UUID) (Assignment, error)
	SetPrimary(ctx context.Context, userID, branchID uuid.UUID) (Assignment, error)
	ListUserAssignments(ctx context.Context, userID uuid.UUID) ([]Assignment, error)
}
