package supplier

import (
	"context"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound         = gerrors.New("supplier not found")
	ErrCodeTaken        = gerrors.New("supplier code already in use")
	ErrNoFieldsToUpdate = gerrors.New("no fields to update")
)

type Supplier struct {
	id           uuid.UUID
	tenantID     uuid.UUID
	code         string
	name         string
	contactEmail string
	contactPhone string
	isActive     bool
	createdBy    uuid.UUID
	createdAt    time.Time
	updatedAt    time.Time
}

func New(tenantID uuid.UUID, code, name string, createdBy uuid.UUID) Supplier {
	return Supplier{
		tenantID:  tenantID,
		code:      strings.ToUpper(strings.TrimSpace(code)),
		name:      strings.TrimSpace(name),
		isActive:  true,
		createdBy: createdBy,
	}
}

func Hydrate(
	id, tenantID uuid.UUID,
	code, name, contactEmail, contactPhone string,
	isActive bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Supplier {
	return Supplier{
		id:           id,
		tenantID:     tenantID,
		code:         code,
		name:         name,
		contactEmail: contactEmail,
		contactPhone: contactPhone,
		isActive:     isActive,
		createdBy:    createdBy,
		createdAt:    createdAt,
		updatedAt:    updatedAt,
	}
}

func (s Supplier) ID() uuid.UUID        { return s.id }
func (s Supplier) TenantID() uuid.UUID  { return s.tenantID }
func (s Supplier) Code() string         { return s.code }
func (s Supplier) Name() string         { return s.name }
func (s Supplier) ContactEmail() string { return s.contactEmail }
func (s Supplier) ContactPhone() string { return s.contactPhone }
func (s Supplier) IsActive() bool       { return s.isActive }
func (s Supplier) CreatedBy() uuid.UUID { return s.createdBy }
func (s Supplier) CreatedAt() time.Time { return s.createdAt }
func (s Supplier) UpdatedAt() time.Time { return s.updatedAt }

func (s Supplier) WithContact(email, phone string) Supplier {
	s.contactEmail = strings.ToLower(strings.TrimSpace(email))
	s.contactPhone = strings.TrimSpace(phone)
	return s
}

type Snapshot struct {
	Code         string `json:"code"`
	Name         string `json:"name"`
	ContactEmail string `json:"contact_email,omitempty"`
	ContactPhone string `json:"contact_phone,omitempty"`
	IsActive     bool   `json:"is_active"`
}

func (s Supplier) Snapshot() Snapshot {
	return Snapshot{
		Code:         s.code,
		Name:         s.name,
		ContactEmail: s.contactEmail,
		ContactPhone: s.contactPhone,
		IsActive:     s.isActive,
	}
}

type Patch struct {
	Name         *string
	ContactEmail *string
	ContactPhone *string
}

func (p Patch) Empty() bool {
	return p.Name == nil && p.ContactEmail == nil && p.ContactPhone == nil
}

type FindParams struct {
	Q      string
	Active *bool
	Limit  int
	Offset int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Supplier, error)
	GetAll(ctx context.Context, params *FindParams) ([]Supplier, error)
	Create(ctx context.Context, s Supplier) (Supplier, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Supplier, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Supplier, error)
	CodeExists(ctx context.Context, code string) (bool, error)
}
