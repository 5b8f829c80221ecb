package customer

import (
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var (
	ErrNotFound         = gerrors.New("customer not found")
	ErrEmailTaken       = gerrors.New("customer email already in use")
	ErrNoFieldsToUpdate = gerrors.New("no fields to update")
)

type Customer struct {
	id        uuid.UUID
	tenantID  uuid.UUID
	firstName string
	lastName  string
	email     string
	phone     string
	address   string
	notes     string
	isActive  bool
	createdBy uuid.UUID
	createdAt time.Time
	updatedAt time.Time
}

func New(tenantID uuid.UUID, firstName, lastName string, createdBy uuid.UUID) Customer {
	return Customer{
		tenantID:  tenantID,
		firstName: strings.TrimSpace(firstName),
		lastName:  strings.TrimSpace(lastName),
		isActive:  true,
		createdBy: createdBy,
	}
}

func Hydrate(
	id uuid.UUID,
	tenantID uuid.UUID,
	firstName, lastName, email, phone, address, notes string,
	isActive bool,
	createdBy uuid.UUID,
	createdAt, updatedAt time.Time,
) Customer {
	return Customer{
		id:        id,
		tenantID:  tenantID,
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		phone:     phone,
		address:   address,
		notes:     notes,
		isActive:  isActive,
		createdBy: createdBy,
		createdAt: createdAt,
		updatedAt: updatedAt,
	}
}

func (c Customer) ID() uuid.UUID        { return c.id }
func (c Customer) TenantID() uuid.UUID  { return c.tenantID }
func (c Customer) FirstName() string    { return c.firstName }
func (c Customer) LastName() string     { return c.lastName }
func (c Customer) FullName() string     { return strings.TrimSpace(c.firstName + " " + c.lastName) }
func (c Customer) Email() string        { return c.email }
func (c Customer) Phone() string        { return c.phone }
func (c Customer) Address() string      { return c.address }
func (c Customer) Notes() string        { return c.notes }
func (c Customer) IsActive() bool       { return c.isActive }
func (c Customer) CreatedBy() uuid.UUID { return c.createdBy }
func (c Customer) CreatedAt() time.Time { return c.createdAt }
func (c Customer) UpdatedAt() time.Time { return c.updatedAt }

func (c Customer) WithContact(email, phone string) Customer {
	c.email = strings.TrimSpace(email)
	c.phone = strings.TrimSpace(phone)
	return c
}

func (c Customer) WithAddress(address string) Customer {
	c.address = strings.TrimSpace(address)
	return c
}

func (c Customer) WithNotes(notes string) Customer {
	c.notes = notes
	return c
}

// Snapshot is the audit-log representation of a customer row.
type Snapshot struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email,omitempty"`
	Phone     string `json:"phone,omitempty"`
	Address   string `json:"address,omitempty"`
	Notes     string `json:"notes,omitempty"`
	IsActive  bool   `json:"is_active"`
}

func (c Customer) Snapshot() Snapshot {
	return Snapshot{
		FirstName: c.firstName,
		LastName:  c.lastName,
		Email:     c.email,
		Phone:     c.phone,
		Address:   c.address,
		Notes:     c.notes,
		IsActive:  c.isActive,
	}
}
