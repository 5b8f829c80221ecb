package user

import (
	"context"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fieldrow/fieldrow/pkg/policy"
)

var (
	ErrNotFound         = gerrors.New("user not found")
	ErrEmailTaken       = gerrors.New("user email already in use")
	ErrInvalidPassword  = gerrors.New("invalid password")
	ErrNoFieldsToUpdate = gerrors.New("no fields to update")
)

type User struct {
	id             uuid.UUID
	tenantID       uuid.UUID
	email          string
	firstName      string
	lastName       string
	role           policy.Role
	passwordDigest string
	isActive       bool
	createdAt      time.Time
	updatedAt      time.Time
}

func New(tenantID uuid.UUID, email, firstName, lastName string, role policy.Role) User {
	return User{
		tenantID:  tenantID,
		email:     strings.ToLower(strings.TrimSpace(email)),
		firstName: strings.TrimSpace(firstName),
		lastName:  strings.TrimSpace(lastName),
		role:      role,
		isActive:  true,
	}
}

func Hydrate(
	id, tenantID uuid.UUID,
	email, firstName, lastName string,
	role policy.Role,
	passwordDigest string,
	isActive bool,
	createdAt, updatedAt time.Time,
) User {
	return User{
		id:             id,
		tenantID:       tenantID,
		email:          email,
		firstName:      firstName,
		lastName:       lastName,
		role:           role,
		passwordDigest: passwordDigest,
		isActive:       isActive,
		createdAt:      createdAt,
		updatedAt:      updatedAt,
	}
}

func (u User) ID() uuid.UUID          { return u.id }
func (u User) TenantID() uuid.UUID    { return u.tenantID }
func (u User) Email() string          { return u.email }
func (u User) FirstName() string      { return u.firstName }
func (u User) LastName() string       { return u.lastName }
func (u User) Role() policy.Role      { return u.role }
func (u User) PasswordDigest() string { return u.passwordDigest }
func (u User) IsActive() bool         { return u.isActive }
func (u User) CreatedAt() time.Time   { return u.createdAt }
func (u User) UpdatedAt() time.Time   { return u.updatedAt }

// SetPassword hashes the plaintext with bcrypt and stores the digest.
func (u User) SetPassword(plaintext string) (User, error) {
	if len(plaintext) < 8 {
		return User{}, ErrInvalidPassword
	}
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return User{}, gerrors.Wrap(err, "hash password")
	}
	u.passwordDigest = string(digest)
	return u, nil
}

// CheckPassword reports whether the plaintext matches the stored digest.
func (u User) CheckPassword(plaintext string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.passwordDigest), []byte(plaintext)) == nil
}

func (u User) WithRole(role policy.Role) User {
	u.role = role
	return u
}

type Snapshot struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
	IsActive  bool   `json:"is_active"`
}

func (u User) Snapshot() Snapshot {
	return Snapshot{
		Email:     u.email,
		FirstName: u.firstName,
		LastName:  u.lastName,
		Role:      string(u.role),
		IsActive:  u.isActive,
	}
}

type Patch struct {
	FirstName *string
	LastName  *string
	Role      *policy.Role
}

func (p Patch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Role == nil
}

type FindParams struct {
	Q      string
	Role   policy.Role
	Active *bool
	Limit  int
	Offset int
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]User, int64, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (User, error)
	SetPasswordDigest(ctx context.Context, id uuid.UUID, digest string) error
	Deactivate(ctx context.Context, id uuid.UUID) (User, error)
	EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
}
