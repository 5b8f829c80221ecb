// Package apikey models machine credentials. A key is a disposable secret:
// it is deleted outright rather than soft-deleted, and its plaintext is never
// stored or logged.
package apikey

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("api key not found")

type Key struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	PublicID   string
	Name       string
	Digest     string
	LastUsedAt *time.Time
	CreatedBy  uuid.UUID
	CreatedAt  time.Time
}

// Issued pairs a stored key with its plaintext secret. The secret exists only
// in this value, on the way back to the caller.
type Issued struct {
	Key    Key
	Secret string
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Key, error)
	GetByPublicID(ctx context.Context, publicID string) (Key, error)
	List(ctx context.Context) ([]Key, error)
	Create(ctx context.Context, k Key) (Key, error)
	Delete(ctx context.Context, id uuid.UUID) error
	TouchLastUsed(ctx context.Context, id uuid.UUID) error
}
