package apiusage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Record is pure telemetry for external API traffic. Writes are best-effort:
// a failed insert is logged and swallowed, never surfaced to the request that
// produced it.
type Record struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	KeyID      uuid.UUID
	Method     string
	Path       string
	StatusCode int
	DurationMs int64
	CreatedAt  time.Time
}

type FindParams struct {
	KeyID  *uuid.UUID
	Path   string
	From   *time.Time
	To     *time.Time
	Limit  int
	Offset int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*Record, error)
	Insert(ctx context.Context, record *Record) error
}
