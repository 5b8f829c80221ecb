package auditlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Entry is an immutable append-only record of who changed what. Entries are
// written inside the same transaction as the mutation they describe, so a
// rollback discards them together.
type Entry struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	UserID       uuid.UUID
	Action       string
	ResourceType string
	ResourceID   uuid.UUID
	OldValues    json.RawMessage
	NewValues    json.RawMessage
	CreatedAt    time.Time
}

type FindParams struct {
	UserID       *uuid.UUID
	Action       string
	ResourceType string
	ResourceID   *uuid.UUID
	From         *time.Time
	To           *time.Time
	Limit        int
	Offset       int
}

type Repository interface {
	List(ctx context.Context, params *FindParams) ([]*Entry, error)
	Count(ctx context.Context, params *FindParams) (int64, error)
	Insert(ctx context.Context, entry *Entry) error
}

// Change is the service-facing description of a mutation. Old and New are
// marshaled to JSON snapshots by the recorder.
type Change struct {
	Action       string
	ResourceType string
	ResourceID   uuid.UUID
	Old          any
	New          any
}

// Recorder is implemented by the audit service and consumed by every mutating
// service method. A failed Record must abort the surrounding transaction.
type Recorder interface {
	Record(ctx context.Context, change Change) error
}
