// Package webhook models outbound event subscriptions. Each endpoint carries
// a signing secret whose plaintext is returned once at creation; deliveries
// are logged best-effort and never block the triggering operation.
package webhook

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("webhook endpoint not found")

type Endpoint struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	URL          string
	Events       []string
	SecretDigest string
	IsActive     bool
	CreatedBy    uuid.UUID
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// SubscribedTo reports whether the endpoint wants the given event.
func (e Endpoint) SubscribedTo(event string) bool {
	for _, ev := range e.Events {
		if ev == event {
			return true
		}
	}
	return false
}

// Issued pairs a stored endpoint with its plaintext signing secret.
type Issued struct {
	Endpoint Endpoint
	Secret   string
}

type Delivery struct {
	ID         uuid.UUID
	TenantID   uuid.UUID
	EndpointID uuid.UUID
	Event      string
	StatusCode int
	DurationMs int64
	CreatedAt  time.Time
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Endpoint, error)
	ListActive(ctx context.Context) ([]Endpoint, error)
	Create(ctx context.Context, e Endpoint) (Endpoint, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Endpoint, error)

	InsertDelivery(ctx context.Context, d Delivery) error
	ListDeliveries(ctx context.Context, endpointID uuid.UUID, limit int) ([]Delivery, error)
}
