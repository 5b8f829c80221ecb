package customer

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type FindParams struct {
	Q           string
	Active      *bool
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	Limit       int
	Offset      int
}

// Patch carries a partial update; a nil field means "leave untouched". A
// patch with every field nil is rejected with ErrNoFieldsToUpdate before any
// SQL is issued.
type Patch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
	Address   *string
	Notes     *string
}

func (p Patch) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Email == nil &&
		p.Phone == nil && p.Address == nil && p.Notes == nil
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Customer, error)
	GetPaginated(ctx context.Context, params *FindParams) ([]Customer, int64, error)
	Create(ctx context.Context, c Customer) (Customer, error)
	Update(ctx context.Context, id uuid.UUID, patch Patch) (Customer, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Customer, error)
	EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error)
}
