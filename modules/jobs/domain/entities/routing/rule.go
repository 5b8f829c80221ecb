// Package routing holds the keyword rules that assign incoming jobs to
// departments. Rules are evaluated by ascending priority; the first active
// rule whose keyword appears in the job title or description wins.
package routing

import (
	"context"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
)

var ErrNotFound = gerrors.New("routing rule not found")

type Rule struct {
	ID           uuid.UUID
	TenantID     uuid.UUID
	Keyword      string
	DepartmentID uuid.UUID
	Priority     int
	IsActive     bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Matches reports whether the rule's keyword occurs in the given text,
// case-insensitively.
func (r Rule) Matches(text string) bool {
	return strings.Contains(strings.ToLower(text), strings.ToLower(r.Keyword))
}

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (Rule, error)
	ListActive(ctx context.Context) ([]Rule, error)
	Create(ctx context.Context, r Rule) (Rule, error)
	Deactivate(ctx context.Context, id uuid.UUID) (Rule, error)
}
