package composables

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/pkg/constants"
	"github.com/fieldrow/fieldrow/pkg/policy"
)

var (
	ErrNoTenant = errors.New("no tenant found in context")
	ErrNoActor  = errors.New("no acting user found in context")
)

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.TenantIDKey, tenantID)
}

// UseTenantID returns the authenticated tenant scope. Every repository query
// is required to filter on it; a missing tenant is always an error, never a
// wildcard.
func UseTenantID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.TenantIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoTenant
	}
	return id, nil
}

func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, constants.UserIDKey, userID)
}

// UseUserID returns the acting user recorded on audit entries.
func UseUserID(ctx context.Context) (uuid.UUID, error) {
	id, ok := ctx.Value(constants.UserIDKey).(uuid.UUID)
	if !ok || id == uuid.Nil {
		return uuid.Nil, ErrNoActor
	}
	return id, nil
}

func WithRole(ctx context.Context, role policy.Role) context.Context {
	return context.WithValue(ctx, constants.RoleKey, role)
}

// UseRole returns the acting user's role. A context without a role resolves
// to staff, the most restrictive tier, so policy checks fail closed.
func UseRole(ctx context.Context) policy.Role {
	role, ok := ctx.Value(constants.RoleKey).(policy.Role)
	if !ok || !role.Valid() {
		return policy.RoleStaff
	}
	return role
}
