package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/core/domain/aggregates/user"
	"github.com/fieldrow/fieldrow/pkg/policy"
)

func strptr(s string) *string { return &s }

func TestBuildUserFiltersTenantFirst(t *testing.T) {
	tenantID := uuid.New()
	active := true
	params := &user.FindParams{Q: "grace", Role: policy.RoleManager, Active: &active}

	where := buildUserFilters(params, tenantID)
	require.Equal(t,
		"tenant_id = $1 AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2) AND role = $3 AND is_active = $4",
		where.Where(),
	)
	require.Equal(t, []any{tenantID, "%grace%", "manager", true}, where.Args())
}

func TestBuildUserPatchOnlySuppliedFields(t *testing.T) {
	role := policy.RoleAdmin
	set := buildUserPatch(user.Patch{
		LastName: strptr("Hopper"),
		Role:     &role,
	})
	require.Equal(t, "last_name = $1, role = $2, updated_at = now()", set.Set())
	require.Equal(t, []any{"Hopper", "admin"}, set.Args())
	require.Equal(t, 3, set.NextIndex())
}
