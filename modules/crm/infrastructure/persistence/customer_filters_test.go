package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/crm/domain/aggregates/customer"
)

func strptr(s string) *string { return &s }

func TestBuildCustomerFiltersTenantFirst(t *testing.T) {
	tenantID := uuid.New()
	active := true
	params := &customer.FindParams{Q: "ada", Active: &active}

	where := buildCustomerFilters(params, tenantID)
	require.Equal(t,
		"tenant_id = $1 AND (first_name ILIKE $2 OR last_name ILIKE $2 OR email ILIKE $2 OR phone ILIKE $2) AND is_active = $3",
		where.Where(),
	)
	require.Equal(t, []any{tenantID, "%ada%", true}, where.Args())
}

func TestBuildCustomerFiltersDeterministic(t *testing.T) {
	tenantID := uuid.New()
	params := &customer.FindParams{Q: "love"}
	require.Equal(t, buildCustomerFilters(params, tenantID).Where(), buildCustomerFilters(params, tenantID).Where())
}

func TestBuildCustomerPatchOnlySuppliedFields(t *testing.T) {
	set := buildCustomerPatch(customer.Patch{
		Phone: strptr("+1-555-0100"),
		Notes: strptr("prefers mornings"),
	})
	require.Equal(t, "phone = $1, notes = $2, updated_at = now()", set.Set())
	require.Equal(t, []any{"+1-555-0100", "prefers mornings"}, set.Args())
	require.Equal(t, 3, set.NextIndex())
}

func TestBuildCustomerPatchClearsEmailWithSentinel(t *testing.T) {
	// An absent email is stored as '', the value the partial unique index
	// excludes. The column is NOT NULL, so no NULL may ever be bound.
	set := buildCustomerPatch(customer.Patch{Email: strptr("")})
	require.Equal(t, "email = $1, updated_at = now()", set.Set())
	require.Equal(t, []any{""}, set.Args())
}

func TestBuildCustomerPatchDeclarationOrder(t *testing.T) {
	set := buildCustomerPatch(customer.Patch{
		Notes:     strptr("b"),
		FirstName: strptr("a"),
	})
	// Declaration order, not call-site order.
	require.Equal(t, "first_name = $1, notes = $2, updated_at = now()", set.Set())
}
