package persistence

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/billing/domain/aggregates/invoice"
)

func TestBuildInvoiceFiltersTenantFirst(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()
	params := &invoice.FindParams{
		Status:     invoice.StatusIssued,
		CustomerID: customerID,
	}

	where := buildInvoiceFilters(params, tenantID)
	require.Equal(t,
		"tenant_id = $1 AND status = $2 AND customer_id = $3",
		where.Where(),
	)
	require.Equal(t, []any{tenantID, "issued", customerID}, where.Args())
}

func TestBuildInvoiceFiltersCreatedRange(t *testing.T) {
	tenantID := uuid.New()
	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	where := buildInvoiceFilters(&invoice.FindParams{CreatedFrom: from, CreatedTo: to}, tenantID)
	require.Equal(t,
		"tenant_id = $1 AND created_at >= $2 AND created_at <= $3",
		where.Where(),
	)
}

func TestBuildInvoiceFiltersEmptyParams(t *testing.T) {
	tenantID := uuid.New()
	where := buildInvoiceFilters(nil, tenantID)
	require.Equal(t, "tenant_id = $1", where.Where())
	require.Equal(t, []any{tenantID}, where.Args())
}
