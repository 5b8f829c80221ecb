package persistence

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

func TestBuildJobFiltersTenantFirst(t *testing.T) {
	tenantID := uuid.New()
	customerID := uuid.New()
	params := &job.FindParams{
		Q:          "boiler",
		Status:     job.StatusPending,
		CustomerID: customerID,
	}

	where := buildJobFilters(params, tenantID)
	require.Equal(t,
		"tenant_id = $1 AND (title ILIKE $2 OR description ILIKE $2) AND status = $3 AND customer_id = $4",
		where.Where(),
	)
	require.Equal(t, []any{tenantID, "%boiler%", "pending", customerID}, where.Args())
}

func TestBuildJobFiltersTenantOnly(t *testing.T) {
	tenantID := uuid.New()
	where := buildJobFilters(nil, tenantID)
	require.Equal(t, "tenant_id = $1", where.Where())
	require.Equal(t, []any{tenantID}, where.Args())
}

func TestBuildJobFiltersSkipsZeroValues(t *testing.T) {
	tenantID := uuid.New()
	params := &job.FindParams{Q: "   ", CustomerID: uuid.Nil}
	where := buildJobFilters(params, tenantID)
	require.Equal(t, "tenant_id = $1", where.Where())
}

func TestBuildJobFiltersDeterministic(t *testing.T) {
	tenantID := uuid.New()
	params := &job.FindParams{Q: "leak", Status: job.StatusAssigned}
	require.Equal(t, buildJobFilters(params, tenantID).Where(), buildJobFilters(params, tenantID).Where())
}

func TestBuildJobOrderBySortField(t *testing.T) {
	params := &job.FindParams{
		SortBy: repo.SortBy[job.SortField]{
			Fields: []repo.SortByField[job.SortField]{
				{Field: job.SortFieldScheduledAt, Ascending: true},
			},
		},
	}
	require.Equal(t, "ORDER BY scheduled_at ASC", buildJobOrder(params))
}

func TestBuildJobOrderDefaultsToNewestFirst(t *testing.T) {
	require.Equal(t, "ORDER BY created_at DESC", buildJobOrder(nil))
	require.Equal(t, "ORDER BY created_at DESC", buildJobOrder(&job.FindParams{}))
}

func TestBuildJobOrderSkipsUnknownFields(t *testing.T) {
	params := &job.FindParams{
		SortBy: repo.SortBy[job.SortField]{
			Fields: []repo.SortByField[job.SortField]{
				{Field: job.SortField("priority; DROP TABLE jobs")},
			},
		},
	}
	require.Equal(t, "ORDER BY created_at DESC", buildJobOrder(params))
}
