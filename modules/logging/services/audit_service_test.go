package services

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/apiusage"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

type mockAuditRepo struct {
	inserted  []*auditlog.Entry
	insertErr error
}

func (m *mockAuditRepo) List(ctx context.Context, params *auditlog.FindParams) ([]*auditlog.Entry, error) {
	return nil, nil
}

func (m *mockAuditRepo) Count(ctx context.Context, params *auditlog.FindParams) (int64, error) {
	return 0, nil
}

func (m *mockAuditRepo) Insert(ctx context.Context, entry *auditlog.Entry) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, entry)
	return nil
}

func authedCtx(tenantID, userID uuid.UUID) context.Context {
	ctx := composables.WithTenantID(context.Background(), tenantID)
	return composables.WithUserID(ctx, userID)
}

func TestAuditServiceRecordSnapshots(t *testing.T) {
	repo := &mockAuditRepo{}
	svc := NewAuditService(repo)

	tenantID := uuid.New()
	userID := uuid.New()
	resourceID := uuid.New()

	err := svc.Record(authedCtx(tenantID, userID), auditlog.Change{
		Action:       "job.updated",
		ResourceType: "job",
		ResourceID:   resourceID,
		Old:          map[string]any{"discount_amount": 0},
		New:          map[string]any{"discount_amount": 15},
	})
	require.NoError(t, err)
	require.Len(t, repo.inserted, 1)

	entry := repo.inserted[0]
	require.Equal(t, tenantID, entry.TenantID)
	require.Equal(t, userID, entry.UserID)
	require.Equal(t, "job.updated", entry.Action)

	var old map[string]int
	require.NoError(t, json.Unmarshal(entry.OldValues, &old))
	require.Equal(t, 0, old["discount_amount"])

	var newVals map[string]int
	require.NoError(t, json.Unmarshal(entry.NewValues, &newVals))
	require.Equal(t, 15, newVals["discount_amount"])
}

func TestAuditServiceRecordRequiresTenant(t *testing.T) {
	svc := NewAuditService(&mockAuditRepo{})
	err := svc.Record(context.Background(), auditlog.Change{Action: "x"})
	require.ErrorIs(t, err, composables.ErrNoTenant)
}

func TestAuditServiceRecordFailsLoud(t *testing.T) {
	repo := &mockAuditRepo{insertErr: errors.New("insert failed")}
	svc := NewAuditService(repo)

	err := svc.Record(authedCtx(uuid.New(), uuid.New()), auditlog.Change{Action: "x"})
	require.Error(t, err)
}

type mockUsageRepo struct {
	inserted  []*apiusage.Record
	insertErr error
}

func (m *mockUsageRepo) List(ctx context.Context, params *apiusage.FindParams) ([]*apiusage.Record, error) {
	return nil, nil
}

func (m *mockUsageRepo) Insert(ctx context.Context, record *apiusage.Record) error {
	if m.insertErr != nil {
		return m.insertErr
	}
	m.inserted = append(m.inserted, record)
	return nil
}

func TestUsageServiceRecordSwallowsErrors(t *testing.T) {
	repo := &mockUsageRepo{insertErr: errors.New("db down")}
	svc := NewUsageService(repo)

	// Must not panic or surface the error.
	svc.Record(authedCtx(uuid.New(), uuid.New()), &apiusage.Record{Path: "/v1/jobs"})
	require.Empty(t, repo.inserted)
}

func TestUsageServiceRecordFillsTenantFromContext(t *testing.T) {
	repo := &mockUsageRepo{}
	svc := NewUsageService(repo)

	tenantID := uuid.New()
	svc.Record(authedCtx(tenantID, uuid.New()), &apiusage.Record{Path: "/v1/jobs"})
	require.Len(t, repo.inserted, 1)
	require.Equal(t, tenantID, repo.inserted[0].TenantID)
}
