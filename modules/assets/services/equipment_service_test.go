package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/assets/domain/aggregates/equipment"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/itf"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

func nowStub() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

type recordedAudit struct {
	changes []auditlog.Change
	err     error
}

func (r *recordedAudit) Record(ctx context.Context, change auditlog.Change) error {
	if r.err != nil {
		return r.err
	}
	r.changes = append(r.changes, change)
	return nil
}

type stubPublisher struct {
	events []interface{}
}

func (s *stubPublisher) Publish(args ...interface{})     { s.events = append(s.events, args...) }
func (s *stubPublisher) Subscribe(handler interface{})   {}
func (s *stubPublisher) Unsubscribe(handler interface{}) {}
func (s *stubPublisher) Clear()                          {}
func (s *stubPublisher) SubscribersCount() int           { return 0 }

type mockEquipmentRepo struct {
	byID     map[uuid.UUID]equipment.Asset
	tagTaken bool
}

func newMockEquipmentRepo() *mockEquipmentRepo {
	return &mockEquipmentRepo{byID: map[uuid.UUID]equipment.Asset{}}
}

func (m *mockEquipmentRepo) GetByID(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	a, ok := m.byID[id]
	if !ok {
		return equipment.Asset{}, equipment.ErrNotFound
	}
	return a, nil
}

func (m *mockEquipmentRepo) GetPaginated(ctx context.Context, params *equipment.FindParams) ([]equipment.Asset, int64, error) {
	return nil, 0, nil
}

func (m *mockEquipmentRepo) Create(ctx context.Context, a equipment.Asset) (equipment.Asset, error) {
	id := uuid.New()
	created := equipment.Hydrate(
		id, a.TenantID(), a.Tag(), a.Name(), a.Category(), a.PurchaseDate(),
		a.Status(), uuid.Nil, true, a.CreatedBy(), nowStub(), nowStub(),
	)
	m.byID[id] = created
	return created, nil
}

func (m *mockEquipmentRepo) Update(ctx context.Context, id uuid.UUID, patch equipment.Patch) (equipment.Asset, error) {
	current, ok := m.byID[id]
	if !ok {
		return equipment.Asset{}, equipment.ErrNotFound
	}
	name, category := current.Name(), current.Category()
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Category != nil {
		category = *patch.Category
	}
	updated := equipment.Hydrate(
		id, current.TenantID(), current.Tag(), name, category, current.PurchaseDate(),
		current.Status(), current.CurrentJobID(), current.IsActive(), current.CreatedBy(),
		current.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockEquipmentRepo) SetAssignment(ctx context.Context, id uuid.UUID, status equipment.Status, jobID uuid.UUID) (equipment.Asset, error) {
	current, ok := m.byID[id]
	if !ok {
		return equipment.Asset{}, equipment.ErrNotFound
	}
	updated := equipment.Hydrate(
		id, current.TenantID(), current.Tag(), current.Name(), current.Category(),
		current.PurchaseDate(), status, jobID, current.IsActive(), current.CreatedBy(),
		current.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockEquipmentRepo) Deactivate(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	current, ok := m.byID[id]
	if !ok {
		return equipment.Asset{}, equipment.ErrNotFound
	}
	updated := equipment.Hydrate(
		id, current.TenantID(), current.Tag(), current.Name(), current.Category(),
		current.PurchaseDate(), current.Status(), current.CurrentJobID(), false,
		current.CreatedBy(), current.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockEquipmentRepo) TagExists(ctx context.Context, tag string) (bool, error) {
	return m.tagTaken, nil
}

type stubJobRepo struct {
	known map[uuid.UUID]bool
}

func (s *stubJobRepo) GetByID(ctx context.Context, id uuid.UUID) (job.Job, error) {
	if !s.known[id] {
		return job.Job{}, job.ErrNotFound
	}
	return job.Hydrate(
		id, uuid.New(), uuid.New(), uuid.Nil, "Boiler repair", "", nil,
		decimal.Zero, decimal.Zero, decimal.Zero, job.StatusAssigned,
		nil, nil, true, uuid.New(), nowStub(), nowStub(),
	), nil
}

func (s *stubJobRepo) GetPaginated(ctx context.Context, params *job.FindParams) ([]job.Job, int64, error) {
	return nil, 0, nil
}

func (s *stubJobRepo) Create(ctx context.Context, j job.Job) (job.Job, error) { return j, nil }

func (s *stubJobRepo) Update(ctx context.Context, updated job.Job) (job.Job, error) {
	return updated, nil
}

func (s *stubJobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, to job.Status, startedAt, completedAt *time.Time) (job.Job, error) {
	return job.Job{}, job.ErrNotFound
}

func (s *stubJobRepo) Deactivate(ctx context.Context, id uuid.UUID) (job.Job, error) {
	return job.Job{}, job.ErrNotFound
}

func newEquipmentFixture() (*EquipmentService, *mockEquipmentRepo, *stubJobRepo, *recordedAudit) {
	repo := newMockEquipmentRepo()
	jobs := &stubJobRepo{known: map[uuid.UUID]bool{}}
	audit := &recordedAudit{}
	return NewEquipmentService(repo, jobs, audit, &stubPublisher{}), repo, jobs, audit
}

func TestEquipmentCreateNormalizesTag(t *testing.T) {
	svc, _, _, audit := newEquipmentFixture()
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, " drill-07 ", "Cordless drill", "power tools", nil)
	require.NoError(t, err)
	require.Equal(t, "DRILL-07", created.Tag())
	require.Equal(t, equipment.StatusAvailable, created.Status())
	require.Len(t, audit.changes, 1)
}

func TestEquipmentCreateAuditFailureAborts(t *testing.T) {
	repo := newMockEquipmentRepo()
	jobs := &stubJobRepo{known: map[uuid.UUID]bool{}}
	pub := &stubPublisher{}
	svc := NewEquipmentService(repo, jobs, &recordedAudit{err: errors.New("audit store unavailable")}, pub)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "DRILL-07", "Cordless drill", "", nil)
	require.Error(t, err)
	require.Empty(t, pub.events, "no event when the mutation aborts")
}

func TestEquipmentCreateTagConflict(t *testing.T) {
	svc, repo, _, _ := newEquipmentFixture()
	repo.tagTaken = true
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "DRILL-07", "Cordless drill", "", nil)
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
}

func TestEquipmentAssignReleaseCycle(t *testing.T) {
	svc, _, jobs, audit := newEquipmentFixture()
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, "DRILL-07", "Cordless drill", "", nil)
	require.NoError(t, err)

	jobID := uuid.New()
	jobs.known[jobID] = true

	assigned, err := svc.Assign(ctx, created.ID(), jobID)
	require.NoError(t, err)
	require.Equal(t, equipment.StatusAssigned, assigned.Status())
	require.Equal(t, jobID, assigned.CurrentJobID())

	// Double assignment is refused.
	_, err = svc.Assign(ctx, created.ID(), uuid.New())
	require.True(t, serrors.IsKind(err, serrors.KindConflict))

	released, err := svc.Release(ctx, created.ID())
	require.NoError(t, err)
	require.Equal(t, equipment.StatusAvailable, released.Status())
	require.Equal(t, uuid.Nil, released.CurrentJobID())

	require.Equal(t, "equipment.released", audit.changes[len(audit.changes)-1].Action)
}

func TestEquipmentAssignUnknownJob(t *testing.T) {
	svc, _, _, _ := newEquipmentFixture()
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, "DRILL-07", "Cordless drill", "", nil)
	require.NoError(t, err)

	_, err = svc.Assign(ctx, created.ID(), uuid.New())
	require.True(t, serrors.IsKind(err, serrors.KindNotFound))
}

func TestEquipmentRetire(t *testing.T) {
	svc, _, jobs, _ := newEquipmentFixture()
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, "DRILL-07", "Cordless drill", "", nil)
	require.NoError(t, err)

	jobID := uuid.New()
	jobs.known[jobID] = true
	_, err = svc.Assign(ctx, created.ID(), jobID)
	require.NoError(t, err)

	// Assigned assets must be released before retirement.
	_, err = svc.Retire(ctx, created.ID())
	require.True(t, serrors.IsKind(err, serrors.KindConflict))

	_, err = svc.Release(ctx, created.ID())
	require.NoError(t, err)

	retired, err := svc.Retire(ctx, created.ID())
	require.NoError(t, err)
	require.Equal(t, equipment.StatusRetired, retired.Status())

	// Retiring twice is a no-op.
	again, err := svc.Retire(ctx, created.ID())
	require.NoError(t, err)
	require.Equal(t, equipment.StatusRetired, again.Status())
}
