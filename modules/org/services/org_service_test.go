package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/branch"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/department"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/supplier"
	"github.com/fieldrow/fieldrow/pkg/itf"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

func nowStub() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func strptr(s string) *string { return &s }

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

type mockDepartmentRepo struct {
	byID       map[uuid.UUID]department.Department
	nameTaken  bool
	activeJobs int64

	created     []department.Department
	deactivated []uuid.UUID
}

func newMockDepartmentRepo() *mockDepartmentRepo {
	return &mockDepartmentRepo{byID: map[uuid.UUID]department.Department{}}
}

func (m *mockDepartmentRepo) GetByID(ctx context.Context, id uuid.UUID) (department.Department, error) {
	d, ok := m.byID[id]
	if !ok {
		return department.Department{}, department.ErrNotFound
	}
	return d, nil
}

func (m *mockDepartmentRepo) GetAll(ctx context.Context, params *department.FindParams) ([]department.Department, error) {
	out := make([]department.Department, 0, len(m.byID))
	for _, d := range m.byID {
		out = append(out, d)
	}
	return out, nil
}

func (m *mockDepartmentRepo) Create(ctx context.Context, d department.Department) (department.Department, error) {
	id := uuid.New()
	created := department.Hydrate(
		id, d.TenantID(), d.Name(), d.Description(), true, d.CreatedBy(), nowStub(), nowStub(),
	)
	m.created = append(m.created, created)
	m.byID[id] = created
	return created, nil
}

func (m *mockDepartmentRepo) Update(ctx context.Context, id uuid.UUID, patch department.Patch) (department.Department, error) {
	current, ok := m.byID[id]
	if !ok {
		return department.Department{}, department.ErrNotFound
	}
	name, desc := current.Name(), current.Description()
	if patch.Name != nil {
		name = *patch.Name
	}
	if patch.Description != nil {
		desc = *patch.Description
	}
	updated := department.Hydrate(
		id, current.TenantID(), name, desc, current.IsActive(), current.CreatedBy(),
		current.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockDepartmentRepo) Deactivate(ctx context.Context, id uuid.UUID) (department.Department, error) {
	current, ok := m.byID[id]
	if !ok {
		return department.Department{}, department.ErrNotFound
	}
	m.deactivated = append(m.deactivated, id)
	deleted := department.Hydrate(
		id, current.TenantID(), current.Name(), current.Description(), false,
		current.CreatedBy(), current.CreatedAt(), nowStub(),
	)
	m.byID[id] = deleted
	return deleted, nil
}

func (m *mockDepartmentRepo) NameExists(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
	return m.nameTaken, nil
}

func (m *mockDepartmentRepo) ActiveJobCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return m.activeJobs, nil
}

func TestDepartmentServiceCreate(t *testing.T) {
	repo := newMockDepartmentRepo()
	audit := &recordedAudit{}
	svc := NewDepartmentService(repo, audit, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, "  Plumbing  ", "Pipes and drains")
	require.NoError(t, err)
	require.Equal(t, "Plumbing", created.Name())
	require.True(t, created.IsActive())

	require.Len(t, audit.changes, 1)
	require.Equal(t, "department.created", audit.changes[0].Action)
}

func TestDepartmentServiceCreateAuditFailureAborts(t *testing.T) {
	repo := newMockDepartmentRepo()
	pub := &stubPublisher{}
	svc := NewDepartmentService(repo, &recordedAudit{err: errors.New("audit store unavailable")}, pub)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "Plumbing", "")
	require.Error(t, err)
	require.Empty(t, pub.events, "no event when the mutation aborts")
}

func TestDepartmentServiceCreateNameConflict(t *testing.T) {
	repo := newMockDepartmentRepo()
	repo.nameTaken = true
	svc := NewDepartmentService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "Plumbing", "")
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
	require.Empty(t, repo.created)
}

func TestDepartmentServiceDeleteBlockedByActiveJobs(t *testing.T) {
	repo := newMockDepartmentRepo()
	audit := &recordedAudit{}
	svc := NewDepartmentService(repo, audit, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, "Plumbing", "")
	require.NoError(t, err)

	repo.activeJobs = 2
	_, err = svc.Delete(ctx, created.ID())
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
	require.Empty(t, repo.deactivated, "no soft delete while jobs reference the department")

	repo.activeJobs = 0
	deleted, err := svc.Delete(ctx, created.ID())
	require.NoError(t, err)
	require.False(t, deleted.IsActive())
	require.Equal(t, "department.deleted", audit.changes[len(audit.changes)-1].Action)
}

func TestDepartmentServiceUpdateEmptyPatch(t *testing.T) {
	repo := newMockDepartmentRepo()
	svc := NewDepartmentService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Update(ctx, uuid.New(), department.Patch{})
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
}

type mockSupplierRepo struct {
	byID      map[uuid.UUID]supplier.Supplier
	codeTaken bool

	created []supplier.Supplier
}

func newMockSupplierRepo() *mockSupplierRepo {
	return &mockSupplierRepo{byID: map[uuid.UUID]supplier.Supplier{}}
}

func (m *mockSupplierRepo) GetByID(ctx context.Context, id uuid.UUID) (supplier.Supplier, error) {
	s, ok := m.byID[id]
	if !ok {
		return supplier.Supplier{}, supplier.ErrNotFound
	}
	return s, nil
}

func (m *mockSupplierRepo) GetAll(ctx context.Context, params *supplier.FindParams) ([]supplier.Supplier, error) {
	return nil, nil
}

func (m *mockSupplierRepo) Create(ctx context.Context, s supplier.Supplier) (supplier.Supplier, error) {
	id := uuid.New()
	created := supplier.Hydrate(
		id, s.TenantID(), s.Code(), s.Name(), s.ContactEmail(), s.ContactPhone(),
		true, s.CreatedBy(), nowStub(), nowStub(),
	)
	m.created = append(m.created, created)
	m.byID[id] = created
	return created, nil
}

func (m *mockSupplierRepo) Update(ctx context.Context, id uuid.UUID, patch supplier.Patch) (supplier.Supplier, error) {
	current, ok := m.byID[id]
	if !ok {
		return supplier.Supplier{}, supplier.ErrNotFound
	}
	name := current.Name()
	if patch.Name != nil {
		name = *patch.Name
	}
	updated := supplier.Hydrate(
		id, current.TenantID(), current.Code(), name, current.ContactEmail(),
		current.ContactPhone(), current.IsActive(), current.CreatedBy(),
		current.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockSupplierRepo) Deactivate(ctx context.Context, id uuid.UUID) (supplier.Supplier, error) {
	current, ok := m.byID[id]
	if !ok {
		return supplier.Supplier{}, supplier.ErrNotFound
	}
	deleted := supplier.Hydrate(
		id, current.TenantID(), current.Code(), current.Name(), current.ContactEmail(),
		current.ContactPhone(), false, current.CreatedBy(), current.CreatedAt(), nowStub(),
	)
	m.byID[id] = deleted
	return deleted, nil
}

func (m *mockSupplierRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	return m.codeTaken, nil
}

func TestSupplierServiceCreateNormalizesCode(t *testing.T) {
	repo := newMockSupplierRepo()
	svc := NewSupplierService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, " acme-01 ", "Acme Supplies", "SALES@acme.test", "")
	require.NoError(t, err)
	require.Equal(t, "ACME-01", created.Code())
	require.Equal(t, "sales@acme.test", created.ContactEmail())
}

func TestSupplierServiceCreateAuditFailureAborts(t *testing.T) {
	repo := newMockSupplierRepo()
	pub := &stubPublisher{}
	svc := NewSupplierService(repo, &recordedAudit{err: errors.New("audit store unavailable")}, pub)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "ACME-01", "Acme Supplies", "", "")
	require.Error(t, err)
	require.Empty(t, pub.events, "no event when the mutation aborts")
}

func TestSupplierServiceCreateCodeConflict(t *testing.T) {
	repo := newMockSupplierRepo()
	repo.codeTaken = true
	svc := NewSupplierService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "ACME-01", "Acme Supplies", "", "")
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
	require.Empty(t, repo.created)
}

func TestSupplierServiceUpdateAuditSnapshots(t *testing.T) {
	repo := newMockSupplierRepo()
	audit := &recordedAudit{}
	svc := NewSupplierService(repo, audit, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, "ACME-01", "Acme Supplies", "", "")
	require.NoError(t, err)

	_, err = svc.Update(ctx, created.ID(), supplier.Patch{Name: strptr("Acme Wholesale")})
	require.NoError(t, err)

	change := audit.changes[len(audit.changes)-1]
	require.Equal(t, "supplier.updated", change.Action)
	require.Equal(t, "Acme Supplies", change.Old.(supplier.Snapshot).Name)
	require.Equal(t, "Acme Wholesale", change.New.(supplier.Snapshot).Name)
}

type mockBranchRepo struct {
	byID        map[uuid.UUID]branch.Branch
	assignments map[uuid.UUID][]branch.Assignment // keyed by user

	setPrimaryCalls int
}

func newMockBranchRepo() *mockBranchRepo {
	return &mockBranchRepo{
		byID:        map[uuid.UUID]branch.Branch{},
		assignments: map[uuid.UUID][]branch.Assignment{},
	}
}

func (m *mockBranchRepo) GetByID(ctx context.Context, id uuid.UUID) (branch.Branch, error) {
	b, ok := m.byID[id]
	if !ok {
		return branch.Branch{}, branch.ErrNotFound
	}
	return b, nil
}

func (m *mockBranchRepo) GetAll(ctx context.Context) ([]branch.Branch, error) {
	return nil, nil
}

func (m *mockBranchRepo) Create(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	id := uuid.New()
	created := branch.Hydrate(
		id, b.TenantID(), b.Name(), b.Address(), true, b.CreatedBy(), nowStub(), nowStub(),
	)
	m.byID[id] = created
	return created, nil
}

func (m *mockBranchRepo) Deactivate(ctx context.Context, id uuid.UUID) (branch.Branch, error) {
	current, ok := m.byID[id]
	if !ok {
		return branch.Branch{}, branch.ErrNotFound
	}
	deleted := branch.Hydrate(
		id, current.TenantID(), current.Name(), current.Address(), false,
		current.CreatedBy(), current.CreatedAt(), nowStub(),
	)
	m.byID[id] = deleted
	return deleted, nil
}

func (m *mockBranchRepo) AssignUser(ctx context.Context, userID, branchID uuid.UUID) (branch.Assignment, error) {
	for _, a := range m.assignments[userID] {
		if a.BranchID == branchID {
			return a, nil
		}
	}
	a := branch.Assignment{
		ID:        uuid.New(),
		UserID:    userID,
		BranchID:  branchID,
		CreatedAt: nowStub(),
		UpdatedAt: nowStub(),
	}
	m.assignments[userID] = append(m.assignments[userID], a)
	return a, nil
}

func (m *mockBranchRepo) SetPrimary(ctx context.Context, userID, branchID uuid.UUID) (branch.Assignment, error) {
	m.setPrimaryCalls++
	var result branch.Assignment
	list := m.assignments[userID]
	for i := range list {
		list[i].IsPrimary = list[i].BranchID == branchID
		if list[i].IsPrimary {
			result = list[i]
		}
	}
	return result, nil
}

func (m *mockBranchRepo) ListUserAssignments(ctx context.Context, userID uuid.UUID) ([]branch.Assignment, error) {
	return m.assignments[userID], nil
}

func TestBranchServiceAssignUserIdempotent(t *testing.T) {
	repo := newMockBranchRepo()
	svc := NewBranchService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	b, err := svc.Create(ctx, "North Depot", "1 Dock Rd")
	require.NoError(t, err)

	userID := uuid.New()
	first, err := svc.AssignUser(ctx, userID, b.ID())
	require.NoError(t, err)

	second, err := svc.AssignUser(ctx, userID, b.ID())
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "re-assigning does not duplicate the link")
	require.Len(t, repo.assignments[userID], 1)
}

func TestBranchServiceCreateAuditFailureAborts(t *testing.T) {
	repo := newMockBranchRepo()
	pub := &stubPublisher{}
	svc := NewBranchService(repo, &recordedAudit{err: errors.New("audit store unavailable")}, pub)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, "North Depot", "")
	require.Error(t, err)
	require.Empty(t, pub.events, "no event when the mutation aborts")
}

func TestBranchServiceAssignToDeactivatedBranch(t *testing.T) {
	repo := newMockBranchRepo()
	svc := NewBranchService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	b, err := svc.Create(ctx, "North Depot", "")
	require.NoError(t, err)
	_, err = svc.Delete(ctx, b.ID())
	require.NoError(t, err)

	_, err = svc.AssignUser(ctx, uuid.New(), b.ID())
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
}

func TestBranchServiceSetPrimaryDemotesPrevious(t *testing.T) {
	repo := newMockBranchRepo()
	audit := &recordedAudit{}
	svc := NewBranchService(repo, audit, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	first, err := svc.Create(ctx, "North Depot", "")
	require.NoError(t, err)
	second, err := svc.Create(ctx, "South Depot", "")
	require.NoError(t, err)

	userID := uuid.New()
	_, err = svc.AssignUser(ctx, userID, first.ID())
	require.NoError(t, err)
	_, err = svc.AssignUser(ctx, userID, second.ID())
	require.NoError(t, err)

	_, err = svc.SetPrimary(ctx, userID, first.ID())
	require.NoError(t, err)
	_, err = svc.SetPrimary(ctx, userID, second.ID())
	require.NoError(t, err)

	assignments, err := svc.UserAssignments(ctx, userID)
	require.NoError(t, err)
	primaries := 0
	for _, a := range assignments {
		if a.IsPrimary {
			primaries++
			require.Equal(t, second.ID(), a.BranchID)
		}
	}
	require.Equal(t, 1, primaries, "exactly one primary per user")
	require.Equal(t, "branch.assignment.primary_set", audit.changes[len(audit.changes)-1].Action)
}

func TestBranchServiceSetPrimaryRequiresAssignment(t *testing.T) {
	repo := newMockBranchRepo()
	svc := NewBranchService(repo, &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	b, err := svc.Create(ctx, "North Depot", "")
	require.NoError(t, err)

	_, err = svc.SetPrimary(ctx, uuid.New(), b.ID())
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
	require.Zero(t, repo.setPrimaryCalls)
}
