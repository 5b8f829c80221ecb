package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/crm/domain/aggregates/customer"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/itf"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

func nowStub() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }

func strptr(s string) *string { return &s }

type mockCustomerRepo struct {
	byID       map[uuid.UUID]customer.Customer
	emailTaken bool

	created     []customer.Customer
	updates     []customer.Patch
	deactivated []uuid.UUID
}

func newMockCustomerRepo() *mockCustomerRepo {
	return &mockCustomerRepo{byID: map[uuid.UUID]customer.Customer{}}
}

func (m *mockCustomerRepo) GetByID(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	c, ok := m.byID[id]
	if !ok {
		return customer.Customer{}, customer.ErrNotFound
	}
	return c, nil
}

func (m *mockCustomerRepo) GetPaginated(ctx context.Context, params *customer.FindParams) ([]customer.Customer, int64, error) {
	return nil, 0, nil
}

func (m *mockCustomerRepo) Create(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	id := uuid.New()
	created := customer.Hydrate(
		id, c.TenantID(), c.FirstName(), c.LastName(), c.Email(), c.Phone(),
		c.Address(), c.Notes(), true, c.CreatedBy(), nowStub(), nowStub(),
	)
	m.created = append(m.created, created)
	m.byID[id] = created
	return created, nil
}

func (m *mockCustomerRepo) Update(ctx context.Context, id uuid.UUID, patch customer.Patch) (customer.Customer, error) {
	current, ok := m.byID[id]
	if !ok {
		return customer.Customer{}, customer.ErrNotFound
	}
	m.updates = append(m.updates, patch)

	first, last := current.FirstName(), current.LastName()
	if patch.FirstName != nil {
		first = *patch.FirstName
	}
	if patch.LastName != nil {
		last = *patch.LastName
	}
	updated := customer.Hydrate(
		id, current.TenantID(), first, last, current.Email(), current.Phone(),
		current.Address(), current.Notes(), current.IsActive(), current.CreatedBy(),
		current.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockCustomerRepo) Deactivate(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	current, ok := m.byID[id]
	if !ok {
		return customer.Customer{}, customer.ErrNotFound
	}
	m.deactivated = append(m.deactivated, id)
	deleted := customer.Hydrate(
		id, current.TenantID(), current.FirstName(), current.LastName(), current.Email(),
		current.Phone(), current.Address(), current.Notes(), false, current.CreatedBy(),
		current.CreatedAt(), nowStub(),
	)
	m.byID[id] = deleted
	return deleted, nil
}

func (m *mockCustomerRepo) EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	return m.emailTaken, nil
}

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

func TestCustomerServiceCreate(t *testing.T) {
	repo := newMockCustomerRepo()
	audit := &recordedAudit{}
	pub := &stubPublisher{}
	svc := NewCustomerService(repo, audit, pub)

	ctx := itf.ServiceContext(uuid.New(), uuid.New())
	created, err := svc.Create(ctx, &customer.CreateDTO{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ADA@example.com",
	})
	require.NoError(t, err)
	require.True(t, created.IsActive())
	require.Equal(t, "ada@example.com", created.Email())

	require.Len(t, audit.changes, 1)
	require.Equal(t, "customer.created", audit.changes[0].Action)
	require.Equal(t, created.ID(), audit.changes[0].ResourceID)
	require.Nil(t, audit.changes[0].Old)

	require.Len(t, pub.events, 1)
}

func TestCustomerServiceCreateAuditFailureAborts(t *testing.T) {
	repo := newMockCustomerRepo()
	audit := &recordedAudit{err: errors.New("audit store unavailable")}
	pub := &stubPublisher{}
	svc := NewCustomerService(repo, audit, pub)

	ctx := itf.ServiceContext(uuid.New(), uuid.New())
	_, err := svc.Create(ctx, &customer.CreateDTO{
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	require.Error(t, err)
	require.Empty(t, pub.events, "no event when the mutation aborts")
}

func TestCustomerServiceCreateEmailConflict(t *testing.T) {
	repo := newMockCustomerRepo()
	repo.emailTaken = true
	svc := NewCustomerService(repo, &recordedAudit{}, &stubPublisher{})

	ctx := itf.ServiceContext(uuid.New(), uuid.New())
	_, err := svc.Create(ctx, &customer.CreateDTO{
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
	})
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
	require.Empty(t, repo.created, "no insert after failed precondition")
}

func TestCustomerServiceCreateInvalidPayload(t *testing.T) {
	svc := NewCustomerService(newMockCustomerRepo(), &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, &customer.CreateDTO{FirstName: "Ada"})
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
}

func TestCustomerServiceUpdateEmptyPatch(t *testing.T) {
	repo := newMockCustomerRepo()
	audit := &recordedAudit{}
	svc := NewCustomerService(repo, audit, &stubPublisher{})

	ctx := itf.ServiceContext(uuid.New(), uuid.New())
	_, err := svc.Update(ctx, uuid.New(), &customer.UpdateDTO{})
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
	require.Empty(t, repo.updates, "no UPDATE issued")
	require.Empty(t, audit.changes, "no audit entry written")
}

func TestCustomerServiceUpdateAuditSnapshots(t *testing.T) {
	repo := newMockCustomerRepo()
	audit := &recordedAudit{}
	svc := NewCustomerService(repo, audit, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, &customer.CreateDTO{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, created.ID(), &customer.UpdateDTO{LastName: strptr("Byron")})
	require.NoError(t, err)
	require.Equal(t, "Byron", updated.LastName())
	require.Equal(t, "Ada", updated.FirstName(), "untouched field retains prior value")

	require.Len(t, audit.changes, 2)
	change := audit.changes[1]
	require.Equal(t, "customer.updated", change.Action)
	require.Equal(t, "Lovelace", change.Old.(customer.Snapshot).LastName)
	require.Equal(t, "Byron", change.New.(customer.Snapshot).LastName)
}

func TestCustomerServiceUpdateNotFound(t *testing.T) {
	svc := NewCustomerService(newMockCustomerRepo(), &recordedAudit{}, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Update(ctx, uuid.New(), &customer.UpdateDTO{LastName: strptr("Byron")})
	require.True(t, serrors.IsKind(err, serrors.KindNotFound))
}

func TestCustomerServiceDeleteSoft(t *testing.T) {
	repo := newMockCustomerRepo()
	audit := &recordedAudit{}
	svc := NewCustomerService(repo, audit, &stubPublisher{})
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, &customer.CreateDTO{FirstName: "Ada", LastName: "Lovelace"})
	require.NoError(t, err)

	deleted, err := svc.Delete(ctx, created.ID())
	require.NoError(t, err)
	require.False(t, deleted.IsActive())

	// Still readable by id after soft delete.
	fetched, err := svc.GetByID(ctx, created.ID())
	require.NoError(t, err)
	require.False(t, fetched.IsActive())

	change := audit.changes[len(audit.changes)-1]
	require.Equal(t, "customer.deleted", change.Action)
	require.True(t, change.Old.(customer.Snapshot).IsActive, "old snapshot preserves pre-delete state")
}
