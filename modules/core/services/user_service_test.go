package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/modules/core/domain/aggregates/user"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/itf"
	"github.com/fieldrow/fieldrow/pkg/policy"
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

type mockUserRepo struct {
	byID map[uuid.UUID]user.User
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{byID: map[uuid.UUID]user.User{}}
}

func (m *mockUserRepo) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return u, nil
}

func (m *mockUserRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	for _, u := range m.byID {
		if strings.EqualFold(u.Email(), email) {
			return u, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (m *mockUserRepo) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	out := make([]user.User, 0, len(m.byID))
	for _, u := range m.byID {
		out = append(out, u)
	}
	return out, int64(len(out)), nil
}

func (m *mockUserRepo) Create(ctx context.Context, u user.User) (user.User, error) {
	created := user.Hydrate(
		uuid.New(), u.TenantID(), u.Email(), u.FirstName(), u.LastName(), u.Role(),
		u.PasswordDigest(), true, nowStub(), nowStub(),
	)
	m.byID[created.ID()] = created
	return created, nil
}

func (m *mockUserRepo) Update(ctx context.Context, id uuid.UUID, patch user.Patch) (user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	firstName, lastName, role := u.FirstName(), u.LastName(), u.Role()
	if patch.FirstName != nil {
		firstName = *patch.FirstName
	}
	if patch.LastName != nil {
		lastName = *patch.LastName
	}
	if patch.Role != nil {
		role = *patch.Role
	}
	updated := user.Hydrate(
		u.ID(), u.TenantID(), u.Email(), firstName, lastName, role,
		u.PasswordDigest(), u.IsActive(), u.CreatedAt(), nowStub(),
	)
	m.byID[id] = updated
	return updated, nil
}

func (m *mockUserRepo) SetPasswordDigest(ctx context.Context, id uuid.UUID, digest string) error {
	u, ok := m.byID[id]
	if !ok {
		return user.ErrNotFound
	}
	m.byID[id] = user.Hydrate(
		u.ID(), u.TenantID(), u.Email(), u.FirstName(), u.LastName(), u.Role(),
		digest, u.IsActive(), u.CreatedAt(), nowStub(),
	)
	return nil
}

func (m *mockUserRepo) Deactivate(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, ok := m.byID[id]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	deactivated := user.Hydrate(
		u.ID(), u.TenantID(), u.Email(), u.FirstName(), u.LastName(), u.Role(),
		u.PasswordDigest(), false, u.CreatedAt(), nowStub(),
	)
	m.byID[id] = deactivated
	return deactivated, nil
}

func (m *mockUserRepo) EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
	for _, u := range m.byID {
		if u.ID() != excludeID && strings.EqualFold(u.Email(), email) {
			return true, nil
		}
	}
	return false, nil
}

func newUserService(repo *mockUserRepo) (*UserService, *recordedAudit, *stubPublisher) {
	audit := &recordedAudit{}
	pub := &stubPublisher{}
	return NewUserService(repo, audit, pub), audit, pub
}

func createUser(t *testing.T, svc *UserService, ctx context.Context, email string) user.User {
	t.Helper()
	created, err := svc.Create(ctx, &user.CreateDTO{
		Email:     email,
		FirstName: "Grace",
		LastName:  "Hopper",
		Password:  "correct horse",
		Role:      "manager",
	})
	require.NoError(t, err)
	return created
}

func TestUserServiceCreate(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, pub := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created, err := svc.Create(ctx, &user.CreateDTO{
		Email:     "GRACE@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Password:  "correct horse",
		Role:      "manager",
	})
	require.NoError(t, err)
	require.Equal(t, "grace@example.com", created.Email())
	require.Equal(t, policy.RoleManager, created.Role())
	require.True(t, created.IsActive())
	require.True(t, created.CheckPassword("correct horse"))
	require.False(t, created.CheckPassword("wrong"))
	require.NotEqual(t, "correct horse", created.PasswordDigest())

	require.Len(t, audit.changes, 1)
	require.Equal(t, "user.created", audit.changes[0].Action)
	require.Len(t, pub.events, 1)
}

func TestUserServiceCreateAuditOmitsDigest(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	createUser(t, svc, ctx, "grace@example.com")

	require.Len(t, audit.changes, 1)
	snap, ok := audit.changes[0].New.(user.Snapshot)
	require.True(t, ok)
	require.Equal(t, "grace@example.com", snap.Email)
}

func TestUserServiceCreateAuditFailureAborts(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, pub := newUserService(repo)
	audit.err = errors.New("audit store unavailable")
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, &user.CreateDTO{
		Email:     "grace@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Password:  "correct horse",
		Role:      "manager",
	})
	require.Error(t, err)
	require.Empty(t, pub.events, "no event when the mutation aborts")
}

func TestUserServiceCreateDuplicateEmail(t *testing.T) {
	repo := newMockUserRepo()
	svc, _, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	createUser(t, svc, ctx, "grace@example.com")

	_, err := svc.Create(ctx, &user.CreateDTO{
		Email:     "Grace@Example.com",
		FirstName: "Other",
		LastName:  "Person",
		Password:  "another pass",
		Role:      "staff",
	})
	require.True(t, serrors.IsKind(err, serrors.KindConflict))
	require.Len(t, repo.byID, 1)
}

func TestUserServiceCreateRejectsUnknownRole(t *testing.T) {
	repo := newMockUserRepo()
	svc, _, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.Create(ctx, &user.CreateDTO{
		Email:     "grace@example.com",
		FirstName: "Grace",
		LastName:  "Hopper",
		Password:  "correct horse",
		Role:      "superuser",
	})
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
}

func TestUserServiceUpdate(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	role := policy.RoleAdmin
	updated, err := svc.Update(ctx, created.ID(), user.Patch{Role: &role})
	require.NoError(t, err)
	require.Equal(t, policy.RoleAdmin, updated.Role())

	require.Len(t, audit.changes, 2)
	require.Equal(t, "user.updated", audit.changes[1].Action)
	old := audit.changes[1].Old.(user.Snapshot)
	require.Equal(t, "manager", old.Role)
}

func TestUserServiceUpdateEmptyPatch(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	_, err := svc.Update(ctx, created.ID(), user.Patch{})
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
	require.Len(t, audit.changes, 1, "no audit entry for a rejected update")
}

func TestUserServiceUpdateRejectsInvalidRole(t *testing.T) {
	repo := newMockUserRepo()
	svc, _, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	bad := policy.Role("superuser")
	_, err := svc.Update(ctx, created.ID(), user.Patch{Role: &bad})
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
}

func TestUserServiceChangePassword(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	require.NoError(t, svc.ChangePassword(ctx, created.ID(), "correct horse", "battery staple"))

	stored := repo.byID[created.ID()]
	require.True(t, stored.CheckPassword("battery staple"))
	require.False(t, stored.CheckPassword("correct horse"))

	require.Equal(t, "user.password_changed", audit.changes[len(audit.changes)-1].Action)
	require.Nil(t, audit.changes[len(audit.changes)-1].New, "no credential material in audit")
}

func TestUserServiceChangePasswordWrongCurrent(t *testing.T) {
	repo := newMockUserRepo()
	svc, _, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	err := svc.ChangePassword(ctx, created.ID(), "wrong", "battery staple")
	require.True(t, serrors.IsKind(err, serrors.KindForbidden))
	require.True(t, repo.byID[created.ID()].CheckPassword("correct horse"), "digest untouched")
}

func TestUserServiceChangePasswordTooShort(t *testing.T) {
	repo := newMockUserRepo()
	svc, _, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	err := svc.ChangePassword(ctx, created.ID(), "correct horse", "short")
	require.True(t, serrors.IsKind(err, serrors.KindInvalidArgument))
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo()
	svc, audit, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	created := createUser(t, svc, ctx, "grace@example.com")

	deleted, err := svc.Delete(ctx, created.ID())
	require.NoError(t, err)
	require.False(t, deleted.IsActive())

	// Soft delete keeps the row readable by id.
	still, err := svc.GetByID(ctx, created.ID())
	require.NoError(t, err)
	require.False(t, still.IsActive())

	require.Equal(t, "user.deleted", audit.changes[len(audit.changes)-1].Action)
}

func TestUserServiceGetByIDNotFound(t *testing.T) {
	repo := newMockUserRepo()
	svc, _, _ := newUserService(repo)
	ctx := itf.ServiceContext(uuid.New(), uuid.New())

	_, err := svc.GetByID(ctx, uuid.New())
	require.True(t, serrors.IsKind(err, serrors.KindNotFound))
}
