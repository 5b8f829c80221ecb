package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/core/domain/aggregates/user"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const userResource = "user"

type UserService struct {
	repo      user.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewUserService(
	repo user.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *UserService {
	return &UserService{
		repo:      repo,
		audit:     audit,
		publisher: publisher,
	}
}

func (s *UserService) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	u, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, serrors.NotFound("user %s not found", id).WithCause(err)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (user.User, error) {
	u, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return user.User{}, serrors.NotFound("user %q not found", email).WithCause(err)
		}
		return user.User{}, err
	}
	return u, nil
}

func (s *UserService) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	if params == nil {
		params = &user.FindParams{}
	}
	return s.repo.GetPaginated(ctx, params)
}

func (s *UserService) Create(ctx context.Context, dto *user.CreateDTO) (user.User, error) {
	if dto == nil {
		return user.User{}, serrors.InvalidArgument("missing user payload")
	}
	if err := dto.Validate(); err != nil {
		return user.User{}, serrors.InvalidArgument("invalid user payload").WithCause(err)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	entity, err := user.New(tenantID, dto.Email, dto.FirstName, dto.LastName, dto.PolicyRole()).
		SetPassword(dto.Password)
	if err != nil {
		return user.User{}, serrors.InvalidArgument("invalid user payload").WithCause(err)
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		taken, err := s.repo.EmailExists(txCtx, dto.Email, uuid.Nil)
		if err != nil {
			return user.User{}, err
		}
		if taken {
			return user.User{}, serrors.Conflict("user email %q already in use", dto.Email)
		}

		created, err := s.repo.Create(txCtx, entity)
		if err != nil {
			if errors.Is(err, user.ErrEmailTaken) {
				return user.User{}, serrors.Conflict("user email %q already in use", dto.Email).WithCause(err)
			}
			return user.User{}, err
		}

		// Snapshot carries no credential material.
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "user.created",
			ResourceType: userResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return user.User{}, err
		}
		return created, nil
	})
	if err != nil {
		return user.User{}, err
	}

	s.publisher.Publish(&user.CreatedEvent{Result: created})
	return created, nil
}

func (s *UserService) Update(ctx context.Context, id uuid.UUID, patch user.Patch) (user.User, error) {
	if patch.Empty() {
		return user.User{}, serrors.InvalidArgument("no valid fields to update")
	}
	if patch.Role != nil && !patch.Role.Valid() {
		return user.User{}, serrors.InvalidArgument("unknown role %q", string(*patch.Role))
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		updated, err := s.repo.Update(txCtx, id, patch)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return user.User{}, serrors.NotFound("user %s not found", id).WithCause(err)
			}
			return user.User{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "user.updated",
			ResourceType: userResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return user.User{}, err
		}
		return updated, nil
	})
	if err != nil {
		return user.User{}, err
	}

	s.publisher.Publish(&user.UpdatedEvent{Result: updated})
	return updated, nil
}

// ChangePassword verifies the current password before storing a new digest.
// The audit entry records that the password changed, never its content.
func (s *UserService) ChangePassword(ctx context.Context, id uuid.UUID, currentPassword, newPassword string) error {
	u, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !u.CheckPassword(currentPassword) {
		return serrors.Forbidden("current password does not match")
	}

	rehashed, err := u.SetPassword(newPassword)
	if err != nil {
		return serrors.InvalidArgument("invalid password").WithCause(err)
	}

	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.SetPasswordDigest(txCtx, id, rehashed.PasswordDigest()); err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return serrors.NotFound("user %s not found", id).WithCause(err)
			}
			return err
		}
		return s.audit.Record(txCtx, auditlog.Change{
			Action:       "user.password_changed",
			ResourceType: userResource,
			ResourceID:   id,
		})
	})
}

// Delete soft-deletes the user so historical audit entries keep a resolvable
// actor.
func (s *UserService) Delete(ctx context.Context, id uuid.UUID) (user.User, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (user.User, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				return user.User{}, serrors.NotFound("user %s not found", id).WithCause(err)
			}
			return user.User{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "user.deleted",
			ResourceType: userResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return user.User{}, err
		}
		return deleted, nil
	})
	if err != nil {
		return user.User{}, err
	}

	s.publisher.Publish(&user.DeletedEvent{Result: deleted})
	return deleted, nil
}
