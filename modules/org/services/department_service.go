package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/department"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const departmentResource = "department"

type DepartmentService struct {
	repo      department.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewDepartmentService(
	repo department.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *DepartmentService {
	return &DepartmentService{repo: repo, audit: audit, publisher: publisher}
}

func (s *DepartmentService) GetByID(ctx context.Context, id uuid.UUID) (department.Department, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, department.ErrNotFound) {
			return department.Department{}, serrors.NotFound("department %s not found", id).WithCause(err)
		}
		return department.Department{}, err
	}
	return d, nil
}

func (s *DepartmentService) GetAll(ctx context.Context, params *department.FindParams) ([]department.Department, error) {
	return s.repo.GetAll(ctx, params)
}

func (s *DepartmentService) Create(ctx context.Context, name, description string) (department.Department, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return department.Department{}, serrors.InvalidArgument("department name is required")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return department.Department{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return department.Department{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (department.Department, error) {
		taken, err := s.repo.NameExists(txCtx, name, uuid.Nil)
		if err != nil {
			return department.Department{}, err
		}
		if taken {
			return department.Department{}, serrors.Conflict("department %q already exists", name)
		}

		created, err := s.repo.Create(txCtx, department.New(tenantID, name, description, actorID))
		if err != nil {
			if errors.Is(err, department.ErrNameTaken) {
				return department.Department{}, serrors.Conflict("department %q already exists", name).WithCause(err)
			}
			return department.Department{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "department.created",
			ResourceType: departmentResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return department.Department{}, err
		}
		return created, nil
	})
	if err != nil {
		return department.Department{}, err
	}

	s.publisher.Publish(&department.CreatedEvent{Result: created})
	return created, nil
}

func (s *DepartmentService) Update(ctx context.Context, id uuid.UUID, patch department.Patch) (department.Department, error) {
	if patch.Empty() {
		return department.Department{}, serrors.InvalidArgument("no valid fields to update")
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return department.Department{}, err
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (department.Department, error) {
		if patch.Name != nil {
			taken, err := s.repo.NameExists(txCtx, *patch.Name, id)
			if err != nil {
				return department.Department{}, err
			}
			if taken {
				return department.Department{}, serrors.Conflict("department %q already exists", *patch.Name)
			}
		}

		updated, err := s.repo.Update(txCtx, id, patch)
		if err != nil {
			if errors.Is(err, department.ErrNotFound) {
				return department.Department{}, serrors.NotFound("department %s not found", id).WithCause(err)
			}
			return department.Department{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "department.updated",
			ResourceType: departmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return department.Department{}, err
		}
		return updated, nil
	})
	if err != nil {
		return department.Department{}, err
	}

	s.publisher.Publish(&department.UpdatedEvent{Result: updated})
	return updated, nil
}

// Delete soft-deletes the department. It is refused while active jobs are
// still routed to it, before any write happens.
func (s *DepartmentService) Delete(ctx context.Context, id uuid.UUID) (department.Department, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return department.Department{}, err
	}

	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (department.Department, error) {
		jobs, err := s.repo.ActiveJobCount(txCtx, id)
		if err != nil {
			return department.Department{}, err
		}
		if jobs > 0 {
			return department.Department{}, serrors.Conflict("department %s has %d active job(s)", id, jobs)
		}

		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, department.ErrNotFound) {
				return department.Department{}, serrors.NotFound("department %s not found", id).WithCause(err)
			}
			return department.Department{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "department.deleted",
			ResourceType: departmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return department.Department{}, err
		}
		return deleted, nil
	})
	if err != nil {
		return department.Department{}, err
	}

	s.publisher.Publish(&department.DeletedEvent{Result: deleted})
	return deleted, nil
}
