package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/assets/domain/aggregates/equipment"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const equipmentResource = "equipment"

type EquipmentService struct {
	repo      equipment.Repository
	jobs      job.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewEquipmentService(
	repo equipment.Repository,
	jobs job.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *EquipmentService {
	return &EquipmentService{repo: repo, jobs: jobs, audit: audit, publisher: publisher}
}

func (s *EquipmentService) GetByID(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, equipment.ErrNotFound) {
			return equipment.Asset{}, serrors.NotFound("equipment %s not found", id).WithCause(err)
		}
		return equipment.Asset{}, err
	}
	return a, nil
}

func (s *EquipmentService) GetPaginated(ctx context.Context, params *equipment.FindParams) ([]equipment.Asset, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *EquipmentService) Create(ctx context.Context, tag, name, category string, purchaseDate *time.Time) (equipment.Asset, error) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	name = strings.TrimSpace(name)
	if tag == "" {
		return equipment.Asset{}, serrors.InvalidArgument("equipment tag is required")
	}
	if name == "" {
		return equipment.Asset{}, serrors.InvalidArgument("equipment name is required")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (equipment.Asset, error) {
		taken, err := s.repo.TagExists(txCtx, tag)
		if err != nil {
			return equipment.Asset{}, err
		}
		if taken {
			return equipment.Asset{}, serrors.Conflict("equipment tag %q already exists", tag)
		}

		created, err := s.repo.Create(txCtx, equipment.New(tenantID, tag, name, category, purchaseDate, actorID))
		if err != nil {
			if errors.Is(err, equipment.ErrTagTaken) {
				return equipment.Asset{}, serrors.Conflict("equipment tag %q already exists", tag).WithCause(err)
			}
			return equipment.Asset{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "equipment.created",
			ResourceType: equipmentResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return equipment.Asset{}, err
		}
		return created, nil
	})
	if err != nil {
		return equipment.Asset{}, err
	}

	s.publisher.Publish(&equipment.CreatedEvent{Result: created})
	return created, nil
}

func (s *EquipmentService) Update(ctx context.Context, id uuid.UUID, patch equipment.Patch) (equipment.Asset, error) {
	if patch.Empty() {
		return equipment.Asset{}, serrors.InvalidArgument("no valid fields to update")
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return equipment.Asset{}, err
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (equipment.Asset, error) {
		updated, err := s.repo.Update(txCtx, id, patch)
		if err != nil {
			if errors.Is(err, equipment.ErrNotFound) {
				return equipment.Asset{}, serrors.NotFound("equipment %s not found", id).WithCause(err)
			}
			return equipment.Asset{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "equipment.updated",
			ResourceType: equipmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return equipment.Asset{}, err
		}
		return updated, nil
	})
	if err != nil {
		return equipment.Asset{}, err
	}

	s.publisher.Publish(&equipment.UpdatedEvent{Result: updated})
	return updated, nil
}

// Assign hands the asset to a job. Only available assets can be assigned.
func (s *EquipmentService) Assign(ctx context.Context, id, jobID uuid.UUID) (equipment.Asset, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return equipment.Asset{}, err
	}
	if current.Status() != equipment.StatusAvailable {
		return equipment.Asset{}, serrors.Conflict("equipment %s is %s", id, current.Status())
	}

	assigned, err := composables.InTxResult(ctx, func(txCtx context.Context) (equipment.Asset, error) {
		if _, err := s.jobs.GetByID(txCtx, jobID); err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return equipment.Asset{}, serrors.NotFound("job %s not found", jobID).WithCause(err)
			}
			return equipment.Asset{}, err
		}

		assigned, err := s.repo.SetAssignment(txCtx, id, equipment.StatusAssigned, jobID)
		if err != nil {
			return equipment.Asset{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "equipment.assigned",
			ResourceType: equipmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          assigned.Snapshot(),
		}); err != nil {
			return equipment.Asset{}, err
		}
		return assigned, nil
	})
	if err != nil {
		return equipment.Asset{}, err
	}

	s.publisher.Publish(&equipment.AssignedEvent{Result: assigned})
	return assigned, nil
}

// Release returns an assigned asset to the available pool.
func (s *EquipmentService) Release(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return equipment.Asset{}, err
	}
	if current.Status() != equipment.StatusAssigned {
		return equipment.Asset{}, serrors.Conflict("equipment %s is %s, not assigned", id, current.Status())
	}

	released, err := composables.InTxResult(ctx, func(txCtx context.Context) (equipment.Asset, error) {
		released, err := s.repo.SetAssignment(txCtx, id, equipment.StatusAvailable, uuid.Nil)
		if err != nil {
			return equipment.Asset{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "equipment.released",
			ResourceType: equipmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          released.Snapshot(),
		}); err != nil {
			return equipment.Asset{}, err
		}
		return released, nil
	})
	if err != nil {
		return equipment.Asset{}, err
	}

	s.publisher.Publish(&equipment.ReleasedEvent{Result: released})
	return released, nil
}

// Retire takes an asset out of service permanently. Assigned assets must be
// released first.
func (s *EquipmentService) Retire(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return equipment.Asset{}, err
	}
	if current.Status() == equipment.StatusAssigned {
		return equipment.Asset{}, serrors.Conflict("equipment %s is assigned to a job", id)
	}
	if current.Status() == equipment.StatusRetired {
		return current, nil
	}

	retired, err := composables.InTxResult(ctx, func(txCtx context.Context) (equipment.Asset, error) {
		retired, err := s.repo.SetAssignment(txCtx, id, equipment.StatusRetired, uuid.Nil)
		if err != nil {
			return equipment.Asset{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "equipment.retired",
			ResourceType: equipmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          retired.Snapshot(),
		}); err != nil {
			return equipment.Asset{}, err
		}
		return retired, nil
	})
	if err != nil {
		return equipment.Asset{}, err
	}

	s.publisher.Publish(&equipment.RetiredEvent{Result: retired})
	return retired, nil
}

func (s *EquipmentService) Delete(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return equipment.Asset{}, err
	}
	if current.Status() == equipment.StatusAssigned {
		return equipment.Asset{}, serrors.Conflict("equipment %s is assigned to a job", id)
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (equipment.Asset, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, equipment.ErrNotFound) {
				return equipment.Asset{}, serrors.NotFound("equipment %s not found", id).WithCause(err)
			}
			return equipment.Asset{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "equipment.deleted",
			ResourceType: equipmentResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return equipment.Asset{}, err
		}
		return deleted, nil
	})
}
