package services

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/crm/domain/aggregates/customer"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const customerResource = "customer"

type CustomerService struct {
	repo      customer.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewCustomerService(
	repo customer.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *CustomerService {
	return &CustomerService{
		repo:      repo,
		audit:     audit,
		publisher: publisher,
	}
}

func (s *CustomerService) GetByID(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	c, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, customer.ErrNotFound) {
			return customer.Customer{}, serrors.NotFound("customer %s not found", id).WithCause(err)
		}
		return customer.Customer{}, err
	}
	return c, nil
}

func (s *CustomerService) GetPaginated(ctx context.Context, params *customer.FindParams) ([]customer.Customer, int64, error) {
	if params == nil {
		params = &customer.FindParams{}
	}
	return s.repo.GetPaginated(ctx, params)
}

func (s *CustomerService) Create(ctx context.Context, dto *customer.CreateDTO) (customer.Customer, error) {
	if dto == nil {
		return customer.Customer{}, serrors.InvalidArgument("missing customer payload")
	}
	if err := dto.Validate(); err != nil {
		return customer.Customer{}, serrors.InvalidArgument("invalid customer payload").WithCause(err)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (customer.Customer, error) {
		if dto.Email != "" {
			taken, err := s.repo.EmailExists(txCtx, dto.Email, uuid.Nil)
			if err != nil {
				return customer.Customer{}, err
			}
			if taken {
				return customer.Customer{}, serrors.Conflict("customer email %q already in use", dto.Email)
			}
		}

		entity := customer.New(tenantID, dto.FirstName, dto.LastName, actorID).
			WithContact(dto.Email, dto.Phone).
			WithAddress(dto.Address).
			WithNotes(dto.Notes)

		created, err := s.repo.Create(txCtx, entity)
		if err != nil {
			if errors.Is(err, customer.ErrEmailTaken) {
				return customer.Customer{}, serrors.Conflict("customer email %q already in use", dto.Email).WithCause(err)
			}
			return customer.Customer{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "customer.created",
			ResourceType: customerResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return customer.Customer{}, err
		}
		return created, nil
	})
	if err != nil {
		return customer.Customer{}, err
	}

	s.publisher.Publish(&customer.CreatedEvent{Result: created})
	return created, nil
}

func (s *CustomerService) Update(ctx context.Context, id uuid.UUID, dto *customer.UpdateDTO) (customer.Customer, error) {
	if dto == nil {
		return customer.Customer{}, serrors.InvalidArgument("missing customer payload")
	}
	if err := dto.Validate(); err != nil {
		return customer.Customer{}, serrors.InvalidArgument("invalid customer payload").WithCause(err)
	}
	patch := dto.Patch()
	if patch.Empty() {
		return customer.Customer{}, serrors.InvalidArgument("no valid fields to update")
	}

	// Fetch first so a missing row fails fast and the audit entry carries the
	// old snapshot.
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return customer.Customer{}, err
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (customer.Customer, error) {
		if patch.Email != nil && *patch.Email != "" {
			taken, err := s.repo.EmailExists(txCtx, *patch.Email, id)
			if err != nil {
				return customer.Customer{}, err
			}
			if taken {
				return customer.Customer{}, serrors.Conflict("customer email %q already in use", *patch.Email)
			}
		}

		updated, err := s.repo.Update(txCtx, id, patch)
		if err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				return customer.Customer{}, serrors.NotFound("customer %s not found", id).WithCause(err)
			}
			return customer.Customer{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "customer.updated",
			ResourceType: customerResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return customer.Customer{}, err
		}
		return updated, nil
	})
	if err != nil {
		return customer.Customer{}, err
	}

	s.publisher.Publish(&customer.UpdatedEvent{Result: updated})
	return updated, nil
}

// Delete soft-deletes the customer. The row stays readable by id for audit
// and history purposes.
func (s *CustomerService) Delete(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return customer.Customer{}, err
	}

	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (customer.Customer, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				return customer.Customer{}, serrors.NotFound("customer %s not found", id).WithCause(err)
			}
			return customer.Customer{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "customer.deleted",
			ResourceType: customerResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return customer.Customer{}, err
		}
		return deleted, nil
	})
	if err != nil {
		return customer.Customer{}, err
	}

	s.publisher.Publish(&customer.DeletedEvent{Result: deleted})
	return deleted, nil
}
