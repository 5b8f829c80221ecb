package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/supplier"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const supplierResource = "supplier"

type SupplierService struct {
	repo      supplier.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewSupplierService(
	repo supplier.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *SupplierService {
	return &SupplierService{repo: repo, audit: audit, publisher: publisher}
}

func (s *SupplierService) GetByID(ctx context.Context, id uuid.UUID) (supplier.Supplier, error) {
	sup, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, supplier.ErrNotFound) {
			return supplier.Supplier{}, serrors.NotFound("supplier %s not found", id).WithCause(err)
		}
		return supplier.Supplier{}, err
	}
	return sup, nil
}

func (s *SupplierService) GetAll(ctx context.Context, params *supplier.FindParams) ([]supplier.Supplier, error) {
	return s.repo.GetAll(ctx, params)
}

func (s *SupplierService) Create(ctx context.Context, code, name, contactEmail, contactPhone string) (supplier.Supplier, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	name = strings.TrimSpace(name)
	if code == "" {
		return supplier.Supplier{}, serrors.InvalidArgument("supplier code is required")
	}
	if name == "" {
		return supplier.Supplier{}, serrors.InvalidArgument("supplier name is required")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (supplier.Supplier, error) {
		taken, err := s.repo.CodeExists(txCtx, code)
		if err != nil {
			return supplier.Supplier{}, err
		}
		if taken {
			return supplier.Supplier{}, serrors.Conflict("supplier code %q already exists", code)
		}

		created, err := s.repo.Create(txCtx, supplier.New(tenantID, code, name, actorID).WithContact(contactEmail, contactPhone))
		if err != nil {
			if errors.Is(err, supplier.ErrCodeTaken) {
				return supplier.Supplier{}, serrors.Conflict("supplier code %q already exists", code).WithCause(err)
			}
			return supplier.Supplier{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "supplier.created",
			ResourceType: supplierResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return supplier.Supplier{}, err
		}
		return created, nil
	})
	if err != nil {
		return supplier.Supplier{}, err
	}

	s.publisher.Publish(&supplier.CreatedEvent{Result: created})
	return created, nil
}

func (s *SupplierService) Update(ctx context.Context, id uuid.UUID, patch supplier.Patch) (supplier.Supplier, error) {
	if patch.Empty() {
		return supplier.Supplier{}, serrors.InvalidArgument("no valid fields to update")
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return supplier.Supplier{}, err
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (supplier.Supplier, error) {
		updated, err := s.repo.Update(txCtx, id, patch)
		if err != nil {
			if errors.Is(err, supplier.ErrNotFound) {
				return supplier.Supplier{}, serrors.NotFound("supplier %s not found", id).WithCause(err)
			}
			return supplier.Supplier{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "supplier.updated",
			ResourceType: supplierResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return supplier.Supplier{}, err
		}
		return updated, nil
	})
	if err != nil {
		return supplier.Supplier{}, err
	}

	s.publisher.Publish(&supplier.UpdatedEvent{Result: updated})
	return updated, nil
}

func (s *SupplierService) Delete(ctx context.Context, id uuid.UUID) (supplier.Supplier, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return supplier.Supplier{}, err
	}

	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (supplier.Supplier, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, supplier.ErrNotFound) {
				return supplier.Supplier{}, serrors.NotFound("supplier %s not found", id).WithCause(err)
			}
			return supplier.Supplier{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "supplier.deleted",
			ResourceType: supplierResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return supplier.Supplier{}, err
		}
		return deleted, nil
	})
	if err != nil {
		return supplier.Supplier{}, err
	}

	s.publisher.Publish(&supplier.DeletedEvent{Result: deleted})
	return deleted, nil
}
