package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/branch"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const branchResource = "branch"

type BranchService struct {
	repo      branch.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewBranchService(
	repo branch.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *BranchService {
	return &BranchService{repo: repo, audit: audit, publisher: publisher}
}

func (s *BranchService) GetByID(ctx context.Context, id uuid.UUID) (branch.Branch, error) {
	b, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, branch.ErrNotFound) {
			return branch.Branch{}, serrors.NotFound("branch %s not found", id).WithCause(err)
		}
		return branch.Branch{}, err
	}
	return b, nil
}

func (s *BranchService) GetAll(ctx context.Context) ([]branch.Branch, error) {
	return s.repo.GetAll(ctx)
}

func (s *BranchService) Create(ctx context.Context, name, address string) (branch.Branch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return branch.Branch{}, serrors.InvalidArgument("branch name is required")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return branch.Branch{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return branch.Branch{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (branch.Branch, error) {
		created, err := s.repo.Create(txCtx, branch.New(tenantID, name, address, actorID))
		if err != nil {
			return branch.Branch{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "branch.created",
			ResourceType: branchResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return branch.Branch{}, err
		}
		return created, nil
	})
	if err != nil {
		return branch.Branch{}, err
	}

	s.publisher.Publish(&branch.CreatedEvent{Result: created})
	return created, nil
}

func (s *BranchService) Delete(ctx context.Context, id uuid.UUID) (branch.Branch, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return branch.Branch{}, err
	}

	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (branch.Branch, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, branch.ErrNotFound) {
				return branch.Branch{}, serrors.NotFound("branch %s not found", id).WithCause(err)
			}
			return branch.Branch{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "branch.deleted",
			ResourceType: branchResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return branch.Branch{}, err
		}
		return deleted, nil
	})
	if err != nil {
		return branch.Branch{}, err
	}

	s.publisher.Publish(&branch.DeletedEvent{Result: deleted})
	return deleted, nil
}

// AssignUser links a user to a branch. Re-assigning an existing pair is a
// no-op on the link itself and never duplicates it.
func (s *BranchService) AssignUser(ctx context.Context, userID, branchID uuid.UUID) (branch.Assignment, error) {
	target, err := s.GetByID(ctx, branchID)
	if err != nil {
		return branch.Assignment{}, err
	}
	if !target.IsActive() {
		return branch.Assignment{}, serrors.Conflict("branch %s is deactivated", branchID)
	}

	assignment, err := composables.InTxResult(ctx, func(txCtx context.Context) (branch.Assignment, error) {
		assignment, err := s.repo.AssignUser(txCtx, userID, branchID)
		if err != nil {
			return branch.Assignment{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "branch.user_assigned",
			ResourceType: branchResource,
			ResourceID:   branchID,
			New:          map[string]string{"user_id": userID.String()},
		}); err != nil {
			return branch.Assignment{}, err
		}
		return assignment, nil
	})
	if err != nil {
		return branch.Assignment{}, err
	}

	s.publisher.Publish(&branch.UserAssignedEvent{Result: assignment})
	return assignment, nil
}

// SetPrimary marks the user's assignment to branchID as their primary branch,
// demoting any previous primary in the same transaction.
func (s *BranchService) SetPrimary(ctx context.Context, userID, branchID uuid.UUID) (branch.Assignment, error) {
	target, err := s.GetByID(ctx, branchID)
	if err != nil {
		return branch.Assignment{}, err
	}
	if !target.IsActive() {
		return branch.Assignment{}, serrors.Conflict("branch %s is deactivated", branchID)
	}

	assignment, err := composables.InTxResult(ctx, func(txCtx context.Context) (branch.Assignment, error) {
		assignments, err := s.repo.ListUserAssignments(txCtx, userID)
		if err != nil {
			return branch.Assignment{}, err
		}
		var previous *branch.Assignment
		assigned := false
		for i := range assignments {
			if assignments[i].BranchID == branchID {
				assigned = true
			}
			if assignments[i].IsPrimary {
				previous = &assignments[i]
			}
		}
		if !assigned {
			return branch.Assignment{}, serrors.InvalidArgument("user %s is not assigned to branch %s", userID, branchID)
		}

		assignment, err := s.repo.SetPrimary(txCtx, userID, branchID)
		if err != nil {
			return branch.Assignment{}, err
		}

		change := auditlog.Change{
			Action:       "branch.assignment.primary_set",
			ResourceType: branchResource,
			ResourceID:   branchID,
			New:          map[string]string{"user_id": userID.String(), "branch_id": branchID.String()},
		}
		if previous != nil {
			change.Old = map[string]string{"user_id": userID.String(), "branch_id": previous.BranchID.String()}
		}
		if err := s.audit.Record(txCtx, change); err != nil {
			return branch.Assignment{}, err
		}
		return assignment, nil
	})
	if err != nil {
		return branch.Assignment{}, err
	}

	s.publisher.Publish(&branch.PrimaryChangedEvent{Result: assignment})
	return assignment, nil
}

func (s *BranchService) UserAssignments(ctx context.Context, userID uuid.UUID) ([]branch.Assignment, error) {
	return s.repo.ListUserAssignments(ctx, userID)
}
