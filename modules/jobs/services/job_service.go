package services

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/crm/domain/aggregates/customer"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/entities/jobhistory"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/entities/routing"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/department"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/policy"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const jobResource = "job"

type JobService struct {
	repo        job.Repository
	history     jobhistory.Repository
	rules       routing.Repository
	customers   customer.Repository
	departments department.Repository
	policies    *policy.Evaluator
	audit       auditlog.Recorder
	publisher   eventbus.EventBus
}

func NewJobService(
	repo job.Repository,
	history jobhistory.Repository,
	rules routing.Repository,
	customers customer.Repository,
	departments department.Repository,
	policies *policy.Evaluator,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *JobService {
	return &JobService{
		repo:        repo,
		history:     history,
		rules:       rules,
		customers:   customers,
		departments: departments,
		policies:    policies,
		audit:       audit,
		publisher:   publisher,
	}
}

func (s *JobService) GetByID(ctx context.Context, id uuid.UUID) (job.Job, error) {
	j, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return job.Job{}, serrors.NotFound("job %s not found", id).WithCause(err)
		}
		return job.Job{}, err
	}
	return j, nil
}

func (s *JobService) GetPaginated(ctx context.Context, params *job.FindParams) ([]job.Job, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

func (s *JobService) History(ctx context.Context, jobID uuid.UUID) ([]jobhistory.Entry, error) {
	if _, err := s.GetByID(ctx, jobID); err != nil {
		return nil, err
	}
	return s.history.ListForJob(ctx, jobID)
}

func (s *JobService) Create(ctx context.Context, dto *job.CreateDTO) (job.Job, error) {
	if dto == nil {
		return job.Job{}, serrors.InvalidArgument("missing job payload")
	}
	if err := dto.Validate(); err != nil {
		return job.Job{}, serrors.InvalidArgument("invalid job payload").WithCause(err)
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return job.Job{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (job.Job, error) {
		if _, err := s.customers.GetByID(txCtx, dto.CustomerID); err != nil {
			if errors.Is(err, customer.ErrNotFound) {
				return job.Job{}, serrors.NotFound("customer %s not found", dto.CustomerID).WithCause(err)
			}
			return job.Job{}, err
		}
		if dto.DepartmentID != uuid.Nil {
			if _, err := s.departments.GetByID(txCtx, dto.DepartmentID); err != nil {
				if errors.Is(err, department.ErrNotFound) {
					return job.Job{}, serrors.NotFound("department %s not found", dto.DepartmentID).WithCause(err)
				}
				return job.Job{}, err
			}
		}

		draft, err := job.New(tenantID, dto.CustomerID, dto.Title, dto.Description, dto.BasePrice, dto.ScheduledAt, actorID)
		if err != nil {
			return job.Job{}, serrors.InvalidArgument("invalid job payload").WithCause(err)
		}
		if dto.DepartmentID != uuid.Nil {
			draft = draft.WithDepartment(dto.DepartmentID)
		}

		created, err := s.repo.Create(txCtx, draft)
		if err != nil {
			return job.Job{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "job.created",
			ResourceType: jobResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return job.Job{}, err
		}
		return created, nil
	})
	if err != nil {
		return job.Job{}, err
	}

	s.publisher.Publish(&job.CreatedEvent{Result: created})
	return created, nil
}

func (s *JobService) Update(ctx context.Context, id uuid.UUID, patch job.Patch) (job.Job, error) {
	if patch.Empty() {
		return job.Job{}, serrors.InvalidArgument("no valid fields to update")
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if current.Status().Terminal() {
		return job.Job{}, serrors.Conflict("job %s is %s and can no longer change", id, current.Status())
	}

	next := current
	if patch.Title != nil || patch.Description != nil {
		title, description := next.Title(), next.Description()
		if patch.Title != nil {
			title = *patch.Title
		}
		if patch.Description != nil {
			description = *patch.Description
		}
		next = next.WithDetails(title, description)
	}
	if patch.ClearSchedule && patch.ScheduledAt != nil {
		return job.Job{}, serrors.InvalidArgument("cannot set and clear the schedule in one update")
	}
	if patch.ClearSchedule {
		next = next.WithSchedule(nil)
	} else if patch.ScheduledAt != nil {
		next = next.WithSchedule(patch.ScheduledAt)
	}

	role := composables.UseRole(ctx)
	if patch.BasePrice != nil || patch.Discount != nil {
		basePrice, discount := next.BasePrice(), next.Discount()
		if patch.BasePrice != nil {
			if !s.policies.CanOverridePrice(role) {
				return job.Job{}, serrors.Forbidden("role %s may not override the base price", role)
			}
			basePrice = *patch.BasePrice
		}
		if patch.Discount != nil {
			discount = *patch.Discount
		}

		repriced, err := next.WithPricing(basePrice, discount)
		if err != nil {
			return job.Job{}, serrors.InvalidArgument("invalid pricing").WithCause(err)
		}

		limit, err := s.policies.MaxDiscountPercent(ctx, role)
		if err != nil {
			return job.Job{}, err
		}
		if repriced.DiscountPercent().GreaterThan(limit) {
			return job.Job{}, serrors.Forbidden(
				"discount %s%% exceeds the %s%% limit for role %s",
				repriced.DiscountPercent().StringFixed(1), limit.String(), role,
			)
		}
		next = repriced
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (job.Job, error) {
		if patch.DepartmentID != nil && *patch.DepartmentID != uuid.Nil {
			if _, err := s.departments.GetByID(txCtx, *patch.DepartmentID); err != nil {
				if errors.Is(err, department.ErrNotFound) {
					return job.Job{}, serrors.NotFound("department %s not found", *patch.DepartmentID).WithCause(err)
				}
				return job.Job{}, err
			}
			next = next.WithDepartment(*patch.DepartmentID)
		}

		updated, err := s.repo.Update(txCtx, next)
		if err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return job.Job{}, serrors.NotFound("job %s not found", id).WithCause(err)
			}
			return job.Job{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "job.updated",
			ResourceType: jobResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return job.Job{}, err
		}
		return updated, nil
	})
	if err != nil {
		return job.Job{}, err
	}

	s.publisher.Publish(&job.UpdatedEvent{Result: updated})
	return updated, nil
}

// UpdateStatus moves the job through the status machine, appending one
// history row per transition. started_at and completed_at stamp on the first
// entry into their states and never move afterwards.
func (s *JobService) UpdateStatus(ctx context.Context, id uuid.UUID, to job.Status, notes string) (job.Job, error) {
	if !to.Valid() {
		return job.Job{}, serrors.InvalidArgument("unknown job status %q", to)
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (job.Job, error) {
		return s.transition(txCtx, current, to, actorID, notes)
	})
	if err != nil {
		return job.Job{}, err
	}

	s.publisher.Publish(&job.StatusChangedEvent{From: current.Status(), To: to, Result: updated})
	return updated, nil
}

// transition runs inside an existing transaction.
func (s *JobService) transition(txCtx context.Context, current job.Job, to job.Status, actorID uuid.UUID, notes string) (job.Job, error) {
	from := current.Status()
	if !from.CanTransition(to) {
		return job.Job{}, serrors.InvalidArgument("cannot move job from %s to %s", from, to)
	}

	var startedAt, completedAt *time.Time
	now := time.Now().UTC()
	if to == job.StatusInProgress && current.StartedAt() == nil {
		startedAt = &now
	}
	if to == job.StatusCompleted && current.CompletedAt() == nil {
		completedAt = &now
	}

	updated, err := s.repo.UpdateStatus(txCtx, current.ID(), to, startedAt, completedAt)
	if err != nil {
		if errors.Is(err, job.ErrNotFound) {
			return job.Job{}, serrors.NotFound("job %s not found", current.ID()).WithCause(err)
		}
		return job.Job{}, err
	}

	if _, err := s.history.Insert(txCtx, jobhistory.Entry{
		JobID:     current.ID(),
		From:      from,
		To:        to,
		ChangedBy: actorID,
		Notes:     notes,
	}); err != nil {
		return job.Job{}, err
	}

	if err := s.audit.Record(txCtx, auditlog.Change{
		Action:       "job.status_changed",
		ResourceType: jobResource,
		ResourceID:   current.ID(),
		Old:          current.Snapshot(),
		New:          updated.Snapshot(),
	}); err != nil {
		return job.Job{}, err
	}
	return updated, nil
}

func (s *JobService) Delete(ctx context.Context, id uuid.UUID) (job.Job, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}

	deleted, err := composables.InTxResult(ctx, func(txCtx context.Context) (job.Job, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return job.Job{}, serrors.NotFound("job %s not found", id).WithCause(err)
			}
			return job.Job{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "job.deleted",
			ResourceType: jobResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          deleted.Snapshot(),
		}); err != nil {
			return job.Job{}, err
		}
		return deleted, nil
	})
	if err != nil {
		return job.Job{}, err
	}

	s.publisher.Publish(&job.DeletedEvent{Result: deleted})
	return deleted, nil
}

// RouteJob assigns a pending job to a department using the tenant's routing
// rules. The first active rule, by ascending priority, whose keyword matches
// the title or description wins; the assignment then goes through the normal
// status machine.
func (s *JobService) RouteJob(ctx context.Context, id uuid.UUID) (job.Job, error) {
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return job.Job{}, err
	}
	if current.Status() != job.StatusPending {
		return job.Job{}, serrors.Conflict("job %s is %s, only pending jobs can be routed", id, current.Status())
	}

	routed, err := composables.InTxResult(ctx, func(txCtx context.Context) (job.Job, error) {
		rules, err := s.rules.ListActive(txCtx)
		if err != nil {
			return job.Job{}, err
		}

		var matched *routing.Rule
		text := current.Title() + " " + current.Description()
		for i := range rules {
			if rules[i].Matches(text) {
				matched = &rules[i]
				break
			}
		}
		if matched == nil {
			return job.Job{}, serrors.NotFound("no routing rule matches job %s", id)
		}

		assigned, err := s.repo.Update(txCtx, current.WithDepartment(matched.DepartmentID))
		if err != nil {
			return job.Job{}, err
		}
		return s.transition(txCtx, assigned, job.StatusAssigned, actorID, "auto-routed on keyword "+matched.Keyword)
	})
	if err != nil {
		return job.Job{}, err
	}

	s.publisher.Publish(&job.StatusChangedEvent{From: job.StatusPending, To: job.StatusAssigned, Result: routed})
	return routed, nil
}

// AddRoutingRule registers a keyword rule for the tenant. Priority 0 beats
// priority 1.
func (s *JobService) AddRoutingRule(ctx context.Context, keyword string, departmentID uuid.UUID, priority int) (routing.Rule, error) {
	if keyword == "" {
		return routing.Rule{}, serrors.InvalidArgument("routing keyword is required")
	}
	if priority < 0 {
		return routing.Rule{}, serrors.InvalidArgument("routing priority must not be negative")
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (routing.Rule, error) {
		if _, err := s.departments.GetByID(txCtx, departmentID); err != nil {
			if errors.Is(err, department.ErrNotFound) {
				return routing.Rule{}, serrors.NotFound("department %s not found", departmentID).WithCause(err)
			}
			return routing.Rule{}, err
		}
		return s.rules.Create(txCtx, routing.Rule{
			Keyword:      keyword,
			DepartmentID: departmentID,
			Priority:     priority,
		})
	})
}

// DisableRoutingRule retires a rule without losing the record of it.
func (s *JobService) DisableRoutingRule(ctx context.Context, id uuid.UUID) (routing.Rule, error) {
	rule, err := composables.InTxResult(ctx, func(txCtx context.Context) (routing.Rule, error) {
		return s.rules.Deactivate(txCtx, id)
	})
	if err != nil {
		if errors.Is(err, routing.ErrNotFound) {
			return routing.Rule{}, serrors.NotFound("routing rule %s not found", id).WithCause(err)
		}
		return routing.Rule{}, err
	}
	return rule, nil
}
