package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fieldrow/fieldrow/modules/billing/domain/aggregates/invoice"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const invoiceResource = "invoice"

type InvoiceService struct {
	repo      invoice.Repository
	jobs      job.Repository
	audit     auditlog.Recorder
	publisher eventbus.EventBus
}

func NewInvoiceService(
	repo invoice.Repository,
	jobs job.Repository,
	audit auditlog.Recorder,
	publisher eventbus.EventBus,
) *InvoiceService {
	return &InvoiceService{repo: repo, jobs: jobs, audit: audit, publisher: publisher}
}

func (s *InvoiceService) GetByID(ctx context.Context, id uuid.UUID) (invoice.Invoice, error) {
	inv, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, invoice.ErrNotFound) {
			return invoice.Invoice{}, serrors.NotFound("invoice %s not found", id).WithCause(err)
		}
		return invoice.Invoice{}, err
	}
	return inv, nil
}

func (s *InvoiceService) GetPaginated(ctx context.Context, params *invoice.FindParams) ([]invoice.Invoice, int64, error) {
	return s.repo.GetPaginated(ctx, params)
}

// CreateFromJob opens a draft invoice for a completed job. The job's final
// price becomes the single opening line item; the draft can be reshaped
// freely until it is issued.
func (s *InvoiceService) CreateFromJob(ctx context.Context, jobID uuid.UUID, currency string, taxRate decimal.Decimal) (invoice.Invoice, error) {
	if taxRate.IsNegative() {
		return invoice.Invoice{}, serrors.InvalidArgument("tax rate must not be negative")
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (invoice.Invoice, error) {
		j, err := s.jobs.GetByID(txCtx, jobID)
		if err != nil {
			if errors.Is(err, job.ErrNotFound) {
				return invoice.Invoice{}, serrors.NotFound("job %s not found", jobID).WithCause(err)
			}
			return invoice.Invoice{}, err
		}
		if j.Status() != job.StatusCompleted {
			return invoice.Invoice{}, serrors.Conflict("job %s is %s, only completed jobs can be invoiced", jobID, j.Status())
		}
		billed, err := s.repo.ExistsForJob(txCtx, jobID)
		if err != nil {
			return invoice.Invoice{}, err
		}
		if billed {
			return invoice.Invoice{}, serrors.Conflict("job %s already has an invoice", jobID)
		}

		draft, err := invoice.New(
			tenantID, jobID, j.CustomerID(),
			nextInvoiceNumber(), currency, taxRate,
			[]invoice.LineItem{{
				Description: j.Title(),
				Quantity:    decimal.NewFromInt(1),
				UnitPrice:   j.FinalPrice(),
			}},
			actorID,
		)
		if err != nil {
			return invoice.Invoice{}, serrors.InvalidArgument("invalid invoice").WithCause(err)
		}

		created, err := s.repo.Create(txCtx, draft)
		if err != nil {
			if errors.Is(err, invoice.ErrNumberTaken) {
				return invoice.Invoice{}, serrors.Conflict("invoice number collision, retry").WithCause(err)
			}
			return invoice.Invoice{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "invoice.created",
			ResourceType: invoiceResource,
			ResourceID:   created.ID(),
			New:          created.Snapshot(),
		}); err != nil {
			return invoice.Invoice{}, err
		}
		return created, nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.publisher.Publish(&invoice.CreatedEvent{Result: created})
	return created, nil
}

// UpdateDraft replaces the line items and tax rate of a draft invoice.
// Anything past draft is immutable apart from status.
func (s *InvoiceService) UpdateDraft(ctx context.Context, id uuid.UUID, items []invoice.LineItem, taxRate *decimal.Decimal) (invoice.Invoice, error) {
	if len(items) == 0 && taxRate == nil {
		return invoice.Invoice{}, serrors.InvalidArgument("no valid fields to update")
	}

	current, err := s.GetByID(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if current.Status() != invoice.StatusDraft {
		return invoice.Invoice{}, serrors.Conflict("invoice %s is %s, only drafts can change", id, current.Status())
	}

	next := current
	if len(items) > 0 {
		next, err = next.WithLineItems(items)
		if err != nil {
			return invoice.Invoice{}, serrors.InvalidArgument("invalid line items").WithCause(err)
		}
	}
	if taxRate != nil {
		if taxRate.IsNegative() {
			return invoice.Invoice{}, serrors.InvalidArgument("tax rate must not be negative")
		}
		next, err = next.WithTaxRate(*taxRate)
		if err != nil {
			return invoice.Invoice{}, serrors.InvalidArgument("invalid tax rate").WithCause(err)
		}
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (invoice.Invoice, error) {
		updated, err := s.repo.Update(txCtx, next)
		if err != nil {
			if errors.Is(err, invoice.ErrNotFound) {
				return invoice.Invoice{}, serrors.NotFound("invoice %s not found", id).WithCause(err)
			}
			return invoice.Invoice{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "invoice.updated",
			ResourceType: invoiceResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return invoice.Invoice{}, err
		}
		return updated, nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.publisher.Publish(&invoice.UpdatedEvent{Result: updated})
	return updated, nil
}

func (s *InvoiceService) Issue(ctx context.Context, id uuid.UUID) (invoice.Invoice, error) {
	return s.updateStatus(ctx, id, invoice.StatusIssued)
}

func (s *InvoiceService) MarkPaid(ctx context.Context, id uuid.UUID) (invoice.Invoice, error) {
	return s.updateStatus(ctx, id, invoice.StatusPaid)
}

// Void retires an invoice without deleting the row. The job becomes
// invoiceable again.
func (s *InvoiceService) Void(ctx context.Context, id uuid.UUID) (invoice.Invoice, error) {
	return s.updateStatus(ctx, id, invoice.StatusVoid)
}

func (s *InvoiceService) updateStatus(ctx context.Context, id uuid.UUID, to invoice.Status) (invoice.Invoice, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if !current.Status().CanTransition(to) {
		return invoice.Invoice{}, serrors.InvalidArgument("cannot move invoice from %s to %s", current.Status(), to)
	}

	var issuedAt, paidAt *time.Time
	now := time.Now().UTC()
	if to == invoice.StatusIssued {
		issuedAt = &now
	}
	if to == invoice.StatusPaid {
		paidAt = &now
	}

	updated, err := composables.InTxResult(ctx, func(txCtx context.Context) (invoice.Invoice, error) {
		updated, err := s.repo.UpdateStatus(txCtx, id, to, issuedAt, paidAt)
		if err != nil {
			if errors.Is(err, invoice.ErrNotFound) {
				return invoice.Invoice{}, serrors.NotFound("invoice %s not found", id).WithCause(err)
			}
			return invoice.Invoice{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "invoice." + string(to),
			ResourceType: invoiceResource,
			ResourceID:   id,
			Old:          current.Snapshot(),
			New:          updated.Snapshot(),
		}); err != nil {
			return invoice.Invoice{}, err
		}
		return updated, nil
	})
	if err != nil {
		return invoice.Invoice{}, err
	}

	s.publisher.Publish(&invoice.StatusChangedEvent{From: current.Status(), To: to, Result: updated})
	return updated, nil
}

// nextInvoiceNumber builds a tenant-unique invoice number. The unique index
// on (tenant_id, number) backstops the vanishingly small collision window.
func nextInvoiceNumber() string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("INV-%s-%s", time.Now().UTC().Format("20060102"), suffix)
}
