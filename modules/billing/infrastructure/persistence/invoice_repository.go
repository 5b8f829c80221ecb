package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/fieldrow/fieldrow/modules/billing/domain/aggregates/invoice"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const invoiceColumns = `id, tenant_id, job_id, customer_id, number, currency, tax_rate, status, issued_at, paid_at, created_by, created_at, updated_at`

type InvoiceRepository struct{}

func NewInvoiceRepository() invoice.Repository {
	return &InvoiceRepository{}
}

func (r *InvoiceRepository) GetByID(ctx context.Context, id uuid.UUID) (invoice.Invoice, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	header, err := scanInvoiceHeader(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Invoice{}, invoice.ErrNotFound
		}
		return invoice.Invoice{}, err
	}

	items, err := r.lineItems(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}
	return header.build(items), nil
}

func (r *InvoiceRepository) GetPaginated(ctx context.Context, params *invoice.FindParams) ([]invoice.Invoice, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := buildInvoiceFilters(params, tenantID)
	query := repo.Join(
		`SELECT `+invoiceColumns+` FROM invoices`,
		`WHERE `+where.Where(),
		`ORDER BY created_at DESC`,
	)
	if params != nil {
		query = repo.Join(query, repo.FormatLimitOffset(params.Limit, params.Offset))
	}

	rows, err := tx.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var headers []invoiceHeader
	for rows.Next() {
		header, err := scanInvoiceHeader(rows)
		if err != nil {
			return nil, 0, err
		}
		headers = append(headers, header)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	results := make([]invoice.Invoice, 0, len(headers))
	for _, header := range headers {
		items, err := r.lineItems(ctx, header.id)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, header.build(items))
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM invoices WHERE `+where.Where(),
		where.Args()...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *InvoiceRepository) Create(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO invoices (tenant_id, job_id, customer_id, number, currency, tax_rate, status, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+invoiceColumns+`
	`,
		tenantID,
		inv.JobID(),
		inv.CustomerID(),
		inv.Number(),
		inv.Currency(),
		inv.TaxRate(),
		string(inv.Status()),
		inv.CreatedBy(),
	)

	header, err := scanInvoiceHeader(row)
	if err != nil {
		if isUniqueViolation(err) {
			return invoice.Invoice{}, invoice.ErrNumberTaken
		}
		return invoice.Invoice{}, gerrors.Wrap(err, "create invoice")
	}

	items, err := r.insertLineItems(ctx, tenantID, header.id, inv.LineItems())
	if err != nil {
		return invoice.Invoice{}, err
	}
	return header.build(items), nil
}

func (r *InvoiceRepository) Update(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE invoices
		SET tax_rate = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+invoiceColumns+`
	`, tenantID, inv.ID(), inv.TaxRate())

	header, err := scanInvoiceHeader(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Invoice{}, invoice.ErrNotFound
		}
		return invoice.Invoice{}, gerrors.Wrap(err, "update invoice")
	}

	// Replace, don't merge: the draft's items are authoritative.
	if _, err := tx.Exec(ctx,
		`DELETE FROM invoice_line_items WHERE tenant_id = $1 AND invoice_id = $2`,
		tenantID, inv.ID(),
	); err != nil {
		return invoice.Invoice{}, err
	}
	items, err := r.insertLineItems(ctx, tenantID, inv.ID(), inv.LineItems())
	if err != nil {
		return invoice.Invoice{}, err
	}
	return header.build(items), nil
}

func (r *InvoiceRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to invoice.Status, issuedAt, paidAt *time.Time) (invoice.Invoice, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return invoice.Invoice{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE invoices
		SET status = $3,
			issued_at = COALESCE(issued_at, $4),
			paid_at = COALESCE(paid_at, $5),
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+invoiceColumns+`
	`, tenantID, id, string(to), issuedAt, paidAt)

	header, err := scanInvoiceHeader(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return invoice.Invoice{}, invoice.ErrNotFound
		}
		return invoice.Invoice{}, gerrors.Wrap(err, "update invoice status")
	}

	items, err := r.lineItems(ctx, id)
	if err != nil {
		return invoice.Invoice{}, err
	}
	return header.build(items), nil
}

func (r *InvoiceRepository) ExistsForJob(ctx context.Context, jobID uuid.UUID) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices
			WHERE tenant_id = $1 AND job_id = $2 AND status <> 'void'
		)
	`, tenantID, jobID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *InvoiceRepository) NumberExists(ctx context.Context, number string) (bool, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}

	var exists bool
	if err := tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM invoices WHERE tenant_id = $1 AND number = $2
		)
	`, tenantID, number).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (r *InvoiceRepository) lineItems(ctx context.Context, invoiceID uuid.UUID) ([]invoice.LineItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT id, description, quantity, unit_price
		FROM invoice_line_items
		WHERE tenant_id = $1 AND invoice_id = $2
		ORDER BY position ASC
	`, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []invoice.LineItem
	for rows.Next() {
		var li invoice.LineItem
		if err := rows.Scan(&li.ID, &li.Description, &li.Quantity, &li.UnitPrice); err != nil {
			return nil, err
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

func (r *InvoiceRepository) insertLineItems(ctx context.Context, tenantID, invoiceID uuid.UUID, items []invoice.LineItem) ([]invoice.LineItem, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	inserted := make([]invoice.LineItem, 0, len(items))
	for position, li := range items {
		row := tx.QueryRow(ctx, `
			INSERT INTO invoice_line_items (tenant_id, invoice_id, position, description, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, description, quantity, unit_price
		`, tenantID, invoiceID, position, li.Description, li.Quantity, li.UnitPrice)

		var out invoice.LineItem
		if err := row.Scan(&out.ID, &out.Description, &out.Quantity, &out.UnitPrice); err != nil {
			return nil, gerrors.Wrap(err, "insert invoice line item")
		}
		inserted = append(inserted, out)
	}
	return inserted, nil
}

func buildInvoiceFilters(params *invoice.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if params.Status != "" {
		where.Add("status = $%d", string(params.Status))
	}
	if params.CustomerID != uuid.Nil {
		where.Add("customer_id = $%d", params.CustomerID)
	}
	if params.JobID != uuid.Nil {
		where.Add("job_id = $%d", params.JobID)
	}
	if !params.CreatedFrom.IsZero() {
		where.Add("created_at >= $%d", params.CreatedFrom)
	}
	if !params.CreatedTo.IsZero() {
		where.Add("created_at <= $%d", params.CreatedTo)
	}
	return where
}

// invoiceHeader is the invoices row without its line items.
type invoiceHeader struct {
	id         uuid.UUID
	tenantID   uuid.UUID
	jobID      uuid.UUID
	customerID uuid.UUID
	number     string
	currency   string
	taxRate    decimal.Decimal
	status     string
	issuedAt   *time.Time
	paidAt     *time.Time
	createdBy  uuid.UUID
	createdAt  time.Time
	updatedAt  time.Time
}

func (h invoiceHeader) build(items []invoice.LineItem) invoice.Invoice {
	return invoice.Hydrate(
		h.id, h.tenantID, h.jobID, h.customerID, h.number, h.currency, h.taxRate,
		items, invoice.Status(h.status), h.issuedAt, h.paidAt,
		h.createdBy, h.createdAt, h.updatedAt,
	)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoiceHeader(row rowScanner) (invoiceHeader, error) {
	var h invoiceHeader
	if err := row.Scan(
		&h.id, &h.tenantID, &h.jobID, &h.customerID, &h.number, &h.currency,
		&h.taxRate, &h.status, &h.issuedAt, &h.paidAt, &h.createdBy,
		&h.createdAt, &h.updatedAt,
	); err != nil {
		return invoiceHeader{}, err
	}
	return h, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
