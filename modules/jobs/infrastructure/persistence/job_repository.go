package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const jobColumns = `id, tenant_id, customer_id, department_id, title, description, scheduled_at, base_price, discount, final_price, status, started_at, completed_at, is_active, created_by, created_at, updated_at`

type JobRepository struct{}

func NewJobRepository() job.Repository {
	return &JobRepository{}
}

func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (job.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return job.Job{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return j, nil
}

func (r *JobRepository) GetPaginated(ctx context.Context, params *job.FindParams) ([]job.Job, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := buildJobFilters(params, tenantID)
	query := repo.Join(
		`SELECT `+jobColumns+` FROM jobs`,
		`WHERE `+where.Where(),
		buildJobOrder(params),
	)
	if params != nil {
		query = repo.Join(query, repo.FormatLimitOffset(params.Limit, params.Offset))
	}

	rows, err := tx.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var results []job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, j)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM jobs WHERE `+where.Where(),
		where.Args()...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *JobRepository) Create(ctx context.Context, j job.Job) (job.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return job.Job{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO jobs (tenant_id, customer_id, department_id, title, description, scheduled_at, base_price, discount, final_price, status, is_active, created_by)
		VALUES ($1, $2, NULLIF($3, '00000000-0000-0000-0000-000000000000'::uuid), $4, $5, $6, $7, $8, $9, $10, true, $11)
		RETURNING `+jobColumns+`
	`,
		tenantID,
		j.CustomerID(),
		j.DepartmentID(),
		j.Title(),
		j.Description(),
		j.ScheduledAt(),
		j.BasePrice(),
		j.Discount(),
		j.FinalPrice(),
		string(j.Status()),
		j.CreatedBy(),
	)

	created, err := scanJob(row)
	if err != nil {
		return job.Job{}, gerrors.Wrap(err, "create job")
	}
	return created, nil
}

// Update writes the full mutable row. Pricing invariants are enforced on the
// aggregate before the write, so all three price columns travel together.
func (r *JobRepository) Update(ctx context.Context, updated job.Job) (job.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return job.Job{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs
		SET customer_id = $3,
			department_id = NULLIF($4, '00000000-0000-0000-0000-000000000000'::uuid),
			title = $5,
			description = $6,
			scheduled_at = $7,
			base_price = $8,
			discount = $9,
			final_price = $10,
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+jobColumns+`
	`,
		tenantID,
		updated.ID(),
		updated.CustomerID(),
		updated.DepartmentID(),
		updated.Title(),
		updated.Description(),
		updated.ScheduledAt(),
		updated.BasePrice(),
		updated.Discount(),
		updated.FinalPrice(),
	)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, gerrors.Wrap(err, "update job")
	}
	return j, nil
}

// UpdateStatus writes only the status and the lifecycle stamps. Stamps come
// in already resolved: nil leaves the stored value untouched.
func (r *JobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, to job.Status, startedAt, completedAt *time.Time) (job.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return job.Job{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs
		SET status = $3,
			started_at = COALESCE(started_at, $4),
			completed_at = COALESCE(completed_at, $5),
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+jobColumns+`
	`, tenantID, id, string(to), startedAt, completedAt)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, gerrors.Wrap(err, "update job status")
	}
	return j, nil
}

func (r *JobRepository) Deactivate(ctx context.Context, id uuid.UUID) (job.Job, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return job.Job{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return job.Job{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE jobs
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+jobColumns+`
	`, tenantID, id)

	j, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return job.Job{}, job.ErrNotFound
		}
		return job.Job{}, err
	}
	return j, nil
}

func buildJobFilters(params *job.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if q := strings.TrimSpace(params.Q); q != "" {
		pattern := "%" + q + "%"
		idx := where.NextIndex()
		where.Add("(title ILIKE $%d OR description ILIKE $"+itoa(idx)+")", pattern)
	}
	if params.Status != "" {
		where.Add("status = $%d", string(params.Status))
	}
	if params.CustomerID != uuid.Nil {
		where.Add("customer_id = $%d", params.CustomerID)
	}
	if params.DepartmentID != uuid.Nil {
		where.Add("department_id = $%d", params.DepartmentID)
	}
	if params.Active != nil {
		where.Add("is_active = $%d", *params.Active)
	}
	if !params.ScheduledFrom.IsZero() {
		where.Add("scheduled_at >= $%d", params.ScheduledFrom)
	}
	if !params.ScheduledTo.IsZero() {
		where.Add("scheduled_at <= $%d", params.ScheduledTo)
	}
	return where
}

var jobSortColumns = map[job.SortField]string{
	job.SortFieldCreatedAt:   "created_at",
	job.SortFieldScheduledAt: "scheduled_at",
	job.SortFieldTitle:       "title",
}

// buildJobOrder renders the caller's sort, falling back to newest-first.
func buildJobOrder(params *job.FindParams) string {
	if params != nil {
		if order := repo.OrderBy(params.SortBy, jobSortColumns); order != "" {
			return order
		}
	}
	return "ORDER BY created_at DESC"
}

func scanJob(row rowScanner) (job.Job, error) {
	var (
		id           uuid.UUID
		tenantID     uuid.UUID
		customerID   uuid.UUID
		departmentID *uuid.UUID
		title        string
		description  string
		scheduledAt  *time.Time
		basePrice    decimal.Decimal
		discount     decimal.Decimal
		finalPrice   decimal.Decimal
		status       string
		startedAt    *time.Time
		completedAt  *time.Time
		isActive     bool
		createdBy    uuid.UUID
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(
		&id, &tenantID, &customerID, &departmentID, &title, &description,
		&scheduledAt, &basePrice, &discount, &finalPrice, &status,
		&startedAt, &completedAt, &isActive, &createdBy, &createdAt, &updatedAt,
	); err != nil {
		return job.Job{}, err
	}

	deptID := uuid.Nil
	if departmentID != nil {
		deptID = *departmentID
	}
	return job.Hydrate(
		id, tenantID, customerID, deptID, title, description, scheduledAt,
		basePrice, discount, finalPrice, job.Status(status),
		startedAt, completedAt, isActive, createdBy, createdAt, updatedAt,
	), nil
}
