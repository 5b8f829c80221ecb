package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/department"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const departmentColumns = `id, tenant_id, name, description, is_active, created_by, created_at, updated_at`

type DepartmentRepository struct{}

func NewDepartmentRepository() department.Repository {
	return &DepartmentRepository{}
}

func (r *DepartmentRepository) GetByID(ctx context.Context, id uuid.UUID) (department.Department, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return department.Department{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return department.Department{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+departmentColumns+`
		FROM departments
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	d, err := scanDepartment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department.Department{}, department.ErrNotFound
		}
		return department.Department{}, err
	}
	return d, nil
}

func (r *DepartmentRepository) GetAll(ctx context.Context, params *department.FindParams) ([]department.Department, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where := buildDepartmentFilters(params, tenantID)
	query := repo.Join(
		`SELECT `+departmentColumns+` FROM departments`,
		`WHERE `+where.Where(),
		`ORDER BY name ASC`,
	)
	if params != nil {
		query = repo.Join(query, repo.FormatLimitOffset(params.Limit, params.Offset))
	}

	rows, err := tx.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []department.Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, d)
	}
	return results, rows.Err()
}

func (r *DepartmentRepository) Create(ctx context.Context, d department.Department) (department.Department, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return department.Department{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return department.Department{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO departments (tenant_id, name, description, is_active, created_by)
		VALUES ($1, $2, $3, true, $4)
		RETURNING `+departmentColumns+`
	`, tenantID, d.Name(), d.Description(), d.CreatedBy())

	created, err := scanDepartment(row)
	if err != nil {
		if isUniqueViolation(err) {
			return department.Department{}, department.ErrNameTaken
		}
		return department.Department{}, gerrors.Wrap(err, "create department")
	}
	return created, nil
}

func (r *DepartmentRepository) Update(ctx context.Context, id uuid.UUID, patch department.Patch) (department.Department, error) {
	if patch.Empty() {
		return department.Department{}, department.ErrNoFieldsToUpdate
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return department.Department{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return department.Department{}, err
	}

	set := repo.NewClauses(1)
	if patch.Name != nil {
		set.Add("name = $%d", strings.TrimSpace(*patch.Name))
	}
	if patch.Description != nil {
		set.Add("description = $%d", *patch.Description)
	}
	set.AddRaw("updated_at = now()")

	args := append(set.Args(), tenantID, id)
	row := tx.QueryRow(ctx, `
		UPDATE departments
		SET `+set.Set()+`
		WHERE tenant_id = $`+itoa(set.NextIndex())+` AND id = $`+itoa(set.NextIndex()+1)+`
		RETURNING `+departmentColumns,
		args...,
	)

	updated, err := scanDepartment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department.Department{}, department.ErrNotFound
		}
		if isUniqueViolation(err) {
			return department.Department{}, department.ErrNameTaken
		}
		return department.Department{}, gerrors.Wrap(err, "update department")
	}
	return updated, nil
}

func (r *DepartmentRepository) Deactivate(ctx context.Context, id uuid.UUID) (department.Department, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return department.Department{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return department.Department{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE departments
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+departmentColumns+`
	`, tenantID, id)

	d, err := scanDepartment(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return department.Department{}, department.ErrNotFound
		}
		return department.Department{}, err
	}
	return d, nil
}

func (r *DepartmentRepository) NameExists(ctx context.Context, name string, excludeID uuid.UUID) (bool, error) {
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
			SELECT 1 FROM departments
			WHERE tenant_id = $1 AND lower(name) = lower($2) AND id <> $3
		)
	`, tenantID, name, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

// ActiveJobCount counts jobs still routed to the department in a
// non-terminal status. A department cannot be deactivated while this is
// non-zero.
func (r *DepartmentRepository) ActiveJobCount(ctx context.Context, id uuid.UUID) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := tx.QueryRow(ctx, `
		SELECT COUNT(*) FROM jobs
		WHERE tenant_id = $1
		  AND department_id = $2
		  AND is_active = true
		  AND status NOT IN ('completed', 'cancelled')
	`, tenantID, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func buildDepartmentFilters(params *department.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}
	if q := strings.TrimSpace(params.Q); q != "" {
		where.Add("name ILIKE $%d", "%"+q+"%")
	}
	if params.Active != nil {
		where.Add("is_active = $%d", *params.Active)
	}
	return where
}

func scanDepartment(row rowScanner) (department.Department, error) {
	var (
		id          uuid.UUID
		tenantID    uuid.UUID
		name        string
		description string
		isActive    bool
		createdBy   uuid.UUID
		createdAt   time.Time
		updatedAt   time.Time
	)
	if err := row.Scan(&id, &tenantID, &name, &description, &isActive, &createdBy, &createdAt, &updatedAt); err != nil {
		return department.Department{}, err
	}
	return department.Hydrate(id, tenantID, name, description, isActive, createdBy, createdAt, updatedAt), nil
}
