package persistence

import (
	"context"
	"errors"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/branch"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

const branchColumns = `id, tenant_id, name, address, is_active, created_by, created_at, updated_at`
const assignmentColumns = `id, tenant_id, user_id, branch_id, is_primary, created_at, updated_at`

type BranchRepository struct{}

func NewBranchRepository() branch.Repository {
	return &BranchRepository{}
}

func (r *BranchRepository) GetByID(ctx context.Context, id uuid.UUID) (branch.Branch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return branch.Branch{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return branch.Branch{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+branchColumns+`
		FROM branches
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branch.Branch{}, branch.ErrNotFound
		}
		return branch.Branch{}, err
	}
	return b, nil
}

func (r *BranchRepository) GetAll(ctx context.Context) ([]branch.Branch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+branchColumns+`
		FROM branches
		WHERE tenant_id = $1
		ORDER BY name ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []branch.Branch
	for rows.Next() {
		b, err := scanBranch(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, b)
	}
	return results, rows.Err()
}

func (r *BranchRepository) Create(ctx context.Context, b branch.Branch) (branch.Branch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return branch.Branch{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return branch.Branch{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO branches (tenant_id, name, address, is_active, created_by)
		VALUES ($1, $2, $3, true, $4)
		RETURNING `+branchColumns+`
	`, tenantID, b.Name(), b.Address(), b.CreatedBy())

	created, err := scanBranch(row)
	if err != nil {
		return branch.Branch{}, gerrors.Wrap(err, "create branch")
	}
	return created, nil
}

func (r *BranchRepository) Deactivate(ctx context.Context, id uuid.UUID) (branch.Branch, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return branch.Branch{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return branch.Branch{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE branches
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+branchColumns+`
	`, tenantID, id)

	b, err := scanBranch(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return branch.Branch{}, branch.ErrNotFound
		}
		return branch.Branch{}, err
	}
	return b, nil
}

func (r *BranchRepository) AssignUser(ctx context.Context, userID, branchID uuid.UUID) (branch.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return branch.Assignment{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return branch.Assignment{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO user_branch_assignments (tenant_id, user_id, branch_id, is_primary)
		VALUES ($1, $2, $3, false)
		ON CONFLICT (tenant_id, user_id, branch_id)
		DO UPDATE SET updated_at = now()
		RETURNING `+assignmentColumns+`
	`, tenantID, userID, branchID)

	return scanAssignment(row)
}

// SetPrimary clears the previous primary flag and promotes the given
// assignment in one transaction. The partial unique index on
// (tenant_id, user_id) WHERE is_primary backstops the invariant under
// concurrent writers: the slower transaction fails on the index instead of
// leaving two primaries.
func (r *BranchRepository) SetPrimary(ctx context.Context, userID, branchID uuid.UUID) (branch.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return branch.Assignment{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return branch.Assignment{}, err
	}

	if _, err := tx.Exec(ctx, `
		UPDATE user_branch_assignments
		SET is_primary = false, updated_at = now()
		WHERE tenant_id = $1 AND user_id = $2 AND is_primary = true
	`, tenantID, userID); err != nil {
		return branch.Assignment{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO user_branch_assignments (tenant_id, user_id, branch_id, is_primary)
		VALUES ($1, $2, $3, true)
		ON CONFLICT (tenant_id, user_id, branch_id)
		DO UPDATE SET is_primary = true, updated_at = now()
		RETURNING `+assignmentColumns+`
	`, tenantID, userID, branchID)

	a, err := scanAssignment(row)
	if err != nil {
		return branch.Assignment{}, gerrors.Wrap(err, "set primary branch")
	}
	return a, nil
}

func (r *BranchRepository) ListUserAssignments(ctx context.Context, userID uuid.UUID) ([]branch.Assignment, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+assignmentColumns+`
		FROM user_branch_assignments
		WHERE tenant_id = $1 AND user_id = $2
		ORDER BY is_primary DESC, created_at ASC
	`, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []branch.Assignment
	for rows.Next() {
		a, err := scanAssignment(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, a)
	}
	return results, rows.Err()
}

func scanBranch(row rowScanner) (branch.Branch, error) {
	var (
		id        uuid.UUID
		tenantID  uuid.UUID
		name      string
		address   string
		isActive  bool
		createdBy uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(&id, &tenantID, &name, &address, &isActive, &createdBy, &createdAt, &updatedAt); err != nil {
		return branch.Branch{}, err
	}
	return branch.Hydrate(id, tenantID, name, address, isActive, createdBy, createdAt, updatedAt), nil
}

func scanAssignment(row rowScanner) (branch.Assignment, error) {
	var a branch.Assignment
	if err := row.Scan(&a.ID, &a.TenantID, &a.UserID, &a.BranchID, &a.IsPrimary, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return branch.Assignment{}, err
	}
	return a, nil
}
