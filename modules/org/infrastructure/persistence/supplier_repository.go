package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldrow/fieldrow/modules/org/domain/aggregates/supplier"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const supplierColumns = `id, tenant_id, code, name, contact_email, contact_phone, is_active, created_by, created_at, updated_at`

type SupplierRepository struct{}

func NewSupplierRepository() supplier.Repository {
	return &SupplierRepository{}
}

func (r *SupplierRepository) GetByID(ctx context.Context, id uuid.UUID) (supplier.Supplier, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+supplierColumns+`
		FROM suppliers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	s, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return supplier.Supplier{}, supplier.ErrNotFound
		}
		return supplier.Supplier{}, err
	}
	return s, nil
}

func (r *SupplierRepository) GetAll(ctx context.Context, params *supplier.FindParams) ([]supplier.Supplier, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params != nil {
		if q := strings.TrimSpace(params.Q); q != "" {
			idx := where.NextIndex()
			where.Add("(code ILIKE $%d OR name ILIKE $"+itoa(idx)+")", "%"+q+"%")
		}
		if params.Active != nil {
			where.Add("is_active = $%d", *params.Active)
		}
	}

	query := repo.Join(
		`SELECT `+supplierColumns+` FROM suppliers`,
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

	var results []supplier.Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, s)
	}
	return results, rows.Err()
}

func (r *SupplierRepository) Create(ctx context.Context, s supplier.Supplier) (supplier.Supplier, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO suppliers (tenant_id, code, name, contact_email, contact_phone, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, true, $6)
		RETURNING `+supplierColumns+`
	`, tenantID, s.Code(), s.Name(), s.ContactEmail(), s.ContactPhone(), s.CreatedBy())

	created, err := scanSupplier(row)
	if err != nil {
		if isUniqueViolation(err) {
			return supplier.Supplier{}, supplier.ErrCodeTaken
		}
		return supplier.Supplier{}, gerrors.Wrap(err, "create supplier")
	}
	return created, nil
}

func (r *SupplierRepository) Update(ctx context.Context, id uuid.UUID, patch supplier.Patch) (supplier.Supplier, error) {
	if patch.Empty() {
		return supplier.Supplier{}, supplier.ErrNoFieldsToUpdate
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}

	set := repo.NewClauses(1)
	if patch.Name != nil {
		set.Add("name = $%d", strings.TrimSpace(*patch.Name))
	}
	if patch.ContactEmail != nil {
		set.Add("contact_email = $%d", strings.ToLower(strings.TrimSpace(*patch.ContactEmail)))
	}
	if patch.ContactPhone != nil {
		set.Add("contact_phone = $%d", strings.TrimSpace(*patch.ContactPhone))
	}
	set.AddRaw("updated_at = now()")

	args := append(set.Args(), tenantID, id)
	row := tx.QueryRow(ctx, `
		UPDATE suppliers
		SET `+set.Set()+`
		WHERE tenant_id = $`+itoa(set.NextIndex())+` AND id = $`+itoa(set.NextIndex()+1)+`
		RETURNING `+supplierColumns,
		args...,
	)

	updated, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return supplier.Supplier{}, supplier.ErrNotFound
		}
		return supplier.Supplier{}, gerrors.Wrap(err, "update supplier")
	}
	return updated, nil
}

func (r *SupplierRepository) Deactivate(ctx context.Context, id uuid.UUID) (supplier.Supplier, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return supplier.Supplier{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE suppliers
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+supplierColumns+`
	`, tenantID, id)

	s, err := scanSupplier(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return supplier.Supplier{}, supplier.ErrNotFound
		}
		return supplier.Supplier{}, err
	}
	return s, nil
}

func (r *SupplierRepository) CodeExists(ctx context.Context, code string) (bool, error) {
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
			SELECT 1 FROM suppliers WHERE tenant_id = $1 AND code = upper($2)
		)
	`, tenantID, code).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func scanSupplier(row rowScanner) (supplier.Supplier, error) {
	var (
		id           uuid.UUID
		tenantID     uuid.UUID
		code         string
		name         string
		contactEmail string
		contactPhone string
		isActive     bool
		createdBy    uuid.UUID
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(&id, &tenantID, &code, &name, &contactEmail, &contactPhone, &isActive, &createdBy, &createdAt, &updatedAt); err != nil {
		return supplier.Supplier{}, err
	}
	return supplier.Hydrate(id, tenantID, code, name, contactEmail, contactPhone, isActive, createdBy, createdAt, updatedAt), nil
}
