package persistence

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fieldrow/fieldrow/modules/crm/domain/aggregates/customer"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const customerColumns = `id, tenant_id, first_name, last_name, email, phone, address, notes, is_active, created_by, created_at, updated_at`

type CustomerRepository struct{}

func NewCustomerRepository() customer.Repository {
	return &CustomerRepository{}
}

func (r *CustomerRepository) GetByID(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+customerColumns+`
		FROM customers
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.Customer{}, customer.ErrNotFound
		}
		return customer.Customer{}, err
	}
	return c, nil
}

func (r *CustomerRepository) GetPaginated(ctx context.Context, params *customer.FindParams) ([]customer.Customer, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := buildCustomerFilters(params, tenantID)
	query := repo.Join(
		`SELECT `+customerColumns+` FROM customers`,
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

	var results []customer.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM customers WHERE `+where.Where(),
		where.Args()...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *CustomerRepository) Create(ctx context.Context, c customer.Customer) (customer.Customer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO customers (tenant_id, first_name, last_name, email, phone, address, notes, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, true, $8)
		RETURNING `+customerColumns+`
	`,
		tenantID,
		c.FirstName(),
		c.LastName(),
		c.Email(),
		c.Phone(),
		c.Address(),
		c.Notes(),
		c.CreatedBy(),
	)

	created, err := scanCustomer(row)
	if err != nil {
		if isUniqueViolation(err) {
			return customer.Customer{}, customer.ErrEmailTaken
		}
		return customer.Customer{}, gerrors.Wrap(err, "create customer")
	}
	return created, nil
}

func (r *CustomerRepository) Update(ctx context.Context, id uuid.UUID, patch customer.Patch) (customer.Customer, error) {
	if patch.Empty() {
		return customer.Customer{}, customer.ErrNoFieldsToUpdate
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	set := buildCustomerPatch(patch)
	args := append(set.Args(), tenantID, id)
	query := `
		UPDATE customers
		SET ` + set.Set() + `
		WHERE tenant_id = $` + itoa(set.NextIndex()) + ` AND id = $` + itoa(set.NextIndex()+1) + `
		RETURNING ` + customerColumns

	row := tx.QueryRow(ctx, query, args...)
	updated, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.Customer{}, customer.ErrNotFound
		}
		if isUniqueViolation(err) {
			return customer.Customer{}, customer.ErrEmailTaken
		}
		return customer.Customer{}, gerrors.Wrap(err, "update customer")
	}
	return updated, nil
}

func (r *CustomerRepository) Deactivate(ctx context.Context, id uuid.UUID) (customer.Customer, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return customer.Customer{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return customer.Customer{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE customers
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+customerColumns+`
	`, tenantID, id)

	c, err := scanCustomer(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return customer.Customer{}, customer.ErrNotFound
		}
		return customer.Customer{}, err
	}
	return c, nil
}

func (r *CustomerRepository) EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
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
			SELECT 1 FROM customers
			WHERE tenant_id = $1 AND lower(email) = lower($2) AND id <> $3
		)
	`, tenantID, email, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func buildCustomerFilters(params *customer.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if q := strings.TrimSpace(params.Q); q != "" {
		pattern := "%" + q + "%"
		idx := where.NextIndex()
		where.Add(
			"(first_name ILIKE $%d OR last_name ILIKE $"+itoa(idx)+" OR email ILIKE $"+itoa(idx)+" OR phone ILIKE $"+itoa(idx)+")",
			pattern,
		)
	}
	if params.Active != nil {
		where.Add("is_active = $%d", *params.Active)
	}
	if params.CreatedFrom != nil && !params.CreatedFrom.IsZero() {
		where.Add("created_at >= $%d", *params.CreatedFrom)
	}
	if params.CreatedTo != nil && !params.CreatedTo.IsZero() {
		where.Add("created_at <= $%d", *params.CreatedTo)
	}
	return where
}

func buildCustomerPatch(patch customer.Patch) *repo.Clauses {
	set := repo.NewClauses(1)
	if patch.FirstName != nil {
		set.Add("first_name = $%d", *patch.FirstName)
	}
	if patch.LastName != nil {
		set.Add("last_name = $%d", *patch.LastName)
	}
	if patch.Email != nil {
		set.Add("email = $%d", *patch.Email)
	}
	if patch.Phone != nil {
		set.Add("phone = $%d", *patch.Phone)
	}
	if patch.Address != nil {
		set.Add("address = $%d", *patch.Address)
	}
	if patch.Notes != nil {
		set.Add("notes = $%d", *patch.Notes)
	}
	set.AddRaw("updated_at = now()")
	return set
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (customer.Customer, error) {
	var (
		id        uuid.UUID
		tenantID  uuid.UUID
		firstName string
		lastName  string
		email     string
		phone     string
		address   string
		notes     string
		isActive  bool
		createdBy uuid.UUID
		createdAt time.Time
		updatedAt time.Time
	)
	if err := row.Scan(
		&id, &tenantID, &firstName, &lastName, &email, &phone,
		&address, &notes, &isActive, &createdBy, &createdAt, &updatedAt,
	); err != nil {
		return customer.Customer{}, err
	}

	return customer.Hydrate(
		id, tenantID, firstName, lastName, email, phone, address, notes,
		isActive, createdBy, createdAt, updatedAt,
	), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func itoa(n int) string { return strconv.Itoa(n) }
