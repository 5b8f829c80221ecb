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

	"github.com/fieldrow/fieldrow/modules/core/domain/aggregates/user"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/policy"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const userColumns = `id, tenant_id, email, first_name, last_name, role, password_digest, is_active, created_at, updated_at`

type UserRepository struct{}

func NewUserRepository() user.Repository {
	return &UserRepository{}
}

func (r *UserRepository) GetByID(ctx context.Context, id uuid.UUID) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+userColumns+`
		FROM users
		WHERE tenant_id = $1 AND lower(email) = lower($2)
	`, tenantID, email)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UserRepository) GetPaginated(ctx context.Context, params *user.FindParams) ([]user.User, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := buildUserFilters(params, tenantID)
	query := repo.Join(
		`SELECT `+userColumns+` FROM users`,
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

	var results []user.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE `+where.Where(),
		where.Args()...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *UserRepository) Create(ctx context.Context, u user.User) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO users (tenant_id, email, first_name, last_name, role, password_digest, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING `+userColumns+`
	`,
		tenantID,
		u.Email(),
		u.FirstName(),
		u.LastName(),
		string(u.Role()),
		u.PasswordDigest(),
	)

	created, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, gerrors.Wrap(err, "create user")
	}
	return created, nil
}

func (r *UserRepository) Update(ctx context.Context, id uuid.UUID, patch user.Patch) (user.User, error) {
	if patch.Empty() {
		return user.User{}, user.ErrNoFieldsToUpdate
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	set := buildUserPatch(patch)
	args := append(set.Args(), tenantID, id)
	query := `
		UPDATE users
		SET ` + set.Set() + `
		WHERE tenant_id = $` + itoa(set.NextIndex()) + ` AND id = $` + itoa(set.NextIndex()+1) + `
		RETURNING ` + userColumns

	row := tx.QueryRow(ctx, query, args...)
	updated, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, gerrors.Wrap(err, "update user")
	}
	return updated, nil
}

func (r *UserRepository) SetPasswordDigest(ctx context.Context, id uuid.UUID, digest string) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE users
		SET password_digest = $3, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id, digest)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return user.ErrNotFound
	}
	return nil
}

func (r *UserRepository) Deactivate(ctx context.Context, id uuid.UUID) (user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return user.User{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return user.User{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE users
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+userColumns+`
	`, tenantID, id)

	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, err
	}
	return u, nil
}

func (r *UserRepository) EmailExists(ctx context.Context, email string, excludeID uuid.UUID) (bool, error) {
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
			SELECT 1 FROM users
			WHERE tenant_id = $1 AND lower(email) = lower($2) AND id <> $3
		)
	`, tenantID, email, excludeID).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func buildUserFilters(params *user.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if q := strings.TrimSpace(params.Q); q != "" {
		pattern := "%" + q + "%"
		idx := where.NextIndex()
		where.Add("(first_name ILIKE $%d OR last_name ILIKE $"+itoa(idx)+" OR email ILIKE $"+itoa(idx)+")", pattern)
	}
	if params.Role != "" {
		where.Add("role = $%d", string(params.Role))
	}
	if params.Active != nil {
		where.Add("is_active = $%d", *params.Active)
	}
	return where
}

func buildUserPatch(patch user.Patch) *repo.Clauses {
	set := repo.NewClauses(1)
	if patch.FirstName != nil {
		set.Add("first_name = $%d", *patch.FirstName)
	}
	if patch.LastName != nil {
		set.Add("last_name = $%d", *patch.LastName)
	}
	if patch.Role != nil {
		set.Add("role = $%d", string(*patch.Role))
	}
	set.AddRaw("updated_at = now()")
	return set
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (user.User, error) {
	var (
		id             uuid.UUID
		tenantID       uuid.UUID
		email          string
		firstName      string
		lastName       string
		role           string
		passwordDigest string
		isActive       bool
		createdAt      time.Time
		updatedAt      time.Time
	)
	if err := row.Scan(
		&id, &tenantID, &email, &firstName, &lastName, &role,
		&passwordDigest, &isActive, &createdAt, &updatedAt,
	); err != nil {
		return user.User{}, err
	}
	return user.Hydrate(
		id, tenantID, email, firstName, lastName, policy.Role(role),
		passwordDigest, isActive, createdAt, updatedAt,
	), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func itoa(n int) string { return strconv.Itoa(n) }
