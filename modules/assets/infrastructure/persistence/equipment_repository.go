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

	"github.com/fieldrow/fieldrow/modules/assets/domain/aggregates/equipment"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const equipmentColumns = `id, tenant_id, tag, name, category, purchase_date, status, current_job_id, is_active, created_by, created_at, updated_at`

type EquipmentRepository struct{}

func NewEquipmentRepository() equipment.Repository {
	return &EquipmentRepository{}
}

func (r *EquipmentRepository) GetByID(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+equipmentColumns+`
		FROM equipment
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return equipment.Asset{}, equipment.ErrNotFound
		}
		return equipment.Asset{}, err
	}
	return a, nil
}

func (r *EquipmentRepository) GetPaginated(ctx context.Context, params *equipment.FindParams) ([]equipment.Asset, int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, 0, err
	}

	where := buildEquipmentFilters(params, tenantID)
	query := repo.Join(
		`SELECT `+equipmentColumns+` FROM equipment`,
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

	var results []equipment.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, 0, err
		}
		results = append(results, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM equipment WHERE `+where.Where(),
		where.Args()...,
	).Scan(&total); err != nil {
		return nil, 0, err
	}
	return results, total, nil
}

func (r *EquipmentRepository) Create(ctx context.Context, a equipment.Asset) (equipment.Asset, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO equipment (tenant_id, tag, name, category, purchase_date, status, is_active, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, true, $7)
		RETURNING `+equipmentColumns+`
	`,
		tenantID,
		a.Tag(),
		a.Name(),
		a.Category(),
		a.PurchaseDate(),
		string(a.Status()),
		a.CreatedBy(),
	)

	created, err := scanAsset(row)
	if err != nil {
		if isUniqueViolation(err) {
			return equipment.Asset{}, equipment.ErrTagTaken
		}
		return equipment.Asset{}, gerrors.Wrap(err, "create equipment")
	}
	return created, nil
}

func (r *EquipmentRepository) Update(ctx context.Context, id uuid.UUID, patch equipment.Patch) (equipment.Asset, error) {
	if patch.Empty() {
		return equipment.Asset{}, equipment.ErrNoFieldsToUpdate
	}

	tx, err := composables.UseTx(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}

	set := buildEquipmentPatch(patch)
	args := append(set.Args(), tenantID, id)
	query := `
		UPDATE equipment
		SET ` + set.Set() + `
		WHERE tenant_id = $` + itoa(set.NextIndex()) + ` AND id = $` + itoa(set.NextIndex()+1) + `
		RETURNING ` + equipmentColumns

	row := tx.QueryRow(ctx, query, args...)
	updated, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return equipment.Asset{}, equipment.ErrNotFound
		}
		return equipment.Asset{}, gerrors.Wrap(err, "update equipment")
	}
	return updated, nil
}

func (r *EquipmentRepository) SetAssignment(ctx context.Context, id uuid.UUID, status equipment.Status, jobID uuid.UUID) (equipment.Asset, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE equipment
		SET status = $3,
			current_job_id = NULLIF($4, '00000000-0000-0000-0000-000000000000'::uuid),
			updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+equipmentColumns+`
	`, tenantID, id, string(status), jobID)

	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return equipment.Asset{}, equipment.ErrNotFound
		}
		return equipment.Asset{}, gerrors.Wrap(err, "set equipment assignment")
	}
	return a, nil
}

func (r *EquipmentRepository) Deactivate(ctx context.Context, id uuid.UUID) (equipment.Asset, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return equipment.Asset{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE equipment
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+equipmentColumns+`
	`, tenantID, id)

	a, err := scanAsset(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return equipment.Asset{}, equipment.ErrNotFound
		}
		return equipment.Asset{}, err
	}
	return a, nil
}

func (r *EquipmentRepository) TagExists(ctx context.Context, tag string) (bool, error) {
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
			SELECT 1 FROM equipment WHERE tenant_id = $1 AND tag = upper($2)
		)
	`, tenantID, tag).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func buildEquipmentFilters(params *equipment.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if q := strings.TrimSpace(params.Q); q != "" {
		pattern := "%" + q + "%"
		idx := where.NextIndex()
		where.Add("(tag ILIKE $%d OR name ILIKE $"+itoa(idx)+")", pattern)
	}
	if params.Status != "" {
		where.Add("status = $%d", string(params.Status))
	}
	if params.Category != "" {
		where.Add("category = $%d", params.Category)
	}
	if params.Active != nil {
		where.Add("is_active = $%d", *params.Active)
	}
	return where
}

func buildEquipmentPatch(patch equipment.Patch) *repo.Clauses {
	set := repo.NewClauses(1)
	if patch.Name != nil {
		set.Add("name = $%d", *patch.Name)
	}
	if patch.Category != nil {
		set.Add("category = $%d", *patch.Category)
	}
	set.AddRaw("updated_at = now()")
	return set
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAsset(row rowScanner) (equipment.Asset, error) {
	var (
		id           uuid.UUID
		tenantID     uuid.UUID
		tag          string
		name         string
		category     string
		purchaseDate *time.Time
		status       string
		currentJobID *uuid.UUID
		isActive     bool
		createdBy    uuid.UUID
		createdAt    time.Time
		updatedAt    time.Time
	)
	if err := row.Scan(
		&id, &tenantID, &tag, &name, &category, &purchaseDate, &status,
		&currentJobID, &isActive, &createdBy, &createdAt, &updatedAt,
	); err != nil {
		return equipment.Asset{}, err
	}

	jobID := uuid.Nil
	if currentJobID != nil {
		jobID = *currentJobID
	}
	return equipment.Hydrate(
		id, tenantID, tag, name, category, purchaseDate,
		equipment.Status(status), jobID, isActive, createdBy, createdAt, updatedAt,
	), nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func itoa(n int) string { return strconv.Itoa(n) }
