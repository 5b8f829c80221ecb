package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/apiusage"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

type APIUsageRepository struct{}

func NewAPIUsageRepository() apiusage.Repository {
	return &APIUsageRepository{}
}

func (r *APIUsageRepository) List(ctx context.Context, params *apiusage.FindParams) ([]*apiusage.Record, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where := buildAPIUsageFilters(params, tenantID)
	query := `
		SELECT id, tenant_id, key_id, method, path, status_code, duration_ms, created_at
		FROM api_usage_logs
		WHERE ` + where.Where() + `
		ORDER BY created_at DESC
	`
	if params != nil {
		query += " " + repo.FormatLimitOffset(params.Limit, params.Offset)
	}

	rows, err := tx.Query(ctx, query, where.Args()...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*apiusage.Record
	for rows.Next() {
		var rec apiusage.Record
		if err := rows.Scan(
			&rec.ID,
			&rec.TenantID,
			&rec.KeyID,
			&rec.Method,
			&rec.Path,
			&rec.StatusCode,
			&rec.DurationMs,
			&rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *APIUsageRepository) Insert(ctx context.Context, record *apiusage.Record) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	return tx.QueryRow(ctx, `
		INSERT INTO api_usage_logs (tenant_id, key_id, method, path, status_code, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`,
		record.TenantID,
		record.KeyID,
		record.Method,
		record.Path,
		record.StatusCode,
		record.DurationMs,
		record.CreatedAt,
	).Scan(&record.ID)
}

func buildAPIUsageFilters(params *apiusage.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if params.KeyID != nil {
		where.Add("key_id = $%d", *params.KeyID)
	}
	if path := strings.TrimSpace(params.Path); path != "" {
		where.Add("path ILIKE $%d", "%"+path+"%")
	}
	if params.From != nil && !params.From.IsZero() {
		where.Add("created_at >= $%d", *params.From)
	}
	if params.To != nil && !params.To.IsZero() {
		where.Add("created_at <= $%d", *params.To)
	}
	return where
}
