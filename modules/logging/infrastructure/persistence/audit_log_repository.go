package persistence

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

type AuditLogRepository struct{}

func NewAuditLogRepository() auditlog.Repository {
	return &AuditLogRepository{}
}

func (r *AuditLogRepository) List(ctx context.Context, params *auditlog.FindParams) ([]*auditlog.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	where := buildAuditLogFilters(params, tenantID)
	query := `
		SELECT id, tenant_id, user_id, action, resource_type, resource_id, old_values, new_values, created_at
		FROM audit_logs
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

	var results []*auditlog.Entry
	for rows.Next() {
		var entry auditlog.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.TenantID,
			&entry.UserID,
			&entry.Action,
			&entry.ResourceType,
			&entry.ResourceID,
			&entry.OldValues,
			&entry.NewValues,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}
		results = append(results, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *AuditLogRepository) Count(ctx context.Context, params *auditlog.FindParams) (int64, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	where := buildAuditLogFilters(params, tenantID)

	var count int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM audit_logs WHERE `+where.Where(),
		where.Args()...,
	).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *AuditLogRepository) Insert(ctx context.Context, entry *auditlog.Entry) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	return tx.QueryRow(ctx, `
		INSERT INTO audit_logs (tenant_id, user_id, action, resource_type, resource_id, old_values, new_values, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`,
		entry.TenantID,
		entry.UserID,
		entry.Action,
		entry.ResourceType,
		entry.ResourceID,
		entry.OldValues,
		entry.NewValues,
		entry.CreatedAt,
	).Scan(&entry.ID)
}

func buildAuditLogFilters(params *auditlog.FindParams, tenantID uuid.UUID) *repo.Clauses {
	where := repo.NewClauses(1).Add("tenant_id = $%d", tenantID)
	if params == nil {
		return where
	}

	if params.UserID != nil {
		where.Add("user_id = $%d", *params.UserID)
	}
	if action := strings.TrimSpace(params.Action); action != "" {
		where.Add("action = $%d", action)
	}
	if rt := strings.TrimSpace(params.ResourceType); rt != "" {
		where.Add("resource_type = $%d", rt)
	}
	if params.ResourceID != nil {
		where.Add("resource_id = $%d", *params.ResourceID)
	}
	if params.From != nil && !params.From.IsZero() {
		where.Add("created_at >= $%d", *params.From)
	}
	if params.To != nil && !params.To.IsZero() {
		where.Add("created_at <= $%d", *params.To)
	}
	return where
}
