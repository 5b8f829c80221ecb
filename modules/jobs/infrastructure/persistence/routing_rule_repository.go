package persistence

import (
	"context"
	"errors"
	"strings"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldrow/fieldrow/modules/jobs/domain/entities/routing"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

const routingRuleColumns = `id, tenant_id, keyword, department_id, priority, is_active, created_at, updated_at`

type RoutingRuleRepository struct{}

func NewRoutingRuleRepository() routing.Repository {
	return &RoutingRuleRepository{}
}

func (r *RoutingRuleRepository) GetByID(ctx context.Context, id uuid.UUID) (routing.Rule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return routing.Rule{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return routing.Rule{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+routingRuleColumns+`
		FROM job_routing_rules
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)

	rule, err := scanRoutingRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return routing.Rule{}, routing.ErrNotFound
		}
		return routing.Rule{}, err
	}
	return rule, nil
}

// ListActive returns active rules ordered by ascending priority, ties broken
// by creation time so evaluation order stays stable.
func (r *RoutingRuleRepository) ListActive(ctx context.Context) ([]routing.Rule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+routingRuleColumns+`
		FROM job_routing_rules
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY priority ASC, created_at ASC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []routing.Rule
	for rows.Next() {
		rule, err := scanRoutingRule(rows)
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

func (r *RoutingRuleRepository) Create(ctx context.Context, rule routing.Rule) (routing.Rule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return routing.Rule{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return routing.Rule{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO job_routing_rules (tenant_id, keyword, department_id, priority, is_active)
		VALUES ($1, $2, $3, $4, true)
		RETURNING `+routingRuleColumns+`
	`,
		tenantID,
		strings.ToLower(strings.TrimSpace(rule.Keyword)),
		rule.DepartmentID,
		rule.Priority,
	)

	created, err := scanRoutingRule(row)
	if err != nil {
		return routing.Rule{}, gerrors.Wrap(err, "create routing rule")
	}
	return created, nil
}

func (r *RoutingRuleRepository) Deactivate(ctx context.Context, id uuid.UUID) (routing.Rule, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return routing.Rule{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return routing.Rule{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE job_routing_rules
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+routingRuleColumns+`
	`, tenantID, id)

	rule, err := scanRoutingRule(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return routing.Rule{}, routing.ErrNotFound
		}
		return routing.Rule{}, err
	}
	return rule, nil
}

func scanRoutingRule(row rowScanner) (routing.Rule, error) {
	var rule routing.Rule
	if err := row.Scan(
		&rule.ID, &rule.TenantID, &rule.Keyword, &rule.DepartmentID,
		&rule.Priority, &rule.IsActive, &rule.CreatedAt, &rule.UpdatedAt,
	); err != nil {
		return routing.Rule{}, err
	}
	return rule, nil
}
