package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldrow/fieldrow/modules/access/domain/entities/webhook"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/repo"
)

const webhookColumns = `id, tenant_id, url, events, secret_digest, is_active, created_by, created_at, updated_at`

type WebhookRepository struct{}

func NewWebhookRepository() webhook.Repository {
	return &WebhookRepository{}
}

func (r *WebhookRepository) GetByID(ctx context.Context, id uuid.UUID) (webhook.Endpoint, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return webhook.Endpoint{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return webhook.Endpoint{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+webhookColumns+`
		FROM webhook_endpoints
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanEndpoint(row)
}

func (r *WebhookRepository) ListActive(ctx context.Context) ([]webhook.Endpoint, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+webhookColumns+`
		FROM webhook_endpoints
		WHERE tenant_id = $1 AND is_active = true
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var endpoints []webhook.Endpoint
	for rows.Next() {
		e, err := scanEndpoint(rows)
		if err != nil {
			return nil, err
		}
		endpoints = append(endpoints, e)
	}
	return endpoints, rows.Err()
}

func (r *WebhookRepository) Create(ctx context.Context, e webhook.Endpoint) (webhook.Endpoint, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return webhook.Endpoint{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return webhook.Endpoint{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO webhook_endpoints (tenant_id, url, events, secret_digest, is_active, created_by)
		VALUES ($1, $2, $3, $4, true, $5)
		RETURNING `+webhookColumns+`
	`, tenantID, e.URL, e.Events, e.SecretDigest, e.CreatedBy)

	created, err := scanEndpoint(row)
	if err != nil {
		return webhook.Endpoint{}, gerrors.Wrap(err, "create webhook endpoint")
	}
	return created, nil
}

func (r *WebhookRepository) Deactivate(ctx context.Context, id uuid.UUID) (webhook.Endpoint, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return webhook.Endpoint{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return webhook.Endpoint{}, err
	}

	row := tx.QueryRow(ctx, `
		UPDATE webhook_endpoints
		SET is_active = false, updated_at = now()
		WHERE tenant_id = $1 AND id = $2
		RETURNING `+webhookColumns+`
	`, tenantID, id)
	return scanEndpoint(row)
}

func (r *WebhookRepository) InsertDelivery(ctx context.Context, d webhook.Delivery) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO webhook_deliveries (tenant_id, endpoint_id, event, status_code, duration_ms)
		VALUES ($1, $2, $3, $4, $5)
	`, tenantID, d.EndpointID, d.Event, d.StatusCode, d.DurationMs)
	return err
}

func (r *WebhookRepository) ListDeliveries(ctx context.Context, endpointID uuid.UUID, limit int) ([]webhook.Delivery, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	query := repo.Join(`
		SELECT id, tenant_id, endpoint_id, event, status_code, duration_ms, created_at
		FROM webhook_deliveries
		WHERE tenant_id = $1 AND endpoint_id = $2
		ORDER BY created_at DESC`,
		repo.FormatLimitOffset(limit, 0),
	)
	rows, err := tx.Query(ctx, query, tenantID, endpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []webhook.Delivery
	for rows.Next() {
		var d webhook.Delivery
		if err := rows.Scan(
			&d.ID, &d.TenantID, &d.EndpointID, &d.Event,
			&d.StatusCode, &d.DurationMs, &d.CreatedAt,
		); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

func scanEndpoint(row rowScanner) (webhook.Endpoint, error) {
	var e webhook.Endpoint
	if err := row.Scan(
		&e.ID, &e.TenantID, &e.URL, &e.Events, &e.SecretDigest,
		&e.IsActive, &e.CreatedBy, &e.CreatedAt, &e.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return webhook.Endpoint{}, webhook.ErrNotFound
		}
		return webhook.Endpoint{}, err
	}
	return e, nil
}
