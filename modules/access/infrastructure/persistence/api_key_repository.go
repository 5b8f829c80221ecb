package persistence

import (
	"context"
	"errors"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fieldrow/fieldrow/modules/access/domain/entities/apikey"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

const apiKeyColumns = `id, tenant_id, public_id, name, secret_digest, last_used_at, created_by, created_at`

type APIKeyRepository struct{}

func NewAPIKeyRepository() apikey.Repository {
	return &APIKeyRepository{}
}

func (r *APIKeyRepository) GetByID(ctx context.Context, id uuid.UUID) (apikey.Key, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return apikey.Key{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return apikey.Key{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	return scanAPIKey(row)
}

// GetByPublicID is the authentication lookup: it resolves the key across all
// tenants, since the tenant is not known until the key is verified.
func (r *APIKeyRepository) GetByPublicID(ctx context.Context, publicID string) (apikey.Key, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return apikey.Key{}, err
	}

	row := tx.QueryRow(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE public_id = $1
	`, publicID)
	return scanAPIKey(row)
}

func (r *APIKeyRepository) List(ctx context.Context) ([]apikey.Key, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+apiKeyColumns+`
		FROM api_keys
		WHERE tenant_id = $1
		ORDER BY created_at DESC
	`, tenantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []apikey.Key
	for rows.Next() {
		k, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (r *APIKeyRepository) Create(ctx context.Context, k apikey.Key) (apikey.Key, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return apikey.Key{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return apikey.Key{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO api_keys (tenant_id, public_id, name, secret_digest, created_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+apiKeyColumns+`
	`, tenantID, k.PublicID, k.Name, k.Digest, k.CreatedBy)

	created, err := scanAPIKey(row)
	if err != nil {
		return apikey.Key{}, gerrors.Wrap(err, "create api key")
	}
	return created, nil
}

// Delete removes the row entirely. Credentials are disposable; there is
// nothing to keep.
func (r *APIKeyRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		DELETE FROM api_keys WHERE tenant_id = $1 AND id = $2
	`, tenantID, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return apikey.ErrNotFound
	}
	return nil
}

func (r *APIKeyRepository) TouchLastUsed(ctx context.Context, id uuid.UUID) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE api_keys SET last_used_at = now() WHERE id = $1
	`, id)
	return err
}

func scanAPIKey(row rowScanner) (apikey.Key, error) {
	var k apikey.Key
	if err := row.Scan(
		&k.ID, &k.TenantID, &k.PublicID, &k.Name, &k.Digest,
		&k.LastUsedAt, &k.CreatedBy, &k.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apikey.Key{}, apikey.ErrNotFound
		}
		return apikey.Key{}, err
	}
	return k, nil
}
