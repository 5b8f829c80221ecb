package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/access/domain/entities/apikey"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/secrets"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const apiKeyResource = "api_key"

type APIKeyService struct {
	repo  apikey.Repository
	audit auditlog.Recorder
}

func NewAPIKeyService(repo apikey.Repository, audit auditlog.Recorder) *APIKeyService {
	return &APIKeyService{repo: repo, audit: audit}
}

func (s *APIKeyService) List(ctx context.Context) ([]apikey.Key, error) {
	return s.repo.List(ctx)
}

// Create mints a key and returns the plaintext secret exactly once. Only the
// digest is stored; the audit entry carries the public id, never the secret.
func (s *APIKeyService) Create(ctx context.Context, name string) (apikey.Issued, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return apikey.Issued{}, serrors.InvalidArgument("api key name is required")
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return apikey.Issued{}, err
	}

	generated, err := secrets.NewAPIKey()
	if err != nil {
		return apikey.Issued{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (apikey.Key, error) {
		created, err := s.repo.Create(txCtx, apikey.Key{
			PublicID:  generated.PublicID,
			Name:      name,
			Digest:    generated.Digest,
			CreatedBy: actorID,
		})
		if err != nil {
			return apikey.Key{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "api_key.created",
			ResourceType: apiKeyResource,
			ResourceID:   created.ID,
			New:          map[string]string{"public_id": created.PublicID, "name": created.Name},
		}); err != nil {
			return apikey.Key{}, err
		}
		return created, nil
	})
	if err != nil {
		return apikey.Issued{}, err
	}

	return apikey.Issued{Key: created, Secret: generated.Secret}, nil
}

// Verify authenticates a presented credential pair. The last-used stamp is
// best-effort telemetry: its failure is logged and swallowed.
func (s *APIKeyService) Verify(ctx context.Context, publicID, secret string) (apikey.Key, error) {
	if !secrets.ValidPublicID(publicID) {
		return apikey.Key{}, serrors.Forbidden("invalid api key")
	}

	key, err := s.repo.GetByPublicID(ctx, publicID)
	if err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			// Same answer as a bad secret, to avoid confirming key existence.
			return apikey.Key{}, serrors.Forbidden("invalid api key")
		}
		return apikey.Key{}, err
	}
	if !secrets.Verify(key.Digest, secret) {
		return apikey.Key{}, serrors.Forbidden("invalid api key")
	}

	if err := s.repo.TouchLastUsed(ctx, key.ID); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("api key last-used stamp failed")
	}
	return key, nil
}

// Delete removes the key permanently.
func (s *APIKeyService) Delete(ctx context.Context, id uuid.UUID) error {
	key, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, apikey.ErrNotFound) {
			return serrors.NotFound("api key %s not found", id).WithCause(err)
		}
		return err
	}

	return composables.InTx(ctx, func(txCtx context.Context) error {
		if err := s.repo.Delete(txCtx, id); err != nil {
			if errors.Is(err, apikey.ErrNotFound) {
				return serrors.NotFound("api key %s not found", id).WithCause(err)
			}
			return err
		}
		return s.audit.Record(txCtx, auditlog.Change{
			Action:       "api_key.deleted",
			ResourceType: apiKeyResource,
			ResourceID:   id,
			Old:          map[string]string{"public_id": key.PublicID, "name": key.Name},
		})
	})
}
