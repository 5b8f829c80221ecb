package services

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/access/domain/entities/webhook"
	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/secrets"
	"github.com/fieldrow/fieldrow/pkg/serrors"
)

const webhookResource = "webhook_endpoint"

type WebhookService struct {
	repo  webhook.Repository
	audit auditlog.Recorder
}

func NewWebhookService(repo webhook.Repository, audit auditlog.Recorder) *WebhookService {
	return &WebhookService{repo: repo, audit: audit}
}

func (s *WebhookService) GetByID(ctx context.Context, id uuid.UUID) (webhook.Endpoint, error) {
	e, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, webhook.ErrNotFound) {
			return webhook.Endpoint{}, serrors.NotFound("webhook endpoint %s not found", id).WithCause(err)
		}
		return webhook.Endpoint{}, err
	}
	return e, nil
}

func (s *WebhookService) ListActive(ctx context.Context) ([]webhook.Endpoint, error) {
	return s.repo.ListActive(ctx)
}

// Create registers an endpoint and returns its signing secret exactly once.
func (s *WebhookService) Create(ctx context.Context, rawURL string, events []string) (webhook.Issued, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme != "https" && parsed.Scheme != "http" || parsed.Host == "" {
		return webhook.Issued{}, serrors.InvalidArgument("webhook url must be an absolute http(s) url")
	}
	if len(events) == 0 {
		return webhook.Issued{}, serrors.InvalidArgument("webhook needs at least one event subscription")
	}
	actorID, err := composables.UseUserID(ctx)
	if err != nil {
		return webhook.Issued{}, err
	}

	generated, err := secrets.NewWebhookSecret()
	if err != nil {
		return webhook.Issued{}, err
	}

	created, err := composables.InTxResult(ctx, func(txCtx context.Context) (webhook.Endpoint, error) {
		created, err := s.repo.Create(txCtx, webhook.Endpoint{
			URL:          parsed.String(),
			Events:       events,
			SecretDigest: generated.Digest,
			CreatedBy:    actorID,
		})
		if err != nil {
			return webhook.Endpoint{}, err
		}

		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "webhook.created",
			ResourceType: webhookResource,
			ResourceID:   created.ID,
			New:          map[string]any{"url": created.URL, "events": created.Events},
		}); err != nil {
			return webhook.Endpoint{}, err
		}
		return created, nil
	})
	if err != nil {
		return webhook.Issued{}, err
	}

	return webhook.Issued{Endpoint: created, Secret: generated.Secret}, nil
}

// Delete soft-deletes the endpoint; its delivery history stays queryable.
func (s *WebhookService) Delete(ctx context.Context, id uuid.UUID) (webhook.Endpoint, error) {
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return webhook.Endpoint{}, err
	}

	return composables.InTxResult(ctx, func(txCtx context.Context) (webhook.Endpoint, error) {
		deleted, err := s.repo.Deactivate(txCtx, id)
		if err != nil {
			if errors.Is(err, webhook.ErrNotFound) {
				return webhook.Endpoint{}, serrors.NotFound("webhook endpoint %s not found", id).WithCause(err)
			}
			return webhook.Endpoint{}, err
		}
		if err := s.audit.Record(txCtx, auditlog.Change{
			Action:       "webhook.deleted",
			ResourceType: webhookResource,
			ResourceID:   id,
			Old:          map[string]any{"url": current.URL, "events": current.Events},
		}); err != nil {
			return webhook.Endpoint{}, err
		}
		return deleted, nil
	})
}

// RecordDelivery appends a delivery-log row. Failures are logged and
// swallowed; telemetry never fails the caller.
func (s *WebhookService) RecordDelivery(ctx context.Context, d webhook.Delivery) {
	if err := s.repo.InsertDelivery(ctx, d); err != nil {
		composables.UseLogger(ctx).WithError(err).Warn("webhook delivery logging failed")
	}
}

func (s *WebhookService) Deliveries(ctx context.Context, endpointID uuid.UUID, limit int) ([]webhook.Delivery, error) {
	if _, err := s.GetByID(ctx, endpointID); err != nil {
		return nil, err
	}
	return s.repo.ListDeliveries(ctx, endpointID, limit)
}
