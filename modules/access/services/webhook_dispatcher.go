package services

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"github.com/fieldrow/fieldrow/modules/access/domain/entities/webhook"
	"github.com/fieldrow/fieldrow/modules/billing/domain/aggregates/invoice"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/pkg/composables"
	"github.com/fieldrow/fieldrow/pkg/eventbus"
)

// WebhookDispatcher fans domain events out to subscribed endpoints. Delivery
// is fire-and-forget: a failing endpoint shows up in the delivery log, never
// in the publishing transaction.
type WebhookDispatcher struct {
	pool     *pgxpool.Pool
	webhooks *WebhookService
	client   *http.Client
	logger   *logrus.Logger
}

func NewWebhookDispatcher(pool *pgxpool.Pool, webhooks *WebhookService, logger *logrus.Logger) *WebhookDispatcher {
	return &WebhookDispatcher{
		pool:     pool,
		webhooks: webhooks,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}
}

func (d *WebhookDispatcher) Register(bus eventbus.EventBus) {
	bus.Subscribe(func(e *job.CreatedEvent) {
		d.fanOut(e.Result.TenantID(), "job.created", e.Result.Snapshot())
	})
	bus.Subscribe(func(e *job.StatusChangedEvent) {
		d.fanOut(e.Result.TenantID(), "job.status_changed", e.Result.Snapshot())
	})
	bus.Subscribe(func(e *invoice.CreatedEvent) {
		d.fanOut(e.Result.TenantID(), "invoice.created", e.Result.Snapshot())
	})
	bus.Subscribe(func(e *invoice.StatusChangedEvent) {
		d.fanOut(e.Result.TenantID(), "invoice.status_changed", e.Result.Snapshot())
	})
}

func (d *WebhookDispatcher) fanOut(tenantID uuid.UUID, event string, payload any) {
	go d.deliver(tenantID, event, payload)
}

func (d *WebhookDispatcher) deliver(tenantID uuid.UUID, event string, payload any) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = composables.WithTenantID(composables.WithPool(ctx, d.pool), tenantID)

	endpoints, err := d.webhooks.ListActive(ctx)
	if err != nil {
		d.logger.WithError(err).WithField("event", event).Warn("webhook fan-out: listing endpoints failed")
		return
	}

	body, err := json.Marshal(map[string]any{
		"event": event,
		"data":  payload,
	})
	if err != nil {
		d.logger.WithError(err).WithField("event", event).Warn("webhook fan-out: payload encoding failed")
		return
	}

	for _, endpoint := range endpoints {
		if !endpoint.SubscribedTo(event) {
			continue
		}
		d.post(ctx, endpoint, event, body)
	}
}

func (d *WebhookDispatcher) post(ctx context.Context, endpoint webhook.Endpoint, event string, body []byte) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.URL, bytes.NewReader(body))
	if err != nil {
		d.logger.WithError(err).WithField("url", endpoint.URL).Warn("webhook delivery: bad request")
		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Fieldrow-Event", event)

	start := time.Now()
	statusCode := 0
	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WithError(err).WithField("url", endpoint.URL).Warn("webhook delivery failed")
	} else {
		statusCode = resp.StatusCode
		_ = resp.Body.Close()
	}

	d.webhooks.RecordDelivery(ctx, webhook.Delivery{
		EndpointID: endpoint.ID,
		Event:      event,
		StatusCode: statusCode,
		DurationMs: time.Since(start).Milliseconds(),
	})
}
