package services

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/fieldrow/fieldrow/pkg/itf"
)

func TestWebhookDispatcherDeliversToSubscribedEndpoints(t *testing.T) {
	var received []byte
	var gotEvent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received, _ = io.ReadAll(r.Body)
		gotEvent = r.Header.Get("X-Fieldrow-Event")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	repo := newMockWebhookRepo()
	svc := NewWebhookService(repo, &recordedAudit{})
	tenantID := uuid.New()
	ctx := itf.ServiceContext(tenantID, uuid.New())

	subscribed, err := svc.Create(ctx, ts.URL, []string{"job.created"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, ts.URL+"/other", []string{"invoice.created"})
	require.NoError(t, err)

	d := NewWebhookDispatcher(nil, svc, logrus.New())
	d.deliver(tenantID, "job.created", map[string]string{"title": "boiler repair"})

	require.Equal(t, "job.created", gotEvent)

	var payload struct {
		Event string            `json:"event"`
		Data  map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(received, &payload))
	require.Equal(t, "job.created", payload.Event)
	require.Equal(t, "boiler repair", payload.Data["title"])

	// Only the subscribed endpoint gets a delivery record.
	require.Len(t, repo.deliveries, 1)
	require.Equal(t, subscribed.Endpoint.ID, repo.deliveries[0].EndpointID)
	require.Equal(t, http.StatusNoContent, repo.deliveries[0].StatusCode)
}

func TestWebhookDispatcherRecordsFailedDelivery(t *testing.T) {
	repo := newMockWebhookRepo()
	svc := NewWebhookService(repo, &recordedAudit{})
	tenantID := uuid.New()
	ctx := itf.ServiceContext(tenantID, uuid.New())

	// Endpoint that refuses connections.
	_, err := svc.Create(ctx, "http://127.0.0.1:1/hook", []string{"invoice.created"})
	require.NoError(t, err)

	d := NewWebhookDispatcher(nil, svc, logrus.New())
	d.deliver(tenantID, "invoice.created", map[string]string{"number": "INV-1"})

	require.Len(t, repo.deliveries, 1)
	require.Equal(t, 0, repo.deliveries[0].StatusCode, "connection failure recorded as status 0")
}
