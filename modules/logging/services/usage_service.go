package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/apiusage"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

// UsageService writes external API telemetry. Unlike the audit trail, these
// writes are best-effort: a failure is logged and suppressed so it can never
// break the request being recorded.
type UsageService struct {
	repo apiusage.Repository
}

func NewUsageService(repo apiusage.Repository) *UsageService {
	return &UsageService{repo: repo}
}

func (s *UsageService) Record(ctx context.Context, record *apiusage.Record) {
	if record == nil {
		return
	}
	if record.TenantID == uuid.Nil {
		if tenantID, err := composables.UseTenantID(ctx); err == nil {
			record.TenantID = tenantID
		}
	}
	if err := s.repo.Insert(ctx, record); err != nil {
		composables.UseLogger(ctx).
			WithError(err).
			WithField("path", record.Path).
			Warn("api usage logging failed")
	}
}

func (s *UsageService) List(ctx context.Context, params *apiusage.FindParams) ([]*apiusage.Record, error) {
	if params == nil {
		params = &apiusage.FindParams{}
	}
	return s.repo.List(ctx, params)
}
