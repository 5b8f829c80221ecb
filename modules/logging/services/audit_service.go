package services

import (
	"context"
	"encoding/json"

	gerrors "github.com/go-faster/errors"

	"github.com/fieldrow/fieldrow/modules/logging/domain/entities/auditlog"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

// AuditService records audit entries inside the caller's transaction and
// serves the read side of the trail. It implements auditlog.Recorder.
type AuditService struct {
	repo auditlog.Repository
}

func NewAuditService(repo auditlog.Repository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) Record(ctx context.Context, change auditlog.Change) error {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return err
	}
	userID, err := composables.UseUserID(ctx)
	if err != nil {
		return err
	}

	entry := &auditlog.Entry{
		TenantID:     tenantID,
		UserID:       userID,
		Action:       change.Action,
		ResourceType: change.ResourceType,
		ResourceID:   change.ResourceID,
	}
	if change.Old != nil {
		raw, err := json.Marshal(change.Old)
		if err != nil {
			return gerrors.Wrap(err, "marshal audit old values")
		}
		entry.OldValues = raw
	}
	if change.New != nil {
		raw, err := json.Marshal(change.New)
		if err != nil {
			return gerrors.Wrap(err, "marshal audit new values")
		}
		entry.NewValues = raw
	}

	if err := s.repo.Insert(ctx, entry); err != nil {
		return gerrors.Wrap(err, "insert audit entry")
	}
	return nil
}

func (s *AuditService) List(ctx context.Context, params *auditlog.FindParams) ([]*auditlog.Entry, int64, error) {
	if params == nil {
		params = &auditlog.FindParams{}
	}
	entries, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.repo.Count(ctx, params)
	if err != nil {
		return nil, 0, err
	}
	return entries, count, nil
}
