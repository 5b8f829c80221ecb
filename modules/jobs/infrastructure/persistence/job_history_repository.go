package persistence

import (
	"context"
	"time"

	gerrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/fieldrow/fieldrow/modules/jobs/domain/aggregates/job"
	"github.com/fieldrow/fieldrow/modules/jobs/domain/entities/jobhistory"
	"github.com/fieldrow/fieldrow/pkg/composables"
)

const jobHistoryColumns = `id, tenant_id, job_id, from_status, to_status, changed_by, notes, created_at`

type JobHistoryRepository struct{}

func NewJobHistoryRepository() jobhistory.Repository {
	return &JobHistoryRepository{}
}

func (r *JobHistoryRepository) Insert(ctx context.Context, entry jobhistory.Entry) (jobhistory.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return jobhistory.Entry{}, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return jobhistory.Entry{}, err
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO job_status_history (tenant_id, job_id, from_status, to_status, changed_by, notes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+jobHistoryColumns+`
	`,
		tenantID,
		entry.JobID,
		string(entry.From),
		string(entry.To),
		entry.ChangedBy,
		entry.Notes,
	)

	inserted, err := scanHistoryEntry(row)
	if err != nil {
		return jobhistory.Entry{}, gerrors.Wrap(err, "insert job history")
	}
	return inserted, nil
}

func (r *JobHistoryRepository) ListForJob(ctx context.Context, jobID uuid.UUID) ([]jobhistory.Entry, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+jobHistoryColumns+`
		FROM job_status_history
		WHERE tenant_id = $1 AND job_id = $2
		ORDER BY created_at ASC
	`, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []jobhistory.Entry
	for rows.Next() {
		entry, err := scanHistoryEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

func scanHistoryEntry(row rowScanner) (jobhistory.Entry, error) {
	var (
		entry      jobhistory.Entry
		fromStatus string
		toStatus   string
		createdAt  time.Time
	)
	if err := row.Scan(
		&entry.ID, &entry.TenantID, &entry.JobID, &fromStatus, &toStatus,
		&entry.ChangedBy, &entry.Notes, &createdAt,
	); err != nil {
		return jobhistory.Entry{}, err
	}
	entry.From = job.Status(fromStatus)
	entry.To = job.Status(toStatus)
	entry.CreatedAt = createdAt
	return entry, nil
}
