package postgres

import (
	"context"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/ports"
)

// JobEventRepo appends audit events for jobs.
type JobEventRepo struct{}

// NewJobEventRepo constructs a new JobEventRepo.
func NewJobEventRepo() ports.JobEventRepository {
	return &JobEventRepo{}
}

// Append writes a single job event row.
func (repo *JobEventRepo) Append(ctx context.Context, e *job.Event) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if err := e.Validate(); err != nil {
		return err
	}

	body, err := e.DataJSON()
	if err != nil {
		return err
	}

	return tx.QueryRow(ctx, `
		INSERT INTO job_events (job_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
		RETURNING id, created_at
	`, e.JobID, e.Type.String(), string(body)).Scan(&e.ID, &e.CreatedAt)
}
