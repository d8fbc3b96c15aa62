package postgres

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/ports"
)

// ProximityRepo records fired proximity alerts.
type ProximityRepo struct{}

// NewProximityRepo constructs a new ProximityRepo.
func NewProximityRepo() ports.ProximityRepository {
	return &ProximityRepo{}
}

// MarkFired inserts the (job_id, leg) pair; the primary key makes the insert
// idempotent. fired=false means this leg's alert was already recorded, so
// the caller must not emit it again.
func (repo *ProximityRepo) MarkFired(ctx context.Context, jobID string, leg job.Leg, at time.Time) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO proximity_events (job_id, leg, fired_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, leg) DO NOTHING
	`, jobID, leg.String(), at)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
