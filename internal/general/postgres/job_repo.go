package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/ports"

	"github.com/jackc/pgx/v5"
)

// JobRepo persists jobs using pgx and plain SQL.
type JobRepo struct{}

// NewJobRepo constructs a new JobRepo.
func NewJobRepo() ports.JobRepository {
	return &JobRepo{}
}

const jobColumns = `
	id, created_at, updated_at, job_number, requester_id, worker_id,
	kind, payment_mode, status, price,
	origin_lat, origin_lng, origin_address, origin_contact_name, origin_contact_phone,
	destination_lat, destination_lng, destination_address, destination_contact_name, destination_contact_phone,
	claimed_at, picked_up_at, completed_at, paid_at, cancelled_at, cancellation_reason`

// CreateJob inserts a new job row and writes an initial JOB_CREATED event.
func (repo *JobRepo) CreateJob(ctx context.Context, j *job.Job) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// insert only the columns we actually have values for at creation time
	err = tx.QueryRow(ctx, `
		INSERT INTO jobs (
			job_number, requester_id, kind, payment_mode, status, price,
			origin_lat, origin_lng, origin_address, origin_contact_name, origin_contact_phone,
			destination_lat, destination_lng, destination_address, destination_contact_name, destination_contact_phone
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at, updated_at
	`,
		j.JobNumber,
		j.RequesterID,
		j.Kind.String(),
		j.PaymentMode.String(),
		j.Status.String(), // typically "PENDING"
		j.Price,
		j.Origin.Point.Lat, j.Origin.Point.Lng, j.Origin.Address, j.Origin.ContactName, j.Origin.ContactPhone,
		j.Destination.Point.Lat, j.Destination.Point.Lng, j.Destination.Address, j.Destination.ContactName, j.Destination.ContactPhone,
	).Scan(&j.ID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return err
	}

	eventData := map[string]any{
		"new_status":   j.Status.String(),
		"kind":         j.Kind.String(),
		"payment_mode": j.PaymentMode.String(),
		"price":        j.Price,
	}
	return insertJobEvent(ctx, tx, j.ID, "JOB_CREATED", eventData)
}

// GetByID fetches a job by primary key (uuid).
func (repo *JobRepo) GetByID(ctx context.Context, id string) (*job.Job, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	row := tx.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	return scanJob(row)
}

// GetActiveForWorker fetches the worker's current claimed, non-terminal job.
func (repo *JobRepo) GetActiveForWorker(ctx context.Context, workerID string) (*job.Job, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	// COMPLETED still counts as active for cash jobs, which owe a PAID step.
	row := tx.QueryRow(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE worker_id = $1
		  AND status NOT IN ('PENDING', 'PAID', 'CANCELLED')
		  AND NOT (status = 'COMPLETED' AND payment_mode <> 'CASH_ON_COMPLETION')
		ORDER BY created_at DESC
		LIMIT 1
	`, workerID)

	out, err := scanJob(row)
	if err != nil {
		// no active job found
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return out, nil
}

// ListPendingNear returns unclaimed pending jobs whose origin lies within
// radiusKM of the given point, nearest first. Distance uses the haversine
// formula evaluated in SQL.
func (repo *JobRepo) ListPendingNear(ctx context.Context, origin geo.Point, radiusKM float64, limit int) ([]ports.PendingJobRow, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+jobColumns+`,
		       (6371 * acos(least(1.0,
		           cos(radians($1)) * cos(radians(origin_lat)) *
		           cos(radians(origin_lng) - radians($2)) +
		           sin(radians($1)) * sin(radians(origin_lat))
		       ))) AS distance_km
		FROM jobs
		WHERE status = 'PENDING'
		  AND worker_id IS NULL
		  AND (6371 * acos(least(1.0,
		          cos(radians($1)) * cos(radians(origin_lat)) *
		          cos(radians(origin_lng) - radians($2)) +
		          sin(radians($1)) * sin(radians(origin_lat))
		      ))) <= $3
		ORDER BY distance_km ASC, created_at ASC
		LIMIT $4
	`, origin.Lat, origin.Lng, radiusKM, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending jobs: %w", err)
	}
	defer rows.Close()

	var out []ports.PendingJobRow
	for rows.Next() {
		j, distanceKM, err := scanJobWithDistance(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, ports.PendingJobRow{Job: j, DistanceKM: distanceKM})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ListPendingOlderThan returns pending jobs posted before now-age, oldest
// first. Used by the stale-posting sweep.
func (repo *JobRepo) ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*job.Job, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, `
		SELECT `+jobColumns+`
		FROM jobs
		WHERE status = 'PENDING'
		  AND created_at < now() - $1::interval
		ORDER BY created_at ASC
		LIMIT $2
	`, fmt.Sprintf("%d seconds", int(age.Seconds())), limit)
	if err != nil {
		return nil, fmt.Errorf("query stale pending jobs: %w", err)
	}
	defer rows.Close()

	var out []*job.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

// ClaimPending atomically assigns the job to a worker. The WHERE clause is
// the whole arbitration: only a row still PENDING and unassigned is updated,
// so concurrent claims resolve to exactly one winner.
func (repo *JobRepo) ClaimPending(ctx context.Context, jobID, workerID string, claimedAt time.Time) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE jobs
		SET worker_id = $2,
		    status = 'ASSIGNED',
		    claimed_at = $3,
		    updated_at = now()
		WHERE id = $1
		  AND status = 'PENDING'
		  AND worker_id IS NULL
	`, jobID, workerID, claimedAt)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	eventData := map[string]any{
		"old_status": "PENDING",
		"new_status": "ASSIGNED",
		"worker_id":  workerID,
		"claimed_at": claimedAt.UTC().Format(time.RFC3339),
	}
	if err := insertJobEvent(ctx, tx, jobID, "JOB_CLAIMED", eventData); err != nil {
		return false, err
	}
	return true, nil
}

// UpdateStatus sets the job status and stamps the corresponding timeline column.
func (repo *JobRepo) UpdateStatus(ctx context.Context, id string, status job.Status, updatedAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	// lock the row and read current state to enforce transitions
	var current, kindStr, modeStr string
	err = tx.QueryRow(ctx, `
		SELECT status, kind, payment_mode
		FROM jobs
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&current, &kindStr, &modeStr)
	if err != nil {
		return err
	}

	if !status.Valid() {
		return job.ErrInvalidStatus
	}
	// a same-state retry fails here too: callers settle earnings and release
	// workers on a nil return, so it must not look like a fresh transition
	if !job.Status(current).CanTransitionTo(status, job.Kind(kindStr), job.PaymentMode(modeStr)) {
		return job.ErrIllegalTransition
	}

	// pick the timeline column to stamp for this status
	timelineColumn := timelineColumnFor(status)

	query := `
	UPDATE jobs
	SET status = $1,
	    updated_at = now()
	`
	if timelineColumn != "updated_at" {
		query += `, ` + timelineColumn + ` = $2
		WHERE id = $3`
	} else {
		// don't assign updated_at twice
		query += `
		WHERE id = $3`
	}

	if _, err := tx.Exec(ctx, query, status.String(), updatedAt, id); err != nil {
		return err
	}

	evType := specificEventTypeFor(status)
	eventData := map[string]any{
		"old_status": current,
		"new_status": status.String(),
		"timestamp":  updatedAt.UTC().Format(time.RFC3339),
	}
	return insertJobEvent(ctx, tx, id, evType, eventData)
}

// Cancel sets cancellation_reason, stamps cancelled_at, and moves to CANCELLED.
func (repo *JobRepo) Cancel(ctx context.Context, id, reason string, cancelledAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var current, modeStr string
	err = tx.QueryRow(ctx, `
		SELECT status, payment_mode
		FROM jobs
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&current, &modeStr)
	if err != nil {
		return err
	}

	if job.Status(current).Terminal(job.PaymentMode(modeStr)) {
		return job.ErrAlreadyTerminal
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET status = 'CANCELLED',
		    cancellation_reason = $1,
		    cancelled_at = $2,
		    updated_at = now()
		WHERE id = $3
	`, reason, cancelledAt, id)
	if err != nil {
		return err
	}

	eventData := map[string]any{
		"old_status":   current,
		"new_status":   "CANCELLED",
		"reason":       reason,
		"cancelled_at": cancelledAt.UTC().Format(time.RFC3339),
	}
	return insertJobEvent(ctx, tx, id, "JOB_CANCELLED", eventData)
}

// MarkPaid settles a cash job: COMPLETED -> PAID, stamping paid_at.
func (repo *JobRepo) MarkPaid(ctx context.Context, id string, paidAt time.Time) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	var current, modeStr string
	err = tx.QueryRow(ctx, `
		SELECT status, payment_mode
		FROM jobs
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(&current, &modeStr)
	if err != nil {
		return err
	}

	// a retried settlement must not credit the earnings twice
	if current == "PAID" {
		return job.ErrAlreadyTerminal
	}

	if job.PaymentMode(modeStr) != job.PaymentCashOnCompletion {
		return job.ErrSettlementNotOwed
	}
	if current != "COMPLETED" {
		return job.ErrSettlementTooEarly
	}

	_, err = tx.Exec(ctx, `
		UPDATE jobs
		SET status = 'PAID',
		    paid_at = $1,
		    updated_at = now()
		WHERE id = $2
	`, paidAt, id)
	if err != nil {
		return err
	}

	eventData := map[string]any{
		"old_status": current,
		"new_status": "PAID",
		"paid_at":    paidAt.UTC().Format(time.RFC3339),
	}
	return insertJobEvent(ctx, tx, id, "JOB_PAID", eventData)
}

// --- helpers ---

// rowScanner covers both pgx.Row and pgx.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*job.Job, error) {
	var out job.Job
	var kind, mode, status string

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.JobNumber, &out.RequesterID, &out.WorkerID,
		&kind, &mode, &status, &out.Price,
		&out.Origin.Point.Lat, &out.Origin.Point.Lng, &out.Origin.Address, &out.Origin.ContactName, &out.Origin.ContactPhone,
		&out.Destination.Point.Lat, &out.Destination.Point.Lng, &out.Destination.Address, &out.Destination.ContactName, &out.Destination.ContactPhone,
		&out.ClaimedAt, &out.PickedUpAt, &out.CompletedAt, &out.PaidAt, &out.CancelledAt, &out.CancelReason,
	)
	if err != nil {
		return nil, err
	}

	out.Kind = job.Kind(kind)
	out.PaymentMode = job.PaymentMode(mode)
	out.Status = job.Status(status)
	return &out, nil
}

func scanJobWithDistance(row rowScanner) (*job.Job, float64, error) {
	var out job.Job
	var kind, mode, status string
	var distanceKM float64

	err := row.Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.JobNumber, &out.RequesterID, &out.WorkerID,
		&kind, &mode, &status, &out.Price,
		&out.Origin.Point.Lat, &out.Origin.Point.Lng, &out.Origin.Address, &out.Origin.ContactName, &out.Origin.ContactPhone,
		&out.Destination.Point.Lat, &out.Destination.Point.Lng, &out.Destination.Address, &out.Destination.ContactName, &out.Destination.ContactPhone,
		&out.ClaimedAt, &out.PickedUpAt, &out.CompletedAt, &out.PaidAt, &out.CancelledAt, &out.CancelReason,
		&distanceKM,
	)
	if err != nil {
		return nil, 0, err
	}

	out.Kind = job.Kind(kind)
	out.PaymentMode = job.PaymentMode(mode)
	out.Status = job.Status(status)
	return &out, distanceKM, nil
}

// insertJobEvent writes a row into job_events with encoded event_data.
func insertJobEvent(ctx context.Context, tx pgx.Tx, jobID, eventType string, eventData any) error {
	body, err := json.Marshal(eventData)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO job_events (job_id, event_type, event_data)
		VALUES ($1, $2, $3::jsonb)
	`, jobID, eventType, string(body))
	return err
}

// timelineColumnFor maps a status to the timeline column that must be stamped.
func timelineColumnFor(status job.Status) string {
	switch status {
	case job.StatusAssigned:
		return "claimed_at"
	case job.StatusPickedUp:
		return "picked_up_at"
	case job.StatusCompleted:
		return "completed_at"
	case job.StatusPaid:
		return "paid_at"
	case job.StatusCancelled:
		return "cancelled_at"
	default:
		// intermediate milestones only bump updated_at
		return "updated_at"
	}
}

// specificEventTypeFor returns a more precise event name when appropriate.
func specificEventTypeFor(status job.Status) string {
	switch status {
	case job.StatusAssigned:
		return "JOB_CLAIMED"
	case job.StatusPickedUp, job.StatusStarted:
		return "MILESTONE_REACHED"
	case job.StatusCompleted:
		return "JOB_COMPLETED"
	case job.StatusPaid:
		return "JOB_PAID"
	case job.StatusCancelled:
		return "JOB_CANCELLED"
	default:
		return "STATUS_CHANGED"
	}
}
