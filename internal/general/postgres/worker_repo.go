package postgres

import (
	"context"
	"fmt"

	"courier-dispatch/internal/domain/worker"
	"courier-dispatch/internal/ports"
)

// WorkerRepo persists workers using pgx and plain SQL.
type WorkerRepo struct{}

// NewWorkerRepo constructs a new WorkerRepo.
func NewWorkerRepo() ports.WorkerRepository {
	return &WorkerRepo{}
}

// CreateWorker inserts a new worker row.
func (repo *WorkerRepo) CreateWorker(ctx context.Context, w *worker.Worker) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO workers (id, full_name, phone, vehicle_type, status, total_jobs, total_earnings)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		w.ID,
		w.FullName,
		w.Phone,
		w.VehicleType.String(),
		w.Status.String(),
		w.TotalJobs,
		w.TotalEarnings,
	)
	return err
}

// GetByID fetches a worker by primary key.
func (repo *WorkerRepo) GetByID(ctx context.Context, workerID string) (*worker.Worker, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return nil, err
	}

	var out worker.Worker
	var vehicleType, status string

	err = tx.QueryRow(ctx, `
		SELECT id, created_at, updated_at, full_name, phone, vehicle_type, status, total_jobs, total_earnings
		FROM workers
		WHERE id = $1
	`, workerID).Scan(
		&out.ID, &out.CreatedAt, &out.UpdatedAt, &out.FullName, &out.Phone,
		&vehicleType, &status, &out.TotalJobs, &out.TotalEarnings,
	)
	if err != nil {
		return nil, err
	}

	out.VehicleType = worker.VehicleType(vehicleType)
	out.Status = worker.WorkerStatus(status)
	return &out, nil
}

// UpdateStatus sets the worker status unconditionally.
func (repo *WorkerRepo) UpdateStatus(ctx context.Context, workerID string, status worker.WorkerStatus) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	if !status.Valid() {
		return worker.ErrInvalidWorkerStatus
	}

	tag, err := tx.Exec(ctx, `
		UPDATE workers
		SET status = $1,
		    updated_at = now()
		WHERE id = $2
	`, status.String(), workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker %s not found", workerID)
	}
	return nil
}

// MarkBusyIfAvailable flips AVAILABLE -> BUSY in one conditional update.
// ok=false means the worker was offline or already holds a job.
func (repo *WorkerRepo) MarkBusyIfAvailable(ctx context.Context, workerID string) (bool, error) {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return false, err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE workers
		SET status = 'BUSY',
		    updated_at = now()
		WHERE id = $1
		  AND status = 'AVAILABLE'
	`, workerID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// IncrementCountersOnSettle bumps job and earnings totals after settlement.
func (repo *WorkerRepo) IncrementCountersOnSettle(ctx context.Context, workerID string, earnings float64) error {
	tx, err := MustTxFromContext(ctx)
	if err != nil {
		return err
	}

	tag, err := tx.Exec(ctx, `
		UPDATE workers
		SET total_jobs = total_jobs + 1,
		    total_earnings = total_earnings + $1,
		    updated_at = now()
		WHERE id = $2
	`, earnings, workerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("worker %s not found", workerID)
	}
	return nil
}
