package ports

import (
	"context"
	"time"

	"courier-dispatch/internal/domain/geo"
	"courier-dispatch/internal/domain/job"
	"courier-dispatch/internal/domain/worker"
)

// UnitOfWork interface is used to manage transactions across multiple repository operations.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// PendingJobRow is what the board query returns per pending job: the full
// row plus the precomputed distance from the querying worker.
type PendingJobRow struct {
	Job        *job.Job
	DistanceKM float64
}

// JobRepository defines the methods for managing job data.
type JobRepository interface {
	CreateJob(ctx context.Context, j *job.Job) error
	GetByID(ctx context.Context, id string) (*job.Job, error)
	GetActiveForWorker(ctx context.Context, workerID string) (*job.Job, error)
	ListPendingNear(ctx context.Context, origin geo.Point, radiusKM float64, limit int) ([]PendingJobRow, error)
	ListPendingOlderThan(ctx context.Context, age time.Duration, limit int) ([]*job.Job, error)

	// ClaimPending performs the atomic check-and-set: the row is updated only
	// if it is still PENDING and unassigned. claimed=false means another
	// worker won the race.
	ClaimPending(ctx context.Context, jobID, workerID string, claimedAt time.Time) (claimed bool, err error)

	UpdateStatus(ctx context.Context, id string, status job.Status, ts time.Time) error
	Cancel(ctx context.Context, id, reason string, cancelledAt time.Time) error
	MarkPaid(ctx context.Context, id string, paidAt time.Time) error
}

// JobEventRepository defines the methods for managing job event data.
type JobEventRepository interface {
	Append(ctx context.Context, e *job.Event) error
}

// WorkerRepository defines the methods for managing worker data.
type WorkerRepository interface {
	CreateWorker(ctx context.Context, w *worker.Worker) error
	GetByID(ctx context.Context, workerID string) (*worker.Worker, error)
	UpdateStatus(ctx context.Context, workerID string, status worker.WorkerStatus) error

	// MarkBusyIfAvailable flips AVAILABLE -> BUSY in a single conditional
	// update. ok=false means the worker was offline or already busy.
	MarkBusyIfAvailable(ctx context.Context, workerID string) (ok bool, err error)

	IncrementCountersOnSettle(ctx context.Context, workerID string, earnings float64) error
}

// PositionRepository defines the methods for managing worker position data.
type PositionRepository interface {
	// ApplyLatest upserts the worker's last known position, but only when the
	// report is newer than what is stored. applied=false means the report was
	// stale and the stored position is untouched.
	ApplyLatest(ctx context.Context, report *geo.PositionReport) (applied bool, err error)

	GetLatest(ctx context.Context, workerID string) (*geo.PositionReport, error)
	Archive(ctx context.Context, report *geo.PositionReport) error
}

// ProximityRepository records which proximity alerts have fired.
type ProximityRepository interface {
	// MarkFired inserts the (jobID, leg) pair; fired=false means the alert for
	// this leg was already recorded and must not be re-emitted.
	MarkFired(ctx context.Context, jobID string, leg job.Leg, at time.Time) (fired bool, err error)
}
