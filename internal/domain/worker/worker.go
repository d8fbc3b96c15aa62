package worker

import (
	"errors"
	"strings"
	"time"
)

// Worker is the domain entity corresponding to the `workers` table.
type Worker struct {
	// Identity & audit
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// Required business fields
	FullName    string
	Phone       string
	VehicleType VehicleType

	// KPIs
	TotalJobs     int
	TotalEarnings float64

	// Operational state
	Status WorkerStatus
}

var (
	ErrWorkerIDRequired    = errors.New("worker id is required")
	ErrFullNameRequired    = errors.New("full name is required")
	ErrInvalidStatusSwitch = errors.New("invalid worker status transition")
	ErrWorkerHasActiveJob  = errors.New("worker holds an active job; complete or cancel it before going offline")
	ErrNegativeTotals      = errors.New("totals cannot be negative")
)

// NewWorker creates a new Worker entity, offline by default.
func NewWorker(id, fullName, phone string, vehicleType VehicleType) (*Worker, error) {
	if id = strings.TrimSpace(id); id == "" {
		return nil, ErrWorkerIDRequired
	}
	if fullName = strings.TrimSpace(fullName); fullName == "" {
		return nil, ErrFullNameRequired
	}
	if !vehicleType.Valid() {
		return nil, ErrInvalidVehicleType
	}

	now := time.Now().UTC()
	return &Worker{
		ID:          id,
		CreatedAt:   now,
		UpdatedAt:   now,
		FullName:    fullName,
		Phone:       strings.TrimSpace(phone),
		VehicleType: vehicleType,
		Status:      WorkerStatusOffline,
	}, nil
}

// ApplyEarnings increments counters after a job settles.
func (worker *Worker) ApplyEarnings(jobsDelta int, earningsDelta float64) error {
	if jobsDelta < 0 || earningsDelta < 0 {
		return ErrNegativeTotals
	}
	worker.TotalJobs += jobsDelta
	worker.TotalEarnings += earningsDelta
	worker.touch()
	return nil
}

// ---- State transitions (minimal, explicit) ----

// GoOnline transitions OFFLINE -> AVAILABLE.
func (worker *Worker) GoOnline() error {
	if worker.Status != WorkerStatusOffline {
		return ErrInvalidStatusSwitch
	}
	worker.setStatus(WorkerStatusAvailable)
	return nil
}

// MarkBusy transitions AVAILABLE -> BUSY, on a successful claim.
func (worker *Worker) MarkBusy() error {
	if worker.Status != WorkerStatusAvailable {
		return ErrInvalidStatusSwitch
	}
	worker.setStatus(WorkerStatusBusy)
	return nil
}

// MarkAvailable transitions BUSY -> AVAILABLE, when the held job reaches
// a terminal state.
func (worker *Worker) MarkAvailable() error {
	if worker.Status != WorkerStatusBusy {
		return ErrInvalidStatusSwitch
	}
	worker.setStatus(WorkerStatusAvailable)
	return nil
}

// GoOffline transitions AVAILABLE -> OFFLINE. A busy worker is refused:
// the held job must reach a terminal state first.
func (worker *Worker) GoOffline() error {
	switch worker.Status {
	case WorkerStatusAvailable:
		worker.setStatus(WorkerStatusOffline)
		return nil
	case WorkerStatusBusy:
		return ErrWorkerHasActiveJob
	default:
		return ErrInvalidStatusSwitch
	}
}

// ---- internal helpers ----

func (worker *Worker) setStatus(status WorkerStatus) {
	worker.Status = status
	worker.touch()
}

func (worker *Worker) touch() {
	worker.UpdatedAt = time.Now().UTC()
}
